package app

import (
	"strings"

	"bahasa-quiz-service/internal/domain"
)

// Answer is a learner's response: a chosen option or the placed tokens in order.
type Answer struct {
	Option string
	Tokens []string
}

// IsEmpty reports whether there is nothing to score for the given variant.
func (a Answer) IsEmpty(variant domain.Variant) bool {
	switch variant {
	case domain.VariantMultipleChoice:
		return a.Option == ""
	case domain.VariantAssembly:
		return len(a.Tokens) == 0
	default:
		return true
	}
}

// Score compares an answer with the question's correct answer. Comparison is
// exact: case-sensitive, and for assembly order-sensitive with single-space joins.
func Score(q domain.Question, a Answer) bool {
	switch q.Variant {
	case domain.VariantMultipleChoice:
		return a.Option == q.CorrectAnswer
	case domain.VariantAssembly:
		return strings.Join(a.Tokens, " ") == q.CorrectAnswer
	default:
		return false
	}
}
