package domain

import (
	"fmt"
	"strings"
)

// Validate enforces the invariants of the question's variant.
func (q Question) Validate() error {
	switch q.Variant {
	case VariantMultipleChoice:
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %q has no options", ErrMalformedQuestion, q.ID)
		}
		seen := make(map[string]struct{}, len(q.Options))
		found := false
		for _, opt := range q.Options {
			if opt == "" {
				return fmt.Errorf("%w: question %q has an empty option", ErrMalformedQuestion, q.ID)
			}
			if _, dup := seen[opt]; dup {
				return fmt.Errorf("%w: question %q repeats option %q", ErrMalformedQuestion, q.ID, opt)
			}
			seen[opt] = struct{}{}
			if opt == q.CorrectAnswer {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: question %q answer is not among its options", ErrMalformedQuestion, q.ID)
		}
	case VariantAssembly:
		if len(q.WordBank) == 0 {
			return fmt.Errorf("%w: question %q has an empty word bank", ErrMalformedQuestion, q.ID)
		}
		words := strings.Fields(q.CorrectAnswer)
		// Answers are compared against tokens joined by single spaces.
		if strings.Join(words, " ") != q.CorrectAnswer {
			return fmt.Errorf("%w: question %q answer is not single-space separated", ErrMalformedQuestion, q.ID)
		}
		if !sameMultiset(words, q.WordBank) {
			return fmt.Errorf("%w: question %q word bank does not spell its answer", ErrMalformedQuestion, q.ID)
		}
	default:
		return fmt.Errorf("%w: question %q has unknown variant %q", ErrMalformedQuestion, q.ID, q.Variant)
	}
	return nil
}

// ValidateSet checks every question against the variant implied by the key
// and rejects duplicate IDs.
func ValidateSet(key SetKey, questions []Question) error {
	want := key.Game.Variant()
	ids := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if q.Variant != want {
			return fmt.Errorf("%w: question %q is %q, game %s expects %q", ErrMalformedQuestion, q.ID, q.Variant, key.Game, want)
		}
		if _, dup := ids[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrMalformedQuestion, q.ID)
		}
		ids[q.ID] = struct{}{}
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
		if counts[s] < 0 {
			return false
		}
	}
	return true
}
