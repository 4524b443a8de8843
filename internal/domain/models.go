package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Game identifies one of the quiz mini-games offered per language level.
type Game string

const (
	GameImageGuess      Game = "tebak_gambar"
	GameWordCard        Game = "kartu_kata"
	GameSentenceBuilder Game = "susun_kalimat"
)

// Variant is the question shape a game works with.
type Variant string

const (
	VariantMultipleChoice Variant = "multiple_choice"
	VariantAssembly       Variant = "assembly"
)

// Variant returns the question variant implied by the game, or "" for an unknown game.
func (g Game) Variant() Variant {
	switch g {
	case GameImageGuess, GameWordCard:
		return VariantMultipleChoice
	case GameSentenceBuilder:
		return VariantAssembly
	default:
		return ""
	}
}

// SetKey scopes a question set to a language, a game and a level.
type SetKey struct {
	Language string `json:"language"`
	Game     Game   `json:"game"`
	Level    int    `json:"level"`
}

// ValidateLanguage checks a language slug. Slugs are used as storage key
// segments, so the ':' separator is not allowed.
func ValidateLanguage(language string) error {
	if language == "" {
		return fmt.Errorf("%w: empty language", ErrInvalidSetKey)
	}
	if strings.Contains(language, ":") {
		return fmt.Errorf("%w: language %q contains ':'", ErrInvalidSetKey, language)
	}
	return nil
}

// Validate checks that the key names a known game with a positive level.
func (k SetKey) Validate() error {
	if err := ValidateLanguage(k.Language); err != nil {
		return err
	}
	if k.Game == "" {
		return fmt.Errorf("%w: empty game", ErrInvalidSetKey)
	}
	if k.Game.Variant() == "" {
		return fmt.Errorf("%w: unknown game %q", ErrInvalidSetKey, k.Game)
	}
	if k.Level < 1 {
		return fmt.Errorf("%w: level must be positive, got %d", ErrInvalidSetKey, k.Level)
	}
	return nil
}

func (k SetKey) String() string {
	return k.Language + "/" + string(k.Game) + "/" + strconv.Itoa(k.Level)
}

// Question is a single quiz item. Options are used by multiple-choice games,
// WordBank by the sentence builder.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	Variant       Variant  `json:"variant"`
	Options       []string `json:"options,omitempty"`
	WordBank      []string `json:"wordBank,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// PassingScore is the minimum percentage for a lesson level to count as passed.
const PassingScore = 70

// SessionResult summarizes a finished quiz session.
type SessionResult struct {
	Key     SetKey `json:"key"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// Score returns the percentage of correctly answered questions.
func (r SessionResult) Score() int {
	if r.Total <= 0 {
		return 0
	}
	return r.Correct * 100 / r.Total
}

func (r SessionResult) Passed() bool {
	return r.Total > 0 && r.Score() >= PassingScore
}

// Progress is a learner's standing in one game of one language.
type Progress struct {
	Language              string `json:"language"`
	Game                  Game   `json:"game"`
	HighestLevelCompleted int    `json:"highestLevelCompleted"`
	LessonsCompleted      int    `json:"lessonsCompleted"`
}
