package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bahasa-quiz-service/internal/domain"
	"github.com/uptrace/bun"
)

type questionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	LanguageSlug string    `bun:"language_slug,pk"`
	GameSlug     string    `bun:"game_slug,pk"`
	Level        int       `bun:"level,pk"`
	Data         string    `bun:"data,type:jsonb"`
	UpdatedAt    time.Time `bun:"updated_at"`
}

// QuestionWriter upserts question sets; the seed command uses it.
type QuestionWriter struct {
	db *bun.DB
}

func NewQuestionWriter(db *bun.DB) *QuestionWriter {
	return &QuestionWriter{db: db}
}

// SaveSets validates and upserts every set in one transaction.
func (w *QuestionWriter) SaveSets(ctx context.Context, sets map[domain.SetKey][]domain.Question) (int, error) {
	if len(sets) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]questionSetRow, 0, len(sets))
	for key, questions := range sets {
		if err := key.Validate(); err != nil {
			return 0, err
		}
		if err := domain.ValidateSet(key, questions); err != nil {
			return 0, fmt.Errorf("set %s: %w", key, err)
		}
		if questions == nil {
			questions = []domain.Question{}
		}
		data, err := json.Marshal(questions)
		if err != nil {
			return 0, fmt.Errorf("encode set %s: %w", key, err)
		}
		rows = append(rows, questionSetRow{
			LanguageSlug: key.Language,
			GameSlug:     string(key.Game),
			Level:        key.Level,
			Data:         string(data),
			UpdatedAt:    now,
		})
	}

	err := w.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (language_slug, game_slug, level) DO UPDATE").
			Set("data = EXCLUDED.data").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("save question sets: %w", err)
	}
	return len(rows), nil
}
