package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bahasa-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads question set JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns the stored set for key; a key with no row is an empty set.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT data FROM question_sets WHERE language_slug=$1 AND game_slug=$2 AND level=$3`,
		key.Language, string(key.Game), key.Level,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []domain.Question{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load question set: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal question set: %w", err)
	}
	return questions, nil
}
