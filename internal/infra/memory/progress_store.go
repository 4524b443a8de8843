package memory

import (
	"context"
	"sort"
	"sync"

	"bahasa-quiz-service/internal/domain"
)

type progressKey struct {
	userID   string
	language string
	game     domain.Game
}

// ProgressStore keeps learner progress in process memory.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[progressKey]domain.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[progressKey]domain.Progress)}
}

// RecordCompletion counts the lesson and raises the highest level when the session passed.
func (s *ProgressStore) RecordCompletion(_ context.Context, userID string, result domain.SessionResult) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID: userID, language: result.Key.Language, game: result.Key.Game}
	p, ok := s.progress[key]
	if !ok {
		p = domain.Progress{Language: result.Key.Language, Game: result.Key.Game}
	}
	p.LessonsCompleted++
	if result.Passed() && result.Key.Level > p.HighestLevelCompleted {
		p.HighestLevelCompleted = result.Key.Level
	}
	s.progress[key] = p
	return p, nil
}

func (s *ProgressStore) ListProgress(_ context.Context, userID, language string) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Progress, 0)
	for key, p := range s.progress {
		if key.userID == userID && key.language == language {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Game < out[j].Game })
	return out, nil
}
