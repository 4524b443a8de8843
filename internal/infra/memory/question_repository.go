package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"bahasa-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error)
}

// QuestionRepository caches question sets with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[domain.SetKey]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.SetKey]cachedSet),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error) {
	if questions, ok := r.cached(key); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(key.String(), func() (interface{}, error) {
		if questions, ok := r.cached(key); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedSet{
			questions: questions,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(key domain.SetKey) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

// StaticQuestionLoader serves sets from an in-memory map (useful for tests/demos).
// Keys without a set load as empty.
type StaticQuestionLoader struct {
	sets map[domain.SetKey][]domain.Question
}

func NewStaticQuestionLoader(sets map[domain.SetKey][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, key domain.SetKey) ([]domain.Question, error) {
	return l.sets[key], nil
}

// GetQuestions lets the static loader stand in as a source without a cache in front.
func (l *StaticQuestionLoader) GetQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error) {
	return l.LoadQuestions(ctx, key)
}

func (r *QuestionRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
