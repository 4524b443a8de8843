package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"bahasa-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question sets from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error)
}

// QuestionRepository caches question sets in Redis and falls back to a loader on cache miss.
// Sets are stored as JSON: SET questions:{language}:{game}:{level} <json> EX <ttl>
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error) {
	cacheKey := r.key(key)
	if questions, ok := r.cached(ctx, cacheKey); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(cacheKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx, cacheKey); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, key)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}

		data, err := json.Marshal(questions)
		if err != nil {
			return nil, fmt.Errorf("encode questions: %w", err)
		}
		// best-effort: a failed write only costs another load
		_ = r.client.Set(ctx, cacheKey, data, r.ttlWithJitter()).Err()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate removes a cached set; the seed command calls it for every set it writes.
func (r *QuestionRepository) Invalidate(ctx context.Context, key domain.SetKey) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *QuestionRepository) cached(ctx context.Context, cacheKey string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		// corrupt entry, drop it and reload
		_ = r.client.Del(ctx, cacheKey).Err()
		return nil, false
	}
	return questions, true
}

func (r *QuestionRepository) key(key domain.SetKey) string {
	return "questions:" + key.Language + ":" + string(key.Game) + ":" + strconv.Itoa(key.Level)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
