package redis

import (
	"context"
	"testing"
	"time"

	"bahasa-quiz-service/internal/domain"
	"bahasa-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var sampleKey = domain.SetKey{Language: "sundanese", Game: domain.GameSentenceBuilder, Level: 1}

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[domain.SetKey][]domain.Question{
			sampleKey: sampleQuestions(),
		}),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	_, err = repo.GetQuestions(context.Background(), sampleKey)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("questions:sundanese:susun_kalimat:1") {
		t.Fatalf("expected cached set in redis")
	}
	if ttl := mr.TTL("questions:sundanese:susun_kalimat:1"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected ttl within jitter window, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	questions, err := repo.GetQuestions(context.Background(), sampleKey)
	if err != nil {
		t.Fatalf("get cached questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(questions) != 1 || len(questions[0].WordBank) != 7 || questions[0].Variant != domain.VariantAssembly {
		t.Fatalf("expected full question from cache, got %+v", questions)
	}
}

func TestQuestionRepositoryCachesEmptySets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(nil)}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute)

	for i := 0; i < 2; i++ {
		questions, err := repo.GetQuestions(context.Background(), sampleKey)
		if err != nil || len(questions) != 0 {
			t.Fatalf("expected empty set, got %v, %v", questions, err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected empty set to be cached, loader calls=%d", loader.calls)
	}
}

func TestQuestionRepositoryRecoversFromCorruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("questions:sundanese:susun_kalimat:1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[domain.SetKey][]domain.Question{
			sampleKey: sampleQuestions(),
		}),
	}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute)

	questions, err := repo.GetQuestions(context.Background(), sampleKey)
	if err != nil || len(questions) != 1 {
		t.Fatalf("expected reload from loader, got %v, %v", questions, err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	if err := repo.Invalidate(context.Background(), sampleKey); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("questions:sundanese:susun_kalimat:1") {
		t.Fatalf("expected key removed after invalidate")
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, key)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "s1",
			Prompt:        "Abdi Elis, nami anjeun saha?",
			Variant:       domain.VariantAssembly,
			WordBank:      []string{"Your", "Elis,", "I", "Name", "Am", "What's", "?"},
			CorrectAnswer: "I Am Elis, What's Your Name ?",
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
