package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"bahasa-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountSessionEvents(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted(domain.GameWordCard)
	m.AnswerChecked(domain.GameWordCard, true)
	m.AnswerChecked(domain.GameWordCard, false)
	m.AnswerChecked(domain.GameWordCard, true)
	m.SessionCompleted(domain.SessionResult{
		Key:     domain.SetKey{Language: "sundanese", Game: domain.GameWordCard, Level: 1},
		Correct: 2,
		Total:   3,
	})

	if got := testutil.ToFloat64(m.sessionsStarted.WithLabelValues("kartu_kata")); got != 1 {
		t.Fatalf("expected 1 started session, got %v", got)
	}
	if got := testutil.ToFloat64(m.answersChecked.WithLabelValues("kartu_kata", "true")); got != 2 {
		t.Fatalf("expected 2 correct answers, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsCompleted.WithLabelValues("kartu_kata", "false")); got != 1 {
		t.Fatalf("expected 1 failed completion, got %v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.LoadFailed(domain.GameImageGuess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `quiz_question_load_failures_total{game="tebak_gambar"} 1`) {
		t.Fatalf("expected load failure counter in output, got:\n%s", body)
	}
}
