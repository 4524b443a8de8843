package metrics

import (
	"net/http"
	"strconv"

	"bahasa-quiz-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes quiz session counters. It satisfies app.MetricsRecorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	answersChecked    *prometheus.CounterVec
	loadFailures      *prometheus.CounterVec
	sessionScore      *prometheus.HistogramVec
}

// New registers the quiz collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_started_total",
				Help: "Quiz sessions opened, by game",
			},
			[]string{"game"},
		),
		sessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_completed_total",
				Help: "Quiz sessions that ran out of questions, by game and pass",
			},
			[]string{"game", "passed"},
		),
		answersChecked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_answers_checked_total",
				Help: "Answers scored, by game and correctness",
			},
			[]string{"game", "correct"},
		),
		loadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_question_load_failures_total",
				Help: "Question set loads that failed, by game",
			},
			[]string{"game"},
		),
		sessionScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_session_score_percent",
				Help:    "Final score of completed sessions",
				Buckets: []float64{20, 40, 60, domain.PassingScore, 80, 90, 100},
			},
			[]string{"game"},
		),
	}
	reg.MustRegister(m.sessionsStarted, m.sessionsCompleted, m.answersChecked, m.loadFailures, m.sessionScore)
	return m
}

func (m *Metrics) SessionStarted(game domain.Game) {
	m.sessionsStarted.WithLabelValues(string(game)).Inc()
}

func (m *Metrics) LoadFailed(game domain.Game) {
	m.loadFailures.WithLabelValues(string(game)).Inc()
}

func (m *Metrics) AnswerChecked(game domain.Game, correct bool) {
	m.answersChecked.WithLabelValues(string(game), strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) SessionCompleted(result domain.SessionResult) {
	game := string(result.Key.Game)
	m.sessionsCompleted.WithLabelValues(game, strconv.FormatBool(result.Passed())).Inc()
	m.sessionScore.WithLabelValues(game).Observe(float64(result.Score()))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
