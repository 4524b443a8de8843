package app

import (
	"context"
	"errors"
	"time"

	"bahasa-quiz-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRepository abstracts where live quiz sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	Len() int
}

// ProgressRepository persists what learners have completed.
type ProgressRepository interface {
	RecordCompletion(ctx context.Context, userID string, result domain.SessionResult) (domain.Progress, error)
	ListProgress(ctx context.Context, userID, language string) ([]domain.Progress, error)
}

// MetricsRecorder receives session lifecycle events.
type MetricsRecorder interface {
	SessionStarted(game domain.Game)
	LoadFailed(game domain.Game)
	AnswerChecked(game domain.Game, correct bool)
	SessionCompleted(result domain.SessionResult)
}

// Session binds one learner to one engine.
type Session struct {
	ID        string
	UserID    string
	Key       domain.SetKey
	StartedAt time.Time

	engine *Engine
}

// NewSession wraps an existing engine; infrastructure tests use it to seed stores.
func NewSession(id, userID string, key domain.SetKey, engine *Engine) *Session {
	return &Session{ID: id, UserID: userID, Key: key, StartedAt: time.Now(), engine: engine}
}

func (s *Session) Engine() *Engine { return s.engine }

func (s *Session) Snapshot() Snapshot { return s.engine.Snapshot() }

// ServiceOption customizes a SessionService.
type ServiceOption func(*SessionService)

func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *SessionService) { s.log = log }
}

func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *SessionService) { s.metrics = m }
}

// WithEngineOptions passes options to every engine the service creates.
func WithEngineOptions(opts ...EngineOption) ServiceOption {
	return func(s *SessionService) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *SessionService) { s.now = now }
}

// SessionService contains the quiz session use cases.
type SessionService struct {
	sessions   SessionRepository
	questions  QuestionSource
	progress   ProgressRepository
	metrics    MetricsRecorder
	log        *zap.Logger
	engineOpts []EngineOption
	now        func() time.Time

	progressTimeout time.Duration
}

func NewSessionService(sessions SessionRepository, questions QuestionSource, progress ProgressRepository, opts ...ServiceOption) *SessionService {
	s := &SessionService{
		sessions:        sessions,
		questions:       questions,
		progress:        progress,
		metrics:         noopMetrics{},
		log:             zap.NewNop(),
		now:             time.Now,
		progressTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a session for userID on key and loads its questions. A failed
// load still returns the session so the caller can Reload it.
func (s *SessionService) Start(ctx context.Context, userID string, key domain.SetKey, host NavigationHost) (*Session, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Key:       key,
		StartedAt: s.now(),
	}
	session.engine = NewEngine(s.questions, NavigationHostFunc(func() {
		s.finish(session, host)
	}), s.engineOpts...)
	s.sessions.Put(session)
	s.metrics.SessionStarted(key.Game)

	if err := s.load(ctx, session); err != nil {
		return session, err
	}
	s.log.Info("quiz session started",
		zap.String("session", session.ID),
		zap.String("user", userID),
		zap.Stringer("key", key),
		zap.Stringer("state", session.engine.State()),
	)
	return session, nil
}

// Reload retries the question set load of an existing session.
func (s *SessionService) Reload(ctx context.Context, sessionID string) (Snapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	err := s.load(ctx, session)
	return session.engine.Snapshot(), err
}

func (s *SessionService) Get(sessionID string) (*Session, bool) {
	return s.sessions.Get(sessionID)
}

// End forgets a session; its engine is dropped with it.
func (s *SessionService) End(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.sessions.Delete(sessionID)
	s.log.Debug("quiz session ended",
		zap.String("session", sessionID),
		zap.Stringer("state", session.engine.State()),
		zap.Duration("elapsed", s.now().Sub(session.StartedAt)),
	)
}

func (s *SessionService) Select(sessionID, option string) (Snapshot, bool, error) {
	return s.apply(sessionID, func(e *Engine) bool { return e.SelectOption(option) })
}

func (s *SessionService) Place(sessionID, token string) (Snapshot, bool, error) {
	return s.apply(sessionID, func(e *Engine) bool { return e.PlaceToken(token) })
}

func (s *SessionService) Unplace(sessionID string, index int) (Snapshot, bool, error) {
	return s.apply(sessionID, func(e *Engine) bool { return e.UnplaceToken(index) })
}

func (s *SessionService) Check(sessionID string) (Snapshot, bool, error) {
	snap, applied, err := s.apply(sessionID, (*Engine).CheckAnswer)
	if applied {
		s.metrics.AnswerChecked(snap.Key.Game, snap.Correct)
	}
	return snap, applied, err
}

func (s *SessionService) Advance(sessionID string) (Snapshot, bool, error) {
	return s.apply(sessionID, (*Engine).Advance)
}

// Progress lists a learner's per-game progress in one language.
func (s *SessionService) Progress(ctx context.Context, userID, language string) ([]domain.Progress, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if err := domain.ValidateLanguage(language); err != nil {
		return nil, err
	}
	return s.progress.ListProgress(ctx, userID, language)
}

func (s *SessionService) apply(sessionID string, op func(*Engine) bool) (Snapshot, bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, false, domain.ErrSessionNotFound
	}
	applied := op(session.engine)
	return session.engine.Snapshot(), applied, nil
}

func (s *SessionService) load(ctx context.Context, session *Session) error {
	err := session.engine.Load(ctx, session.Key)
	if err != nil && !errors.Is(err, domain.ErrLoadSuperseded) {
		s.metrics.LoadFailed(session.Key.Game)
		s.log.Warn("question set load failed",
			zap.String("session", session.ID),
			zap.Stringer("key", session.Key),
			zap.Error(err),
		)
	}
	return err
}

func (s *SessionService) finish(session *Session, host NavigationHost) {
	result := session.engine.Result()

	ctx, cancel := context.WithTimeout(context.Background(), s.progressTimeout)
	defer cancel()
	progress, err := s.progress.RecordCompletion(ctx, session.UserID, result)
	if err != nil {
		s.log.Error("record progress failed",
			zap.String("session", session.ID),
			zap.String("user", session.UserID),
			zap.Error(err),
		)
	} else {
		s.log.Info("quiz session completed",
			zap.String("session", session.ID),
			zap.String("user", session.UserID),
			zap.Stringer("key", result.Key),
			zap.Int("score", result.Score()),
			zap.Int("highestLevel", progress.HighestLevelCompleted),
		)
	}
	s.metrics.SessionCompleted(result)

	if host != nil {
		host.SessionFinished()
	}
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted(domain.Game)            {}
func (noopMetrics) LoadFailed(domain.Game)                {}
func (noopMetrics) AnswerChecked(domain.Game, bool)       {}
func (noopMetrics) SessionCompleted(domain.SessionResult) {}
