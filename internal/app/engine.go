package app

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"bahasa-quiz-service/internal/domain"
)

// QuestionSource returns the ordered question set for a key. An empty set is not an error.
type QuestionSource interface {
	GetQuestions(ctx context.Context, key domain.SetKey) ([]domain.Question, error)
}

// NavigationHost is notified once when a session runs out of questions.
type NavigationHost interface {
	SessionFinished()
}

// NavigationHostFunc adapts a plain function to NavigationHost.
type NavigationHostFunc func()

func (f NavigationHostFunc) SessionFinished() { f() }

// State is the lifecycle position of an Engine.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateActive
	StateEmpty
	StateCompleted
	StateError
)

var stateNames = [...]string{"idle", "loading", "active", "empty", "completed", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoadError reports a failed question set load. It matches domain.ErrLoadFailed.
type LoadError struct {
	Key domain.SetKey
	Err error
}

func (e *LoadError) Error() string {
	return "load questions " + e.Key.String() + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == domain.ErrLoadFailed }

// Snapshot is a copy of an engine's session state.
type Snapshot struct {
	State        State            `json:"state"`
	Key          domain.SetKey    `json:"key"`
	Index        int              `json:"index"`
	Total        int              `json:"total"`
	Question     *domain.Question `json:"question,omitempty"`
	Selection    string           `json:"selection,omitempty"`
	Bank         []string         `json:"bank,omitempty"`
	Answer       []string         `json:"answer,omitempty"`
	Checked      bool             `json:"checked"`
	Correct      bool             `json:"correct"`
	CorrectCount int              `json:"correctCount"`
	LoadError    string           `json:"loadError,omitempty"`
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithRand replaces the engine's shuffle source, mostly for deterministic tests.
func WithRand(rnd *rand.Rand) EngineOption {
	return func(e *Engine) {
		e.rnd = rnd
	}
}

// Engine drives one attempt at a question set: load, select, check, advance.
// Operations that are not valid for the current state are ignored and report false.
type Engine struct {
	source QuestionSource
	host   NavigationHost

	mu           sync.Mutex
	rnd          *rand.Rand
	gen          uint64
	state        State
	key          domain.SetKey
	questions    []domain.Question
	index        int
	selection    string
	bank         []string
	answer       []string
	checked      bool
	correct      bool
	correctCount int
	loadErr      error
	notified     bool
}

func NewEngine(source QuestionSource, host NavigationHost, opts ...EngineOption) *Engine {
	e := &Engine{
		source: source,
		host:   host,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load fetches the question set for key and restarts the session on it.
// If another Load starts before this one resolves, this result is dropped and
// domain.ErrLoadSuperseded is returned.
func (e *Engine) Load(ctx context.Context, key domain.SetKey) error {
	gen, err := e.beginLoad(key)
	if err != nil {
		return err
	}
	return e.finishLoad(ctx, gen, key)
}

// LoadAsync enters the loading state before returning and resolves the load in
// the background. The channel receives the same value Load would return.
func (e *Engine) LoadAsync(ctx context.Context, key domain.SetKey) <-chan error {
	done := make(chan error, 1)
	gen, err := e.beginLoad(key)
	if err != nil {
		done <- err
		return done
	}
	go func() {
		done <- e.finishLoad(ctx, gen, key)
	}()
	return done
}

func (e *Engine) beginLoad(key domain.SetKey) (uint64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateCompleted {
		return 0, domain.ErrSessionFinished
	}
	e.gen++
	e.state = StateLoading
	e.key = key
	e.questions = nil
	e.index = 0
	e.correctCount = 0
	e.loadErr = nil
	e.clearSelectionLocked()
	return e.gen, nil
}

func (e *Engine) finishLoad(ctx context.Context, gen uint64, key domain.SetKey) error {
	questions, err := e.source.GetQuestions(ctx, key)
	if err == nil {
		err = domain.ValidateSet(key, questions)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return domain.ErrLoadSuperseded
	}
	if err != nil {
		loadErr := &LoadError{Key: key, Err: err}
		e.state = StateError
		e.loadErr = loadErr
		return loadErr
	}
	if len(questions) == 0 {
		e.state = StateEmpty
		return nil
	}
	e.questions = cloneQuestions(questions)
	e.state = StateActive
	e.enterQuestionLocked(0)
	return nil
}

// SelectOption records the chosen option of a multiple-choice question.
// Membership in the options is decided by CheckAnswer, not here.
func (e *Engine) SelectOption(option string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.openQuestionLocked()
	if !ok || q.Variant != domain.VariantMultipleChoice || option == "" {
		return false
	}
	e.selection = option
	return true
}

// PlaceToken moves the first occurrence of token from the bank to the end of the answer.
func (e *Engine) PlaceToken(token string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.openQuestionLocked()
	if !ok || q.Variant != domain.VariantAssembly {
		return false
	}
	i := slices.Index(e.bank, token)
	if i < 0 {
		return false
	}
	e.bank = slices.Delete(e.bank, i, i+1)
	e.answer = append(e.answer, token)
	return true
}

// UnplaceToken returns the answer token at index to the end of the bank.
func (e *Engine) UnplaceToken(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.openQuestionLocked()
	if !ok || q.Variant != domain.VariantAssembly {
		return false
	}
	if index < 0 || index >= len(e.answer) {
		return false
	}
	token := e.answer[index]
	e.answer = slices.Delete(e.answer, index, index+1)
	e.bank = append(e.bank, token)
	return true
}

// CheckAnswer scores the current selection. It needs a non-empty selection and
// is accepted once per question.
func (e *Engine) CheckAnswer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.openQuestionLocked()
	if !ok {
		return false
	}
	answer := Answer{Option: e.selection, Tokens: e.answer}
	if answer.IsEmpty(q.Variant) {
		return false
	}
	e.correct = Score(*q, answer)
	e.checked = true
	if e.correct {
		e.correctCount++
	}
	return true
}

// Advance moves past a checked question. After the last question the engine
// completes and the navigation host is notified.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	if e.state != StateActive || !e.checked {
		e.mu.Unlock()
		return false
	}
	if e.index+1 < len(e.questions) {
		e.enterQuestionLocked(e.index + 1)
		e.mu.Unlock()
		return true
	}

	e.state = StateCompleted
	e.index = len(e.questions)
	e.clearSelectionLocked()
	notify := !e.notified && e.host != nil
	e.notified = true
	e.mu.Unlock()

	// Outside the lock: hosts commonly read the snapshot back.
	if notify {
		e.host.SessionFinished()
	}
	return true
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result reports the score so far over the loaded set.
func (e *Engine) Result() domain.SessionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.SessionResult{
		Key:     e.key,
		Correct: e.correctCount,
		Total:   len(e.questions),
	}
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:        e.state,
		Key:          e.key,
		Index:        e.index,
		Total:        len(e.questions),
		Selection:    e.selection,
		Bank:         slices.Clone(e.bank),
		Answer:       slices.Clone(e.answer),
		Checked:      e.checked,
		Correct:      e.correct,
		CorrectCount: e.correctCount,
	}
	if e.state == StateActive {
		q := cloneQuestion(e.questions[e.index])
		snap.Question = &q
	}
	if e.loadErr != nil {
		snap.LoadError = e.loadErr.Error()
	}
	return snap
}

func (e *Engine) openQuestionLocked() (*domain.Question, bool) {
	if e.state != StateActive || e.checked {
		return nil, false
	}
	return &e.questions[e.index], true
}

func (e *Engine) enterQuestionLocked(index int) {
	e.index = index
	e.clearSelectionLocked()
	q := e.questions[index]
	if q.Variant == domain.VariantAssembly {
		e.bank = slices.Clone(q.WordBank)
		e.rnd.Shuffle(len(e.bank), func(i, j int) {
			e.bank[i], e.bank[j] = e.bank[j], e.bank[i]
		})
		e.answer = make([]string, 0, len(e.bank))
	}
}

func (e *Engine) clearSelectionLocked() {
	e.selection = ""
	e.bank = nil
	e.answer = nil
	e.checked = false
	e.correct = false
}

func cloneQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		out[i] = cloneQuestion(q)
	}
	return out
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = slices.Clone(q.Options)
	q.WordBank = slices.Clone(q.WordBank)
	return q
}
