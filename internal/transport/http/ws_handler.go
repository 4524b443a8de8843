package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bahasa-quiz-service/internal/app"
	"bahasa-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

type WSHandler struct {
	service  *app.SessionService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type placePayload struct {
	Token string `json:"token"`
}

type unplacePayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is a question as the learner sees it. The expected answer is
// only filled in once the question has been checked.
type questionView struct {
	ID            string         `json:"id"`
	Prompt        string         `json:"prompt"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	Variant       domain.Variant `json:"variant"`
	Options       []string       `json:"options,omitempty"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
}

type stateView struct {
	SessionID    string        `json:"sessionId"`
	Applied      bool          `json:"applied"`
	State        app.State     `json:"state"`
	Key          domain.SetKey `json:"key"`
	Index        int           `json:"index"`
	Total        int           `json:"total"`
	Question     *questionView `json:"question,omitempty"`
	Selection    string        `json:"selection,omitempty"`
	Bank         []string      `json:"bank,omitempty"`
	Answer       []string      `json:"answer,omitempty"`
	Checked      bool          `json:"checked"`
	Correct      bool          `json:"correct"`
	CorrectCount int           `json:"correctCount"`
	LoadError    string        `json:"loadError,omitempty"`
}

type finishedPayload struct {
	Key     domain.SetKey `json:"key"`
	Correct int           `json:"correct"`
	Total   int           `json:"total"`
	Score   int           `json:"score"`
	Passed  bool          `json:"passed"`
}

func newStateView(sessionID string, snap app.Snapshot, applied bool) stateView {
	view := stateView{
		SessionID:    sessionID,
		Applied:      applied,
		State:        snap.State,
		Key:          snap.Key,
		Index:        snap.Index,
		Total:        snap.Total,
		Selection:    snap.Selection,
		Bank:         snap.Bank,
		Answer:       snap.Answer,
		Checked:      snap.Checked,
		Correct:      snap.Correct,
		CorrectCount: snap.CorrectCount,
		LoadError:    snap.LoadError,
	}
	if q := snap.Question; q != nil {
		view.Question = &questionView{
			ID:       q.ID,
			Prompt:   q.Prompt,
			ImageURL: q.ImageURL,
			Variant:  q.Variant,
			Options:  q.Options,
		}
		if snap.Checked {
			view.Question.CorrectAnswer = q.CorrectAnswer
		}
	}
	return view
}

func newFinishedPayload(result domain.SessionResult) finishedPayload {
	return finishedPayload{
		Key:     result.Key,
		Correct: result.Correct,
		Total:   result.Total,
		Score:   result.Score(),
		Passed:  result.Passed(),
	}
}

func parseSetKey(r *http.Request) (domain.SetKey, error) {
	q := r.URL.Query()
	key := domain.SetKey{
		Language: q.Get("language"),
		Game:     domain.Game(q.Get("game")),
		Level:    1,
	}
	if raw := q.Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			return domain.SetKey{}, errors.New("level must be a number")
		}
		key.Level = level
	}
	return key, key.Validate()
}

// ServeWS opens a quiz session for the learner and drives it from client messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	key, err := parseSetKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	out := newOutbox(func(msg outboundMessage[any]) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}, h.log)
	defer out.close()

	var session *app.Session
	// Fired from Advance on the read loop below, so the outbox is still open.
	host := app.NavigationHostFunc(func() {
		out.emit("finished", newFinishedPayload(session.Engine().Result()))
	})

	session, err = h.service.Start(r.Context(), userID, key, host)
	if session == nil {
		out.emit("error", errorPayload{Message: err.Error()})
		return
	}
	defer h.service.End(session.ID)

	out.emit("state", newStateView(session.ID, session.Snapshot(), err == nil))
	if err != nil {
		out.emit("error", errorPayload{Message: err.Error()})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		snap, applied, err := h.dispatch(r, session.ID, inbound)
		if err != nil {
			if !out.emit("error", errorPayload{Message: err.Error()}) {
				return
			}
			if !errors.Is(err, domain.ErrLoadFailed) {
				continue
			}
		}
		if !out.emit("state", newStateView(session.ID, snap, applied)) {
			return
		}
	}
}

// outbox funnels messages to a single writer goroutine; gorilla connections
// do not support concurrent writes. Once the writer stops, emit never blocks.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(write func(outboundMessage[any]) error, log *zap.Logger) *outbox {
	o := &outbox{
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				log.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}()
	return o
}

// emit queues a message and reports false once the writer has stopped.
func (o *outbox) emit(typ string, payload any) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- outboundMessage[any]{Type: typ, Payload: payload}:
		return true
	case <-o.done:
		return false
	}
}

// close flushes queued messages and waits for the writer to stop.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

var errUnsupportedMessage = errors.New("unsupported message type")

func (h *WSHandler) dispatch(r *http.Request, sessionID string, inbound inboundMessage) (app.Snapshot, bool, error) {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return app.Snapshot{}, false, errors.New("invalid select payload")
		}
		return h.service.Select(sessionID, payload.Option)
	case "place":
		var payload placePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return app.Snapshot{}, false, errors.New("invalid place payload")
		}
		return h.service.Place(sessionID, payload.Token)
	case "unplace":
		var payload unplacePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return app.Snapshot{}, false, errors.New("invalid unplace payload")
		}
		return h.service.Unplace(sessionID, payload.Index)
	case "check":
		return h.service.Check(sessionID)
	case "advance":
		return h.service.Advance(sessionID)
	case "reload":
		snap, err := h.service.Reload(r.Context(), sessionID)
		return snap, err == nil, err
	default:
		return app.Snapshot{}, false, errUnsupportedMessage
	}
}
