package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	OptionIndex   int `json:"optionIndex"`
}

type startPayload struct {
	Index int `json:"index"`
}

type allowJoinPayload struct {
	Allow bool `json:"allow"`
}

type updateQuestionPayload struct {
	Index    int             `json:"index"`
	Question domain.Question `json:"question"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServePlayerWS admits a participant by join code and wires the socket into
// the session: snapshots stream out, answer submissions come in. Submissions
// that lose the race with the host's close signal are dropped without an
// error frame; the next snapshot corrects the client's view.
func (h *WSHandler) ServePlayerWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	avatar := r.URL.Query().Get("avatar")
	if code == "" || name == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	joined, err := h.service.Join(r.Context(), code, name, avatar)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), joined.SessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), joined.SessionID, joined.ParticipantID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go writer(conn, send, writerDone)
	go forwardSnapshots(updates, send, closeSignals, updatesDone, redactForPlayer)

	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			err := h.service.SubmitAnswer(joined.SessionID, joined.ParticipantID, payload.QuestionIndex, payload.OptionIndex)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
			// Accepted or silently dropped; the snapshot stream carries the truth.
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// ServeHostWS authenticates the host by secret and exposes the lifecycle
// commands. Transition requests that are illegal for the current phase are
// dropped without a reply: they come from a stale console view that the next
// snapshot will correct.
func (h *WSHandler) ServeHostWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	secret := r.URL.Query().Get("secret")
	if sessionID == "" || secret == "" {
		http.Error(w, "missing sessionId or secret", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if err := h.service.AuthorizeHost(sessionID, secret); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go writer(conn, send, writerDone)
	go forwardSnapshots(updates, send, closeSignals, updatesDone, nil)

	h.sendDeck(sessionID, secret, send)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleHostCommand(sessionID, secret, inbound, send)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleHostCommand(sessionID, secret string, inbound inboundMessage, send chan<- outboundMessage[any]) {
	var err error
	switch inbound.Type {
	case "start":
		var payload startPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
			return
		}
		err = h.service.StartQuestion(sessionID, secret, payload.Index)
	case "close":
		err = h.service.CloseAnswering(sessionID, secret)
	case "score":
		err = h.service.ScoreCurrentQuestion(sessionID, secret)
	case "advance":
		err = h.service.Advance(sessionID, secret)
	case "allowJoin":
		var payload allowJoinPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid allowJoin payload"}}
			return
		}
		err = h.service.SetJoinAllowed(sessionID, secret, payload.Allow)
	case "updateQuestion":
		var payload updateQuestionPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid updateQuestion payload"}}
			return
		}
		err = h.service.UpdateQuestion(sessionID, secret, payload.Index, payload.Question)
		if err == nil {
			h.sendDeck(sessionID, secret, send)
		}
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		return
	}

	if errors.Is(err, domain.ErrInvalidTransition) {
		log.Printf("host %q sent out-of-phase %q, ignored", sessionID, inbound.Type)
		return
	}
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
}

func (h *WSHandler) sendDeck(sessionID, secret string, send chan<- outboundMessage[any]) {
	questions, err := h.service.Questions(sessionID, secret)
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	send <- outboundMessage[any]{Type: "deck", Payload: questions}
}

func writer(conn *websocket.Conn, send <-chan outboundMessage[any], done chan<- struct{}) {
	defer close(done)
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

func forwardSnapshots(
	updates <-chan domain.Snapshot,
	send chan<- outboundMessage[any],
	closeSignals <-chan struct{},
	done chan<- struct{},
	redact func(domain.Snapshot) domain.Snapshot,
) {
	defer close(done)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if redact != nil {
				update = redact(update)
			}
			select {
			case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
			case <-closeSignals:
				return
			}
		case <-closeSignals:
			return
		}
	}
}

// redactForPlayer hides the correct option until the session reveals it.
func redactForPlayer(snap domain.Snapshot) domain.Snapshot {
	if snap.Current == nil || snap.Session.RevealAnswer {
		return snap
	}
	view := *snap.Current
	view.CorrectIndex = -1
	view.FastestParticipantID = ""
	view.FastestElapsedMs = 0
	snap.Current = &view
	return snap
}
