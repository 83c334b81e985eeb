package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newWSTestServer(t *testing.T) (*httptest.Server, *app.SessionService) {
	t.Helper()
	store := memory.NewSessionStore()
	decks := memory.NewDeckRepository(memory.NewStaticDeckLoader(nil), time.Minute)
	service := app.NewSessionService(store, decks, "")
	handler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/play", handler.ServePlayerWS)
	mux.HandleFunc("/ws/host", handler.ServeHostWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, service
}

func createSession(t *testing.T, service *app.SessionService) app.CreatedSession {
	t.Helper()
	created, err := service.CreateSession(context.Background(), "Host", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return created
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// waitForSnapshot skips frames until a snapshot satisfies the predicate.
func waitForSnapshot(t *testing.T, conn *websocket.Conn, want func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	for i := 0; i < 32; i++ {
		f := readFrame(t, conn)
		if f.Type != "snapshot" {
			continue
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(f.Payload, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if want(snap) {
			return snap
		}
	}
	t.Fatalf("snapshot condition never met")
	return domain.Snapshot{}
}

func waitForFrame(t *testing.T, conn *websocket.Conn, frameType string) frame {
	t.Helper()
	for i := 0; i < 32; i++ {
		f := readFrame(t, conn)
		if f.Type == frameType {
			return f
		}
	}
	t.Fatalf("frame %q never arrived", frameType)
	return frame{}
}

func TestPlayerWSJoinAnswerAndRedaction(t *testing.T) {
	srv, service := newWSTestServer(t)
	created := createSession(t, service)

	conn := dialWS(t, srv, "/ws/play?code="+created.JoinCode+"&name=Alice")

	joinedFrame := waitForFrame(t, conn, "joined")
	var joined app.JoinResult
	if err := json.Unmarshal(joinedFrame.Payload, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if joined.ParticipantID == "" || joined.SessionID != created.SessionID {
		t.Fatalf("unexpected join result: %+v", joined)
	}

	if err := service.StartQuestion(created.SessionID, created.HostSecret, 0); err != nil {
		t.Fatalf("start question: %v", err)
	}
	open := waitForSnapshot(t, conn, func(s domain.Snapshot) bool {
		return s.Session.Phase == domain.PhaseQuestion
	})
	if open.Current == nil {
		t.Fatalf("open question snapshot without a question view")
	}
	if open.Current.CorrectIndex != -1 {
		t.Fatalf("player must not see the correct index before reveal, got %d", open.Current.CorrectIndex)
	}
	correct := correctIndexOf(t, service, created, 0)

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]int{"questionIndex": 0, "optionIndex": correct},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("send answer: %v", err)
	}
	waitForSnapshot(t, conn, func(s domain.Snapshot) bool {
		return s.AnswersSubmitted == 1
	})

	if err := service.CloseAnswering(created.SessionID, created.HostSecret); err != nil {
		t.Fatalf("close answering: %v", err)
	}
	if err := service.ScoreCurrentQuestion(created.SessionID, created.HostSecret); err != nil {
		t.Fatalf("score: %v", err)
	}

	scored := waitForSnapshot(t, conn, func(s domain.Snapshot) bool {
		return s.Session.Phase == domain.PhaseScoreboard
	})
	if !scored.Session.RevealAnswer {
		t.Fatalf("scoreboard snapshot must reveal the answer")
	}
	if scored.Current.CorrectIndex != correct {
		t.Fatalf("revealed snapshot should carry the correct index, got %d", scored.Current.CorrectIndex)
	}
	if len(scored.Leaderboard.Entries) != 1 || scored.Leaderboard.Entries[0].Score <= 0 {
		t.Fatalf("expected a positive score after a correct answer: %+v", scored.Leaderboard.Entries)
	}
}

func TestPlayerWSUnknownCode(t *testing.T) {
	srv, _ := newWSTestServer(t)
	conn := dialWS(t, srv, "/ws/play?code=000000&name=Alice")
	if f := readFrame(t, conn); f.Type != "error" {
		t.Fatalf("expected error frame for unknown code, got %q", f.Type)
	}
}

func TestHostWSDrivesLifecycle(t *testing.T) {
	srv, service := newWSTestServer(t)
	created := createSession(t, service)

	conn := dialWS(t, srv, "/ws/host?sessionId="+created.SessionID+"&secret="+created.HostSecret)

	deckFrame := waitForFrame(t, conn, "deck")
	var questions []domain.Question
	if err := json.Unmarshal(deckFrame.Payload, &questions); err != nil {
		t.Fatalf("decode deck: %v", err)
	}
	if len(questions) == 0 {
		t.Fatalf("host should receive the deck on connect")
	}

	start := map[string]any{"type": "start", "payload": map[string]int{"index": 0}}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("send start: %v", err)
	}
	open := waitForSnapshot(t, conn, func(s domain.Snapshot) bool {
		return s.Session.Phase == domain.PhaseQuestion
	})
	// The host view is never redacted.
	if open.Current.CorrectIndex != questions[0].CorrectIndex {
		t.Fatalf("host should see the correct index while answering is open, got %d", open.Current.CorrectIndex)
	}

	for _, cmd := range []string{"close", "score"} {
		if err := conn.WriteJSON(map[string]any{"type": cmd}); err != nil {
			t.Fatalf("send %s: %v", cmd, err)
		}
	}
	waitForSnapshot(t, conn, func(s domain.Snapshot) bool {
		return s.Session.Phase == domain.PhaseScoreboard && s.Session.RevealAnswer
	})

	// Out-of-phase command from a stale console: dropped, no error frame,
	// state unchanged.
	if err := conn.WriteJSON(map[string]any{"type": "close"}); err != nil {
		t.Fatalf("send stale close: %v", err)
	}
	snap, err := service.Snapshot(created.SessionID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Session.Phase != domain.PhaseScoreboard {
		t.Fatalf("stale command must not change phase, got %s", snap.Session.Phase)
	}
}

func TestHostWSEditsQuestionBeforeRound(t *testing.T) {
	srv, service := newWSTestServer(t)
	created := createSession(t, service)

	conn := dialWS(t, srv, "/ws/host?sessionId="+created.SessionID+"&secret="+created.HostSecret)
	waitForFrame(t, conn, "deck")

	edit := map[string]any{
		"type": "updateQuestion",
		"payload": map[string]any{
			"index": 0,
			"question": domain.Question{
				Prompt:       "Edited prompt",
				Options:      []string{"yes", "no"},
				CorrectIndex: 0,
				DurationSec:  10,
			},
		},
	}
	if err := conn.WriteJSON(edit); err != nil {
		t.Fatalf("send edit: %v", err)
	}

	deckFrame := waitForFrame(t, conn, "deck")
	var questions []domain.Question
	if err := json.Unmarshal(deckFrame.Payload, &questions); err != nil {
		t.Fatalf("decode deck: %v", err)
	}
	if questions[0].Prompt != "Edited prompt" {
		t.Fatalf("edit should be reflected in the deck frame, got %q", questions[0].Prompt)
	}
}

func TestHostWSWrongSecret(t *testing.T) {
	srv, service := newWSTestServer(t)
	created := createSession(t, service)

	conn := dialWS(t, srv, "/ws/host?sessionId="+created.SessionID+"&secret=wrong")
	if f := readFrame(t, conn); f.Type != "error" {
		t.Fatalf("expected error frame for a bad secret, got %q", f.Type)
	}
}

func correctIndexOf(t *testing.T, service *app.SessionService, created app.CreatedSession, index int) int {
	t.Helper()
	questions, err := service.Questions(created.SessionID, created.HostSecret)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	return questions[index].CorrectIndex
}
