package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
)

type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pools := map[string][]domain.Question{
		"Science": {
			{Text: "q", Options: []string{"a", "b", "c", "d"}, Answer: "a", TimeLimitSeconds: 30},
		},
	}
	service := app.NewService(app.Config{
		Store:     memory.NewLobbyStore(),
		Questions: memory.NewQuestionSource(memory.NewStaticQuestionLoader(pools), time.Minute),
		Game: app.GameConfig{
			QuestionsPerGame: 1,
			StartDelay:       20 * time.Millisecond,
			QuestionDelay:    20 * time.Millisecond,
			GracePeriod:      time.Minute,
			FinishedLinger:   time.Minute,
			SweepInterval:    time.Hour,
			StaleAfter:       time.Hour,
		},
		Logger: logger,
	})
	t.Cleanup(service.Close)

	handler := NewWSHandler(service, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server, userID, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?userId=" + userID + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil discards events until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) wsEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		if env.Type == eventType {
			return env
		}
	}
}

func decodePayload(t *testing.T, env wsEnvelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Payload, v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
}

func TestServeWSRequiresName(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateJoinPlayFlow(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server, "h1", "Host")
	sendMsg(t, host, "create", nil)

	var created domain.LobbyCreatedPayload
	decodePayload(t, readUntil(t, host, domain.EventLobbyCreated), &created)
	if created.Code == "" || created.HostID != "h1" {
		t.Fatalf("lobbyCreated = %+v", created)
	}

	guest := dialWS(t, server, "p2", "Bob")
	sendMsg(t, guest, "join", map[string]string{"code": created.Code})

	var list domain.PlayerListPayload
	decodePayload(t, readUntil(t, host, domain.EventPlayerList), &list)
	if len(list.Players) != 2 {
		t.Fatalf("playerList = %+v, want 2 players", list)
	}

	sendMsg(t, host, "selectCategory", map[string]string{"category": "Science"})
	readUntil(t, guest, domain.EventCategorySelected)

	sendMsg(t, host, "start", nil)
	var started domain.GameStartedPayload
	decodePayload(t, readUntil(t, guest, domain.EventGameStarted), &started)
	if started.Category != "Science" || started.TotalQuestions != 1 {
		t.Fatalf("gameStarted = %+v", started)
	}

	var question domain.QuestionStartedPayload
	decodePayload(t, readUntil(t, guest, domain.EventQuestionStarted), &question)
	if question.Text != "q" || len(question.Options) != 4 {
		t.Fatalf("questionStarted = %+v", question)
	}
	readUntil(t, host, domain.EventQuestionStarted)

	sendMsg(t, guest, "answer", map[string]string{"value": "a"})
	var ack domain.AnswerAckPayload
	decodePayload(t, readUntil(t, guest, domain.EventAnswerAck), &ack)
	if !ack.Correct || ack.Points < domain.BasePoints {
		t.Fatalf("answerAck = %+v", ack)
	}

	sendMsg(t, host, "answer", map[string]string{"value": "b"})
	var endedQ domain.QuestionEndedPayload
	decodePayload(t, readUntil(t, host, domain.EventQuestionEnded), &endedQ)
	if endedQ.Answer != "a" {
		t.Fatalf("questionEnded = %+v", endedQ)
	}

	var summary domain.GameSummary
	decodePayload(t, readUntil(t, host, domain.EventGameEnded), &summary)
	if len(summary.Standings) != 2 || summary.Standings[0].PlayerID != "p2" {
		t.Fatalf("gameEnded standings = %+v", summary.Standings)
	}
	if summary.Standings[0].Medal != domain.MedalGold {
		t.Fatalf("winner medal = %q, want gold", summary.Standings[0].Medal)
	}
}

func TestNonHostStartRejected(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server, "h1", "Host")
	sendMsg(t, host, "create", nil)
	var created domain.LobbyCreatedPayload
	decodePayload(t, readUntil(t, host, domain.EventLobbyCreated), &created)

	guest := dialWS(t, server, "p2", "Bob")
	sendMsg(t, guest, "join", map[string]string{"code": created.Code})
	readUntil(t, guest, domain.EventPlayerList)

	sendMsg(t, guest, "start", nil)
	var errPayload domain.ErrorPayload
	decodePayload(t, readUntil(t, guest, domain.EventError), &errPayload)
	if errPayload.Message == "" {
		t.Fatal("error event should carry a message")
	}
}

func TestJoinUnknownCode(t *testing.T) {
	server := newTestServer(t)

	conn := dialWS(t, server, "p1", "Bob")
	sendMsg(t, conn, "join", map[string]string{"code": "ZZZZZZ"})

	var errPayload domain.ErrorPayload
	decodePayload(t, readUntil(t, conn, domain.EventError), &errPayload)
	if errPayload.Message == "" {
		t.Fatal("error event should carry a message")
	}
}

func TestDropAndReconnect(t *testing.T) {
	server := newTestServer(t)

	host := dialWS(t, server, "h1", "Host")
	sendMsg(t, host, "create", nil)
	var created domain.LobbyCreatedPayload
	decodePayload(t, readUntil(t, host, domain.EventLobbyCreated), &created)

	guest := dialWS(t, server, "p2", "Bob")
	sendMsg(t, guest, "join", map[string]string{"code": created.Code})
	readUntil(t, guest, domain.EventPlayerList)

	// Closing the socket counts as a disconnect, not a leave.
	guest.Close()
	for {
		var list domain.PlayerListPayload
		decodePayload(t, readUntil(t, host, domain.EventPlayerList), &list)
		if len(list.Players) != 2 {
			t.Fatalf("playerList = %+v, want the dropped player retained", list)
		}
		connected := 0
		for _, p := range list.Players {
			if p.Connected {
				connected++
			}
		}
		if connected == 1 {
			break
		}
	}

	// Same userId resumes the existing player entity.
	again := dialWS(t, server, "p2", "Bob")
	sendMsg(t, again, "join", map[string]string{"code": created.Code})
	var list domain.PlayerListPayload
	decodePayload(t, readUntil(t, again, domain.EventPlayerList), &list)
	if len(list.Players) != 2 {
		t.Fatalf("playerList after reconnect = %+v", list)
	}
}
