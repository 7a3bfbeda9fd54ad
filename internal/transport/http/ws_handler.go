package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trivia-service/internal/app"
)

// WSHandler upgrades HTTP requests to websockets and wires each connection
// into the lobby service. Identity comes from the query string: userId
// identifies the player across reconnects (minted here when absent) and
// name is the display name.
type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.Service, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type joinPayload struct {
	Code string `json:"code"`
}

type categoryPayload struct {
	Category string `json:"category"`
}

type answerPayload struct {
	Value string `json:"value"`
}

// ServeWS handles websocket upgrade requests at /ws?userId=...&name=...
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	playerID := r.URL.Query().Get("userId")
	if playerID == "" {
		playerID = uuid.New().String()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	client := newClient(conn, h.service, playerID, name, h.logger)
	h.logger.Info("ws connected", "player", playerID)
	client.run()
}
