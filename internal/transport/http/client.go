package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

const sendBufferSize = 64

// client binds one websocket connection to at most one lobby session. It
// implements app.ClientConnection: Send never blocks the lobby's critical
// path, it enqueues to a buffered channel drained by a single writer
// goroutine so concurrent broadcasts cannot interleave writes.
type client struct {
	conn     *websocket.Conn
	service  *app.Service
	playerID string
	name     string
	logger   *slog.Logger

	send      chan app.Event
	done      chan struct{}
	closeOnce sync.Once

	// session is only touched from the read loop.
	session *app.Session
}

func newClient(conn *websocket.Conn, service *app.Service, playerID, name string, logger *slog.Logger) *client {
	return &client{
		conn:     conn,
		service:  service,
		playerID: playerID,
		name:     name,
		logger:   logger,
		send:     make(chan app.Event, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Send implements app.ClientConnection.
func (c *client) Send(e app.Event) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	select {
	case c.send <- e:
	default:
		// A stalled reader loses events rather than stalling the lobby.
		c.logger.Warn("send buffer full, event dropped", "player", c.playerID, "type", e.Type)
	}
	return nil
}

// Close implements app.ClientConnection.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

func (c *client) run() {
	go c.writePump()
	c.readLoop()
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case e := <-c.send:
			if err := c.conn.WriteJSON(e); err != nil {
				c.logger.Debug("ws write failed", "player", c.playerID, "error", err)
				c.Close()
				return
			}
		}
	}
}

// readLoop dispatches inbound intents until the connection drops. A drop
// while attached to a lobby counts as a disconnect, not a leave: the player
// entity stays behind for the grace period.
func (c *client) readLoop() {
	defer func() {
		if c.session != nil {
			c.session.Disconnect(c.playerID)
		}
		c.Close()
		c.logger.Info("ws disconnected", "player", c.playerID)
	}()

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *client) handleMessage(msg inboundMessage) {
	switch msg.Type {
	case "create":
		c.handleCreate()
	case "join":
		c.handleJoin(msg.Payload)
	case "leave":
		c.handleLeave()
	case "selectCategory":
		c.handleSelectCategory(msg.Payload)
	case "start":
		c.handleStart()
	case "answer":
		c.handleAnswer(msg.Payload)
	default:
		c.sendError("unsupported message type")
	}
}

func (c *client) handleCreate() {
	if c.session != nil {
		c.sendError("already in a lobby")
		return
	}
	sess, err := c.service.CreateLobby(c.playerID, c.name, c)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.session = sess
}

func (c *client) handleJoin(raw json.RawMessage) {
	if c.session != nil {
		c.sendError("already in a lobby")
		return
	}
	var p joinPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Code == "" {
		c.sendError("invalid join payload")
		return
	}
	sess, err := c.service.GetSession(p.Code)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := sess.Join(c.playerID, c.name, c); err != nil {
		c.sendError(err.Error())
		return
	}
	c.session = sess
}

func (c *client) handleLeave() {
	if c.session == nil {
		return
	}
	c.session.Leave(c.playerID)
	c.session = nil
}

func (c *client) handleSelectCategory(raw json.RawMessage) {
	if c.session == nil {
		c.sendError("not in a lobby")
		return
	}
	var p categoryPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Category == "" {
		c.sendError("invalid category payload")
		return
	}
	if err := c.session.SelectCategory(c.playerID, p.Category); err != nil {
		c.sendError(err.Error())
	}
}

func (c *client) handleStart() {
	if c.session == nil {
		c.sendError("not in a lobby")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.session.Start(ctx, c.playerID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *client) handleAnswer(raw json.RawMessage) {
	if c.session == nil {
		return
	}
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	// Late and duplicate answers are dropped silently inside the session.
	c.session.SubmitAnswer(c.playerID, p.Value)
}

func (c *client) sendError(message string) {
	_ = c.Send(app.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: message}})
}
