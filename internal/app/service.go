package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// LobbyStore abstracts how live lobby sessions are indexed by room code
// (in-memory today; injectable so tests can run isolated registries).
type LobbyStore interface {
	// Insert registers a session under code, failing if the code is taken.
	Insert(code string, sess *Session) bool
	Get(code string) (*Session, bool)
	Delete(code string)
	Count() int
	// Range visits every session until fn returns false.
	Range(fn func(code string, sess *Session) bool)
}

// QuestionSource loads the full question pool for a category
// (from cache/backing store).
type QuestionSource interface {
	LoadQuestions(ctx context.Context, category string) ([]domain.Question, error)
}

// ResultsStore persists final game summaries. Writes are best-effort: a
// failure is logged and never reaches clients.
type ResultsStore interface {
	SaveResult(ctx context.Context, summary domain.GameSummary) error
}

// Event is the outbound wire envelope.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ClientConnection is the transport handle for one connected player.
type ClientConnection interface {
	Send(e Event) error
	Close() error
}

// GameConfig tunes session pacing. Zero values fall back to defaults.
type GameConfig struct {
	QuestionsPerGame int
	StartDelay       time.Duration
	QuestionDelay    time.Duration
	GracePeriod      time.Duration
	FinishedLinger   time.Duration
	SweepInterval    time.Duration
	StaleAfter       time.Duration
}

// DefaultGameConfig returns the production pacing defaults.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		QuestionsPerGame: 10,
		StartDelay:       3 * time.Second,
		QuestionDelay:    5 * time.Second,
		GracePeriod:      30 * time.Second,
		FinishedLinger:   30 * time.Second,
		SweepInterval:    10 * time.Minute,
		StaleAfter:       2 * time.Hour,
	}
}

func (c GameConfig) withDefaults() GameConfig {
	d := DefaultGameConfig()
	if c.QuestionsPerGame <= 0 {
		c.QuestionsPerGame = d.QuestionsPerGame
	}
	if c.StartDelay <= 0 {
		c.StartDelay = d.StartDelay
	}
	if c.QuestionDelay <= 0 {
		c.QuestionDelay = d.QuestionDelay
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = d.GracePeriod
	}
	if c.FinishedLinger <= 0 {
		c.FinishedLinger = d.FinishedLinger
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	return c
}

const (
	roomCodeLength   = 6
	maxCodeAttempts  = 10
	// No ambiguous characters (0/O, 1/I) so codes survive being read aloud.
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Config wires the lobby service's collaborators.
type Config struct {
	Store     LobbyStore
	Questions QuestionSource
	Results   ResultsStore // optional
	Game      GameConfig
	Logger    *slog.Logger
}

// Service is the lobby registry: it owns room-code generation, lookup, and
// deletion, and spawns one Session per lobby. Different lobbies are fully
// independent; the store only serializes create/lookup, never gameplay.
type Service struct {
	store     LobbyStore
	questions QuestionSource
	results   ResultsStore
	game      GameConfig
	logger    *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewService(c Config) *Service {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     c.Store,
		questions: c.Questions,
		results:   c.Results,
		game:      c.Game.withDefaults(),
		logger:    logger,
		done:      make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// CreateLobby generates an unused room code, registers a new lobby with the
// caller as host, and attaches the caller's connection. Failing to find a
// free code within the attempt budget is a hard failure.
func (s *Service) CreateLobby(hostID, hostName string, conn ClientConnection) (*Session, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := generateRoomCode()
		lobby := domain.NewLobby(code, hostID, hostName, time.Now())
		sess := newSession(s, lobby)
		if !s.store.Insert(code, sess) {
			continue
		}
		sess.attachCreator(hostID, conn)
		s.logger.Info("lobby created", "code", code, "host", hostID)
		return sess, nil
	}
	return nil, fmt.Errorf("create lobby: no unique room code after %d attempts", maxCodeAttempts)
}

// GetSession returns the live session for a room code.
func (s *Service) GetSession(code string) (*Session, error) {
	sess, ok := s.store.Get(code)
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	return sess, nil
}

// LobbyCount returns the number of active lobbies.
func (s *Service) LobbyCount() int {
	return s.store.Count()
}

// Close tears down every session and stops the sweeper.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	var sessions []*Session
	s.store.Range(func(_ string, sess *Session) bool {
		sessions = append(sessions, sess)
		return true
	})
	for _, sess := range sessions {
		sess.teardown()
	}
}

func generateRoomCode() string {
	b := make([]byte, roomCodeLength)
	rand.Read(b)

	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(code)
}

// sweepLoop periodically reaps lobbies that were created but abandoned
// without ever tripping the event-driven deletion paths.
func (s *Service) sweepLoop() {
	ticker := time.NewTicker(s.game.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepStale()
		}
	}
}

func (s *Service) sweepStale() {
	now := time.Now()
	var stale []*Session
	s.store.Range(func(_ string, sess *Session) bool {
		if sess.isStale(now, s.game.StaleAfter) {
			stale = append(stale, sess)
		}
		return true
	})
	for _, sess := range stale {
		s.logger.Info("stale lobby reaped", "code", sess.Code())
		sess.teardown()
	}
}
