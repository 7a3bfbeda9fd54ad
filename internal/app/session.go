package app

import (
	"context"
	"sync"
	"time"

	"trivia-service/internal/domain"
)

// Session drives one lobby's question loop. A single mutex serializes every
// mutation for the lobby: answer submissions, timer callbacks, and
// join/leave/disconnect events all contend on it, so state transitions never
// interleave destructively. Timer callbacks re-check the lobby state (and the
// question index they were armed for) after acquiring the lock, which makes a
// callback that raced its own cancellation a no-op.
type Session struct {
	svc *Service

	mu      sync.Mutex
	lobby   *domain.Lobby
	clients map[string]ClientConnection

	questionTimer *time.Timer
	advanceTimer  *time.Timer
	lastSummary   *domain.GameSummary
	closed        bool
}

func newSession(svc *Service, lobby *domain.Lobby) *Session {
	return &Session{
		svc:     svc,
		lobby:   lobby,
		clients: make(map[string]ClientConnection),
	}
}

// Code returns the lobby's room code.
func (s *Session) Code() string {
	return s.lobby.Code
}

// State returns the lobby's current lifecycle state.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.State
}

// PlayerCount returns the number of players, connected or not.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobby.Players)
}

// ConnectedCount returns the number of connected players.
func (s *Session) ConnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.ConnectedCount()
}

// PlayerScore returns a player's current score.
func (s *Session) PlayerScore(playerID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lobby.Players[playerID]
	if !ok {
		return 0, false
	}
	return p.Score, true
}

// attachCreator registers the creator's connection on a freshly created
// lobby and acknowledges with the room code.
func (s *Session) attachCreator(hostID string, conn ClientConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn != nil {
		s.clients[hostID] = conn
	}
	s.sendLocked(hostID, Event{Type: domain.EventLobbyCreated, Payload: domain.LobbyCreatedPayload{
		Code:    s.lobby.Code,
		HostID:  s.lobby.HostID,
		Players: s.lobby.PlayerViews(),
	}})
}

// Join admits a new player, or resumes a known player ID as a reconnection.
// A reconnecting player keeps their score and answers and receives a
// snapshot of whatever question window is currently active.
func (s *Session) Join(playerID, name string, conn ClientConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrLobbyNotFound
	}

	_, reconnected, err := s.lobby.Join(playerID, name, time.Now())
	if err != nil {
		return err
	}

	if old, ok := s.clients[playerID]; ok && old != conn {
		old.Close()
	}
	if conn != nil {
		s.clients[playerID] = conn
	}

	s.broadcastLocked(s.playerListEvent())
	if reconnected {
		s.sendSnapshotLocked(playerID)
	}
	return nil
}

// Leave removes a player for good. The last player out deletes the lobby;
// a departing host hands the role to the longest-joined remaining player.
func (s *Session) Leave(playerID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, err := s.lobby.Leave(playerID); err != nil {
		s.mu.Unlock()
		return
	}
	delete(s.clients, playerID)

	if s.lobby.IsEmpty() {
		s.mu.Unlock()
		s.teardown()
		return
	}
	s.broadcastLocked(s.playerListEvent())
	s.mu.Unlock()
}

// Disconnect marks a player as dropped without removing them, then arms a
// grace-period check that deletes the lobby only if nobody is connected when
// it fires. Reconnection cancels the deletion implicitly: the check counts
// connections rather than tracking the timer, so there is no handle to leak.
func (s *Session) Disconnect(playerID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err := s.lobby.MarkDisconnected(playerID); err != nil {
		s.mu.Unlock()
		return
	}
	delete(s.clients, playerID)
	s.broadcastLocked(s.playerListEvent())
	grace := s.svc.game.GracePeriod
	s.mu.Unlock()

	time.AfterFunc(grace, func() {
		s.mu.Lock()
		abandoned := !s.closed && s.lobby.ConnectedCount() == 0
		s.mu.Unlock()
		if abandoned {
			s.svc.logger.Info("lobby abandoned past grace period", "code", s.lobby.Code)
			s.teardown()
		}
	})
}

// SelectCategory records the host's category pick.
func (s *Session) SelectCategory(playerID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrLobbyNotFound
	}
	if err := s.lobby.SelectCategory(playerID, category); err != nil {
		return err
	}
	s.broadcastLocked(Event{Type: domain.EventCategorySelected, Payload: domain.CategorySelectedPayload{Category: category}})
	return nil
}

// Start loads the category's question pool, fixes the session's shuffled
// question order, and schedules the first question after the start delay.
// The pool load happens outside the lobby lock; guards are re-checked after.
func (s *Session) Start(ctx context.Context, playerID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrLobbyNotFound
	}
	if !s.lobby.IsHost(playerID) {
		s.mu.Unlock()
		return domain.ErrNotHost
	}
	if s.lobby.State != domain.StateWaiting {
		s.mu.Unlock()
		return domain.ErrInvalidState
	}
	category := s.lobby.Category
	s.mu.Unlock()
	if category == "" {
		return domain.ErrNoCategory
	}

	pool, err := s.svc.questions.LoadQuestions(ctx, category)
	if err != nil {
		return err
	}
	questions := domain.PickQuestions(pool, s.svc.game.QuestionsPerGame)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrLobbyNotFound
	}
	if err := s.lobby.Start(playerID, questions, time.Now()); err != nil {
		return err
	}

	s.broadcastLocked(Event{Type: domain.EventGameStarted, Payload: domain.GameStartedPayload{
		Category:       category,
		TotalQuestions: len(questions),
	}})
	s.svc.logger.Info("game started", "code", s.lobby.Code, "category", category, "questions", len(questions))
	s.advanceTimer = time.AfterFunc(s.svc.game.StartDelay, func() { s.advance(0) })
	return nil
}

// SubmitAnswer scores a submission for the open question. Late answers,
// duplicates, and submissions outside a window are dropped without any
// acknowledgement. When every connected player has answered, the question
// ends immediately instead of waiting for the timer.
func (s *Session) SubmitAnswer(playerID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	idx := s.lobby.CurrentIndex
	ans, ok := s.lobby.SubmitAnswer(playerID, value, time.Now())
	if !ok {
		return
	}

	total := s.lobby.Players[playerID].Score
	s.sendLocked(playerID, Event{Type: domain.EventAnswerAck, Payload: domain.AnswerAckPayload{
		Correct:       ans.Correct,
		Points:        ans.Points,
		TotalScore:    total,
		ElapsedMillis: ans.ElapsedMillis,
	}})
	s.broadcastLocked(Event{Type: domain.EventScoresUpdated, Payload: domain.ScoresUpdatedPayload{Scores: s.lobby.PlayerViews()}})

	if s.lobby.AllConnectedAnswered() {
		s.endQuestionLocked(idx)
	}
}

// advance opens the question at idx, or finishes the game once the
// questions are exhausted. Armed by a delayed callback, so it verifies the
// lobby is still mid-game and the cursor has not moved past idx.
func (s *Session) advance(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lobby.State != domain.StatePlaying ||
		s.lobby.CurrentQuestion != nil || s.lobby.CurrentIndex != idx {
		return
	}

	if s.lobby.Exhausted() {
		s.finishLocked()
		return
	}

	q, ok := s.lobby.OpenQuestion(time.Now())
	if !ok {
		return
	}
	s.broadcastLocked(Event{Type: domain.EventQuestionStarted, Payload: q.View(idx, len(s.lobby.Questions))})
	s.questionTimer = time.AfterFunc(q.TimeLimit(), func() { s.endQuestion(idx) })
}

func (s *Session) endQuestion(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endQuestionLocked(idx)
}

// endQuestionLocked closes the window for question idx exactly once. The
// timer and the all-answered early termination can both target the same
// question; whichever loses the race finds the window closed and returns.
func (s *Session) endQuestionLocked(idx int) {
	if s.closed || s.lobby.State != domain.StatePlaying ||
		s.lobby.CurrentQuestion == nil || s.lobby.CurrentIndex != idx {
		return
	}

	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
	}

	answer := s.lobby.CurrentQuestion.Answer
	results, ok := s.lobby.CloseQuestion()
	if !ok {
		return
	}
	s.broadcastLocked(Event{Type: domain.EventQuestionEnded, Payload: domain.QuestionEndedPayload{
		Index:   idx,
		Answer:  answer,
		Results: results,
	}})
	s.advanceTimer = time.AfterFunc(s.svc.game.QuestionDelay, func() { s.advance(idx + 1) })
}

// finishLocked transitions to Finished, broadcasts standings, hands the
// summary to best-effort persistence, and schedules teardown after a linger
// so clients can read the final state.
func (s *Session) finishLocked() {
	summary, ok := s.lobby.Finish(time.Now())
	if !ok {
		return
	}
	s.lastSummary = &summary

	s.broadcastLocked(Event{Type: domain.EventGameEnded, Payload: summary})
	s.svc.logger.Info("game finished", "code", s.lobby.Code,
		"category", summary.Category, "durationMs", summary.DurationMillis)

	if s.svc.results != nil {
		go s.persist(summary)
	}
	s.advanceTimer = time.AfterFunc(s.svc.game.FinishedLinger, s.teardown)
}

// persist writes the summary off the lobby's critical path. Standings were
// already delivered, so failures are logged and swallowed.
func (s *Session) persist(summary domain.GameSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.svc.results.SaveResult(ctx, summary); err != nil {
		s.svc.logger.Error("save game result failed", "code", summary.Code, "error", err)
	}
}

// sendSnapshotLocked catches a reconnecting player up on the current state.
func (s *Session) sendSnapshotLocked(playerID string) {
	switch s.lobby.State {
	case domain.StatePlaying:
		if q := s.lobby.CurrentQuestion; q != nil {
			s.sendLocked(playerID, Event{
				Type:    domain.EventQuestionStarted,
				Payload: q.View(s.lobby.CurrentIndex, len(s.lobby.Questions)),
			})
		}
		s.sendLocked(playerID, Event{Type: domain.EventScoresUpdated, Payload: domain.ScoresUpdatedPayload{Scores: s.lobby.PlayerViews()}})
	case domain.StateFinished:
		if s.lastSummary != nil {
			s.sendLocked(playerID, Event{Type: domain.EventGameEnded, Payload: *s.lastSummary})
		}
	}
}

func (s *Session) playerListEvent() Event {
	return Event{Type: domain.EventPlayerList, Payload: domain.PlayerListPayload{
		HostID:  s.lobby.HostID,
		Players: s.lobby.PlayerViews(),
	}}
}

func (s *Session) broadcastLocked(e Event) {
	for playerID, c := range s.clients {
		if err := c.Send(e); err != nil {
			s.svc.logger.Debug("send failed", "code", s.lobby.Code, "player", playerID, "error", err)
		}
	}
}

func (s *Session) sendLocked(playerID string, e Event) {
	c, ok := s.clients[playerID]
	if !ok {
		return
	}
	if err := c.Send(e); err != nil {
		s.svc.logger.Debug("send failed", "code", s.lobby.Code, "player", playerID, "error", err)
	}
}

// isStale reports whether the sweeper may reap this lobby: nobody connected
// and past the stale cutoff.
func (s *Session) isStale(now time.Time, staleAfter time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.lobby.ConnectedCount() == 0 && now.Sub(s.lobby.CreatedAt) > staleAfter
}

// teardown deletes the lobby: stops all pending timers, closes every client
// connection, and removes the session from the registry. Idempotent.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.questionTimer != nil {
		s.questionTimer.Stop()
		s.questionTimer = nil
	}
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	clients := s.clients
	s.clients = make(map[string]ClientConnection)
	code := s.lobby.Code
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	s.svc.store.Delete(code)
	s.svc.logger.Info("lobby deleted", "code", code)
}
