package domain

import (
	"sort"
	"time"
)

// State is the lifecycle state of a lobby.
type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// Lobby is the aggregate for one game room. It is pure state plus guarded
// transitions: no locks, no timers, no I/O. All mutations for a lobby must
// be serialized by the caller (see app.Session), and every method that
// depends on the clock takes the current time explicitly so tests stay
// deterministic.
type Lobby struct {
	Code     string
	HostID   string
	State    State
	Category string

	Questions         []Question
	CurrentIndex      int
	CurrentQuestion   *Question
	QuestionStartedAt time.Time

	Players map[string]*Player

	CreatedAt time.Time
	StartedAt time.Time
}

// NewLobby creates a lobby in Waiting state with the creator as host and
// sole player.
func NewLobby(code, hostID, hostName string, now time.Time) *Lobby {
	l := &Lobby{
		Code:      code,
		HostID:    hostID,
		State:     StateWaiting,
		Players:   make(map[string]*Player),
		CreatedAt: now,
	}
	l.Players[hostID] = NewPlayer(hostID, hostName, now)
	return l
}

// Join adds a new player, or treats a known player ID as a reconnection.
// New players are only admitted while the lobby is Waiting; reconnections
// are accepted in any state so a dropped player can resume mid-game.
func (l *Lobby) Join(playerID, name string, now time.Time) (*Player, bool, error) {
	if p, ok := l.Players[playerID]; ok {
		p.DisplayName = name
		p.Connected = true
		return p, true, nil
	}
	if l.State != StateWaiting {
		return nil, false, ErrLobbyNotJoinable
	}
	p := NewPlayer(playerID, name, now)
	l.Players[playerID] = p
	return p, false, nil
}

// Leave removes a player. When the host leaves, the role moves to the
// remaining player with the earliest join time (ties broken by ID) so the
// choice is deterministic. Returns whether the host changed.
func (l *Lobby) Leave(playerID string) (bool, error) {
	if _, ok := l.Players[playerID]; !ok {
		return false, ErrPlayerNotFound
	}
	delete(l.Players, playerID)

	if l.HostID != playerID || len(l.Players) == 0 {
		return false, nil
	}

	var next *Player
	for _, p := range l.Players {
		if next == nil || p.JoinedAt.Before(next.JoinedAt) ||
			(p.JoinedAt.Equal(next.JoinedAt) && p.ID < next.ID) {
			next = p
		}
	}
	l.HostID = next.ID
	return true, nil
}

// IsEmpty reports whether no players remain.
func (l *Lobby) IsEmpty() bool {
	return len(l.Players) == 0
}

// IsHost reports whether the given player currently holds the host role.
func (l *Lobby) IsHost(playerID string) bool {
	return l.HostID == playerID
}

// MarkDisconnected flags a player as disconnected without removing them,
// so a reconnect within the grace period resumes with score intact.
func (l *Lobby) MarkDisconnected(playerID string) error {
	p, ok := l.Players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Connected = false
	return nil
}

// ConnectedCount returns the number of currently connected players.
func (l *Lobby) ConnectedCount() int {
	n := 0
	for _, p := range l.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// SelectCategory records the host's category choice while Waiting.
func (l *Lobby) SelectCategory(requesterID, category string) error {
	if !l.IsHost(requesterID) {
		return ErrNotHost
	}
	if l.State != StateWaiting {
		return ErrInvalidState
	}
	l.Category = category
	return nil
}

// Start transitions Waiting -> Playing with the session's fixed question
// order. Scores and per-question flags are reset for every player.
func (l *Lobby) Start(requesterID string, questions []Question, now time.Time) error {
	if !l.IsHost(requesterID) {
		return ErrNotHost
	}
	if l.State != StateWaiting {
		return ErrInvalidState
	}
	if l.Category == "" {
		return ErrNoCategory
	}
	if len(l.Players) == 0 {
		return ErrInvalidState
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	l.Questions = questions
	l.CurrentIndex = 0
	l.CurrentQuestion = nil
	l.StartedAt = now
	for _, p := range l.Players {
		p.ResetForGame()
	}
	l.State = StatePlaying
	return nil
}

// Exhausted reports whether every question has been played.
func (l *Lobby) Exhausted() bool {
	return l.CurrentIndex >= len(l.Questions)
}

// OpenQuestion opens the window for the question at CurrentIndex. Returns
// false when the lobby is not mid-game or the questions are exhausted.
func (l *Lobby) OpenQuestion(now time.Time) (*Question, bool) {
	if l.State != StatePlaying || l.CurrentQuestion != nil || l.Exhausted() {
		return nil, false
	}
	q := l.Questions[l.CurrentIndex]
	l.CurrentQuestion = &q
	l.QuestionStartedAt = now
	for _, p := range l.Players {
		p.ResetForQuestion()
	}
	return &q, true
}

// SubmitAnswer records an answer for the open question. Submissions are
// silently ignored (nil, false) when there is no open window, the player
// already answered, or the answer arrived after the time limit: the
// question timer can race the network, and late answers simply lose.
func (l *Lobby) SubmitAnswer(playerID, value string, now time.Time) (*Answer, bool) {
	if l.State != StatePlaying || l.CurrentQuestion == nil {
		return nil, false
	}
	p, ok := l.Players[playerID]
	if !ok || p.HasAnswered {
		return nil, false
	}

	elapsed := now.Sub(l.QuestionStartedAt)
	if elapsed > l.CurrentQuestion.TimeLimit() {
		return nil, false
	}

	correct := value == l.CurrentQuestion.Answer
	points := Score(correct, elapsed, l.CurrentQuestion.TimeLimit())
	ans := &Answer{
		QuestionIndex: l.CurrentIndex,
		Value:         value,
		Correct:       correct,
		ElapsedMillis: elapsed.Milliseconds(),
		Points:        points,
		SubmittedAt:   now,
	}
	p.CurrentAnswer = ans
	p.HasAnswered = true
	p.Answers = append(p.Answers, *ans)
	p.Score += points
	return ans, true
}

// AllConnectedAnswered reports whether every connected player has answered
// the open question. Disconnected players are not waited on.
func (l *Lobby) AllConnectedAnswered() bool {
	if l.CurrentQuestion == nil {
		return false
	}
	any := false
	for _, p := range l.Players {
		if !p.Connected {
			continue
		}
		if !p.HasAnswered {
			return false
		}
		any = true
	}
	return any
}

// CloseQuestion ends the open window: it builds the per-player result rows,
// clears the window, and advances the cursor. Safe to call at most once per
// question; returns false if no window is open.
func (l *Lobby) CloseQuestion() ([]QuestionResult, bool) {
	if l.State != StatePlaying || l.CurrentQuestion == nil {
		return nil, false
	}

	results := make([]QuestionResult, 0, len(l.Players))
	for _, p := range l.Players {
		row := QuestionResult{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			TotalScore:  p.Score,
		}
		if p.CurrentAnswer != nil {
			row.Answered = true
			row.Value = p.CurrentAnswer.Value
			row.Correct = p.CurrentAnswer.Correct
			row.Points = p.CurrentAnswer.Points
		}
		results = append(results, row)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].PlayerID < results[j].PlayerID
	})

	l.CurrentQuestion = nil
	l.QuestionStartedAt = time.Time{}
	l.CurrentIndex++
	return results, true
}

// Finish transitions Playing -> Finished and returns the session summary
// with final standings.
func (l *Lobby) Finish(now time.Time) (GameSummary, bool) {
	if l.State != StatePlaying {
		return GameSummary{}, false
	}
	l.State = StateFinished
	return GameSummary{
		Code:           l.Code,
		Category:       l.Category,
		TotalQuestions: len(l.Questions),
		StartedAt:      l.StartedAt,
		EndedAt:        now,
		DurationMillis: now.Sub(l.StartedAt).Milliseconds(),
		Standings:      ComputeStandings(l.Players),
	}, true
}

// PlayerViews returns the live scoreboard sorted by score descending, with
// ties broken by join time then ID so the order is stable across updates.
func (l *Lobby) PlayerViews() []PlayerView {
	players := make([]*Player, 0, len(l.Players))
	for _, p := range l.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].ID < players[j].ID
	})

	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, p.View())
	}
	return views
}
