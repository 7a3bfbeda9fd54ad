package domain

import "time"

// Answer records one scored submission by a player.
type Answer struct {
	QuestionIndex int       `json:"questionIndex"`
	Value         string    `json:"value"`
	Correct       bool      `json:"correct"`
	ElapsedMillis int64     `json:"elapsedMillis"`
	Points        int       `json:"points"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Player is a participant in a lobby. The entity survives disconnects;
// only an explicit leave or lobby teardown removes it.
type Player struct {
	ID          string
	DisplayName string
	Connected   bool
	JoinedAt    time.Time

	Score         int
	Answers       []Answer
	CurrentAnswer *Answer
	HasAnswered   bool
}

func NewPlayer(id, name string, now time.Time) *Player {
	return &Player{
		ID:          id,
		DisplayName: name,
		Connected:   true,
		JoinedAt:    now,
	}
}

// ResetForGame clears all per-session scoring state when a game starts.
func (p *Player) ResetForGame() {
	p.Score = 0
	p.Answers = nil
	p.CurrentAnswer = nil
	p.HasAnswered = false
}

// ResetForQuestion clears per-question state at the start of a window.
func (p *Player) ResetForQuestion() {
	p.CurrentAnswer = nil
	p.HasAnswered = false
}

// PlayerView is the safe client-facing projection of a player.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Connected   bool   `json:"connected"`
	HasAnswered bool   `json:"hasAnswered"`
}

func (p *Player) View() PlayerView {
	return PlayerView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Score:       p.Score,
		Connected:   p.Connected,
		HasAnswered: p.HasAnswered,
	}
}
