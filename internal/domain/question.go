package domain

import (
	"math/rand"
	"time"
)

// Question models a single multiple-choice trivia question. The correct
// answer never leaves the server; clients only ever see a QuestionView.
type Question struct {
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	Answer           string   `json:"answer"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

// TimeLimit returns the answer window as a duration.
func (q Question) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitSeconds) * time.Second
}

// View strips the correct answer for broadcasting.
func (q Question) View(index, total int) QuestionStartedPayload {
	return QuestionStartedPayload{
		Index:            index,
		Total:            total,
		Text:             q.Text,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}

// PickQuestions returns a shuffled copy of the pool capped at max questions.
// The pool itself is never mutated so cached pools stay stable.
func PickQuestions(pool []Question, max int) []Question {
	picked := make([]Question, len(pool))
	copy(picked, pool)
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	if max > 0 && len(picked) > max {
		picked = picked[:max]
	}
	return picked
}
