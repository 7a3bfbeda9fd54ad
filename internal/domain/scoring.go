package domain

import "time"

const (
	// BasePoints is awarded for any correct answer.
	BasePoints = 100
	// BonusCap is the maximum speed bonus for an instant correct answer.
	BonusCap = 50
)

// Score computes the points for an answer. Incorrect answers score zero.
// Correct answers earn BasePoints plus a linear speed bonus: the full
// BonusCap at elapsed=0 decaying to zero at the time limit. Elapsed is
// clamped to [0, limit] so clock skew can never produce a negative bonus.
func Score(correct bool, elapsed, limit time.Duration) int {
	if !correct {
		return 0
	}
	if limit <= 0 {
		return BasePoints
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	bonus := int(float64(BonusCap) * (1 - float64(elapsed)/float64(limit)))
	return BasePoints + bonus
}
