package domain

import (
	"sort"
	"time"
)

// QuestionResult is one player's row in a question-ended reveal.
type QuestionResult struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Answered    bool   `json:"answered"`
	Value       string `json:"value,omitempty"`
	Correct     bool   `json:"correct"`
	Points      int    `json:"points"`
	TotalScore  int    `json:"totalScore"`
}

// Medal values for the top three standings.
const (
	MedalGold   = "gold"
	MedalSilver = "silver"
	MedalBronze = "bronze"
)

// Standing is one player's final placement.
type Standing struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Medal       string `json:"medal,omitempty"`
}

// GameSummary is the final payload handed to clients and to best-effort
// persistence once a session finishes.
type GameSummary struct {
	Code           string     `json:"code"`
	Category       string     `json:"category"`
	TotalQuestions int        `json:"totalQuestions"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        time.Time  `json:"endedAt"`
	DurationMillis int64      `json:"durationMillis"`
	Standings      []Standing `json:"standings"`
}

// ComputeStandings ranks every player (connected or not) by score
// descending and assigns medals to the top three. Ties are broken by join
// time then ID so ranks are deterministic.
func ComputeStandings(players map[string]*Player) []Standing {
	ordered := make([]*Player, 0, len(players))
	for _, p := range players {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		if !ordered[i].JoinedAt.Equal(ordered[j].JoinedAt) {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	medals := []string{MedalGold, MedalSilver, MedalBronze}
	standings := make([]Standing, 0, len(ordered))
	for i, p := range ordered {
		s := Standing{
			Rank:        i + 1,
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		}
		if i < len(medals) {
			s.Medal = medals[i]
		}
		standings = append(standings, s)
	}
	return standings
}
