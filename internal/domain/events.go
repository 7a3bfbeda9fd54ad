package domain

// Event type names sent over the wire. Broadcasts go to every player in a
// lobby; answerAck goes only to the submitter.
const (
	EventLobbyCreated     = "lobbyCreated"
	EventPlayerList       = "playerList"
	EventCategorySelected = "categorySelected"
	EventGameStarted      = "gameStarted"
	EventQuestionStarted  = "questionStarted"
	EventAnswerAck        = "answerAck"
	EventScoresUpdated    = "scoresUpdated"
	EventQuestionEnded    = "questionEnded"
	EventGameEnded        = "gameEnded"
	EventError            = "error"
)

// LobbyCreatedPayload is sent to the creator after a lobby is registered.
type LobbyCreatedPayload struct {
	Code    string       `json:"code"`
	HostID  string       `json:"hostId"`
	Players []PlayerView `json:"players"`
}

// PlayerListPayload is broadcast on join/leave/disconnect/reconnect.
type PlayerListPayload struct {
	HostID  string       `json:"hostId"`
	Players []PlayerView `json:"players"`
}

// CategorySelectedPayload is broadcast when the host picks a category.
type CategorySelectedPayload struct {
	Category string `json:"category"`
}

// GameStartedPayload is broadcast when the host starts the session.
type GameStartedPayload struct {
	Category       string `json:"category"`
	TotalQuestions int    `json:"totalQuestions"`
}

// QuestionStartedPayload opens a question window. The correct answer is
// never included.
type QuestionStartedPayload struct {
	Index            int      `json:"index"`
	Total            int      `json:"total"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

// AnswerAckPayload acknowledges a scored submission to the submitter only.
type AnswerAckPayload struct {
	Correct       bool  `json:"correct"`
	Points        int   `json:"points"`
	TotalScore    int   `json:"totalScore"`
	ElapsedMillis int64 `json:"elapsedMillis"`
}

// ScoresUpdatedPayload is the live scoreboard, sorted by score descending.
type ScoresUpdatedPayload struct {
	Scores []PlayerView `json:"scores"`
}

// QuestionEndedPayload reveals the answer and per-player results.
type QuestionEndedPayload struct {
	Index   int              `json:"index"`
	Answer  string           `json:"answer"`
	Results []QuestionResult `json:"results"`
}

// ErrorPayload carries a rejected intent back to the offending client.
type ErrorPayload struct {
	Message string `json:"message"`
}
