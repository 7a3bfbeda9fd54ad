package domain

import "errors"

var (
	// ErrLobbyNotFound is returned when no lobby exists for a room code.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrPlayerNotFound is returned when a player tries to act before joining.
	ErrPlayerNotFound = errors.New("player not found in lobby")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = errors.New("only the host can perform this action")
	// ErrLobbyNotJoinable is returned when joining a lobby that already started.
	ErrLobbyNotJoinable = errors.New("lobby is not accepting players")
	// ErrNoCategory is returned when the game is started before a category is picked.
	ErrNoCategory = errors.New("no category selected")
	// ErrInvalidState is returned when an action is invalid for the lobby state.
	ErrInvalidState = errors.New("invalid action for current lobby state")
	// ErrNoQuestions indicates the selected category produced an empty pool.
	ErrNoQuestions = errors.New("no questions available for category")
	// ErrCategoryNotFound indicates the question source has no such category.
	ErrCategoryNotFound = errors.New("category not found")
)
