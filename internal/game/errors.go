package game

import "errors"

// Engine errors. The transport layer maps these to HTTP statuses; nothing
// here carries a status code of its own.
var (
	// ErrNotFound means the session code does not exist (or expired).
	ErrNotFound = errors.New("session not found")

	// ErrInvalidTransition means the action is not valid in the session's
	// current phase (e.g. voting after the game started).
	ErrInvalidTransition = errors.New("invalid action for current phase")

	// ErrIllegalAction means the caller exists but may not act right now:
	// not their turn, already eliminated, or the game is over.
	ErrIllegalAction = errors.New("illegal action")

	// ErrUnauthorized means the session token does not match the player.
	ErrUnauthorized = errors.New("invalid session token")

	// ErrConflict means the optimistic write kept colliding with concurrent
	// updates after the engine's internal retries. Callers may retry.
	ErrConflict = errors.New("concurrent update conflict")

	ErrPlayerNotFound   = errors.New("player not in session")
	ErrNotHost          = errors.New("only the host can perform this action")
	ErrSessionFull      = errors.New("session is full")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrInvalidName      = errors.New("invalid player name")
	ErrNameTaken        = errors.New("name already taken")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrUnknownTheme     = errors.New("theme is not an option")
	ErrInvalidWord      = errors.New("invalid word")
	ErrWordNotInPool    = errors.New("word is not in your pool")
	ErrWordTaken        = errors.New("word already held by a living player")
	ErrNoChangeCredit   = errors.New("no word change available")
)
