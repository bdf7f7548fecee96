package game

import "errors"

// User-facing rejections. Their text is what the client sees in the ack.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotInRoom          = errors.New("could not identify player")
	ErrAlreadyInRoom      = errors.New("connection already joined a room")
	ErrNotCreator         = errors.New("only the room creator can do that")
	ErrCreatorOnlyBefore  = errors.New("only the room creator can do that before the game ends")
	ErrKickSelf           = errors.New("the creator cannot kick themself")
	ErrPlayerNotFound     = errors.New("player is not in the room")
	ErrNotInLobby         = errors.New("only allowed in the lobby")
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameInProgress     = errors.New("game already in progress")
	ErrRoomFull           = errors.New("room is full")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrTooManyPlayers     = errors.New("too many players")
	ErrInvalidLeader      = errors.New("invalid leader index")
	ErrInvalidName        = errors.New("name is required")
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
)

// ErrInternal marks invariant violations. Acks only say "internal error".
var ErrInternal = errors.New("internal error")

func ackError(err error) Ack {
	if errors.Is(err, ErrInternal) {
		return Ack{OK: false, Error: ErrInternal.Error()}
	}
	return Ack{OK: false, Error: err.Error()}
}
