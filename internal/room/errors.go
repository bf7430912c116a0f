// internal/room/errors.go
package room

import "errors"

// Typed failures returned by the registry. Handlers map these onto HTTP
// statuses and websocket failure acks; they are never swallowed.
var (
	ErrAlreadyInRoom       = errors.New("user already in another room")
	ErrAlreadyInThisRoom   = errors.New("user already in this room")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomClosed          = errors.New("room already started or finished")
	ErrUserNotInRoom       = errors.New("user not in room")
	ErrInvalidRoomState    = errors.New("room state does not allow this operation")
	ErrNotHost             = errors.New("only the host may do this")
	ErrGameAlreadyStarted  = errors.New("game already started")
	ErrNotEnoughPlayers    = errors.New("not enough players")
	ErrPlayersNotReady     = errors.New("some players are not ready")
	ErrRoomNotPlaying      = errors.New("room is not playing")
	ErrOperationNotAllowed = errors.New("operation not allowed")
)

// IsConflict reports whether err is a state-conflict failure the client can
// fix by retrying later or changing its request, as opposed to a not-found
// or authorization failure.
func IsConflict(err error) bool {
	switch {
	case errors.Is(err, ErrAlreadyInRoom),
		errors.Is(err, ErrAlreadyInThisRoom),
		errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrRoomClosed),
		errors.Is(err, ErrInvalidRoomState),
		errors.Is(err, ErrGameAlreadyStarted),
		errors.Is(err, ErrNotEnoughPlayers),
		errors.Is(err, ErrPlayersNotReady),
		errors.Is(err, ErrRoomNotPlaying):
		return true
	}
	return false
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrUserNotInRoom)
}
