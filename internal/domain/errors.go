package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the room core wraps exactly one of them,
// so callers branch with errors.Is(err, domain.ErrConflict) and friends.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidPassword = errors.New("invalid password")
)

var (
	ErrRoomNotFound        = kind(ErrNotFound, "room does not exist or is inactive")
	ErrParticipantNotFound = kind(ErrNotFound, "user is not in the room")

	ErrRoomFull          = kind(ErrConflict, "room is full")
	ErrNoFreeSeat        = kind(ErrConflict, "no free seat")
	ErrAlreadyModerator  = kind(ErrConflict, "user is already a moderator")
	ErrInvalidTransition = kind(ErrConflict, "role change not allowed")
	ErrTooManyRooms      = kind(ErrConflict, "too many active rooms")

	ErrNotOwner             = kind(ErrForbidden, "only the room owner can do this")
	ErrNotModerator         = kind(ErrForbidden, "only the owner or a moderator can do this")
	ErrOwnerProtected       = kind(ErrForbidden, "the room owner cannot be targeted")
	ErrNotParticipant       = kind(ErrForbidden, "you are not in the room")
	ErrSeatRequestsDisabled = kind(ErrForbidden, "seat requests are disabled in this room")

	ErrPasswordLocked = kind(ErrInvalidPassword, "too many attempts, try again later")
)

func kind(k error, msg string) error {
	return fmt.Errorf("%w: %s", k, msg)
}

// Invalid builds a validation error with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
