package core

import (
	"context"

	"github.com/dkeye/voicerooms/internal/domain"
)

// PasswordHasher hashes private room passwords at rest.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// AttemptLimiter counts consecutive failed password attempts per (room, user).
// Implementations decide the threshold and lockout window.
type AttemptLimiter interface {
	Locked(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	Fail(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (int, error)
	Reset(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

// CoverStorage accepts a cover image keyed by room and returns a retrievable URL.
type CoverStorage interface {
	PutCover(ctx context.Context, roomID domain.RoomID, contentType string, data []byte) (string, error)
}

// TypingTracker keeps ephemeral "is typing" marks with a short TTL.
// Nothing here is ever part of participant state.
type TypingTracker interface {
	Touch(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	Active(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error)
}
