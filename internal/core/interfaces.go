package core

import (
	"context"
	"errors"

	"github.com/dkeye/voicerooms/internal/domain"
)

// ErrPersistence wraps storage failures that are not domain outcomes.
var ErrPersistence = errors.New("persistence error")

// RoomRepository is durable storage for room records.
// Get returns domain.ErrRoomNotFound when the id is unknown.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	// ListPublic and SearchPublic only see PUBLIC and ACTIVE rooms, newest first.
	ListPublic(ctx context.Context, offset, limit int) ([]domain.Room, int, error)
	SearchPublic(ctx context.Context, query string, offset, limit int) ([]domain.Room, int, error)
}

// ParticipantRepository stores membership rows. Save is an upsert.
type ParticipantRepository interface {
	Save(ctx context.Context, p *domain.Participant) error
	Delete(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	DeleteRoom(ctx context.Context, roomID domain.RoomID) error
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error)
}

// MessageRepository is an append-only, room scoped log.
// Page returns one oldest-first window and the total count of the same snapshot.
type MessageRepository interface {
	Append(ctx context.Context, m *domain.Message) error
	Page(ctx context.Context, roomID domain.RoomID, offset, limit int) ([]domain.Message, int, error)
}
