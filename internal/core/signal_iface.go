package core

import (
	"context"
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

// Frame is a raw encoded event as it goes over a push transport.
type Frame []byte

// SignalConnection abstracts a push transport to one client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

type EventType string

const (
	EventRoomCreated       EventType = "room.created"
	EventRoomUpdated       EventType = "room.updated"
	EventRoomClosed        EventType = "room.closed"
	EventParticipantJoined EventType = "participant.joined"
	EventParticipantLeft   EventType = "participant.left"
	EventRoleChanged       EventType = "participant.role_changed"
	EventParticipantMuted  EventType = "participant.muted"
	EventMessagePosted     EventType = "message.posted"
	EventTyping            EventType = "typing"
)

// Event describes one room state change after it has been committed.
type Event struct {
	Type        EventType           `json:"type"`
	RoomID      domain.RoomID       `json:"roomId"`
	UserID      domain.UserID       `json:"userId,omitempty"`
	ActorID     domain.UserID       `json:"actorId,omitempty"`
	Room        *domain.Room        `json:"room,omitempty"`
	Participant *domain.Participant `json:"participant,omitempty"`
	Message     *domain.Message     `json:"message,omitempty"`
	At          time.Time           `json:"at"`
}

// EventPublisher delivers committed events to an outside sink.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
