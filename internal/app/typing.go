package app

import (
	"context"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Typing relays ephemeral "is typing" signals. Nothing is written to
// participant state.
type Typing struct {
	reg     *Registry
	tracker core.TypingTracker
	emitter
}

func NewTyping(reg *Registry, tracker core.TypingTracker, events core.EventPublisher) *Typing {
	return &Typing{reg: reg, tracker: tracker, emitter: newEmitter(events)}
}

// Touch marks userID as typing in the room and tells the room about it.
func (t *Typing) Touch(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	err := t.reg.with(ctx, roomID, func(st *roomState) error {
		if _, ok := st.participant(userID); !ok {
			return domain.ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return err
	}
	if t.tracker != nil {
		if err := t.tracker.Touch(ctx, roomID, userID); err != nil {
			return err
		}
	}
	t.emit(ctx, core.Event{Type: core.EventTyping, RoomID: roomID, UserID: userID})
	return nil
}

// Active lists users whose typing mark has not expired.
func (t *Typing) Active(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error) {
	if t.tracker == nil {
		return []domain.UserID{}, nil
	}
	users, err := t.tracker.Active(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return nonNil(users), nil
}
