package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

// TypingTracker remembers who is typing until their mark expires.
type TypingTracker struct {
	mu    sync.Mutex
	marks map[domain.RoomID]map[domain.UserID]time.Time
	ttl   time.Duration
	now   func() time.Time
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		marks: make(map[domain.RoomID]map[domain.UserID]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (t *TypingTracker) Touch(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.marks[roomID]
	if !ok {
		room = make(map[domain.UserID]time.Time)
		t.marks[roomID] = room
	}
	room[userID] = t.now().Add(t.ttl)
	return nil
}

func (t *TypingTracker) Active(_ context.Context, roomID domain.RoomID) ([]domain.UserID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := []domain.UserID{}
	for uid, until := range t.marks[roomID] {
		if now.Before(until) {
			out = append(out, uid)
		} else {
			delete(t.marks[roomID], uid)
		}
	}
	if len(t.marks[roomID]) == 0 {
		delete(t.marks, roomID)
	}
	slices.Sort(out)
	return out, nil
}
