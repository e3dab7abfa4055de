package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

type attemptKey struct {
	room domain.RoomID
	user domain.UserID
}

// AttemptLimiter counts failed password attempts per (room, user) in a
// sliding window. Once limit failures sit inside the window the pair is locked
// until the oldest of them ages out.
type AttemptLimiter struct {
	mu      sync.Mutex
	history map[attemptKey][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewAttemptLimiter(limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		history: make(map[attemptKey][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// fresh drops attempts older than the window. Caller holds mu.
func (l *AttemptLimiter) fresh(k attemptKey) []time.Time {
	windowStart := l.now().Add(-l.window)
	attempts := l.history[k]
	kept := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.history, k)
		return nil
	}
	l.history[k] = kept
	return kept
}

func (l *AttemptLimiter) Locked(_ context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fresh(attemptKey{roomID, userID})) >= l.limit, nil
}

func (l *AttemptLimiter) Fail(_ context.Context, roomID domain.RoomID, userID domain.UserID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := attemptKey{roomID, userID}
	attempts := append(l.fresh(k), l.now())
	l.history[k] = attempts
	return len(attempts), nil
}

func (l *AttemptLimiter) Reset(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.history, attemptKey{roomID, userID})
	return nil
}
