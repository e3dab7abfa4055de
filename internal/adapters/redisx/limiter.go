package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/voicerooms/internal/domain"
)

// AttemptLimiter keeps one counter per (room, user). Each failure pushes the
// expiry out by the lockout window, so the lock lifts one window after the
// last failed attempt.
type AttemptLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

func NewAttemptLimiter(rdb *redis.Client, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{rdb: rdb, limit: int64(limit), window: window}
}

func attemptKey(roomID domain.RoomID, userID domain.UserID) string {
	return keyPrefix + "pw:" + string(roomID) + ":" + string(userID)
}

func (l *AttemptLimiter) Locked(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	n, err := l.rdb.Get(ctx, attemptKey(roomID, userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.limit, nil
}

func (l *AttemptLimiter) Fail(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (int, error) {
	k := attemptKey(roomID, userID)
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return l.rdb.Del(ctx, attemptKey(roomID, userID)).Err()
}
