package redisx

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/voicerooms/internal/domain"
)

// TypingTracker stores typing marks in one sorted set per room, scored by
// expiry time in milliseconds.
type TypingTracker struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewTypingTracker(rdb *redis.Client, ttl time.Duration) *TypingTracker {
	return &TypingTracker{rdb: rdb, ttl: ttl, now: time.Now}
}

func typingKey(roomID domain.RoomID) string {
	return keyPrefix + "typing:" + string(roomID)
}

func (t *TypingTracker) Touch(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	k := typingKey(roomID)
	until := t.now().Add(t.ttl)
	pipe := t.rdb.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(until.UnixMilli()), Member: string(userID)})
	pipe.Expire(ctx, k, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *TypingTracker) Active(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error) {
	k := typingKey(roomID)
	now := strconv.FormatInt(t.now().UnixMilli(), 10)
	pipe := t.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", now)
	live := pipe.ZRangeByScore(ctx, k, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	members := live.Val()
	out := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		out = append(out, domain.UserID(m))
	}
	return out, nil
}
