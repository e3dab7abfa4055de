package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicerooms/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func room(id string, vis domain.Visibility, created time.Time) *domain.Room {
	return &domain.Room{
		ID:          domain.RoomID(id),
		OwnerID:     "owner",
		Title:       "Room " + id,
		Description: "about " + id,
		Visibility:  vis,
		Status:      domain.RoomActive,
		Tags:        []string{"tag"},
		CreatedAt:   created,
	}
}

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	r := NewRoomRepository()

	require.NoError(t, r.Create(ctx, room("a", domain.VisibilityPublic, t0)))
	require.NoError(t, r.Create(ctx, room("b", domain.VisibilityPublic, t0.Add(time.Hour))))
	require.NoError(t, r.Create(ctx, room("c", domain.VisibilityPrivate, t0.Add(2*time.Hour))))
	require.Error(t, r.Create(ctx, room("a", domain.VisibilityPublic, t0)))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	again, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "tag", again.Tags[0], "callers get copies")

	_, err = r.Get(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.Update(ctx, room("zzz", domain.VisibilityPublic, t0)), domain.ErrNotFound)

	rooms, total, err := r.ListPublic(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rooms, 2)
	assert.Equal(t, domain.RoomID("b"), rooms[0].ID)

	rooms, total, err = r.ListPublic(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.NotNil(t, rooms)
	assert.Empty(t, rooms)

	closed := room("b", domain.VisibilityPublic, t0.Add(time.Hour))
	closed.Status = domain.RoomInactive
	require.NoError(t, r.Update(ctx, closed))

	rooms, total, err = r.SearchPublic(ctx, "ROOM", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomID("a"), rooms[0].ID)
}

func TestParticipantRepository(t *testing.T) {
	ctx := context.Background()
	r := NewParticipantRepository()
	seat := 1
	p := &domain.Participant{RoomID: "r", UserID: "u", Role: domain.RoleSpeaker, SeatIndex: &seat}

	require.NoError(t, r.Save(ctx, p))
	seat = 7
	rows, err := r.ListByRoom(ctx, "r")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, *rows[0].SeatIndex, "stored rows do not alias the caller")

	p.Role = domain.RoleListener
	p.SeatIndex = nil
	require.NoError(t, r.Save(ctx, p))
	rows, err = r.ListByRoom(ctx, "r")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RoleListener, rows[0].Role)

	require.NoError(t, r.Save(ctx, &domain.Participant{RoomID: "r", UserID: "v"}))
	require.NoError(t, r.Delete(ctx, "r", "u"))
	require.NoError(t, r.Delete(ctx, "r", "u"))
	rows, err = r.ListByRoom(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, r.DeleteRoom(ctx, "r"))
	rows, err = r.ListByRoom(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMessageRepository_KeepsLogOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMessageRepository()
	add := func(id string, at time.Time) {
		require.NoError(t, r.Append(ctx, &domain.Message{ID: domain.MessageID(id), RoomID: "r", Content: id, CreatedAt: at}))
	}
	add("m3", t0.Add(2*time.Second))
	add("m1", t0)
	add("m2b", t0.Add(time.Second))
	add("m2a", t0.Add(time.Second))
	add("other", t0)

	msgs, total, err := r.Page(ctx, "r", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	var ids []domain.MessageID
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []domain.MessageID{"m1", "other", "m2a", "m2b", "m3"}, ids)

	msgs, _, err = r.Page(ctx, "r", 4, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageID("m3"), msgs[0].ID)

	msgs, total, err = r.Page(ctx, "empty", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, msgs)
}

type fakeClock struct{ at time.Time }

func (c *fakeClock) now() time.Time { return c.at }

func TestAttemptLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{at: t0}
	l := NewAttemptLimiter(3, time.Minute)
	l.now = clock.now

	for i := 1; i <= 3; i++ {
		n, err := l.Fail(ctx, "r", "u")
		require.NoError(t, err)
		assert.Equal(t, i, n)
		clock.at = clock.at.Add(10 * time.Second)
	}
	locked, err := l.Locked(ctx, "r", "u")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = l.Locked(ctx, "r2", "u")
	require.NoError(t, err)
	assert.False(t, locked, "counters are per room")

	// The first failure ages out of the window.
	clock.at = t0.Add(time.Minute + time.Second)
	locked, err = l.Locked(ctx, "r", "u")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.Reset(ctx, "r", "u"))
	n, err := l.Fail(ctx, "r", "u")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTypingTracker_Expires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{at: t0}
	tr := NewTypingTracker(5 * time.Second)
	tr.now = clock.now

	for i := range 3 {
		require.NoError(t, tr.Touch(ctx, "r", domain.UserID(fmt.Sprintf("u%d", 2-i))))
	}
	users, err := tr.Active(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"u0", "u1", "u2"}, users)

	clock.at = t0.Add(3 * time.Second)
	require.NoError(t, tr.Touch(ctx, "r", "u1"))
	clock.at = t0.Add(6 * time.Second)
	users, err = tr.Active(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"u1"}, users)

	clock.at = t0.Add(time.Minute)
	users, err = tr.Active(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, users)
}
