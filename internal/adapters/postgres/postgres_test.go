package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicerooms/internal/domain"
)

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"postgresql+asyncpg://u:p@db/rooms": "postgresql://u:p@db/rooms",
		"postgres+pgx://u@db:5432/rooms":    "postgres://u@db:5432/rooms",
		"  postgres://u@db/rooms  ":         "postgres://u@db/rooms",
		"host=db user=u dbname=rooms":       "host=db user=u dbname=rooms",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeDSN(in), in)
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% jazz\_club \\o/`, escapeLike(`100% jazz_club \o/`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

// Set VOICEROOMS_TEST_POSTGRES_URL to run against a real database.
func TestRepositories(t *testing.T) {
	dsn := os.Getenv("VOICEROOMS_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("VOICEROOMS_TEST_POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	rooms := NewRoomRepository(pool)
	parts := NewParticipantRepository(pool)
	msgs := NewMessageRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	room := &domain.Room{
		ID:               domain.RoomID(uuid.NewString()),
		OwnerID:          "owner",
		Title:            "Integration " + uuid.NewString()[:8],
		Description:      "50% off_topic talk",
		Visibility:       domain.VisibilityPublic,
		MaxParticipants:  5,
		SpeakerSeatCount: 2,
		Status:           domain.RoomActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, rooms.Create(ctx, room))

	got, err := rooms.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Title, got.Title)

	_, err = rooms.Get(ctx, domain.RoomID(uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, total, err := rooms.SearchPublic(ctx, "50% off_", 0, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	assert.NotEmpty(t, found)

	zero, one := 0, 1
	require.NoError(t, parts.Save(ctx, &domain.Participant{RoomID: room.ID, UserID: "owner", Role: domain.RoleOwner, SeatIndex: &zero, JoinedAt: now}))
	require.NoError(t, parts.Save(ctx, &domain.Participant{RoomID: room.ID, UserID: "a", Role: domain.RoleSpeaker, SeatIndex: &one, JoinedAt: now}))
	require.Error(t, parts.Save(ctx, &domain.Participant{RoomID: room.ID, UserID: "b", Role: domain.RoleSpeaker, SeatIndex: &one, JoinedAt: now}),
		"one holder per seat")
	require.NoError(t, parts.Save(ctx, &domain.Participant{RoomID: room.ID, UserID: "a", Role: domain.RoleListener, JoinedAt: now}))

	rows, err := parts.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	for i := range 3 {
		require.NoError(t, msgs.Append(ctx, &domain.Message{
			ID: domain.MessageID(uuid.NewString()), RoomID: room.ID, SenderID: "a",
			Content: "hi", Type: domain.MessageText, CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	page, total, err := msgs.Page(ctx, room.ID, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	room.Status = domain.RoomInactive
	require.NoError(t, rooms.Update(ctx, room))
	require.NoError(t, parts.DeleteRoom(ctx, room.ID))
	rows, err = parts.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
