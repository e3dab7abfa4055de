package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/voicerooms/internal/adapters/memory"
	"github.com/dkeye/voicerooms/internal/adapters/secret"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

type observed struct {
	mu  sync.Mutex
	ops map[string][]error
}

func (o *observed) Observe(op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[op] = append(o.ops[op], err)
}

type sink struct {
	mu     sync.Mutex
	events []core.Event
}

func (s *sink) Publish(_ context.Context, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func newOrchestrator(t *testing.T) (*Orchestrator, *observed, *sink) {
	t.Helper()
	metrics := &observed{ops: map[string][]error{}}
	out := &sink{}
	o := New(Deps{
		Rooms:    memory.NewRoomRepository(),
		Members:  memory.NewParticipantRepository(),
		Messages: memory.NewMessageRepository(),
		Hasher:   secret.NewBcryptHasher(bcrypt.MinCost),
		Limiter:  memory.NewAttemptLimiter(5, 5*time.Minute),
		Typing:   memory.NewTypingTracker(time.Minute),
		Sinks:    []core.EventPublisher{out},
		Metrics:  metrics,
	})
	return o, metrics, out
}

func next(t *testing.T, ch <-chan core.Event) core.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return core.Event{}
}

func TestOrchestrator_Scenario(t *testing.T) {
	ctx := context.Background()
	o, metrics, out := newOrchestrator(t)

	room, err := o.CreateRoom(ctx, domain.CreateRoomInput{
		OwnerID:          "host",
		Title:            "Book club",
		Description:      "this month we read slowly",
		Visibility:       domain.VisibilityPrivate,
		Password:         "chapter1",
		MaxParticipants:  4,
		SpeakerSeatCount: 2,
	})
	require.NoError(t, err)

	roster, err := o.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, roster.Speakers, 1)
	assert.Equal(t, domain.RoleOwner, roster.Speakers[0].Role)

	sub, err := o.Subscribe(ctx, room.ID, "host")
	require.NoError(t, err)
	_, err = o.Subscribe(ctx, room.ID, "reader")
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = o.JoinRoom(ctx, room.ID, "reader", "chapter2")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)
	p, err := o.JoinRoom(ctx, room.ID, "reader", "chapter1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, p.Role)
	ev := next(t, sub.Events())
	assert.Equal(t, core.EventParticipantJoined, ev.Type)
	assert.Equal(t, domain.UserID("reader"), ev.UserID)

	p, err = o.RequestSpeakerSeat(ctx, room.ID, "reader")
	require.NoError(t, err)
	assert.Equal(t, 1, *p.SeatIndex)
	assert.Equal(t, core.EventRoleChanged, next(t, sub.Events()).Type)

	view, err := o.SeatTable(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"host", "reader"}, view.Seats)

	msg, err := o.PostMessage(ctx, room.ID, "reader", "page 12 is wild", domain.MessageText)
	require.NoError(t, err)
	ev = next(t, sub.Events())
	assert.Equal(t, core.EventMessagePosted, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, msg.ID, ev.Message.ID)

	require.NoError(t, o.SignalTyping(ctx, room.ID, "reader"))
	assert.Equal(t, core.EventTyping, next(t, sub.Events()).Type)
	users, err := o.TypingUsers(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"reader"}, users)

	_, err = o.PromoteToModerator(ctx, room.ID, "host", "reader")
	require.NoError(t, err)
	next(t, sub.Events())
	_, err = o.UpdateRoom(ctx, room.ID, "reader", domain.RoomPatch{Description: ptr("next month: poetry")})
	require.NoError(t, err)
	assert.Equal(t, core.EventRoomUpdated, next(t, sub.Events()).Type)

	_, err = o.DemoteModerator(ctx, room.ID, "host", "reader")
	require.NoError(t, err)
	next(t, sub.Events())
	_, err = o.MuteParticipant(ctx, room.ID, "host", "reader", true)
	require.NoError(t, err)
	assert.Equal(t, core.EventParticipantMuted, next(t, sub.Events()).Type)

	require.NoError(t, o.KickParticipant(ctx, room.ID, "host", "reader"))
	ev = next(t, sub.Events())
	assert.Equal(t, core.EventParticipantLeft, ev.Type)
	assert.Equal(t, domain.UserID("host"), ev.ActorID)

	require.NoError(t, o.LeaveRoom(ctx, room.ID, "reader"), "leaving twice is fine")

	require.NoError(t, o.CloseRoom(ctx, room.ID, "host"))
	ev = next(t, sub.Events())
	assert.Equal(t, core.EventRoomClosed, ev.Type)
	_, open := <-sub.Events()
	assert.False(t, open, "room close ends the feed")

	page, err := o.GetMessages(ctx, room.ID, domain.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	_, err = o.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	assert.Len(t, metrics.ops["join_room"], 2)
	assert.Error(t, metrics.ops["join_room"][0])
	assert.NoError(t, metrics.ops["join_room"][1])
	assert.Len(t, metrics.ops["create_room"], 1)

	out.mu.Lock()
	defer out.mu.Unlock()
	require.NotEmpty(t, out.events)
	assert.Equal(t, core.EventRoomCreated, out.events[0].Type, "outside sinks see every event")
	assert.Equal(t, core.EventRoomClosed, out.events[len(out.events)-1].Type)
}

func TestOrchestrator_OwnerLeavesFreesSeatZero(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newOrchestrator(t)

	room, err := o.CreateRoom(ctx, domain.CreateRoomInput{
		OwnerID:          "a",
		Title:            "Two chairs",
		Description:      "a tiny private room",
		Visibility:       domain.VisibilityPrivate,
		Password:         "abcd",
		MaxParticipants:  2,
		SpeakerSeatCount: 1,
	})
	require.NoError(t, err)
	view, err := o.SeatTable(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"a"}, view.Seats)

	b, err := o.JoinRoom(ctx, room.ID, "b", "abcd")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, b.Role)
	assert.Nil(t, b.SeatIndex)

	_, err = o.JoinRoom(ctx, room.ID, "c", "abcd")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	_, err = o.RequestSpeakerSeat(ctx, room.ID, "b")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrNoFreeSeat)

	require.NoError(t, o.LeaveRoom(ctx, room.ID, "a"))
	roster, err := o.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, roster.Count())
	view, err = o.SeatTable(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Occupied)

	b, err = o.RequestSpeakerSeat(ctx, room.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSpeaker, b.Role)
	require.NotNil(t, b.SeatIndex)
	assert.Equal(t, 0, *b.SeatIndex)
}

func TestOrchestrator_LeaveEndsOwnFeed(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newOrchestrator(t)
	room, err := o.CreateRoom(ctx, domain.CreateRoomInput{
		OwnerID:          "host",
		Title:            "Open mic",
		Description:      "anyone can drop by",
		Visibility:       domain.VisibilityPublic,
		MaxParticipants:  5,
		SpeakerSeatCount: 2,
	})
	require.NoError(t, err)
	_, err = o.JoinRoom(ctx, room.ID, "guest", "")
	require.NoError(t, err)

	host, err := o.Subscribe(ctx, room.ID, "host")
	require.NoError(t, err)
	guest, err := o.Subscribe(ctx, room.ID, "guest")
	require.NoError(t, err)

	require.NoError(t, o.KickParticipant(ctx, room.ID, "host", "guest"))
	assert.Equal(t, core.EventParticipantLeft, next(t, guest.Events()).Type)
	_, open := <-guest.Events()
	assert.False(t, open, "a removed member's feed ends")
	assert.Equal(t, core.EventParticipantLeft, next(t, host.Events()).Type)

	_, err = o.Subscribe(ctx, room.ID, "guest")
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = o.PostMessage(ctx, room.ID, "host", "still here", domain.MessageText)
	require.NoError(t, err)
	assert.Equal(t, core.EventMessagePosted, next(t, host.Events()).Type)
}

func TestOrchestrator_CreateRoomInvalid(t *testing.T) {
	o, metrics, _ := newOrchestrator(t)
	_, err := o.CreateRoom(context.Background(), domain.CreateRoomInput{OwnerID: "host", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, o.Registry.ActiveRooms())
	require.Len(t, metrics.ops["create_room"], 1)
	assert.ErrorIs(t, metrics.ops["create_room"][0], domain.ErrValidation)
}

func ptr[T any](v T) *T { return &v }
