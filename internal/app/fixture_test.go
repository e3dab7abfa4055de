package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/voicerooms/internal/adapters/memory"
	"github.com/dkeye/voicerooms/internal/adapters/secret"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

var errDisk = errors.New("disk on fire")

// flakyParticipants fails Save for the users listed in failSave.
type flakyParticipants struct {
	*memory.ParticipantRepository
	mu       sync.Mutex
	failSave map[domain.UserID]bool
}

func (f *flakyParticipants) failFor(uid domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave[uid] = true
}

func (f *flakyParticipants) Save(ctx context.Context, p *domain.Participant) error {
	f.mu.Lock()
	fail := f.failSave[p.UserID]
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.ParticipantRepository.Save(ctx, p)
}

type fakeCovers struct {
	calls int
	err   error
}

func (f *fakeCovers) PutCover(_ context.Context, roomID domain.RoomID, contentType string, _ []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/covers/" + string(roomID) + "/" + contentType, nil
}

// recorder keeps every published event.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Publish(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	ctx      context.Context
	reg      *Registry
	rooms    *memory.RoomRepository
	parts    *flakyParticipants
	messages *memory.MessageRepository
	limiter  *memory.AttemptLimiter
	covers   *fakeCovers
	events   *recorder

	store *RoomStore
	seats *SeatAllocator
	join  *MembershipCoordinator
	mod   *ModerationController
	log   *MessageLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		rooms:    memory.NewRoomRepository(),
		parts:    &flakyParticipants{ParticipantRepository: memory.NewParticipantRepository(), failSave: map[domain.UserID]bool{}},
		messages: memory.NewMessageRepository(),
		limiter:  memory.NewAttemptLimiter(5, 5*time.Minute),
		covers:   &fakeCovers{},
		events:   &recorder{},
	}
	hasher := secret.NewBcryptHasher(bcrypt.MinCost)
	f.reg = NewRegistry(f.rooms, f.parts, 100)
	f.store = NewRoomStore(f.reg, hasher, f.covers, f.events)
	f.seats = NewSeatAllocator(f.reg, f.events)
	f.join = NewMembershipCoordinator(f.reg, f.seats, hasher, f.limiter, f.events)
	f.mod = NewModerationController(f.reg, f.seats, f.join, f.events)
	f.log = NewMessageLog(f.reg, f.messages, f.events)
	return f
}

func roomInput(owner domain.UserID, maxParticipants, seats int) domain.CreateRoomInput {
	return domain.CreateRoomInput{
		OwnerID:          owner,
		Title:            "Friday jam",
		Description:      "weekly listening session",
		Visibility:       domain.VisibilityPublic,
		MaxParticipants:  maxParticipants,
		SpeakerSeatCount: seats,
	}
}

// open creates a room and seats its owner.
func (f *fixture) open(t *testing.T, in domain.CreateRoomInput) domain.RoomID {
	t.Helper()
	room, err := f.store.Create(f.ctx, in)
	require.NoError(t, err)
	p, err := f.join.Join(f.ctx, room.ID, in.OwnerID, "")
	require.NoError(t, err)
	require.Equal(t, domain.RoleOwner, p.Role)
	return room.ID
}

func (f *fixture) mustJoin(t *testing.T, roomID domain.RoomID, users ...domain.UserID) {
	t.Helper()
	for _, u := range users {
		_, err := f.join.Join(f.ctx, roomID, u, "")
		require.NoError(t, err)
	}
}

func (f *fixture) participant(t *testing.T, roomID domain.RoomID, uid domain.UserID) domain.Participant {
	t.Helper()
	roster, err := f.join.ListParticipants(f.ctx, roomID)
	require.NoError(t, err)
	for _, list := range [][]domain.Participant{roster.Speakers, roster.Listeners} {
		for _, p := range list {
			if p.UserID == uid {
				return p
			}
		}
	}
	t.Fatalf("%s is not in room %s", uid, roomID)
	return domain.Participant{}
}

// stored reads the persisted row of uid, if any.
func (f *fixture) stored(t *testing.T, roomID domain.RoomID, uid domain.UserID) (domain.Participant, bool) {
	t.Helper()
	rows, err := f.parts.ListByRoom(f.ctx, roomID)
	require.NoError(t, err)
	for _, p := range rows {
		if p.UserID == uid {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func seatOf(p domain.Participant) int {
	if idx, ok := p.Seat(); ok {
		return idx
	}
	return -1
}
