package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// staffedRoom has the owner on seat 0, mod as MODERATOR, spk as SPEAKER and
// lis as LISTENER.
func staffedRoom(t *testing.T, f *fixture, seats int) domain.RoomID {
	t.Helper()
	id := f.open(t, roomInput("owner", 20, seats))
	f.mustJoin(t, id, "mod", "spk", "lis")
	_, err := f.mod.PromoteToModerator(f.ctx, id, "owner", "mod")
	require.NoError(t, err)
	_, err = f.mod.InviteSpeaker(f.ctx, id, "mod", "spk")
	require.NoError(t, err)
	return id
}

func TestPromoteToModerator(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	mod := f.participant(t, id, "mod")
	assert.Equal(t, domain.RoleModerator, mod.Role)
	assert.Equal(t, 1, seatOf(mod))

	_, err := f.mod.PromoteToModerator(f.ctx, id, "mod", "lis")
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	_, err = f.mod.PromoteToModerator(f.ctx, id, "owner", "mod")
	assert.ErrorIs(t, err, domain.ErrAlreadyModerator)
	_, err = f.mod.PromoteToModerator(f.ctx, id, "owner", "owner")
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)
	_, err = f.mod.PromoteToModerator(f.ctx, id, "owner", "ghost")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	_, err = f.mod.PromoteToModerator(f.ctx, id, "stranger", "lis")
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	// A speaker keeps their seat when promoted.
	p, err := f.mod.PromoteToModerator(f.ctx, id, "owner", "spk")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, p.Role)
	assert.Equal(t, 2, seatOf(p))
}

func TestPromoteToModerator_NoFreeSeat(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 3)

	_, err := f.mod.PromoteToModerator(f.ctx, id, "owner", "lis")
	require.ErrorIs(t, err, domain.ErrNoFreeSeat)

	lis := f.participant(t, id, "lis")
	assert.Equal(t, domain.RoleListener, lis.Role)
	spk := f.participant(t, id, "spk")
	assert.Equal(t, domain.RoleSpeaker, spk.Role, "nobody is bumped")
}

func TestDemoteModerator(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	_, err := f.mod.DemoteModerator(f.ctx, id, "mod", "mod")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	p, err := f.mod.DemoteModerator(f.ctx, id, "owner", "mod")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, p.Role)
	assert.False(t, p.HasSeat())

	p, err = f.mod.DemoteModerator(f.ctx, id, "owner", "lis")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, p.Role)

	_, err = f.mod.DemoteModerator(f.ctx, id, "owner", "owner")
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)
}

func TestRequestSpeakerSeat(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	p, err := f.mod.RequestSpeakerSeat(f.ctx, id, "lis")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSpeaker, p.Role)
	assert.Equal(t, 3, seatOf(p))

	again, err := f.mod.RequestSpeakerSeat(f.ctx, id, "lis")
	require.NoError(t, err)
	assert.Equal(t, p, again)

	_, err = f.mod.RequestSpeakerSeat(f.ctx, id, "stranger")
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestRequestSpeakerSeat_Disabled(t *testing.T) {
	f := newFixture(t)
	in := roomInput("owner", 10, 3)
	off := false
	in.AllowSeatRequests = &off
	id := f.open(t, in)
	f.mustJoin(t, id, "lis")

	_, err := f.mod.RequestSpeakerSeat(f.ctx, id, "lis")
	assert.ErrorIs(t, err, domain.ErrSeatRequestsDisabled)

	p, err := f.mod.InviteSpeaker(f.ctx, id, "owner", "lis")
	require.NoError(t, err, "invites ignore the request policy")
	assert.Equal(t, domain.RoleSpeaker, p.Role)
}

func TestInviteSpeaker(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 3)

	_, err := f.mod.InviteSpeaker(f.ctx, id, "spk", "lis")
	assert.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = f.mod.InviteSpeaker(f.ctx, id, "owner", "lis")
	assert.ErrorIs(t, err, domain.ErrNoFreeSeat)

	spk, err := f.mod.InviteSpeaker(f.ctx, id, "owner", "spk")
	require.NoError(t, err, "already seated is a no-op")
	assert.Equal(t, domain.RoleSpeaker, spk.Role)
}

func TestDemoteSpeaker(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	_, err := f.mod.DemoteSpeaker(f.ctx, id, "lis", "spk")
	assert.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = f.mod.DemoteSpeaker(f.ctx, id, "mod", "owner")
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)

	_, err = f.mod.PromoteToModerator(f.ctx, id, "owner", "lis")
	require.NoError(t, err)
	_, err = f.mod.DemoteSpeaker(f.ctx, id, "mod", "lis")
	assert.ErrorIs(t, err, domain.ErrNotOwner, "moderators cannot demote each other")

	p, err := f.mod.DemoteSpeaker(f.ctx, id, "mod", "spk")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, p.Role)
	assert.False(t, p.HasSeat())

	p, err = f.mod.DemoteSpeaker(f.ctx, id, "owner", "lis")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, p.Role)
}

func TestLeaveSeat(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	p, err := f.mod.LeaveSeat(f.ctx, id, "mod")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, p.Role)

	_, err = f.mod.LeaveSeat(f.ctx, id, "owner")
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)

	occupied, _, err := f.seats.Occupancy(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, occupied)
}

func TestMuteParticipant(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	p, err := f.mod.MuteParticipant(f.ctx, id, "mod", "spk", true)
	require.NoError(t, err)
	assert.True(t, p.IsMuted)
	assert.Equal(t, domain.RoleSpeaker, p.Role, "muting keeps role and seat")
	assert.Equal(t, 2, seatOf(p))

	_, err = f.mod.MuteParticipant(f.ctx, id, "lis", "spk", false)
	assert.ErrorIs(t, err, domain.ErrNotModerator)
	_, err = f.mod.MuteParticipant(f.ctx, id, "mod", "owner", true)
	assert.ErrorIs(t, err, domain.ErrOwnerProtected)

	p, err = f.mod.MuteParticipant(f.ctx, id, "owner", "spk", false)
	require.NoError(t, err)
	assert.False(t, p.IsMuted)

	muted := 0
	for _, typ := range f.events.types() {
		if typ == core.EventParticipantMuted {
			muted++
		}
	}
	assert.Equal(t, 2, muted)
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)

	assert.ErrorIs(t, f.mod.Kick(f.ctx, id, "mod", "mod"), domain.ErrValidation)
	assert.ErrorIs(t, f.mod.Kick(f.ctx, id, "spk", "lis"), domain.ErrNotModerator)
	assert.ErrorIs(t, f.mod.Kick(f.ctx, id, "mod", "owner"), domain.ErrOwnerProtected)
	assert.ErrorIs(t, f.mod.Kick(f.ctx, id, "owner", "ghost"), domain.ErrParticipantNotFound)

	require.NoError(t, f.mod.Kick(f.ctx, id, "mod", "spk"))
	occupied, _, err := f.seats.Occupancy(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, occupied, "kicked speaker's seat is freed")

	require.NoError(t, f.mod.Kick(f.ctx, id, "owner", "mod"))
	n, err := f.join.Count(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Kicked users can come back.
	_, err = f.join.Join(f.ctx, id, "spk", "")
	assert.NoError(t, err)
}

func TestKick_ModeratorCannotKickModerator(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)
	_, err := f.mod.PromoteToModerator(f.ctx, id, "owner", "lis")
	require.NoError(t, err)

	assert.ErrorIs(t, f.mod.Kick(f.ctx, id, "mod", "lis"), domain.ErrNotOwner)
}

func TestModeration_RollbackOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	id := staffedRoom(t, f, 4)
	f.parts.failFor("lis")

	_, err := f.mod.InviteSpeaker(f.ctx, id, "owner", "lis")
	require.ErrorIs(t, err, core.ErrPersistence)

	lis := f.participant(t, id, "lis")
	assert.Equal(t, domain.RoleListener, lis.Role)
	assert.False(t, lis.HasSeat())

	view, err := f.seats.Seats(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(""), view.Seats[3], "reserved seat is given back")
}
