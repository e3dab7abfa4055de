package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// MembershipCoordinator is admission control for rooms: password and capacity
// checks on join, seat release on leave.
type MembershipCoordinator struct {
	reg     *Registry
	seats   *SeatAllocator
	hasher  core.PasswordHasher
	limiter core.AttemptLimiter
	emitter
}

func NewMembershipCoordinator(reg *Registry, seats *SeatAllocator, hasher core.PasswordHasher, limiter core.AttemptLimiter, events core.EventPublisher) *MembershipCoordinator {
	if hasher == nil {
		panic("app.NewMembershipCoordinator: hasher cannot be nil")
	}
	return &MembershipCoordinator{
		reg:     reg,
		seats:   seats,
		hasher:  hasher,
		limiter: limiter,
		emitter: newEmitter(events),
	}
}

// Join admits userID into the room. An existing member gets their record back
// unchanged. The owner always gets in, as OWNER on seat 0.
func (m *MembershipCoordinator) Join(ctx context.Context, roomID domain.RoomID, userID domain.UserID, password string) (domain.Participant, error) {
	room, err := m.reg.roomRepo.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Participant{}, domain.ErrRoomNotFound
		}
		return domain.Participant{}, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	if !room.IsActive() {
		return domain.Participant{}, domain.ErrRoomNotFound
	}

	if p, ok, err := m.member(ctx, roomID, userID); err != nil || ok {
		return p, err
	}

	// Hash verification runs outside the room boundary.
	if room.IsPrivate() && userID != room.OwnerID {
		if err := m.checkPassword(ctx, room, userID, password); err != nil {
			return domain.Participant{}, err
		}
	}

	var (
		out    domain.Participant
		joined bool
	)
	err = m.reg.with(ctx, roomID, func(st *roomState) error {
		if p, ok := st.participant(userID); ok {
			out = p.Clone()
			return nil
		}
		cp := st.checkpoint()
		changed := []domain.UserID{userID}
		var p *domain.Participant
		if userID == st.room.OwnerID {
			p = domain.NewParticipant(roomID, userID, domain.RoleOwner, m.now())
			st.add(p)
			changed = m.seats.seatOwner(st, p)
		} else {
			if !st.hasRoomFor() {
				log.Debug().Str("module", "app.membership").Str("room", string(roomID)).Str("user", string(userID)).Msg("room full")
				return domain.ErrRoomFull
			}
			p = domain.NewParticipant(roomID, userID, domain.RoleListener, m.now())
			st.add(p)
		}
		if err := m.reg.commit(ctx, st, cp, changed...); err != nil {
			return err
		}
		out, joined = p.Clone(), true
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if joined {
		log.Info().Str("module", "app.membership").Str("room", string(roomID)).Str("user", string(userID)).Str("role", string(out.Role)).Msg("participant joined")
		m.emit(ctx, participantEvent(core.EventParticipantJoined, out, ""))
	}
	return out, nil
}

// member looks up an existing membership without admitting anyone.
func (m *MembershipCoordinator) member(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Participant, bool, error) {
	var (
		out domain.Participant
		ok  bool
	)
	err := m.reg.with(ctx, roomID, func(st *roomState) error {
		var p *domain.Participant
		if p, ok = st.participant(userID); ok {
			out = p.Clone()
		}
		return nil
	})
	return out, ok, err
}

func (m *MembershipCoordinator) checkPassword(ctx context.Context, room *domain.Room, userID domain.UserID, password string) error {
	if m.limiter != nil {
		locked, err := m.limiter.Locked(ctx, room.ID, userID)
		if err != nil {
			log.Error().Err(err).Str("module", "app.membership").Str("room", string(room.ID)).Msg("attempt limiter unavailable")
		} else if locked {
			return domain.ErrPasswordLocked
		}
	}
	if !m.hasher.Verify(room.PasswordHash, password) {
		if m.limiter != nil {
			n, err := m.limiter.Fail(ctx, room.ID, userID)
			if err != nil {
				log.Error().Err(err).Str("module", "app.membership").Str("room", string(room.ID)).Msg("record failed attempt")
			} else {
				log.Info().Str("module", "app.membership").Str("room", string(room.ID)).Str("user", string(userID)).Int("attempts", n).Msg("wrong room password")
			}
		}
		return domain.ErrInvalidPassword
	}
	if m.limiter != nil {
		if err := m.limiter.Reset(ctx, room.ID, userID); err != nil {
			log.Error().Err(err).Str("module", "app.membership").Str("room", string(room.ID)).Msg("reset attempts")
		}
	}
	return nil
}

// Leave removes the member and frees their seat. Leaving twice, or leaving a
// room that is gone, is not an error.
func (m *MembershipCoordinator) Leave(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	out, left, err := m.remove(ctx, roomID, userID, func(*roomState, *domain.Participant) error { return nil })
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	if err != nil || !left {
		return err
	}
	log.Info().Str("module", "app.membership").Str("room", string(roomID)).Str("user", string(userID)).Msg("participant left")
	m.emit(ctx, participantEvent(core.EventParticipantLeft, out, ""))
	return nil
}

// remove drops userID from the room after check approves. A missing member is
// reported as left=false with no error.
func (m *MembershipCoordinator) remove(ctx context.Context, roomID domain.RoomID, userID domain.UserID, check func(*roomState, *domain.Participant) error) (domain.Participant, bool, error) {
	var (
		out  domain.Participant
		left bool
	)
	err := m.reg.with(ctx, roomID, func(st *roomState) error {
		p, ok := st.participant(userID)
		if !ok {
			return nil
		}
		if err := check(st, p); err != nil {
			return err
		}
		cp := st.checkpoint()
		out = p.Clone()
		st.remove(userID)
		if err := m.reg.commit(ctx, st, cp, userID); err != nil {
			return err
		}
		left = true
		return nil
	})
	return out, left, err
}

// ListParticipants returns seated members by seat index and listeners by join
// time, from one consistent snapshot.
func (m *MembershipCoordinator) ListParticipants(ctx context.Context, roomID domain.RoomID) (domain.Roster, error) {
	var roster domain.Roster
	err := m.reg.with(ctx, roomID, func(st *roomState) error {
		roster = st.roster()
		return nil
	})
	return roster, err
}

// AsMember runs fn inside the room boundary if userID is a current member.
// Anything fn sets up is in place before a later leave or kick commits.
func (m *MembershipCoordinator) AsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID, fn func()) error {
	return m.reg.with(ctx, roomID, func(st *roomState) error {
		if _, ok := st.participant(userID); !ok {
			return domain.ErrNotParticipant
		}
		fn()
		return nil
	})
}

// Count reports the current number of members.
func (m *MembershipCoordinator) Count(ctx context.Context, roomID domain.RoomID) (int, error) {
	var n int
	err := m.reg.with(ctx, roomID, func(st *roomState) error {
		n = st.count()
		return nil
	})
	return n, err
}
