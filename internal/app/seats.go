package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// SeatAllocator owns each room's fixed speaker-seat table and the coupling
// between roles and seats. Participant.SeatIndex is only ever written here.
type SeatAllocator struct {
	reg *Registry
	emitter
}

func NewSeatAllocator(reg *Registry, events core.EventPublisher) *SeatAllocator {
	return &SeatAllocator{reg: reg, emitter: newEmitter(events)}
}

// ReserveSeat gives a member the lowest free seat and the requested seated role.
// A member who already holds a seat keeps it.
func (a *SeatAllocator) ReserveSeat(ctx context.Context, roomID domain.RoomID, userID domain.UserID, role domain.Role) (int, error) {
	if role != domain.RoleModerator && role != domain.RoleSpeaker {
		return -1, domain.Invalid("seats can only be reserved for MODERATOR or SPEAKER")
	}
	var (
		idx int
		out domain.Participant
	)
	err := a.reg.with(ctx, roomID, func(st *roomState) error {
		p, ok := st.participant(userID)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if p.Role == role {
			if seat, ok := p.Seat(); ok {
				idx = seat
				out = p.Clone()
				return nil
			}
		}
		if err := p.Role.Transition(role); err != nil {
			return err
		}
		cp := st.checkpoint()
		var err error
		if idx, err = a.assign(st, p, role); err != nil {
			return err
		}
		if err := a.reg.commit(ctx, st, cp, userID); err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	if err != nil {
		return -1, err
	}
	a.emit(ctx, participantEvent(core.EventRoleChanged, out, ""))
	return idx, nil
}

// ReleaseSeat frees the member's seat and returns them to LISTENER.
// Releasing a seat that is not held, or in a room that is gone, is a no-op.
func (a *SeatAllocator) ReleaseSeat(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	var (
		out     domain.Participant
		changed bool
	)
	err := a.reg.with(ctx, roomID, func(st *roomState) error {
		p, ok := st.participant(userID)
		if !ok || !p.HasSeat() {
			return nil
		}
		if p.Role == domain.RoleOwner {
			return domain.ErrOwnerProtected
		}
		cp := st.checkpoint()
		a.release(st, p)
		if err := a.reg.commit(ctx, st, cp, userID); err != nil {
			return err
		}
		out, changed = p.Clone(), true
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		a.emit(ctx, participantEvent(core.EventRoleChanged, out, ""))
	}
	return nil
}

// SeatOf returns the member's seat index, if any.
func (a *SeatAllocator) SeatOf(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (int, bool, error) {
	var (
		idx int
		ok  bool
	)
	err := a.reg.with(ctx, roomID, func(st *roomState) error {
		if p, found := st.participant(userID); found {
			idx, ok = p.Seat()
		}
		return nil
	})
	return idx, ok, err
}

// Occupancy returns (occupied seats, total seats).
func (a *SeatAllocator) Occupancy(ctx context.Context, roomID domain.RoomID) (int, int, error) {
	var occupied, total int
	err := a.reg.with(ctx, roomID, func(st *roomState) error {
		occupied, total = st.occupancy()
		return nil
	})
	return occupied, total, err
}

// Seats returns the seat assignment table.
func (a *SeatAllocator) Seats(ctx context.Context, roomID domain.RoomID) (domain.SeatView, error) {
	var view domain.SeatView
	err := a.reg.with(ctx, roomID, func(st *roomState) error {
		view = st.seatView()
		return nil
	})
	return view, err
}

// assign moves p to a seated role, reserving the lowest free seat unless p
// already holds one. Caller holds st.mu.
func (a *SeatAllocator) assign(st *roomState, p *domain.Participant, role domain.Role) (int, error) {
	if idx, ok := p.Seat(); ok {
		p.Role = role
		return idx, nil
	}
	idx, ok := st.lowestFreeSeat(0)
	if !ok {
		log.Debug().Str("module", "app.seats").Str("room", string(st.id)).Str("user", string(p.UserID)).Msg("no free seat")
		return -1, domain.ErrNoFreeSeat
	}
	st.takeSeat(p, idx)
	p.Role = role
	return idx, nil
}

// release frees p's seat and makes p a LISTENER. Caller holds st.mu.
func (a *SeatAllocator) release(st *roomState, p *domain.Participant) {
	st.freeSeatOf(p)
	if p.Role != domain.RoleOwner {
		p.Role = domain.RoleListener
	}
}

// seatOwner binds the owner to seat 0. Whoever sits there moves to the lowest
// other free seat, or back to LISTENER when the table is full. It returns the
// members whose records changed, the displaced one first so that seat 0 is
// vacated in storage before the owner takes it. Caller holds st.mu.
func (a *SeatAllocator) seatOwner(st *roomState, owner *domain.Participant) []domain.UserID {
	var changed []domain.UserID
	if holder := st.seats[0]; holder != "" && holder != owner.UserID {
		displaced, _ := st.participant(holder)
		st.freeSeatOf(displaced)
		if idx, ok := st.lowestFreeSeat(1); ok {
			st.takeSeat(displaced, idx)
		} else {
			displaced.Role = domain.RoleListener
		}
		changed = append(changed, holder)
		log.Info().Str("module", "app.seats").Str("room", string(st.id)).Str("user", string(holder)).Msg("seat 0 handed back to owner")
	}
	st.freeSeatOf(owner)
	st.takeSeat(owner, 0)
	return append(changed, owner.UserID)
}

func newEmitter(pub core.EventPublisher) emitter {
	return emitter{pub: pub, now: time.Now}
}
