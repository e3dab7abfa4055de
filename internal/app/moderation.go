package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// ModerationController runs permission-gated role changes inside a room.
type ModerationController struct {
	reg     *Registry
	seats   *SeatAllocator
	members *MembershipCoordinator
	emitter
}

func NewModerationController(reg *Registry, seats *SeatAllocator, members *MembershipCoordinator, events core.EventPublisher) *ModerationController {
	return &ModerationController{reg: reg, seats: seats, members: members, emitter: newEmitter(events)}
}

// actorRole resolves the acting member's role. Non-members are forbidden.
func actorRole(st *roomState, actorID domain.UserID) (domain.Role, error) {
	p, ok := st.participant(actorID)
	if !ok {
		return "", domain.ErrNotParticipant
	}
	return p.Role, nil
}

func target(st *roomState, userID domain.UserID) (*domain.Participant, error) {
	p, ok := st.participant(userID)
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return p, nil
}

// change runs fn on the target under the room boundary and commits it. fn
// reports whether it changed anything; unchanged targets are returned as is.
func (c *ModerationController) change(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID, typ core.EventType,
	fn func(st *roomState, actor domain.Role, p *domain.Participant) (bool, error)) (domain.Participant, error) {
	var (
		out     domain.Participant
		changed bool
	)
	err := c.reg.with(ctx, roomID, func(st *roomState) error {
		role, err := actorRole(st, actorID)
		if err != nil {
			return err
		}
		p, err := target(st, targetID)
		if err != nil {
			return err
		}
		cp := st.checkpoint()
		if changed, err = fn(st, role, p); err != nil {
			st.restore(cp)
			return err
		}
		if changed {
			if err := c.reg.commit(ctx, st, cp, targetID); err != nil {
				changed = false
				return err
			}
		}
		out = p.Clone()
		return nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if changed {
		log.Info().Str("module", "app.moderation").Str("room", string(roomID)).Str("actor", string(actorID)).Str("user", string(targetID)).
			Str("event", string(typ)).Str("role", string(out.Role)).Msg("participant updated")
		c.emit(ctx, participantEvent(typ, out, actorID))
	}
	return out, nil
}

// PromoteToModerator seats the target as MODERATOR. Only the owner may do it,
// and it never bumps anyone when the seat table is full.
func (c *ModerationController) PromoteToModerator(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	return c.change(ctx, roomID, actorID, targetID, core.EventRoleChanged, func(st *roomState, actor domain.Role, p *domain.Participant) (bool, error) {
		if actor != domain.RoleOwner {
			return false, domain.ErrNotOwner
		}
		switch p.Role {
		case domain.RoleOwner:
			return false, domain.ErrOwnerProtected
		case domain.RoleModerator:
			return false, domain.ErrAlreadyModerator
		}
		if err := p.Role.Transition(domain.RoleModerator); err != nil {
			return false, err
		}
		_, err := c.seats.assign(st, p, domain.RoleModerator)
		return err == nil, err
	})
}

// DemoteModerator returns a moderator to LISTENER and frees their seat.
func (c *ModerationController) DemoteModerator(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	return c.change(ctx, roomID, actorID, targetID, core.EventRoleChanged, func(st *roomState, actor domain.Role, p *domain.Participant) (bool, error) {
		if actor != domain.RoleOwner {
			return false, domain.ErrNotOwner
		}
		return c.demote(st, p)
	})
}

// RequestSpeakerSeat is the self-service LISTENER to SPEAKER move. Members who
// already hold a seat get their record back unchanged.
func (c *ModerationController) RequestSpeakerSeat(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Participant, error) {
	return c.change(ctx, roomID, userID, userID, core.EventRoleChanged, func(st *roomState, _ domain.Role, p *domain.Participant) (bool, error) {
		if p.HasSeat() {
			return false, nil
		}
		if !st.room.AllowSeatRequests {
			return false, domain.ErrSeatRequestsDisabled
		}
		return c.seat(st, p)
	})
}

// InviteSpeaker lets the owner or a moderator seat a listener as SPEAKER. It is
// not subject to the room's seat request policy.
func (c *ModerationController) InviteSpeaker(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	return c.change(ctx, roomID, actorID, targetID, core.EventRoleChanged, func(st *roomState, actor domain.Role, p *domain.Participant) (bool, error) {
		if !actor.CanModerate() {
			return false, domain.ErrNotModerator
		}
		if p.HasSeat() {
			return false, nil
		}
		return c.seat(st, p)
	})
}

// DemoteSpeaker sends a seated member back to LISTENER. Moderators cannot be
// demoted by other moderators.
func (c *ModerationController) DemoteSpeaker(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	return c.change(ctx, roomID, actorID, targetID, core.EventRoleChanged, func(st *roomState, actor domain.Role, p *domain.Participant) (bool, error) {
		if !actor.CanModerate() {
			return false, domain.ErrNotModerator
		}
		if p.Role == domain.RoleModerator && actor != domain.RoleOwner {
			return false, domain.ErrNotOwner
		}
		return c.demote(st, p)
	})
}

// LeaveSeat lets a speaker or moderator step down to LISTENER.
func (c *ModerationController) LeaveSeat(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Participant, error) {
	return c.change(ctx, roomID, userID, userID, core.EventRoleChanged, func(st *roomState, _ domain.Role, p *domain.Participant) (bool, error) {
		return c.demote(st, p)
	})
}

// MuteParticipant sets the target's mute flag. The owner cannot be muted.
func (c *ModerationController) MuteParticipant(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID, muted bool) (domain.Participant, error) {
	return c.change(ctx, roomID, actorID, targetID, core.EventParticipantMuted, func(_ *roomState, actor domain.Role, p *domain.Participant) (bool, error) {
		if !actor.CanModerate() {
			return false, domain.ErrNotModerator
		}
		if p.Role == domain.RoleOwner {
			return false, domain.ErrOwnerProtected
		}
		if p.IsMuted == muted {
			return false, nil
		}
		p.IsMuted = muted
		return true, nil
	})
}

// Kick removes the target from the room. The owner may remove anyone else,
// moderators only speakers and listeners.
func (c *ModerationController) Kick(ctx context.Context, roomID domain.RoomID, actorID, targetID domain.UserID) error {
	if actorID == targetID {
		return domain.Invalid("use leave to remove yourself")
	}
	out, left, err := c.members.remove(ctx, roomID, targetID, func(st *roomState, p *domain.Participant) error {
		actor, err := actorRole(st, actorID)
		if err != nil {
			return err
		}
		switch {
		case !actor.CanModerate():
			return domain.ErrNotModerator
		case p.Role == domain.RoleOwner:
			return domain.ErrOwnerProtected
		case p.Role == domain.RoleModerator && actor != domain.RoleOwner:
			return domain.ErrNotOwner
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !left {
		return domain.ErrParticipantNotFound
	}
	log.Info().Str("module", "app.moderation").Str("room", string(roomID)).Str("actor", string(actorID)).Str("user", string(targetID)).Msg("participant kicked")
	c.emit(ctx, participantEvent(core.EventParticipantLeft, out, actorID))
	return nil
}

// seat moves a listener to SPEAKER on the lowest free seat.
func (c *ModerationController) seat(st *roomState, p *domain.Participant) (bool, error) {
	if err := p.Role.Transition(domain.RoleSpeaker); err != nil {
		return false, err
	}
	if _, err := c.seats.assign(st, p, domain.RoleSpeaker); err != nil {
		return false, err
	}
	return true, nil
}

// demote frees the seat of a speaker or moderator. Listeners are left alone.
func (c *ModerationController) demote(st *roomState, p *domain.Participant) (bool, error) {
	switch p.Role {
	case domain.RoleOwner:
		return false, domain.ErrOwnerProtected
	case domain.RoleListener:
		return false, nil
	}
	if err := p.Role.Transition(domain.RoleListener); err != nil {
		return false, err
	}
	c.seats.release(st, p)
	return true, nil
}
