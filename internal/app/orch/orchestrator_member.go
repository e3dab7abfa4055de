package orch

import (
	"context"
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

func (o *Orchestrator) JoinRoom(ctx context.Context, id domain.RoomID, userID domain.UserID, password string) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Members.Join(ctx, id, userID, password)
	o.Metrics.Observe("join_room", time.Since(start), err)
	return p, err
}

// LeaveRoom never fails for a non-member or a closed room.
func (o *Orchestrator) LeaveRoom(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	start := time.Now()
	err := o.Members.Leave(ctx, id, userID)
	o.Metrics.Observe("leave_room", time.Since(start), err)
	return err
}

func (o *Orchestrator) ListParticipants(ctx context.Context, id domain.RoomID) (domain.Roster, error) {
	start := time.Now()
	r, err := o.Members.ListParticipants(ctx, id)
	o.Metrics.Observe("list_participants", time.Since(start), err)
	return r, err
}

func (o *Orchestrator) PromoteToModerator(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.PromoteToModerator(ctx, id, actorID, targetID)
	o.Metrics.Observe("promote_moderator", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) DemoteModerator(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.DemoteModerator(ctx, id, actorID, targetID)
	o.Metrics.Observe("demote_moderator", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) RequestSpeakerSeat(ctx context.Context, id domain.RoomID, userID domain.UserID) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.RequestSpeakerSeat(ctx, id, userID)
	o.Metrics.Observe("request_speaker_seat", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) InviteSpeaker(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.InviteSpeaker(ctx, id, actorID, targetID)
	o.Metrics.Observe("invite_speaker", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) DemoteSpeaker(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.DemoteSpeaker(ctx, id, actorID, targetID)
	o.Metrics.Observe("demote_speaker", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) LeaveSeat(ctx context.Context, id domain.RoomID, userID domain.UserID) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.LeaveSeat(ctx, id, userID)
	o.Metrics.Observe("leave_seat", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) MuteParticipant(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID, muted bool) (domain.Participant, error) {
	start := time.Now()
	p, err := o.Moderation.MuteParticipant(ctx, id, actorID, targetID, muted)
	o.Metrics.Observe("mute_participant", time.Since(start), err)
	return p, err
}

func (o *Orchestrator) KickParticipant(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID) error {
	start := time.Now()
	err := o.Moderation.Kick(ctx, id, actorID, targetID)
	o.Metrics.Observe("kick_participant", time.Since(start), err)
	return err
}
