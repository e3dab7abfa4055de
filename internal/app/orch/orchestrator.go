// Package orch is the single entry point into the room core. Transports call
// the Orchestrator; it delegates to the room components and records outcomes.
package orch

import (
	"time"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/core"
)

// Metrics records the outcome and latency of every facade operation.
type Metrics interface {
	Observe(op string, took time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) Observe(string, time.Duration, error) {}

// Deps are the collaborators the room core consumes.
type Deps struct {
	Rooms    core.RoomRepository
	Members  core.ParticipantRepository
	Messages core.MessageRepository

	Hasher  core.PasswordHasher
	Limiter core.AttemptLimiter
	Covers  core.CoverStorage
	Typing  core.TypingTracker

	// Sinks receive every committed event next to the in-process hub.
	Sinks []core.EventPublisher

	MaxActiveRooms int
	HubBuffer      int
	Metrics        Metrics
}

type Orchestrator struct {
	Registry   *app.Registry
	Hub        *app.EventHub
	Rooms      *app.RoomStore
	Seats      *app.SeatAllocator
	Members    *app.MembershipCoordinator
	Moderation *app.ModerationController
	Messages   *app.MessageLog
	Typing     *app.Typing
	Metrics    Metrics
}

func New(d Deps) *Orchestrator {
	reg := app.NewRegistry(d.Rooms, d.Members, d.MaxActiveRooms)
	hub := app.NewEventHub(app.SimplePolicy{}, d.HubBuffer)
	events := append(app.Fanout{hub}, d.Sinks...)

	seats := app.NewSeatAllocator(reg, events)
	members := app.NewMembershipCoordinator(reg, seats, d.Hasher, d.Limiter, events)
	o := &Orchestrator{
		Registry:   reg,
		Hub:        hub,
		Rooms:      app.NewRoomStore(reg, d.Hasher, d.Covers, events),
		Seats:      seats,
		Members:    members,
		Moderation: app.NewModerationController(reg, seats, members, events),
		Messages:   app.NewMessageLog(reg, d.Messages, events),
		Typing:     app.NewTyping(reg, d.Typing, events),
		Metrics:    d.Metrics,
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return o
}
