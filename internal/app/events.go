package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Subscription is one live listener on a room's events.
type Subscription struct {
	RoomID domain.RoomID
	UserID domain.UserID
	ch     chan core.Event
	once   sync.Once
}

// Events yields committed room events until the subscription is closed.
func (s *Subscription) Events() <-chan core.Event { return s.ch }

func (s *Subscription) close() { s.once.Do(func() { close(s.ch) }) }

// EventHub fans committed events out to in-process subscribers per room.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[domain.RoomID]map[*Subscription]struct{}
	policy Policy
	buffer int
}

func NewEventHub(policy Policy, buffer int) *EventHub {
	if policy == nil {
		policy = SimplePolicy{}
	}
	if buffer <= 0 {
		buffer = 32
	}
	return &EventHub{
		subs:   make(map[domain.RoomID]map[*Subscription]struct{}),
		policy: policy,
		buffer: buffer,
	}
}

func (h *EventHub) Subscribe(roomID domain.RoomID, userID domain.UserID) *Subscription {
	s := &Subscription{RoomID: roomID, UserID: userID, ch: make(chan core.Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[roomID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[roomID] = set
	}
	set[s] = struct{}{}
	log.Debug().Str("module", "app.events").Str("room", string(roomID)).Str("user", string(userID)).Msg("subscribed")
	return s
}

func (h *EventHub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(s)
}

func (h *EventHub) unsubscribeLocked(s *Subscription) {
	if set, ok := h.subs[s.RoomID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.RoomID)
		}
	}
	s.close()
}

// Subscribers reports the live subscriber count of a room.
func (h *EventHub) Subscribers(roomID domain.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[roomID])
}

// Publish never blocks: a full subscriber is handled by the policy.
// A room.closed event also ends every subscription of that room, and a
// participant.left event ends the subscriptions of the member who left.
func (h *EventHub) Publish(_ context.Context, ev core.Event) error {
	var slow, ended []*Subscription
	h.mu.RLock()
	for s := range h.subs[ev.RoomID] {
		select {
		case s.ch <- ev:
		default:
			if h.policy.OnBackPressure(s) == Disconnect {
				slow = append(slow, s)
				continue
			}
		}
		if ends(ev, s) {
			ended = append(ended, s)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 && len(ended) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range slow {
		log.Warn().Str("module", "app.events").Str("room", string(s.RoomID)).Str("user", string(s.UserID)).Msg("disconnecting slow subscriber")
		h.unsubscribeLocked(s)
	}
	for _, s := range ended {
		h.unsubscribeLocked(s)
	}
	return nil
}

func ends(ev core.Event, s *Subscription) bool {
	switch ev.Type {
	case core.EventRoomClosed:
		return true
	case core.EventParticipantLeft:
		return ev.UserID == s.UserID
	}
	return false
}

// Fanout publishes to every sink and joins their errors.
type Fanout []core.EventPublisher

func (f Fanout) Publish(ctx context.Context, ev core.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// emitter stamps and publishes events after the room boundary is released.
// Delivery failures are logged, never returned: the state change is committed.
type emitter struct {
	pub core.EventPublisher
	now func() time.Time
}

func (e emitter) emit(ctx context.Context, ev core.Event) {
	if e.pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	if err := e.pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("module", "app.events").Str("room", string(ev.RoomID)).Str("type", string(ev.Type)).Msg("publish event")
	}
}

func participantEvent(typ core.EventType, p domain.Participant, actor domain.UserID) core.Event {
	return core.Event{Type: typ, RoomID: p.RoomID, UserID: p.UserID, ActorID: actor, Participant: &p}
}
