package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Registry keeps the live state of active rooms, one serialization boundary
// per room id. It is bounded: idle states are evicted to make space, and when
// none can be evicted new activations fail with domain.ErrTooManyRooms.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomID]*roomState
	maxActive int

	roomRepo   core.RoomRepository
	memberRepo core.ParticipantRepository
}

func NewRegistry(rooms core.RoomRepository, members core.ParticipantRepository, maxActive int) *Registry {
	if rooms == nil || members == nil {
		panic("app.NewRegistry: repositories cannot be nil")
	}
	if maxActive <= 0 {
		maxActive = 10000
	}
	return &Registry{
		rooms:      make(map[domain.RoomID]*roomState),
		maxActive:  maxActive,
		roomRepo:   rooms,
		memberRepo: members,
	}
}

// ActiveRooms reports how many room states are resident.
func (r *Registry) ActiveRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// acquire returns the state for id, creating it if needed, and pins it
// against eviction until release is called.
func (r *Registry) acquire(id domain.RoomID) (*roomState, error) {
	r.mu.RLock()
	st, ok := r.rooms[id]
	if ok {
		st.refs.Add(1)
	}
	r.mu.RUnlock()
	if ok {
		return st, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.rooms[id]; ok {
		st.refs.Add(1)
		return st, nil
	}
	if len(r.rooms) >= r.maxActive && !r.evictIdleLocked() {
		log.Warn().Str("module", "app.registry").Int("active", len(r.rooms)).Msg("room registry full")
		return nil, domain.ErrTooManyRooms
	}
	st = newRoomState(id)
	st.refs.Add(1)
	r.rooms[id] = st
	return st, nil
}

func (r *Registry) release(st *roomState) {
	st.refs.Add(-1)
}

// evictIdleLocked drops one state nobody holds and nobody is a member of.
// Caller holds r.mu for writing, so refs cannot grow while we look.
func (r *Registry) evictIdleLocked() bool {
	for id, st := range r.rooms {
		if st.refs.Load() != 0 || !st.mu.TryLock() {
			continue
		}
		idle := st.count() == 0
		st.mu.Unlock()
		if idle {
			delete(r.rooms, id)
			log.Debug().Str("module", "app.registry").Str("room", string(id)).Msg("evicted idle room state")
			return true
		}
	}
	return false
}

// drop forgets a room state, used after the room is closed. Holders of the
// old state see it as inactive.
func (r *Registry) drop(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, id)
}

// lock takes the room boundary, loading persisted state on first use.
// It fails with ErrRoomNotFound for unknown or inactive rooms. On success the
// caller must unlock st.mu.
func (r *Registry) lock(ctx context.Context, st *roomState) error {
	st.mu.Lock()
	if err := ctx.Err(); err != nil {
		st.mu.Unlock()
		return err
	}
	if !st.loaded {
		if err := r.loadLocked(ctx, st); err != nil {
			st.mu.Unlock()
			return err
		}
	}
	if !st.room.IsActive() {
		st.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *Registry) loadLocked(ctx context.Context, st *roomState) error {
	room, err := r.roomRepo.Get(ctx, st.id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrRoomNotFound
		}
		return fmt.Errorf("%w: load room: %v", core.ErrPersistence, err)
	}
	if !room.IsActive() {
		return domain.ErrRoomNotFound
	}
	members, err := r.memberRepo.ListByRoom(ctx, st.id)
	if err != nil {
		return fmt.Errorf("%w: load participants: %v", core.ErrPersistence, err)
	}
	for _, uid := range st.load(room, members) {
		p, _ := st.participant(uid)
		if err := r.memberRepo.Save(ctx, p); err != nil {
			log.Error().Err(err).Str("module", "app.registry").Str("room", string(st.id)).Str("user", string(uid)).Msg("persist repaired participant")
		}
	}
	log.Info().Str("module", "app.registry").Str("room", string(st.id)).Int("participants", st.count()).Msg("room state loaded")
	return nil
}

// with runs fn inside the room's serialization boundary.
func (r *Registry) with(ctx context.Context, id domain.RoomID, fn func(st *roomState) error) error {
	st, err := r.acquire(id)
	if err != nil {
		return err
	}
	defer r.release(st)
	if err := r.lock(ctx, st); err != nil {
		return err
	}
	defer st.mu.Unlock()
	return fn(st)
}

// commit persists the participants named in changed (upsert when present,
// delete when gone). If any write fails the in-memory state is restored to cp
// and the writes that already went through are compensated, so the room never
// shows a partially applied operation. Caller holds st.mu.
func (r *Registry) commit(ctx context.Context, st *roomState, cp checkpoint, changed ...domain.UserID) error {
	done := make([]domain.UserID, 0, len(changed))
	for _, uid := range changed {
		if err := r.write(ctx, st.id, uid, st.participants[uid]); err != nil {
			st.restore(cp)
			for _, prev := range done {
				var old *domain.Participant
				if p, ok := cp.participants[prev]; ok {
					old = &p
				}
				if cerr := r.write(ctx, st.id, prev, old); cerr != nil {
					log.Error().Err(cerr).Str("module", "app.registry").Str("room", string(st.id)).Str("user", string(prev)).Msg("compensate participant write")
				}
			}
			log.Error().Err(err).Str("module", "app.registry").Str("room", string(st.id)).Str("user", string(uid)).Msg("participant write failed, rolled back")
			return fmt.Errorf("%w: %v", core.ErrPersistence, err)
		}
		done = append(done, uid)
	}
	return nil
}

func (r *Registry) write(ctx context.Context, roomID domain.RoomID, uid domain.UserID, p *domain.Participant) error {
	if p == nil {
		return r.memberRepo.Delete(ctx, roomID, uid)
	}
	return r.memberRepo.Save(ctx, p)
}
