// Package memory keeps every port of the room core in process memory.
// It is the default backend and the one tests run against.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/voicerooms/internal/domain"
)

type RoomRepository struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomRepository() *RoomRepository {
	return &RoomRepository{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (r *RoomRepository) Create(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	r.rooms[room.ID] = room.Clone()
	return nil
}

func (r *RoomRepository) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (r *RoomRepository) Update(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	r.rooms[room.ID] = room.Clone()
	return nil
}

func (r *RoomRepository) ListPublic(_ context.Context, offset, limit int) ([]domain.Room, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.listLocked(func(*domain.Room) bool { return true })
	return window(all, offset, limit), len(all), nil
}

func (r *RoomRepository) SearchPublic(_ context.Context, query string, offset, limit int) ([]domain.Room, int, error) {
	q := strings.ToLower(query)
	match := func(room *domain.Room) bool {
		return strings.Contains(strings.ToLower(room.Title), q) ||
			strings.Contains(strings.ToLower(room.Description), q)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.listLocked(match)
	return window(all, offset, limit), len(all), nil
}

// listLocked returns PUBLIC, ACTIVE rooms accepted by match, newest first.
func (r *RoomRepository) listLocked(match func(*domain.Room) bool) []domain.Room {
	out := make([]domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room.IsPrivate() || !room.IsActive() || !match(room) {
			continue
		}
		out = append(out, *room.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Room) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(b.ID), string(a.ID))
	})
	return out
}

func window[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := min(offset+limit, len(all))
	return slices.Clone(all[offset:end])
}
