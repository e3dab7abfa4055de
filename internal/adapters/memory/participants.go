package memory

import (
	"context"
	"sync"

	"github.com/dkeye/voicerooms/internal/domain"
)

type ParticipantRepository struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID]domain.Participant
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{rooms: make(map[domain.RoomID]map[domain.UserID]domain.Participant)}
}

func (r *ParticipantRepository) Save(_ context.Context, p *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[p.RoomID]
	if !ok {
		members = make(map[domain.UserID]domain.Participant)
		r.rooms[p.RoomID] = members
	}
	members[p.UserID] = p.Clone()
	return nil
}

func (r *ParticipantRepository) Delete(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	return nil
}

func (r *ParticipantRepository) DeleteRoom(_ context.Context, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
	return nil
}

func (r *ParticipantRepository) ListByRoom(_ context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]domain.Participant, 0, len(members))
	for _, p := range members {
		out = append(out, p.Clone())
	}
	return out, nil
}
