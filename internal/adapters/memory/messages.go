package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/voicerooms/internal/domain"
)

// MessageRepository keeps each room's log sorted by (CreatedAt, ID).
type MessageRepository struct {
	mu   sync.RWMutex
	logs map[domain.RoomID][]domain.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{logs: make(map[domain.RoomID][]domain.Message)}
}

func (r *MessageRepository) Append(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[m.RoomID]
	i, _ := slices.BinarySearchFunc(log, *m, func(a, b domain.Message) int {
		switch {
		case a.Before(&b):
			return -1
		case b.Before(&a):
			return 1
		}
		return 0
	})
	r.logs[m.RoomID] = slices.Insert(log, i, *m)
	return nil
}

func (r *MessageRepository) Page(_ context.Context, roomID domain.RoomID, offset, limit int) ([]domain.Message, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log := r.logs[roomID]
	return window(log, offset, limit), len(log), nil
}
