package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkeye/voicerooms/internal/domain"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, sender_id, content, message_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.RoomID, m.SenderID, m.Content, m.Type, m.CreatedAt)
	return err
}

func (r *MessageRepository) Page(ctx context.Context, roomID domain.RoomID, offset, limit int) ([]domain.Message, int, error) {
	var (
		msgs  []domain.Message
		total int
	)
	err := snapshot(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM messages WHERE room_id = $1`, roomID).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			SELECT id, room_id, sender_id, content, message_type, created_at
			FROM messages WHERE room_id = $1
			ORDER BY created_at, id OFFSET $2 LIMIT $3`, roomID, offset, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m domain.Message
			if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Type, &m.CreatedAt); err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}
