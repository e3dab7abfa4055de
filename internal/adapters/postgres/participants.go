package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkeye/voicerooms/internal/domain"
)

type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

func (r *ParticipantRepository) Save(ctx context.Context, p *domain.Participant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO participants (room_id, user_id, role, seat_index, is_muted, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET role = EXCLUDED.role,
		              seat_index = EXCLUDED.seat_index,
		              is_muted = EXCLUDED.is_muted`,
		p.RoomID, p.UserID, p.Role, p.SeatIndex, p.IsMuted, p.JoinedAt)
	return err
}

func (r *ParticipantRepository) Delete(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	return err
}

func (r *ParticipantRepository) DeleteRoom(ctx context.Context, roomID domain.RoomID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE room_id = $1`, roomID)
	return err
}

func (r *ParticipantRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT room_id, user_id, role, seat_index, is_muted, joined_at
		FROM participants WHERE room_id = $1 ORDER BY joined_at, user_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Role, &p.SeatIndex, &p.IsMuted, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
