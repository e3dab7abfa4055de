package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkeye/voicerooms/internal/domain"
)

type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

const roomColumns = `id, owner_id, title, description, visibility, password_hash, max_participants,
	speaker_seat_count, allow_seat_requests, status, tags, cover_url, created_at, updated_at`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var r domain.Room
	err := row.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Description, &r.Visibility, &r.PasswordHash,
		&r.MaxParticipants, &r.SpeakerSeatCount, &r.AllowSeatRequests, &r.Status, &r.Tags, &r.CoverURL,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		room.ID, room.OwnerID, room.Title, room.Description, room.Visibility, room.PasswordHash,
		room.MaxParticipants, room.SpeakerSeatCount, room.AllowSeatRequests, room.Status, tags(room.Tags),
		room.CoverURL, room.CreatedAt, room.UpdatedAt)
	return err
}

func (r *RoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	return room, err
}

// Update writes the mutable columns. Identity, owner, visibility and sizes
// never change after creation.
func (r *RoomRepository) Update(ctx context.Context, room *domain.Room) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rooms
		SET title = $2, description = $3, allow_seat_requests = $4, status = $5, tags = $6, cover_url = $7, updated_at = $8
		WHERE id = $1`,
		room.ID, room.Title, room.Description, room.AllowSeatRequests, room.Status, tags(room.Tags), room.CoverURL, room.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

const publicRooms = `visibility = 'PUBLIC' AND status = 'ACTIVE'`

func (r *RoomRepository) ListPublic(ctx context.Context, offset, limit int) ([]domain.Room, int, error) {
	return r.list(ctx, publicRooms, nil, offset, limit)
}

func (r *RoomRepository) SearchPublic(ctx context.Context, query string, offset, limit int) ([]domain.Room, int, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.list(ctx, publicRooms+` AND (title ILIKE $1 OR description ILIKE $1)`, []any{pattern}, offset, limit)
}

func (r *RoomRepository) list(ctx context.Context, where string, args []any, offset, limit int) ([]domain.Room, int, error) {
	var (
		rooms []domain.Room
		total int
	)
	err := snapshot(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM rooms WHERE `+where, args...).Scan(&total); err != nil {
			return err
		}
		n := len(args)
		rows, err := tx.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE `+where+
			` ORDER BY created_at DESC, id DESC OFFSET $`+strconv.Itoa(n+1)+` LIMIT $`+strconv.Itoa(n+2),
			append(args, offset, limit)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			room, err := scanRoom(rows)
			if err != nil {
				return err
			}
			rooms = append(rooms, *room)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return rooms, total, nil
}

func tags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
