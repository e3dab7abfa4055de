package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/domain"
)

// CreateRoom stores the room and seats its owner on seat 0. If the owner
// cannot be admitted the room is closed again.
func (o *Orchestrator) CreateRoom(ctx context.Context, in domain.CreateRoomInput) (*domain.Room, error) {
	start := time.Now()
	room, err := o.Rooms.Create(ctx, in)
	if err != nil {
		o.Metrics.Observe("create_room", time.Since(start), err)
		return nil, err
	}
	if _, err := o.Members.Join(ctx, room.ID, room.OwnerID, ""); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(room.ID)).Msg("owner join after create")
		if cerr := o.Rooms.Close(ctx, room.ID, room.OwnerID); cerr != nil {
			log.Error().Err(cerr).Str("module", "app.orch").Str("room", string(room.ID)).Msg("close half-created room")
		}
		o.Metrics.Observe("create_room", time.Since(start), err)
		return nil, err
	}
	o.Metrics.Observe("create_room", time.Since(start), nil)
	return room, nil
}

func (o *Orchestrator) ListPublicRooms(ctx context.Context, req domain.PageRequest) (domain.RoomPage, error) {
	start := time.Now()
	page, err := o.Rooms.ListPublic(ctx, req)
	o.Metrics.Observe("list_public_rooms", time.Since(start), err)
	return page, err
}

func (o *Orchestrator) SearchRooms(ctx context.Context, query string, req domain.PageRequest) (domain.RoomPage, error) {
	start := time.Now()
	page, err := o.Rooms.Search(ctx, query, req)
	o.Metrics.Observe("search_rooms", time.Since(start), err)
	return page, err
}

func (o *Orchestrator) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	start := time.Now()
	room, err := o.Rooms.Get(ctx, id)
	o.Metrics.Observe("get_room", time.Since(start), err)
	return room, err
}

func (o *Orchestrator) UpdateRoom(ctx context.Context, id domain.RoomID, actorID domain.UserID, patch domain.RoomPatch) (*domain.Room, error) {
	start := time.Now()
	room, err := o.Rooms.Update(ctx, id, actorID, patch)
	o.Metrics.Observe("update_room", time.Since(start), err)
	return room, err
}

func (o *Orchestrator) CloseRoom(ctx context.Context, id domain.RoomID, actorID domain.UserID) error {
	start := time.Now()
	err := o.Rooms.Close(ctx, id, actorID)
	o.Metrics.Observe("close_room", time.Since(start), err)
	return err
}

// SeatTable returns the seat assignment view of an active room.
func (o *Orchestrator) SeatTable(ctx context.Context, id domain.RoomID) (domain.SeatView, error) {
	start := time.Now()
	view, err := o.Seats.Seats(ctx, id)
	o.Metrics.Observe("seat_table", time.Since(start), err)
	return view, err
}
