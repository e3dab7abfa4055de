package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

const maxQueryLen = 100

// RoomStore is the authoritative path for room records and their lifecycle.
// Mutations of an active room go through the room boundary so that membership
// checks and metadata updates never interleave.
type RoomStore struct {
	reg    *Registry
	hasher core.PasswordHasher
	covers core.CoverStorage
	newID  func() domain.RoomID
	emitter
}

func NewRoomStore(reg *Registry, hasher core.PasswordHasher, covers core.CoverStorage, events core.EventPublisher) *RoomStore {
	if hasher == nil {
		panic("app.NewRoomStore: hasher cannot be nil")
	}
	return &RoomStore{
		reg:     reg,
		hasher:  hasher,
		covers:  covers,
		newID:   func() domain.RoomID { return domain.RoomID(uuid.NewString()) },
		emitter: newEmitter(events),
	}
}

// Create validates the input and stores a new ACTIVE room. The password, if
// any, is kept only as a hash.
func (s *RoomStore) Create(ctx context.Context, in domain.CreateRoomInput) (*domain.Room, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	room := &domain.Room{
		ID:                s.newID(),
		OwnerID:           in.OwnerID,
		Title:             in.Title,
		Description:       in.Description,
		Visibility:        in.Visibility,
		MaxParticipants:   in.MaxParticipants,
		SpeakerSeatCount:  in.SpeakerSeatCount,
		AllowSeatRequests: true,
		Status:            domain.RoomActive,
		Tags:              in.Tags,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.AllowSeatRequests != nil {
		room.AllowSeatRequests = *in.AllowSeatRequests
	}
	if room.IsPrivate() {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		room.PasswordHash = hash
	}
	if err := s.reg.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("%w: create room: %v", core.ErrPersistence, err)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("owner", string(room.OwnerID)).
		Str("visibility", string(room.Visibility)).Msg("room created")
	s.emit(ctx, core.Event{Type: core.EventRoomCreated, RoomID: room.ID, ActorID: room.OwnerID, Room: room.Clone()})
	return room, nil
}

// Get returns an ACTIVE room. Inactive rooms are reported as not found.
func (s *RoomStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !room.IsActive() {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// lookup returns the room in any status.
func (s *RoomStore) lookup(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room, err := s.reg.roomRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("%w: get room: %v", core.ErrPersistence, err)
	}
	return room, nil
}

// ListPublic pages through PUBLIC, ACTIVE rooms, newest first.
func (s *RoomStore) ListPublic(ctx context.Context, req domain.PageRequest) (domain.RoomPage, error) {
	req, err := req.Normalize()
	if err != nil {
		return domain.RoomPage{}, err
	}
	rooms, total, err := s.reg.roomRepo.ListPublic(ctx, req.Offset(), req.PageSize)
	if err != nil {
		return domain.RoomPage{}, fmt.Errorf("%w: list rooms: %v", core.ErrPersistence, err)
	}
	return domain.RoomPage{Rooms: nonNil(rooms), TotalCount: total, Page: req.Page, PageSize: req.PageSize}, nil
}

// Search matches query case-insensitively against title and description of
// PUBLIC, ACTIVE rooms. A blank query lists everything.
func (s *RoomStore) Search(ctx context.Context, query string, req domain.PageRequest) (domain.RoomPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListPublic(ctx, req)
	}
	if utf8.RuneCountInString(query) > maxQueryLen {
		return domain.RoomPage{}, domain.Invalid("query longer than %d characters", maxQueryLen)
	}
	req, err := req.Normalize()
	if err != nil {
		return domain.RoomPage{}, err
	}
	rooms, total, err := s.reg.roomRepo.SearchPublic(ctx, query, req.Offset(), req.PageSize)
	if err != nil {
		return domain.RoomPage{}, fmt.Errorf("%w: search rooms: %v", core.ErrPersistence, err)
	}
	return domain.RoomPage{Rooms: nonNil(rooms), TotalCount: total, Page: req.Page, PageSize: req.PageSize}, nil
}

// canEdit allows the owner, present or not, and present moderators.
func canEdit(st *roomState, actorID domain.UserID) error {
	if actorID == st.room.OwnerID {
		return nil
	}
	p, ok := st.participant(actorID)
	if !ok || p.Role != domain.RoleModerator {
		return domain.ErrNotModerator
	}
	return nil
}

// Update applies patch on behalf of actorID. A cover image is uploaded before
// the room boundary is taken, and permission is checked again afterwards.
func (s *RoomStore) Update(ctx context.Context, id domain.RoomID, actorID domain.UserID, patch domain.RoomPatch) (*domain.Room, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Cover != nil && s.covers == nil {
		return nil, domain.Invalid("cover uploads are not configured")
	}

	var coverURL string
	if patch.Cover != nil {
		if err := s.reg.with(ctx, id, func(st *roomState) error { return canEdit(st, actorID) }); err != nil {
			return nil, err
		}
		url, err := s.covers.PutCover(ctx, id, patch.Cover.ContentType, patch.Cover.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: upload cover: %v", core.ErrPersistence, err)
		}
		coverURL = url
	}

	var out *domain.Room
	err := s.reg.with(ctx, id, func(st *roomState) error {
		if err := canEdit(st, actorID); err != nil {
			return err
		}
		next := st.room.Clone()
		next.Apply(&patch, s.now())
		if coverURL != "" {
			next.CoverURL = coverURL
		}
		if err := s.reg.roomRepo.Update(ctx, next); err != nil {
			return fmt.Errorf("%w: update room: %v", core.ErrPersistence, err)
		}
		st.room = next
		out = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("actor", string(actorID)).Msg("room updated")
	s.emit(ctx, core.Event{Type: core.EventRoomUpdated, RoomID: id, ActorID: actorID, Room: out.Clone()})
	return out, nil
}

// Close marks the room INACTIVE and removes every membership. History stays.
func (s *RoomStore) Close(ctx context.Context, id domain.RoomID, actorID domain.UserID) error {
	var closed *domain.Room
	err := s.reg.with(ctx, id, func(st *roomState) error {
		if actorID != st.room.OwnerID {
			return domain.ErrNotOwner
		}
		next := st.room.Clone()
		next.Status = domain.RoomInactive
		next.UpdatedAt = s.now()
		if err := s.reg.roomRepo.Update(ctx, next); err != nil {
			return fmt.Errorf("%w: close room: %v", core.ErrPersistence, err)
		}
		st.room = next
		if err := s.reg.memberRepo.DeleteRoom(ctx, id); err != nil {
			log.Error().Err(err).Str("module", "app.rooms").Str("room", string(id)).Msg("delete memberships of closed room")
		}
		st.clear()
		closed = next.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	s.reg.drop(id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room closed")
	s.emit(ctx, core.Event{Type: core.EventRoomClosed, RoomID: id, ActorID: actorID, Room: closed})
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
