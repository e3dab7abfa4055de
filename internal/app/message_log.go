package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// MessageLog appends and pages room history. Appends are ordered per room by
// their own lock, not by the membership boundary.
type MessageLog struct {
	reg  *Registry
	repo core.MessageRepository
	emitter
}

func NewMessageLog(reg *Registry, repo core.MessageRepository, events core.EventPublisher) *MessageLog {
	if repo == nil {
		panic("app.NewMessageLog: repository cannot be nil")
	}
	return &MessageLog{reg: reg, repo: repo, emitter: newEmitter(events)}
}

// Append stores a message from a current member. CreatedAt never goes
// backwards within a room.
func (l *MessageLog) Append(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, content string, typ domain.MessageType) (domain.Message, error) {
	if err := domain.ValidateMessage(content, typ); err != nil {
		return domain.Message{}, err
	}
	st, err := l.reg.acquire(roomID)
	if err != nil {
		return domain.Message{}, err
	}
	defer l.reg.release(st)

	if err := l.reg.lock(ctx, st); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Message{}, domain.ErrNotParticipant
		}
		return domain.Message{}, err
	}
	_, member := st.participant(senderID)
	st.mu.Unlock()
	if !member {
		return domain.Message{}, domain.ErrNotParticipant
	}

	st.msgMu.Lock()
	now := l.now()
	if now.Before(st.lastMsgAt) {
		now = st.lastMsgAt
	}
	id, err := uuid.NewV7()
	if err != nil {
		st.msgMu.Unlock()
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	msg := domain.Message{
		ID:        domain.MessageID(id.String()),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Type:      typ,
		CreatedAt: now,
	}
	err = l.repo.Append(ctx, &msg)
	if err == nil {
		st.lastMsgAt = now
	}
	st.msgMu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("module", "app.messages").Str("room", string(roomID)).Msg("append message")
		return domain.Message{}, fmt.Errorf("%w: append message: %v", core.ErrPersistence, err)
	}

	log.Debug().Str("module", "app.messages").Str("room", string(roomID)).Str("user", string(senderID)).Str("message", string(msg.ID)).Msg("message posted")
	m := msg
	l.emit(ctx, core.Event{Type: core.EventMessagePosted, RoomID: roomID, UserID: senderID, Message: &m})
	return msg, nil
}

// Page returns one oldest-first page. Pages past the end are empty. History of
// a closed room stays readable.
func (l *MessageLog) Page(ctx context.Context, roomID domain.RoomID, req domain.PageRequest) (domain.MessagePage, error) {
	req, err := req.Normalize()
	if err != nil {
		return domain.MessagePage{}, err
	}
	if _, err := l.reg.roomRepo.Get(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MessagePage{}, domain.ErrRoomNotFound
		}
		return domain.MessagePage{}, fmt.Errorf("%w: get room: %v", core.ErrPersistence, err)
	}
	msgs, total, err := l.repo.Page(ctx, roomID, req.Offset(), req.PageSize)
	if err != nil {
		return domain.MessagePage{}, fmt.Errorf("%w: page messages: %v", core.ErrPersistence, err)
	}
	return domain.MessagePage{
		Messages:   nonNil(msgs),
		TotalCount: total,
		TotalPages: domain.TotalPages(total, req.PageSize),
		Page:       req.Page,
		PageSize:   req.PageSize,
	}, nil
}
