package orch

import (
	"context"
	"time"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/domain"
)

func (o *Orchestrator) PostMessage(ctx context.Context, id domain.RoomID, senderID domain.UserID, content string, typ domain.MessageType) (domain.Message, error) {
	start := time.Now()
	m, err := o.Messages.Append(ctx, id, senderID, content, typ)
	o.Metrics.Observe("post_message", time.Since(start), err)
	return m, err
}

func (o *Orchestrator) GetMessages(ctx context.Context, id domain.RoomID, req domain.PageRequest) (domain.MessagePage, error) {
	start := time.Now()
	page, err := o.Messages.Page(ctx, id, req)
	o.Metrics.Observe("get_messages", time.Since(start), err)
	return page, err
}

func (o *Orchestrator) SignalTyping(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	start := time.Now()
	err := o.Typing.Touch(ctx, id, userID)
	o.Metrics.Observe("typing", time.Since(start), err)
	return err
}

func (o *Orchestrator) TypingUsers(ctx context.Context, id domain.RoomID) ([]domain.UserID, error) {
	return o.Typing.Active(ctx, id)
}

// Subscribe opens a live event feed for a current member of the room.
func (o *Orchestrator) Subscribe(ctx context.Context, id domain.RoomID, userID domain.UserID) (*app.Subscription, error) {
	var sub *app.Subscription
	err := o.Members.AsMember(ctx, id, userID, func() {
		sub = o.Hub.Subscribe(id, userID)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (o *Orchestrator) Unsubscribe(s *app.Subscription) {
	o.Hub.Unsubscribe(s)
}
