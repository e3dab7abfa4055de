package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

type MessageID string

type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageVoice  MessageType = "VOICE"
	MessageSystem MessageType = "SYSTEM"
)

const MaxMessageLen = 1000

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVoice, MessageSystem:
		return true
	}
	return false
}

// Message is immutable once appended. Log order is CreatedAt, then ID.
type Message struct {
	ID        MessageID   `json:"id"`
	RoomID    RoomID      `json:"roomId"`
	SenderID  UserID      `json:"senderId"`
	Content   string      `json:"content"`
	Type      MessageType `json:"messageType"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Before reports whether m sorts ahead of other in the log.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

func ValidateMessage(content string, typ MessageType) error {
	if strings.TrimSpace(content) == "" {
		return Invalid("message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageLen {
		return Invalid("message content longer than %d characters", MaxMessageLen)
	}
	if !typ.Valid() {
		return Invalid("unknown message type %q", typ)
	}
	return nil
}

// PageRequest is a 1-based page query.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize fills the default page size and rejects out of range values.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Page < 1 {
		return p, Invalid("page must be >= 1")
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return p, Invalid("page size must be 1-%d", MaxPageSize)
	}
	return p, nil
}

func (p PageRequest) Offset() int { return (p.Page - 1) * p.PageSize }

// TotalPages is ceil(total / size).
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

type MessagePage struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"totalCount"`
	TotalPages int       `json:"totalPages"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
}

type RoomPage struct {
	Rooms      []Room `json:"rooms"`
	TotalCount int    `json:"totalCount"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}
