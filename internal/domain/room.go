package domain

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

type RoomID string

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

type RoomStatus string

const (
	RoomActive   RoomStatus = "ACTIVE"
	RoomInactive RoomStatus = "INACTIVE"
)

const (
	MinPasswordLen = 4
	MaxTags        = 5
	MaxTagLen      = 20
	MaxCoverBytes  = 5 << 20
)

// MaxPasswordBytes is the most bcrypt will hash.
const MaxPasswordBytes = 72

type Room struct {
	ID                RoomID     `json:"id"`
	OwnerID           UserID     `json:"ownerId"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Visibility        Visibility `json:"visibility"`
	PasswordHash      string     `json:"-"`
	MaxParticipants   int        `json:"maxParticipants"`
	SpeakerSeatCount  int        `json:"speakerSeatCount"`
	AllowSeatRequests bool       `json:"allowSeatRequests"`
	Status            RoomStatus `json:"status"`
	Tags              []string   `json:"tags"`
	CoverURL          string     `json:"coverUrl,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (r *Room) IsActive() bool  { return r.Status == RoomActive }
func (r *Room) IsPrivate() bool { return r.Visibility == VisibilityPrivate }

// Clone returns a copy that shares no slices with r.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Tags = slices.Clone(r.Tags)
	return &cp
}

// CreateRoomInput is what a caller supplies to open a room.
type CreateRoomInput struct {
	OwnerID           UserID     `json:"ownerId" validate:"required"`
	Title             string     `json:"title" validate:"min=3,max=100"`
	Description       string     `json:"description" validate:"min=10,max=500"`
	Visibility        Visibility `json:"visibility" validate:"oneof=PUBLIC PRIVATE"`
	Password          string     `json:"-"`
	MaxParticipants   int        `json:"maxParticipants" validate:"min=2,max=1000"`
	SpeakerSeatCount  int        `json:"speakerSeatCount" validate:"min=1,max=20,ltefield=MaxParticipants"`
	Tags              []string   `json:"tags" validate:"max=5,dive,min=1,max=20"`
	AllowSeatRequests *bool      `json:"allowSeatRequests"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Normalize trims text fields and deduplicates tags in place.
func (in *CreateRoomInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Tags = normalizeTags(in.Tags)
}

// Validate checks field ranges and the password/visibility coupling.
func (in *CreateRoomInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	switch in.Visibility {
	case VisibilityPrivate:
		if utf8.RuneCountInString(in.Password) < MinPasswordLen {
			return Invalid("private rooms need a password of at least %d characters", MinPasswordLen)
		}
		if len(in.Password) > MaxPasswordBytes {
			return Invalid("room password longer than %d bytes", MaxPasswordBytes)
		}
	case VisibilityPublic:
		if in.Password != "" {
			return Invalid("public rooms cannot have a password")
		}
	}
	return nil
}

// CoverUpload is an image blob destined for cover storage.
type CoverUpload struct {
	ContentType string
	Data        []byte
}

var coverTypes = []string{"image/jpeg", "image/png", "image/webp"}

func (c *CoverUpload) Validate() error {
	if !slices.Contains(coverTypes, c.ContentType) {
		return Invalid("cover must be one of %s", strings.Join(coverTypes, ", "))
	}
	if len(c.Data) == 0 {
		return Invalid("cover image is empty")
	}
	if len(c.Data) > MaxCoverBytes {
		return Invalid("cover image larger than %d bytes", MaxCoverBytes)
	}
	return nil
}

// RoomPatch carries the mutable room fields. Nil means "leave as is".
// OwnerID, Visibility, MaxParticipants and SpeakerSeatCount exist only so that
// attempts to change them are rejected explicitly.
type RoomPatch struct {
	Title             *string
	Description       *string
	Tags              *[]string
	AllowSeatRequests *bool
	Cover             *CoverUpload

	OwnerID          *UserID
	Visibility       *Visibility
	MaxParticipants  *int
	SpeakerSeatCount *int
}

func (p *RoomPatch) Normalize() {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		p.Description = &d
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
}

func (p *RoomPatch) Validate() error {
	switch {
	case p.OwnerID != nil:
		return Invalid("ownerId cannot be changed")
	case p.Visibility != nil:
		return Invalid("visibility cannot be changed")
	case p.MaxParticipants != nil:
		return Invalid("maxParticipants cannot be changed")
	case p.SpeakerSeatCount != nil:
		return Invalid("speakerSeatCount cannot be changed")
	}
	if p.Title != nil {
		if err := validate.Var(*p.Title, "min=3,max=100"); err != nil {
			return Invalid("title must be 3-100 characters")
		}
	}
	if p.Description != nil {
		if err := validate.Var(*p.Description, "min=10,max=500"); err != nil {
			return Invalid("description must be 10-500 characters")
		}
	}
	if p.Tags != nil {
		if err := validate.Var(*p.Tags, "max=5,dive,min=1,max=20"); err != nil {
			return Invalid("at most %d tags of 1-%d characters", MaxTags, MaxTagLen)
		}
	}
	if p.Cover != nil {
		return p.Cover.Validate()
	}
	return nil
}

func (p *RoomPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Tags == nil &&
		p.AllowSeatRequests == nil && p.Cover == nil
}

// Apply copies the patched fields onto r. The cover is applied separately,
// once storage has produced a URL.
func (r *Room) Apply(p *RoomPatch, now time.Time) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Tags != nil {
		r.Tags = slices.Clone(*p.Tags)
	}
	if p.AllowSeatRequests != nil {
		r.AllowSeatRequests = *p.AllowSeatRequests
	}
	r.UpdatedAt = now
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return Invalid("%s violates %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return Invalid("%s violates %s", fe.Field(), fe.Tag())
	}
	return Invalid("%v", err)
}
