package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Handlers maps the room API onto the orchestrator.
type Handlers struct {
	orch *orch.Orchestrator
}

func NewHandlers(o *orch.Orchestrator) *Handlers {
	return &Handlers{orch: o}
}

const (
	maxBodyBytes = 64 << 10
	// The room patch may carry a base64 cover.
	maxPatchBytes = domain.MaxCoverBytes*4/3 + maxBodyBytes
)

// limitBody caps request bodies. The room patch gets room for a cover, every
// other route the small default.
func limitBody(c *gin.Context) {
	n := int64(maxBodyBytes)
	if c.Request.Method == http.MethodPatch && c.FullPath() == "/api/rooms/:id" {
		n = maxPatchBytes
	}
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
	}
	c.Next()
}

func roomParam(c *gin.Context) domain.RoomID { return domain.RoomID(c.Param("id")) }

func targetParam(c *gin.Context) (domain.UserID, bool) {
	uid, err := domain.ParseUserID(c.Param("uid"))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return uid, true
}

func pageQuery(c *gin.Context) (domain.PageRequest, bool) {
	req := domain.PageRequest{Page: 1}
	var err error
	if v := c.Query("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			writeError(c, domain.Invalid("page must be a number"))
			return req, false
		}
	}
	if v := c.Query("page_size"); v != "" {
		if req.PageSize, err = strconv.Atoi(v); err != nil {
			writeError(c, domain.Invalid("page_size must be a number"))
			return req, false
		}
	}
	return req, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("request body larger than %d bytes", tooLarge.Limit),
				Code:  "body_too_large",
			})
			return false
		}
		writeError(c, domain.Invalid("malformed request body: %v", err))
		return false
	}
	return true
}

type createRoomRequest struct {
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Visibility        domain.Visibility `json:"visibility"`
	Password          string            `json:"password"`
	MaxParticipants   int               `json:"maxParticipants"`
	SpeakerSeatCount  int               `json:"speakerSeatCount"`
	Tags              []string          `json:"tags"`
	AllowSeatRequests *bool             `json:"allowSeatRequests"`
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.orch.CreateRoom(c.Request.Context(), domain.CreateRoomInput{
		OwnerID:           currentUser(c),
		Title:             req.Title,
		Description:       req.Description,
		Visibility:        req.Visibility,
		Password:          req.Password,
		MaxParticipants:   req.MaxParticipants,
		SpeakerSeatCount:  req.SpeakerSeatCount,
		Tags:              req.Tags,
		AllowSeatRequests: req.AllowSeatRequests,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handlers) ListRooms(c *gin.Context) {
	req, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.orch.ListPublicRooms(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) SearchRooms(c *gin.Context) {
	req, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.orch.SearchRooms(c.Request.Context(), c.Query("q"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) GetRoom(c *gin.Context) {
	room, err := h.orch.GetRoom(c.Request.Context(), roomParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type coverRequest struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"` // base64 in JSON
}

// updateRoomRequest accepts the immutable fields too, so that trying to change
// them is answered with a validation error rather than silently ignored.
type updateRoomRequest struct {
	Title             *string            `json:"title"`
	Description       *string            `json:"description"`
	Tags              *[]string          `json:"tags"`
	AllowSeatRequests *bool              `json:"allowSeatRequests"`
	Cover             *coverRequest      `json:"cover"`
	OwnerID           *domain.UserID     `json:"ownerId"`
	Visibility        *domain.Visibility `json:"visibility"`
	MaxParticipants   *int               `json:"maxParticipants"`
	SpeakerSeatCount  *int               `json:"speakerSeatCount"`
}

func (h *Handlers) UpdateRoom(c *gin.Context) {
	var req updateRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	patch := domain.RoomPatch{
		Title:             req.Title,
		Description:       req.Description,
		Tags:              req.Tags,
		AllowSeatRequests: req.AllowSeatRequests,
		OwnerID:           req.OwnerID,
		Visibility:        req.Visibility,
		MaxParticipants:   req.MaxParticipants,
		SpeakerSeatCount:  req.SpeakerSeatCount,
	}
	if req.Cover != nil {
		patch.Cover = &domain.CoverUpload{ContentType: req.Cover.ContentType, Data: req.Cover.Data}
	}
	room, err := h.orch.UpdateRoom(c.Request.Context(), roomParam(c), currentUser(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handlers) CloseRoom(c *gin.Context) {
	if err := h.orch.CloseRoom(c.Request.Context(), roomParam(c), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) SeatTable(c *gin.Context) {
	view, err := h.orch.SeatTable(c.Request.Context(), roomParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
