package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/voicerooms/internal/domain"
)

type joinRequest struct {
	Password string `json:"password"`
}

func (h *Handlers) JoinRoom(c *gin.Context) {
	var req joinRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.orch.JoinRoom(c.Request.Context(), roomParam(c), currentUser(c), req.Password)
	if err != nil {
		writeJoinError(c, err, req.Password != "")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) LeaveRoom(c *gin.Context) {
	if err := h.orch.LeaveRoom(c.Request.Context(), roomParam(c), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListParticipants(c *gin.Context) {
	roster, err := h.orch.ListParticipants(c.Request.Context(), roomParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

type targetAction func(ctx context.Context, id domain.RoomID, actorID, targetID domain.UserID) (domain.Participant, error)

// onTarget wraps the actor-on-target moderation calls.
func (h *Handlers) onTarget(action targetAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := targetParam(c)
		if !ok {
			return
		}
		p, err := action(c.Request.Context(), roomParam(c), currentUser(c), target)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type selfAction func(ctx context.Context, id domain.RoomID, userID domain.UserID) (domain.Participant, error)

func (h *Handlers) onSelf(action selfAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := action(c.Request.Context(), roomParam(c), currentUser(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type muteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

func (h *Handlers) MuteParticipant(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	var req muteRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.orch.MuteParticipant(c.Request.Context(), roomParam(c), currentUser(c), target, *req.Muted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) KickParticipant(c *gin.Context) {
	target, ok := targetParam(c)
	if !ok {
		return
	}
	if err := h.orch.KickParticipant(c.Request.Context(), roomParam(c), currentUser(c), target); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
