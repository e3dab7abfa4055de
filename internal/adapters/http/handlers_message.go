package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/voicerooms/internal/domain"
)

type postMessageRequest struct {
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"messageType"`
}

func (h *Handlers) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.MessageType == "" {
		req.MessageType = domain.MessageText
	}
	msg, err := h.orch.PostMessage(c.Request.Context(), roomParam(c), currentUser(c), req.Content, req.MessageType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handlers) GetMessages(c *gin.Context) {
	req, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.orch.GetMessages(c.Request.Context(), roomParam(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) Typing(c *gin.Context) {
	id := roomParam(c)
	if err := h.orch.SignalTyping(c.Request.Context(), id, currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	users, err := h.orch.TypingUsers(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"typing": users})
}
