package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// codes lets clients tell expected conflicts apart without parsing messages.
var codes = []struct {
	err  error
	code string
}{
	{domain.ErrRoomFull, "room_full"},
	{domain.ErrNoFreeSeat, "no_free_seat"},
	{domain.ErrAlreadyModerator, "already_moderator"},
	{domain.ErrInvalidTransition, "invalid_transition"},
	{domain.ErrTooManyRooms, "too_many_rooms"},
	{domain.ErrSeatRequestsDisabled, "seat_requests_disabled"},
	{domain.ErrOwnerProtected, "owner_protected"},
	{domain.ErrNotParticipant, "not_participant"},
	{domain.ErrPasswordLocked, "password_locked"},
}

func status(err error) (int, string) {
	var code string
	for _, c := range codes {
		if errors.Is(err, c.err) {
			code = c.code
			break
		}
	}
	switch {
	case errors.Is(err, domain.ErrPasswordLocked):
		return http.StatusTooManyRequests, code
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, orDefault(code, "validation")
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, orDefault(code, "not_found")
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, orDefault(code, "forbidden")
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, orDefault(code, "conflict")
	case errors.Is(err, domain.ErrInvalidPassword):
		return http.StatusForbidden, "invalid_password"
	}
	return http.StatusInternalServerError, "internal"
}

func orDefault(code, def string) string {
	if code == "" {
		return def
	}
	return code
}

func writeError(c *gin.Context, err error) {
	st, code := status(err)
	msg := err.Error()
	if st == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		msg = "internal error, try again"
	}
	c.AbortWithStatusJSON(st, errorResponse{Error: msg, Code: code})
}

// writeJoinError hides whether a private room exists from a caller who sent a
// password: unknown room and wrong password read the same.
func writeJoinError(c *gin.Context, err error, passwordSent bool) {
	if passwordSent && !errors.Is(err, domain.ErrPasswordLocked) &&
		(errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidPassword)) {
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "room not found or wrong password", Code: "join_denied"})
		return
	}
	writeError(c, err)
}
