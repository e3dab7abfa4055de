package signal

import (
	"context"

	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(s *session) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(s.conn, resp)
}

// handleTyping relays a typing mark; the room sees it as a typing event.
func (ctl *SignalWSController) handleTyping(ctx context.Context, s *session) {
	if err := ctl.Orch.SignalTyping(ctx, s.roomID, s.userID); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("room", string(s.roomID)).Msg("typing rejected")
		ctl.sendError(s.conn, "typing_rejected")
	}
}

// handleLeave leaves the room; the socket closes once the left event for this
// user has been written.
func (ctl *SignalWSController) handleLeave(ctx context.Context, s *session) {
	log.Info().Str("module", "signal").Str("room", string(s.roomID)).Str("user", string(s.userID)).Msg("leave")
	if err := ctl.Orch.LeaveRoom(ctx, s.roomID, s.userID); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("leave")
		ctl.sendError(s.conn, "leave_failed")
	}
}
