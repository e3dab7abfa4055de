package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, s *session) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer func() {
		ticker.Stop()
		ctl.closeSession(s)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("user", string(s.userID)).Msg("writePump ctx done")
			return
		case ev, ok := <-s.sub.Events():
			if !ok {
				log.Info().Str("module", "signal").Str("room", string(s.roomID)).Str("user", string(s.userID)).Msg("subscription ended")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("marshal event")
				continue
			}
			if err := ctl.write(s.conn, websocket.TextMessage, data); err != nil {
				return
			}
			if ev.Type == core.EventParticipantLeft && ev.UserID == s.userID {
				return
			}
		case data, ok := <-s.conn.send:
			if !ok {
				return
			}
			if err := ctl.write(s.conn, websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := ctl.write(s.conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *SignalWSController) write(c *WsSignalConn, mt int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
		return err
	}
	if err := c.conn.WriteMessage(mt, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
		return err
	}
	return nil
}

func (ctl *SignalWSController) readPump(ctx context.Context, s *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("user", string(s.userID)).Msg("readPump closing")
		ctl.closeSession(s)
	}()

	pongWait := ctl.PingPeriod * 10 / 9
	_ = s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.conn.SetPongHandler(func(string) error {
		return s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("user", string(s.userID)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		ctl.handleSignal(ctx, s, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, s *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(s.conn, "bad_payload")
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(s)
	case "typing":
		ctl.handleTyping(ctx, s)
	case "leave":
		ctl.handleLeave(ctx, s)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(s.conn, "unknown_type")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": code})
}
