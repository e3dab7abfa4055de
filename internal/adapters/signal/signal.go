package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalWSController pushes committed room events to members over WebSocket
// and accepts a few lightweight commands back.
type SignalWSController struct {
	Orch       *orch.Orchestrator
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	if readLimit <= 0 {
		readLimit = 32768
	}
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &SignalWSController{Orch: o, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

// WsSignalConn is one client socket. It implements core.SignalConnection.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session ties one socket to one room subscription.
type session struct {
	roomID domain.RoomID
	userID domain.UserID
	conn   *WsSignalConn
	sub    *app.Subscription
	cancel context.CancelFunc
}

// HandleSignal subscribes the caller to the room and upgrades the request.
// Errors before the upgrade are returned for the caller to render.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, roomID domain.RoomID, userID domain.UserID) error {
	sub, err := ctl.Orch.Subscribe(c.Request.Context(), roomID, userID)
	if err != nil {
		return err
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.Orch.Unsubscribe(sub)
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return nil
	}
	ws.SetReadLimit(ctl.ReadLimit)
	log.Info().Str("module", "signal").Str("room", string(roomID)).Str("user", string(userID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		roomID: roomID,
		userID: userID,
		conn:   &WsSignalConn{conn: ws, send: make(chan core.Frame, 32)},
		sub:    sub,
		cancel: cancel,
	}
	go ctl.writePump(ctx, s)
	go ctl.readPump(ctx, s)
	return nil
}

func (ctl *SignalWSController) closeSession(s *session) {
	s.cancel()
	ctl.Orch.Unsubscribe(s.sub)
	s.conn.Close()
}
