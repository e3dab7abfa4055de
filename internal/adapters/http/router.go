package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/adapters/signal"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/config"
)

const sessionName = "VoiceSessions"

// SetupRouter wires the REST API, the per-room event socket, health and
// metrics. metrics may be nil.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, metrics http.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "activeRooms": o.Registry.ActiveRooms()})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	h := NewHandlers(o)
	ws := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod)

	api := r.Group("/api", Identity(cfg.TokenSecret(), cfg.Auth.AllowGuests), limitBody)

	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/search", h.SearchRooms)

	room := api.Group("/rooms/:id")
	room.GET("", h.GetRoom)
	room.PATCH("", h.UpdateRoom)
	room.DELETE("", h.CloseRoom)

	room.POST("/join", h.JoinRoom)
	room.POST("/leave", h.LeaveRoom)
	room.GET("/participants", h.ListParticipants)
	room.DELETE("/participants/:uid", h.KickParticipant)
	room.GET("/seats", h.SeatTable)

	room.POST("/moderators/:uid", h.onTarget(o.PromoteToModerator))
	room.DELETE("/moderators/:uid", h.onTarget(o.DemoteModerator))
	room.POST("/speakers/request", h.onSelf(o.RequestSpeakerSeat))
	room.POST("/speakers/:uid", h.onTarget(o.InviteSpeaker))
	room.DELETE("/speakers/:uid", h.onTarget(o.DemoteSpeaker))
	room.POST("/seat/leave", h.onSelf(o.LeaveSeat))
	room.POST("/mute/:uid", h.MuteParticipant)

	room.POST("/messages", h.PostMessage)
	room.GET("/messages", h.GetMessages)
	room.POST("/typing", h.Typing)

	room.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("room", c.Param("id")).Msg("ws endpoint hit")
		if err := ws.HandleSignal(ctx, c, roomParam(c), currentUser(c)); err != nil {
			writeError(c, err)
		}
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
