package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/relay"
	app "github.com/dkeye/Meet/internal/app/relay"
	"github.com/dkeye/Meet/internal/config"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser or CLI connection a stable
// session token kept in the signed cookie session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Relay.Secret))
	r.Use(sessions.Sessions("MeetSessions", store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ctrl := relay.NewSignalWSController(hub, relay.Options{
		ReadLimit:  cfg.Relay.ReadLimit,
		PingPeriod: cfg.Relay.PingPeriod,
		SendBuffer: cfg.Session.SendBuffer,
	})
	r.GET("/ws", ClientTokenMiddleware(), func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	if hub.Metrics != nil {
		r.GET("/metrics", gin.WrapH(hub.Metrics.Handler(hub.RefreshMetrics)))
	}

	api := r.Group("/api")
	api.GET("/members", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"members": hub.Members()})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
