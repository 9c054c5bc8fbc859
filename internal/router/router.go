package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/handler"
	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/middleware"
	"focusbeat/backend/internal/service"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Timer  *handler.TimerHandler
	Stats  *handler.StatsHandler
	Audio  *handler.AudioHandler
	Ads    *handler.AdHandler
	Events *handler.EventHandler
}

func New(
	authService *service.AuthService,
	handlers Handlers,
	corsOrigins []string,
	logger hclog.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestLogger(logging.OrNop(logger)),
		gin.Recovery(),
		middleware.CORS(corsOrigins),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	profiles := api.Group("/profiles")
	profiles.GET("", handlers.Auth.List)
	profiles.POST("/register", handlers.Auth.Register)
	profiles.POST("/login", handlers.Auth.Login)

	authed := api.Group("")
	authed.Use(middleware.Auth(authService))
	authed.POST("/profiles/logout", handlers.Auth.Logout)

	timer := authed.Group("/timer")
	timer.GET("", handlers.Timer.GetState)
	timer.POST("/start", handlers.Timer.Start)
	timer.POST("/pause", handlers.Timer.Pause)
	timer.POST("/resume", handlers.Timer.Resume)
	timer.POST("/stop", handlers.Timer.Stop)
	timer.POST("/reset", handlers.Timer.Reset)
	timer.POST("/mode", handlers.Timer.SetMode)
	timer.PUT("/durations", handlers.Timer.SetDurations)

	stats := authed.Group("/stats")
	stats.GET("", handlers.Stats.Range)
	stats.GET("/today", handlers.Stats.Today)
	stats.GET("/last-session", handlers.Stats.LastSession)

	audio := authed.Group("/audio")
	audio.GET("", handlers.Audio.GetState)
	audio.POST("/play", handlers.Audio.Play)
	audio.POST("/pause", handlers.Audio.Pause)
	audio.POST("/stop", handlers.Audio.Stop)
	audio.POST("/next", handlers.Audio.Next)
	audio.POST("/previous", handlers.Audio.Previous)
	audio.PUT("/volume", handlers.Audio.SetVolume)
	audio.PUT("/8d", handlers.Audio.Set8D)
	audio.PUT("/mood", handlers.Audio.SetMood)
	audio.GET("/graph", handlers.Audio.GetGraph)
	audio.GET("/playlist", handlers.Audio.GetPlaylist)

	ads := authed.Group("/ads")
	ads.GET("", handlers.Ads.Overview)
	ads.PUT("/viewport", handlers.Ads.SetViewport)
	ads.POST("/visibility", handlers.Ads.ReportVisibility)
	ads.GET("/slots/:id", handlers.Ads.GetSlot)
	ads.POST("/slots/:id/register", handlers.Ads.RegisterSlot)
	ads.POST("/slots/:id/load", handlers.Ads.LoadSlot)
	ads.DELETE("/slots/:id", handlers.Ads.UnregisterSlot)

	authed.GET("/notifications/permission", handlers.Events.GetPermission)
	authed.PUT("/notifications/permission", handlers.Events.SetPermission)
	authed.GET("/events", handlers.Events.Stream)

	return engine
}
