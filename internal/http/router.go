package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/studysprint/studysprint-backend/internal/http/handlers"
	httpMW "github.com/studysprint/studysprint-backend/internal/http/middleware"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler  *httpH.SessionHandler
	PomodoroHandler *httpH.PomodoroHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler

	ServiceName string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil && cfg.AuthMiddleware.Enabled() {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Sessions
		if cfg.SessionHandler != nil {
			api.POST("/sessions/start", cfg.SessionHandler.Start)
			api.GET("/sessions/current", cfg.SessionHandler.Current)
			api.GET("/sessions/:id", cfg.SessionHandler.Get)
			api.PATCH("/sessions/:id", cfg.SessionHandler.Update)
			api.POST("/sessions/:id/pause", cfg.SessionHandler.Pause)
			api.POST("/sessions/:id/resume", cfg.SessionHandler.Resume)
			api.POST("/sessions/:id/end", cfg.SessionHandler.End)
			api.GET("/sessions/:id/timer-state", cfg.SessionHandler.TimerState)
			api.POST("/sessions/:id/activity", cfg.SessionHandler.Activity)
			api.POST("/sessions/:id/interruption", cfg.SessionHandler.Interruption)
			api.POST("/sessions/:id/timer/messages", cfg.SessionHandler.TimerMessage)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/sessions/:id/stream", cfg.RealtimeHandler.Stream)
		}

		// Pomodoro
		if cfg.PomodoroHandler != nil {
			api.POST("/pomodoro/start", cfg.PomodoroHandler.Start)
			api.POST("/pomodoro/:id/complete", cfg.PomodoroHandler.Complete)
		}
	}

	return r
}
