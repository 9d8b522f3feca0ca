package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/data/repos"
	"github.com/studysprint/studysprint-backend/internal/db"
	httpx "github.com/studysprint/studysprint-backend/internal/http"
	httpH "github.com/studysprint/studysprint-backend/internal/http/handlers"
	httpMW "github.com/studysprint/studysprint-backend/internal/http/middleware"
	"github.com/studysprint/studysprint-backend/internal/observability"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
	"github.com/studysprint/studysprint-backend/internal/services"
	"github.com/studysprint/studysprint-backend/internal/sse"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Server   *httpx.Server
	Hub      *sse.Hub
	Sessions services.SessionService
	Pomodoro services.PomodoroService
	Timers   *services.TimerSupervisor

	bus          services.SSEBus
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	bootLog, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := LoadConfig(bootLog)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	dbService, err := db.NewService(log)
	if err != nil {
		cancel()
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		cancel()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	hub := sse.NewHub(log)
	reposet := repos.NewSet(theDB, log)

	// With a bus, frames fan out through redis so every replica's hub sees
	// them. Without one, frames go straight to the local hub.
	var bus services.SSEBus
	if b, err := services.NewRedisSSEBus(log); err == nil {
		bus = b
		if err := bus.StartForwarder(ctx, func(m sse.Message) { hub.Broadcast(m) }); err != nil {
			log.Warn("redis forwarder not started, falling back to local hub", "error", err)
			_ = bus.Close()
			bus = nil
		}
	} else {
		log.Debug("redis bus disabled", "reason", err)
	}
	publish := services.NewFramePublisher(ctx, log, bus, hub)

	timers := services.NewTimerSupervisor(log, cfg.TimerConfig(), cfg.Tunables.Scoring, publish)
	sessionService := services.NewSessionService(theDB, log, cfg.Tunables.Session, reposet, timers)
	pomodoroService := services.NewPomodoroService(log, cfg.Tunables.Pomodoro, reposet, sessionService)

	server := httpx.NewServer(httpx.RouterConfig{
		Log:             log,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, cfg.AuthSecret),
		SessionHandler:  httpH.NewSessionHandler(sessionService),
		PomodoroHandler: httpH.NewPomodoroHandler(pomodoroService),
		RealtimeHandler: httpH.NewRealtimeHandler(log, hub, sessionService),
		HealthHandler:   httpH.NewHealthHandler(),
		ServiceName:     cfg.ServiceName,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Server:       server,
		Hub:          hub,
		Sessions:     sessionService,
		Pomodoro:     pomodoroService,
		Timers:       timers,
		bus:          bus,
		otelShutdown: otelShutdown,
		cancel:       cancel,
	}, nil
}

func (a *App) Run() error {
	a.Log.Info("server listening", "port", a.Cfg.Port)
	return a.Server.Run(":" + a.Cfg.Port)
}

// Shutdown drains the HTTP server, finalizes live sessions and releases
// the tracing and bus resources.
func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("http server shutdown", "error", err)
		}
	}
	if a.Sessions != nil {
		a.Sessions.Shutdown(ctx)
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
