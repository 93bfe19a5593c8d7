package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	archivequeue "github.com/Hollow-Moon-Club/gloamhall/app/modules/archive/infrastructure/queue"
	duelservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/application"
	duelhandlers "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/handlers"
	dueldb "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/repositories"
	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	sessionservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/application"
	sessionhandlers "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/handlers"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	sessionsubscribers "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/subscribers"
	turnorderservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/turnorder/application"
	turnordersubscribers "github.com/Hollow-Moon-Club/gloamhall/app/modules/turnorder/infrastructure/subscribers"
	"github.com/Hollow-Moon-Club/gloamhall/config"
	"github.com/Hollow-Moon-Club/gloamhall/internal/pgnotify"
	"github.com/Hollow-Moon-Club/gloamhall/pkg/jwt"
)

// App wires the store, the event bus, and the module services together.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB       *bun.DB
	EventBus eventbus.EventBus
	Listener *pgnotify.Listener
	Registry *prometheus.Registry

	SessionService   sessionservice.Service
	Directory        *sessionservice.Directory
	DuelService      duelservice.Service
	GameLogService   gamelogservice.Service
	TurnOrderService *turnorderservice.TurnOrderService
	ArchiveQueue     *archivequeue.Service

	httpServer *http.Server
}

// NewApp initializes the application with the necessary services and
// configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())

	bus, err := eventbus.NewEventBus(ctx, cfg.NATS.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	sessionRepo := &sessiondb.SessionDBImpl{DB: db}
	duelRepo := &dueldb.DuelDBImpl{DB: db}
	gameLogRepo := &gamelogdb.GameLogDBImpl{DB: db}

	gameLog := gamelogservice.NewGameLogService(gameLogRepo, logger, cfg.GameLog.WritesPerSecond, cfg.GameLog.WriteBurst, registry)
	sessions := sessionservice.NewSessionService(sessionRepo, bus, gameLog, logger)
	duels := duelservice.NewDuelService(duelRepo, sessions, bus, gameLog, logger)

	directory := sessionservice.NewDirectory(sessionRepo, logger,
		cfg.Directory.MinRefreshInterval,
		cfg.Directory.PollInterval,
		cfg.Directory.ThrottleDelay,
	)
	turnOrder := turnorderservice.NewTurnOrderService(sessionRepo, bus, gameLog, logger, cfg.Directory.ThrottleDelay)

	archive, err := archivequeue.NewService(ctx, cfg.Postgres.DSN, sessionRepo, logger, cfg.Archive.Retention, cfg.Archive.Retention/2)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive queue: %w", err)
	}

	a := &App{
		Config:           cfg,
		Logger:           logger,
		DB:               db,
		EventBus:         bus,
		Listener:         pgnotify.New(cfg.Postgres.DSN, bus, logger),
		Registry:         registry,
		SessionService:   sessions,
		Directory:        directory,
		DuelService:      duels,
		GameLogService:   gameLog,
		TurnOrderService: turnOrder,
		ArchiveQueue:     archive,
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.DefaultTTL)
	tracer := otel.Tracer("gloamhall")
	a.httpServer = &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: NewRouter(RouterDeps{
			SessionHandlers: sessionhandlers.NewSessionHandlers(sessions, directory, gameLog, jwtService, logger),
			DuelHandlers:    duelhandlers.NewDuelHandlers(duels, logger, tracer),
			Registry:        registry,
			MetricsEnabled:  cfg.Metrics.Enabled,
			Logger:          logger,
		}),
	}

	return a, nil
}

// Run subscribes the modules, starts the notification listener and the
// archive queue, and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.EventBus.CreateStream(ctx, eventbus.StreamChanges, eventbus.ChangeTopic("*")); err != nil {
		return fmt.Errorf("failed to ensure change stream: %w", err)
	}

	sessionSubs := sessionsubscribers.NewSessionSubscribers(a.EventBus, a.Directory, a.Logger)
	if err := sessionSubs.SubscribeToChanges(ctx); err != nil {
		return err
	}
	turnOrderSubs := turnordersubscribers.NewTurnOrderSubscribers(a.EventBus, a.TurnOrderService, a.Logger)
	if err := turnOrderSubs.SubscribeToChanges(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.Listener.Run(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("Change notification listener stopped", slog.Any("error", err))
		}
	}()
	go a.Directory.Run(ctx)

	if err := a.ArchiveQueue.Start(ctx); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = a.httpServer.Shutdown(context.Background())
	}()

	a.Logger.Info("HTTP server listening", slog.String("addr", a.Config.HTTP.Addr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Close releases every long-lived resource. Safe to call once after Run
// returns.
func (a *App) Close() {
	stopCtx := context.Background()
	if err := a.ArchiveQueue.Stop(stopCtx); err != nil {
		a.Logger.Error("Failed to stop archive queue", slog.Any("error", err))
	}
	a.TurnOrderService.Close()
	a.Directory.Close()
	if err := a.EventBus.Close(); err != nil {
		a.Logger.Error("Failed to close event bus", slog.Any("error", err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database", slog.Any("error", err))
	}
}
