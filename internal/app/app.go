// Package app assembles the service from configuration: store, hub,
// services, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/config"
	"github.com/Tyrowin/livechat/internal/metrics"
	"github.com/Tyrowin/livechat/internal/realtime"
	"github.com/Tyrowin/livechat/internal/server"
	"github.com/Tyrowin/livechat/internal/service"
	"github.com/Tyrowin/livechat/internal/store"
)

const tokenIssuer = "livechat"

// backend is a store that owns both repositories.
type backend interface {
	Ping(ctx context.Context) error
	Close()
}

// App is a fully wired service.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	backend    backend
	hub        *realtime.Hub
	httpServer *http.Server
}

// New connects the store and wires every component. An empty DatabaseURL
// selects the in-memory store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	var (
		be       backend
		users    chat.UserRepository
		messages chat.MessageRepository
	)

	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL is not set; using the in-memory store")
		mem := store.NewMemory()
		be, users, messages = mem, mem.Users(), mem.Messages()
	} else {
		pool, err := store.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		pg := store.NewPostgres(pool)
		be, users, messages = pg, pg.Users(), pg.Messages()
	}

	cache, err := service.NewUserCache(cfg.UserCacheSize)
	if err != nil {
		be.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()
	registry := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(registry)

	hub := realtime.NewHub(ClientConfig(cfg), logger, wsMetrics)
	broadcaster := realtime.NewBroadcaster(hub, logger, wsMetrics)

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenManager(cfg.JWTSecret, tokenIssuer, cfg.JWTTTL, clock)

	srv := server.New(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Hub:      hub,
		Auth:     service.NewAuthService(users, hasher, tokens, cache, broadcaster, clock, logger),
		Messages: service.NewMessageService(messages, broadcaster, clock, logger),
		Users:    service.NewUserService(users, hasher, cache, broadcaster, clock, logger),
		Store:    be,
		Registry: registry,
		Clock:    clock,
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		backend:    be,
		hub:        hub,
		httpServer: server.CreateServer(cfg.Port, srv.Handler()),
	}, nil
}

// ClientConfig derives the per-socket limits from cfg.
func ClientConfig(cfg *config.Config) realtime.ClientConfig {
	return realtime.ClientConfig{
		SendBufferSize: cfg.SendBufferSize,
		MaxMessageSize: cfg.MaxMessageSize,
		InboundBurst:   cfg.RateLimit.Burst,
		InboundRefill:  cfg.RateLimit.RefillInterval,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down
// the HTTP server, the hub, and the store in that order.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(a.httpServer, a.logger)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	return errors.Join(runErr, a.shutdown())
}

func (a *App) shutdown() error {
	var errs []error

	if err := server.ShutdownServer(a.httpServer, a.cfg.ShutdownTimeout, a.logger); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.hub.Shutdown(a.cfg.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("shutdown hub: %w", err))
	}
	a.backend.Close()
	a.logger.Info("Shutdown complete")

	return errors.Join(errs...)
}

// Migrate applies pending schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required to run migrations")
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return store.RunMigrations(ctx, pool, logger)
}
