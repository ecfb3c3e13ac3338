package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/config"
	"github.com/Tyrowin/livechat/internal/metrics"
	"github.com/Tyrowin/livechat/internal/realtime"
	"github.com/Tyrowin/livechat/internal/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects everything the HTTP layer needs.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Hub      *realtime.Hub
	Auth     *service.AuthService
	Messages *service.MessageService
	Users    *service.UserService
	Store    Pinger
	Registry *prometheus.Registry
	Clock    clockwork.Clock
}

// Server routes HTTP requests to the chat services.
type Server struct {
	cfg         *config.Config
	logger      *zap.Logger
	hub         *realtime.Hub
	auth        *service.AuthService
	messages    *service.MessageService
	users       *service.UserService
	store       Pinger
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
	clock       clockwork.Clock
	origins     *originPolicy
	limiter     *ipRateLimiter
	upgrader    websocket.Upgrader
	router      chi.Router
}

// New builds a Server from deps. Missing optional dependencies fall back to
// no-op or fresh instances.
func New(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger.Named("http"),
		hub:         deps.Hub,
		auth:        deps.Auth,
		messages:    deps.Messages,
		users:       deps.Users,
		store:       deps.Store,
		registry:    registry,
		httpMetrics: metrics.NewHTTPMetrics(registry),
		clock:       clock,
		limiter:     newIPRateLimiter(cfg.APIRateLimit, clock),
	}
	s.origins = newOriginPolicy(cfg.AllowedOrigins, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer listens until the server is shut down. A clean shutdown
// returns nil.
func StartServer(server *http.Server, logger *zap.Logger) error {
	logger.Info("Server listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops accepting connections and waits up to timeout for
// in-flight requests. Hijacked WebSocket connections are not tracked here;
// the hub closes them.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *zap.Logger) error {
	logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("HTTP server shutdown completed")
	return nil
}
