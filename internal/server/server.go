package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sugarcypher/sweetguard/internal/database"
	"github.com/sugarcypher/sweetguard/internal/logger"
	"github.com/sugarcypher/sweetguard/internal/ml"
	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/resolver"
)

// Resolver is the part of *resolver.Resolver the transports use
type Resolver interface {
	Resolve(ctx context.Context, barcode string) (models.Result, error)
	ClearCache(ctx context.Context) error
	CacheStats(ctx context.Context) (models.CacheStats, error)
	Sources() []resolver.SourceInfo
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the scanner client is served from other origins during development
	},
}

type Server struct {
	resolver Resolver
	db       database.DB
	model    ml.Model
	log      *logger.Logger
	clients  sync.Map

	registry        *prometheus.Registry
	httpMetrics     *httpMetrics
	shutdownTimeout time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithRegistry exposes reg on /metrics and registers the HTTP collectors on it
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New builds the server. db may be nil, in which case scan history is disabled.
func New(res Resolver, db database.DB, model ml.Model, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		resolver:        res,
		db:              db,
		model:           model,
		log:             log,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.httpMetrics = newHTTPMetrics(s.registry)
	return s
}

// Handler returns the routed HTTP handler. staticDir, when set, is served at /.
func (s *Server) Handler(staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.requestLogger, s.httpMetrics.middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/foods/{barcode}", s.handleGetFood)
		r.Get("/cache", s.handleCacheStats)
		r.Delete("/cache", s.handleClearCache)
		r.Get("/sources", s.handleSources)
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port, staticDir string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(staticDir),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// closeClients ends open WebSocket sessions, which Shutdown does not track
func (s *Server) closeClients() {
	deadline := time.Now().Add(time.Second)
	s.clients.Range(func(key, value any) bool {
		if conn, ok := value.(*websocket.Conn); ok {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = conn.Close()
		}
		return true
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
