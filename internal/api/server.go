// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/analysis"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/monitor"
)

// TokenAggregator is what the token endpoints need from the orchestrator.
type TokenAggregator interface {
	FetchAggregatedTokens(ctx context.Context, limit int) (*domain.AggregatedResult, error)
	Latest() *domain.AggregatedResult
}

// TokenAnalyzer scores a batch of tokens.
type TokenAnalyzer interface {
	AnalyzeBatch(ctx context.Context, tokens []domain.TokenRecord) []analysis.Result
}

// Info is reported by the health endpoint.
type Info struct {
	Version     string
	Environment string
}

// Server serves the HTTP API.
type Server struct {
	aggregator TokenAggregator
	analyzer   TokenAnalyzer
	registry   *monitor.Registry
	bus        *events.Bus
	metrics    *metrics.Collector
	info       Info
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// ServerOption configures optional dependencies.
type ServerOption func(*Server)

func WithAnalyzer(a TokenAnalyzer) ServerOption {
	return func(s *Server) { s.analyzer = a }
}

func WithEventBus(bus *events.Bus) ServerOption {
	return func(s *Server) { s.bus = bus }
}

func WithMetrics(c *metrics.Collector) ServerOption {
	return func(s *Server) { s.metrics = c }
}

func WithInfo(info Info) ServerOption {
	return func(s *Server) { s.info = info }
}

func NewServer(aggregator TokenAggregator, registry *monitor.Registry, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		aggregator: aggregator,
		registry:   registry,
		logger:     logger.Named("api"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tokens", s.handleTokens)
	mux.HandleFunc("GET /api/tokens/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/token/{mint}", s.handleToken)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/{monitor}", s.handleMonitor)
	mux.HandleFunc("POST /api/{monitor}", s.handleMonitor)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not found")
	})

	return s.logRequests(s.recoverPanics(mux))
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// not reported as an error.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. Calling Shutdown before Serve makes
// Serve return immediately.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("🌐 HTTP server listening", zap.String("addr", ln.Addr().String()))
	if err := s.server().Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server().Shutdown(ctx)
}

func (s *Server) server() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		s.httpServer = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s.httpServer
}
