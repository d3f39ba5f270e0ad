// Package server assembles the HTTP front-end of the ACI server: the chi
// router with its middleware stack, the utterance and health endpoints, and
// the server lifecycle including configuration hot reload.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teilomillet/aci/config"
	"github.com/teilomillet/aci/errors"
	"github.com/teilomillet/aci/intent"
	"github.com/teilomillet/aci/server/handlers"
	"github.com/teilomillet/aci/server/metrics"
	"github.com/teilomillet/aci/server/middleware"
	"github.com/teilomillet/aci/server/processing"
	"github.com/teilomillet/aci/server/provider"
	"github.com/teilomillet/aci/server/validation"
)

// Components are the collaborators the server routes to. Only Dispatcher
// is required.
type Components struct {
	Dispatcher *intent.Dispatcher
	// Backend feeds the health endpoint with the circuit breaker state.
	Backend *provider.Backend
	// Metrics enables the metrics middleware and the /metrics endpoint.
	Metrics *metrics.Metrics
	// Processor receives processing settings on reload.
	Processor *processing.Processor
	// LogLevel receives the logging level on reload.
	LogLevel *zap.AtomicLevel
}

// NewRouter creates the router for cfg.
func NewRouter(cfg *config.Config, c Components, logger *zap.Logger) (http.Handler, error) {
	validator, err := validation.New(validation.Limits{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MaxTokens:    cfg.Server.MaxUtteranceTokens,
		Model:        cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}

	r := chi.NewRouter()

	// Add our middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	if c.Metrics != nil {
		r.Use(middleware.PrometheusMetrics(c.Metrics))
	}
	r.Use(errors.ErrorHandler(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	var breaker handlers.BreakerState
	if c.Backend != nil {
		breaker = c.Backend
	}
	r.Get("/health", handlers.Health(breaker, c.Dispatcher.Intents))
	if c.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}

	// Every request that is not a named route is an utterance, whatever
	// its method or path.
	var utterance http.Handler = handlers.NewUtteranceHandler(c.Dispatcher, validator, logger)
	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, c.Metrics)
		utterance = limiter.Handler(utterance)
	}
	r.NotFound(utterance.ServeHTTP)
	r.MethodNotAllowed(utterance.ServeHTTP)

	return r, nil
}

// swappableHandler lets reloads replace the router under a running server.
type swappableHandler struct {
	current atomic.Pointer[http.Handler]
}

func (h *swappableHandler) set(handler http.Handler) {
	h.current.Store(&handler)
}

func (h *swappableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*h.current.Load()).ServeHTTP(w, r)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    *swappableHandler
	components Components
	watcher    config.Watcher
	logger     *zap.Logger

	mu     sync.Mutex
	config *config.Config
	addr   net.Addr
}

// NewServer creates a server from the current configuration of watcher.
func NewServer(watcher config.Watcher, c Components, logger *zap.Logger) (*Server, error) {
	if c.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	cfg := watcher.GetCurrentConfig()
	router, err := NewRouter(cfg, c, logger)
	if err != nil {
		return nil, err
	}

	handler := &swappableHandler{}
	handler.set(router)

	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        handler,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		handler:    handler,
		components: c,
		watcher:    watcher,
		logger:     logger,
		config:     cfg,
	}, nil
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Start starts the server and blocks until ctx is done or serving fails.
// Configuration updates from the watcher are applied while it runs.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	updates := s.watcher.Subscribe()
	for {
		select {
		case cfg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.applyConfig(cfg)

		case <-ctx.Done():
			return s.shutdown()

		case err := <-errChan:
			return err
		}
	}
}

func (s *Server) shutdown() error {
	s.mu.Lock()
	timeout := s.config.Server.ShutdownTimeout
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server", zap.Duration("timeout", timeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}

// applyConfig hot reloads everything that does not need a new listener or
// a new model backend.
func (s *Server) applyConfig(cfg *config.Config) {
	s.mu.Lock()
	previous := s.config
	s.mu.Unlock()

	if cfg == nil || cfg == previous {
		return
	}

	router, err := NewRouter(cfg, s.components, s.logger)
	if err != nil {
		s.logger.Error("Failed to apply configuration, keeping the previous one", zap.Error(err))
		return
	}

	s.components.Dispatcher.SetGeneration(provider.Generation(cfg.LLM))
	if s.components.Processor != nil {
		s.components.Processor.SetConfig(&cfg.Processing)
	}
	if s.components.LogLevel != nil {
		if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			s.components.LogLevel.SetLevel(level)
		}
	}
	s.handler.set(router)

	if restartRequired(previous, cfg) {
		s.logger.Warn("Listener, model backend or circuit breaker settings changed; restart to apply them")
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.logger.Info("Configuration reloaded",
		zap.String("model", cfg.LLM.Model),
		zap.String("log_level", cfg.Logging.Level),
	)
}

func restartRequired(previous, next *config.Config) bool {
	return previous.Server.Port != next.Server.Port ||
		previous.Server.ReadTimeout != next.Server.ReadTimeout ||
		previous.Server.WriteTimeout != next.Server.WriteTimeout ||
		previous.Server.MaxHeaderBytes != next.Server.MaxHeaderBytes ||
		previous.LLM.Provider != next.LLM.Provider ||
		previous.LLM.Backend != next.LLM.Backend ||
		previous.LLM.APIKey != next.LLM.APIKey ||
		previous.LLM.BaseURL != next.LLM.BaseURL ||
		previous.LLM.ImageModel != next.LLM.ImageModel ||
		previous.LLM.SpeechModel != next.LLM.SpeechModel ||
		previous.LLM.Voice != next.LLM.Voice ||
		previous.CircuitBreaker != next.CircuitBreaker
}
