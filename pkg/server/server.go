// Package server запускает HTTP сервис (HTTP/1.1 + h2c) с health пробами
// и упорядоченной остановкой зависимостей.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"fueltracker/pkg/audit"
	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/metrics"
	"fueltracker/pkg/telemetry"
)

// CheckFunc проверка готовности зависимости
type CheckFunc func(ctx context.Context) error

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// HTTPServer обёртка над http.Server
type HTTPServer struct {
	server      *http.Server
	config      *config.Config
	serviceName string
	telemetry   *telemetry.Provider
	auditLogger audit.Logger

	ready atomic.Bool

	mu      sync.Mutex
	checks  map[string]CheckFunc
	closers []closer
}

// New создаёт сервер. handler оборачивается в h2c.
func New(cfg *config.Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
		},
		config:      cfg,
		serviceName: cfg.App.Name,
		auditLogger: audit.Get(),
		checks:      make(map[string]CheckFunc),
	}
}

// AddCheck регистрирует проверку для /ready
func (s *HTTPServer) AddCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// OnShutdown регистрирует функцию остановки. Вызываются в обратном порядке.
func (s *HTTPServer) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// SetReady меняет статус готовности
func (s *HTTPServer) SetReady(ready bool) {
	s.ready.Store(ready)
}

// HandleHealth отвечает на liveness пробу
func (s *HTTPServer) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady проверяет все зарегистрированные зависимости
func (s *HTTPServer) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s.mu.Lock()
	checks := make(map[string]CheckFunc, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.Unlock()

	status := make(map[string]string, len(checks))
	ok := s.ready.Load()
	for name, check := range checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			ok = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": ok, "checks": status})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Debug("Failed to write health response", "error", err)
	}
}

// Run слушает порт из конфигурации до отмены ctx
func (s *HTTPServer) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve обслуживает запросы на lis до отмены ctx, затем останавливается
func (s *HTTPServer) Serve(ctx context.Context, lis net.Listener) error {
	if s.config.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.FromConfig(s.config))
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			s.telemetry = tp
			logger.Log.Info("Telemetry initialized",
				"endpoint", s.config.Tracing.Endpoint,
				"sample_rate", s.config.Tracing.SampleRate,
			)
		}
	}

	if s.config.Metrics.Enabled {
		metrics.Get().SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("HTTP server listening",
			"service", s.serviceName,
			"addr", lis.Addr().String(),
			"protocol", "HTTP/1.1 + H2C",
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.SetReady(true)
	s.logLifecycle(ctx, "server.Start")

	select {
	case err := <-errCh:
		s.SetReady(false)
		return err
	case <-ctx.Done():
		logger.Log.Info("Shutting down", "reason", context.Cause(ctx))
	}

	return s.shutdown()
}

func (s *HTTPServer) logLifecycle(ctx context.Context, route string) {
	entry := audit.NewEntry().
		Service(s.serviceName).
		Route(route).
		Outcome(audit.OutcomeSuccess).
		Meta("addr", s.server.Addr).
		Meta("version", s.config.App.Version).
		Build()
	if err := s.auditLogger.Log(ctx, entry); err != nil {
		logger.Log.Warn("Failed to log audit entry", "error", err)
	}
}

func (s *HTTPServer) shutdown() error {
	s.SetReady(false)

	timeout := s.config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logLifecycle(ctx, "server.Shutdown")

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	s.mu.Lock()
	closers := s.closers
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Log.Warn("Failed to close dependency", "name", c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}

	logger.Log.Info("Server stopped")
	return errors.Join(errs...)
}
