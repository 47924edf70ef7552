// Package core provides the HTTP chassis for billingsync. It builds a chi
// router that serves both a plain HTTP listener (local, containers) and AWS
// Lambda behind API Gateway, and applies the cross-cutting middleware before
// requests reach the handler packages.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"billingsync/internal/config"
)

// Server holds the chassis dependencies. Handler packages attach their
// routes through RouteRegistrars before MountRoutes is called.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	HealthProbes  []HealthProbe

	RouteRegistrars []func(chi.Router)

	// Closed in reverse order on Shutdown (DB pool, Redis client).
	closers []func() error

	router *chi.Mux
}

// NewServer validates the mandatory dependencies and creates an empty router.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a resource to release during Shutdown.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases registered resources, newest first, and returns the
// joined close errors.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.Error("error closing resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing resources: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
