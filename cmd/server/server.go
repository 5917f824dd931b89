package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/k8s-demo/internal/config"
	"github.com/janisto/k8s-demo/internal/http/health"
	"github.com/janisto/k8s-demo/internal/http/routes"
	applog "github.com/janisto/k8s-demo/internal/platform/logging"
	"github.com/janisto/k8s-demo/internal/platform/metrics"
	appmiddleware "github.com/janisto/k8s-demo/internal/platform/middleware"
	"github.com/janisto/k8s-demo/internal/platform/respond"
)

const apiTitle = "CI/CD K8s Demo API"

// server owns one listener's worth of state. Nothing here is global, so
// tests can run several side by side.
type server struct {
	cfg        *config.Config
	state      *health.State
	httpServer *http.Server
}

func newServer(cfg *config.Config) *server {
	state := &health.State{}
	return &server{
		cfg:   cfg,
		state: state,
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           newRouter(cfg, state),
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    64 << 10, // 64 KB
		},
	}
}

// newRouter assembles the middleware stack, probes, metrics and API routes.
func newRouter(cfg *config.Config, state *health.State) chi.Router {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	var m *metrics.Metrics
	if cfg.Metrics() != "" {
		m = metrics.New()
	}

	stack := []func(http.Handler) http.Handler{
		appmiddleware.Security(cfg.Docs()),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP / X-Forwarded-For. Only deploy behind an
		// ingress that overwrites them.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1 << 20), // 1 MB
		applog.RequestLogger(),
		applog.AccessLogger(),
	}
	if m != nil {
		stack = append(stack, m.Middleware())
	}
	stack = append(stack, respond.Recoverer())
	router.Use(stack...)

	router.Get("/healthz", health.Liveness)
	router.Get("/readyz", health.Readiness(state))
	if m != nil {
		router.Method(http.MethodGet, cfg.Metrics(), m.Handler())
	}

	api := humachi.New(router, routes.Config(apiTitle, Version, cfg.Docs()))
	routes.Register(api)
	return router
}

// listen binds addr synchronously so a taken port fails before readiness is
// announced.
func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Run binds the configured address and serves until ctx is cancelled.
func (s *server) Run(ctx context.Context) error {
	ln, err := listen(ctx, s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve announces readiness and serves ln until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *server) Serve(ctx context.Context, ln net.Listener) error {
	s.state.MarkListening()
	applog.LogInfo(ctx, "server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("service", s.cfg.ServiceName),
		zap.String("environment", s.cfg.Environment),
		zap.String("version", Version),
		zap.Stringer("logLevel", applog.Level()),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		s.state.MarkStopping()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		applog.LogInfo(ctx, "shutdown signal received")
	}

	s.state.MarkStopping()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	applog.LogInfo(ctx, "server exited")
	return nil
}
