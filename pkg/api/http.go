package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
)

// HealthServer serves the health, readiness, liveness and metrics endpoints
type HealthServer struct {
	health *metrics.HealthChecker
	mux    *http.ServeMux
}

// NewHealthServer creates the HTTP server backed by health
func NewHealthServer(health *metrics.HealthChecker) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		health: health,
		mux:    mux,
	}

	mux.HandleFunc("GET /health", health.HealthHandler())
	mux.HandleFunc("GET /ready", health.ReadyHandler())
	mux.HandleFunc("GET /live", health.LivenessHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	return hs
}

// ListenAndServe binds addr and serves until ctx is cancelled
func (hs *HealthServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return hs.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (hs *HealthServer) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      otelhttp.NewHandler(hs.mux, "easyharun.http"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger := log.WithComponent("api")
	logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP health server listening")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) Handler() http.Handler {
	return hs.mux
}
