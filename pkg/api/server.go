package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/proxy"
)

// ProxyLister reports the running proxies
type ProxyLister interface {
	Status() []proxy.Status
}

// Deps are the daemon handles the control service reads from. Any of them
// may be nil; the matching part of the response is then empty.
type Deps struct {
	Registry *actor.Registry
	Store    *kv.Store
	Proxies  ProxyLister
	Broker   *events.Broker
	Provider *config.Provider
	Health   *metrics.HealthChecker
}

// Server implements the control service
type Server struct {
	deps   Deps
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger

	stopOnce sync.Once
	stopping chan struct{}
}

var _ ControlServer = (*Server)(nil)

// NewServer creates the gRPC server with the control and health services
func NewServer(deps Deps) *Server {
	s := &Server{
		deps: deps,
		grpc: grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(LoggingInterceptor()),
			grpc.ChainStreamInterceptor(StreamLoggingInterceptor()),
		),
		health:   health.NewServer(),
		logger:   log.WithComponent("api"),
		stopping: make(chan struct{}),
	}
	s.grpc.RegisterService(&ControlServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// ListenAndServe binds addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	if s.deps.Health != nil {
		s.deps.Health.Update(metrics.ComponentAPI, true, ln.Addr().String())
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("gRPC API listening")
	if err := s.grpc.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop ends event streams and gracefully stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}

// ListActors returns the registered tasks
func (s *Server) ListActors(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var infos []actor.Info
	if s.deps.Registry != nil {
		infos = s.deps.Registry.List()
	}
	out, err := actorsToStruct(infos)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode actors: %v", err)
	}
	return out, nil
}

// GetState returns the KV snapshot, the proxies and daemon metadata
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	state := State{}
	if s.deps.Store != nil {
		state.KV = s.deps.Store.Snapshot()
		state.KVWrites = s.deps.Store.Writes()
	}
	if s.deps.Proxies != nil {
		state.Proxies = s.deps.Proxies.Status()
	}
	if s.deps.Provider != nil {
		state.ConfigVersion = s.deps.Provider.Version()
	}
	if s.deps.Health != nil {
		state.Health = s.deps.Health.GetHealth()
	}

	out, err := state.toStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode state: %v", err)
	}
	return out, nil
}

// WatchEvents streams broker events until the client goes away or the
// server stops
func (s *Server) WatchEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	if s.deps.Broker == nil {
		return status.Error(codes.Unavailable, "event stream is not enabled")
	}

	sub := s.deps.Broker.Subscribe()
	defer s.deps.Broker.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			msg, err := eventToStruct(event)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode event: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.stopping:
			return nil
		}
	}
}
