package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/easyharun/easyharun/pkg/api"
)

// Client talks to a running daemon's control service
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client for addr. The connection is established lazily
// on the first call.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ListActors returns the daemon's registered tasks
func (c *Client) ListActors(ctx context.Context) ([]api.Actor, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.MethodListActors, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}

	var list api.ActorList
	if err := api.Decode(out, &list); err != nil {
		return nil, fmt.Errorf("failed to decode actors: %w", err)
	}
	return list.Actors, nil
}

// GetState returns the daemon's KV snapshot, proxies and health
func (c *Client) GetState(ctx context.Context) (*api.StateView, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.MethodGetState, &emptypb.Empty{}, out); err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var state api.StateView
	if err := api.Decode(out, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}

// WatchEvents calls fn for every daemon event until ctx is cancelled, the
// server closes the stream or fn returns an error
func (c *Client) WatchEvents(ctx context.Context, fn func(api.EventView) error) error {
	stream, err := c.conn.NewStream(ctx, api.WatchEventsStreamDesc, api.MethodWatchEvents)
	if err != nil {
		return fmt.Errorf("failed to watch events: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("failed to watch events: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to watch events: %w", err)
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream failed: %w", err)
		}

		var ev api.EventView
		if err := api.Decode(msg, &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// Healthy asks the standard gRPC health service whether the control service
// is serving
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
