package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the control service
const ServiceName = "easyharun.v1.Control"

// Full method names, as used by clients and interceptors
const (
	MethodListActors  = "/" + ServiceName + "/ListActors"
	MethodGetState    = "/" + ServiceName + "/GetState"
	MethodWatchEvents = "/" + ServiceName + "/WatchEvents"
)

// ControlServer is the server side of the control service. Messages are
// protobuf well-known types so no generated code is needed.
type ControlServer interface {
	ListActors(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	WatchEvents(req *emptypb.Empty, stream grpc.ServerStream) error
}

// ControlServiceDesc registers a ControlServer on a grpc.Server
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListActors", Handler: listActorsHandler},
		{MethodName: "GetState", Handler: getStateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "easyharun/v1/control.proto",
}

// WatchEventsStreamDesc is the client-side descriptor of WatchEvents
var WatchEventsStreamDesc = &grpc.StreamDesc{StreamName: "WatchEvents", ServerStreams: true}

func listActorsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).ListActors(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListActors}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).ListActors(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetState}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlServer).WatchEvents(in, stream)
}
