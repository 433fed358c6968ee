/*
Package api exposes the daemon over gRPC and HTTP.

The gRPC side registers the easyharun.v1.Control service by hand with a
grpc.ServiceDesc. Requests are google.protobuf.Empty and responses are
google.protobuf.Struct, so clients need no generated code:

	ListActors(Empty) returns (Struct)          registered tasks
	GetState(Empty) returns (Struct)            KV snapshot, proxies, health
	WatchEvents(Empty) returns (stream Struct)  daemon events as they happen

Struct payloads mirror the JSON form of ActorList, StateView and EventView;
use Decode to read them back. The standard grpc.health.v1 service reports
SERVING while the server runs.

The HTTP side serves /health, /ready, /live and /metrics.
*/
package api
