// Package telemetry installs the tracer provider. Task handlers and gRPC calls
// emit spans. They are logged when they fail or run slow, and exported over
// OTLP/HTTP when an endpoint is configured.
package telemetry
