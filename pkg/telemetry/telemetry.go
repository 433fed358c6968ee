package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/easyharun/easyharun/pkg/log"
)

// LogSpanProcessor logs finished spans that failed or took longer than Slow.
// Everything else is dropped, so tracing stays cheap without an exporter.
type LogSpanProcessor struct {
	Slow   time.Duration
	logger zerolog.Logger
}

var _ sdktrace.SpanProcessor = (*LogSpanProcessor)(nil)

// NewLogSpanProcessor creates a processor logging spans slower than slow.
// Zero logs failed spans only.
func NewLogSpanProcessor(slow time.Duration) *LogSpanProcessor {
	return &LogSpanProcessor{Slow: slow, logger: log.WithComponent("trace")}
}

func (p *LogSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *LogSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	took := s.EndTime().Sub(s.StartTime())
	failed := s.Status().Code == codes.Error
	slow := p.Slow > 0 && took >= p.Slow
	if !failed && !slow {
		return
	}

	ev := p.logger.Debug()
	if failed {
		ev = p.logger.Warn().Str("error", s.Status().Description)
	}
	for _, kv := range s.Attributes() {
		ev = ev.Str(string(kv.Key), kv.Value.Emit())
	}
	ev.Str("span", s.Name()).
		Str("trace_id", s.SpanContext().TraceID().String()).
		Dur("took", took).
		Msg("Span finished")
}

func (p *LogSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *LogSpanProcessor) ForceFlush(context.Context) error { return nil }

// Options configures tracing
type Options struct {
	// Slow is the duration above which finished spans are logged
	Slow time.Duration

	// OTLPEndpoint, when set, also exports spans over OTLP/HTTP to host:port
	OTLPEndpoint string
}

// Setup installs the global tracer provider and returns its shutdown function
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(NewLogSpanProcessor(opts.Slow)),
	}

	if opts.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(opts.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
