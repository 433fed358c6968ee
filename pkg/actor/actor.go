package actor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
)

const (
	// DefaultMailboxSize bounds a task's mailbox. Send blocks once it is full.
	DefaultMailboxSize = 1000

	// DefaultFailureBackoff is the pause after a failed handler
	DefaultFailureBackoff = time.Second

	tracerName = "github.com/easyharun/easyharun/pkg/actor"
)

// ErrNotAlive is returned when sending to a task that has stopped
var ErrNotAlive = errors.New("actor is not alive")

var nextID atomic.Uint64

// Behavior is the logic a Task runs. OnMessage handles one mailbox message,
// OnTimer runs once per tick. Both run on the task's goroutine, one at a time.
type Behavior[M any] interface {
	OnMessage(ctx context.Context, msg M) error
	OnTimer(ctx context.Context) error
}

// Stopper is implemented by behaviors that release resources when their
// task exits
type Stopper interface {
	OnStop(ctx context.Context)
}

// Drainer is implemented by behaviors whose messages own resources. OnDrop
// receives every message still queued when the task exits, after OnStop.
type Drainer[M any] interface {
	OnDrop(msg M)
}

// Ref is the untyped view of a task used for listing and shutdown
type Ref interface {
	ID() uint64
	Name() string
	Kind() string
	IsAlive() bool
	Failures() uint64
	RequestShutdown() <-chan struct{}
}

// Handle is a typed reference to a running task
type Handle[M any] interface {
	Ref
	Send(ctx context.Context, msg M) error
}

// Options configures a task
type Options struct {
	Name string
	Kind string

	// MailboxSize defaults to DefaultMailboxSize
	MailboxSize int

	// Tick is the delay between OnTimer calls, measured from the end of the
	// previous call. Zero disables the timer.
	Tick time.Duration

	// FailureBackoff defaults to DefaultFailureBackoff
	FailureBackoff time.Duration

	// Registry, when set, lists the task while it runs
	Registry *Registry

	// Tracer defaults to the global otel tracer
	Tracer trace.Tracer
}

// Task runs a Behavior on its own goroutine with a bounded mailbox, an
// optional timer and a cancellable context derived from its parent.
// A handler that returns an error or panics is logged and counted, the task
// sleeps for the failure backoff and then carries on.
type Task[M any] struct {
	id       uint64
	name     string
	kind     string
	behavior Behavior[M]
	mailbox  chan M
	tick     time.Duration
	backoff  backoff.BackOff
	registry *Registry
	tracer   trace.Tracer
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	alive    atomic.Bool
	failures atomic.Uint64
}

var _ Handle[struct{}] = (*Task[struct{}])(nil)

// Spawn starts a task. It stops when parent is cancelled or on RequestShutdown.
func Spawn[M any](parent context.Context, b Behavior[M], opts Options) *Task[M] {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.FailureBackoff <= 0 {
		opts.FailureBackoff = DefaultFailureBackoff
	}
	if opts.Kind == "" {
		opts.Kind = "actor"
	}
	if opts.Name == "" {
		opts.Name = opts.Kind
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	ctx, cancel := context.WithCancel(parent)
	id := nextID.Add(1)

	t := &Task[M]{
		id:       id,
		name:     opts.Name,
		kind:     opts.Kind,
		behavior: b,
		mailbox:  make(chan M, opts.MailboxSize),
		tick:     opts.Tick,
		backoff:  backoff.NewConstantBackOff(opts.FailureBackoff),
		registry: opts.Registry,
		tracer:   opts.Tracer,
		logger: log.WithComponent(opts.Kind).With().
			Uint64("actor_id", id).
			Str("actor", opts.Name).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.alive.Store(true)

	if t.registry != nil {
		t.registry.register(t)
	}
	metrics.ActorsRunning.WithLabelValues(t.kind).Inc()

	go t.run()
	return t
}

// ID is unique per process
func (t *Task[M]) ID() uint64 { return t.id }

// Name is the instance name, e.g. a listen address
func (t *Task[M]) Name() string { return t.name }

// Kind groups tasks of the same behavior
func (t *Task[M]) Kind() string { return t.kind }

// IsAlive reports whether the task loop is still running
func (t *Task[M]) IsAlive() bool { return t.alive.Load() }

// Failures counts failed handler invocations
func (t *Task[M]) Failures() uint64 { return t.failures.Load() }

// Context is cancelled when the task stops. Children derive from it.
func (t *Task[M]) Context() context.Context { return t.ctx }

// Done is closed once the task loop has exited
func (t *Task[M]) Done() <-chan struct{} { return t.done }

// Send enqueues msg, blocking while the mailbox is full
func (t *Task[M]) Send(ctx context.Context, msg M) error {
	if !t.IsAlive() {
		return fmt.Errorf("%w: %s", ErrNotAlive, t.name)
	}
	select {
	case t.mailbox <- msg:
		return nil
	case <-t.done:
		return fmt.Errorf("%w: %s", ErrNotAlive, t.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestShutdown cancels the task and returns a channel closed when it has stopped
func (t *Task[M]) RequestShutdown() <-chan struct{} {
	t.cancel()
	return t.done
}

func (t *Task[M]) run() {
	defer t.exit()

	var timer <-chan time.Time
	var tk *time.Timer
	if t.tick > 0 {
		tk = time.NewTimer(t.tick)
		defer tk.Stop()
		timer = tk.C
	}

	for {
		if t.ctx.Err() != nil {
			return
		}

		select {
		case <-t.ctx.Done():
			return

		case msg := <-t.mailbox:
			t.invoke("message", func(ctx context.Context) error {
				return t.behavior.OnMessage(ctx, msg)
			})

		case <-timer:
			t.invoke("tick", t.behavior.OnTimer)
			tk.Reset(t.tick)
		}
	}
}

// invoke runs one handler inside a span and applies the failure policy
func (t *Task[M]) invoke(op string, fn func(ctx context.Context) error) {
	ctx, span := t.tracer.Start(t.ctx, t.kind+"."+op, trace.WithAttributes(
		attribute.String("actor.name", t.name),
		attribute.Int64("actor.id", int64(t.id)),
	))
	err := t.safeCall(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if err == nil || t.ctx.Err() != nil {
		return
	}

	t.failures.Add(1)
	metrics.ActorFailuresTotal.WithLabelValues(t.kind).Inc()
	wait := t.backoff.NextBackOff()
	t.logger.Error().Err(err).Str("op", op).Dur("backoff", wait).Msg("Actor handler failed")

	sleep := time.NewTimer(wait)
	defer sleep.Stop()
	select {
	case <-sleep.C:
	case <-t.ctx.Done():
	}
}

func (t *Task[M]) safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (t *Task[M]) exit() {
	t.alive.Store(false)
	t.cancel()

	if s, ok := t.behavior.(Stopper); ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error().Interface("panic", r).Msg("Actor stop handler panicked")
				}
			}()
			s.OnStop(context.WithoutCancel(t.ctx))
		}()
	}

	if d, ok := t.behavior.(Drainer[M]); ok {
		t.drain(d)
	}

	if t.registry != nil {
		t.registry.unregister(t.id)
	}
	metrics.ActorsRunning.WithLabelValues(t.kind).Dec()
	t.logger.Debug().Msg("Actor stopped")
	close(t.done)
}

func (t *Task[M]) drain(d Drainer[M]) {
	for {
		select {
		case msg := <-t.mailbox:
			d.OnDrop(msg)
		default:
			return
		}
	}
}

// Funcs adapts plain functions to a Behavior. Nil functions do nothing.
type Funcs[M any] struct {
	Message func(ctx context.Context, msg M) error
	Timer   func(ctx context.Context) error
}

// OnMessage calls f.Message
func (f Funcs[M]) OnMessage(ctx context.Context, msg M) error {
	if f.Message == nil {
		return nil
	}
	return f.Message(ctx, msg)
}

// OnTimer calls f.Timer
func (f Funcs[M]) OnTimer(ctx context.Context) error {
	if f.Timer == nil {
		return nil
	}
	return f.Timer(ctx)
}
