package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/metrics"
)

// DefaultDialTimeout bounds the connect to a backend
const DefaultDialTimeout = 5 * time.Second

// Msg is a TCP proxy mailbox message: Add, RemoveAsk or an accepted connection
type Msg interface {
	isMsg()
}

type accepted struct {
	conn net.Conn
}

func (accepted) isMsg() {}

// TCPProxyOptions configures one TCP proxy instance
type TCPProxyOptions struct {
	Listen string
	Store  *kv.Store

	// RateLimitPerSecond caps accepted connections; zero disables the limit
	RateLimitPerSecond float64
	RateLimitBurst     int

	DialTimeout    time.Duration
	FailureBackoff time.Duration
	MailboxSize    int
	Registry       *actor.Registry
	Events         events.Publisher
}

// Instance is a running TCP proxy
type Instance struct {
	task *actor.Task[Msg]
	addr net.Addr
}

// Addr is the bound listen address
func (i *Instance) Addr() net.Addr { return i.addr }

// Send delivers a message to the proxy's mailbox
func (i *Instance) Send(ctx context.Context, msg Msg) error { return i.task.Send(ctx, msg) }

// IsAlive reports whether the proxy task still runs
func (i *Instance) IsAlive() bool { return i.task.IsAlive() }

// RequestShutdown stops the proxy and closes its listener
func (i *Instance) RequestShutdown() <-chan struct{} { return i.task.RequestShutdown() }

// Done is closed once the proxy has stopped
func (i *Instance) Done() <-chan struct{} { return i.task.Done() }

// tcpProxy owns the backend list of one listen address. Backend selection
// happens on the task goroutine; the byte copy runs per connection.
type tcpProxy struct {
	listen      string
	ln          net.Listener
	store       *kv.Store
	limiter     *rate.Limiter
	dialTimeout time.Duration
	events      events.Publisher
	logger      zerolog.Logger

	backends []Backend
	balancer Balancer

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup

	acceptDone chan struct{}
}

var (
	_ actor.Stopper      = (*tcpProxy)(nil)
	_ actor.Drainer[Msg] = (*tcpProxy)(nil)
)

// StartTCPProxy binds opts.Listen and starts the proxy task. A bind failure
// is returned before any task is spawned.
func StartTCPProxy(parent context.Context, opts TCPProxyOptions) (*Instance, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(parent, "tcp", opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", opts.Listen, err)
	}

	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	p := &tcpProxy{
		listen:      opts.Listen,
		ln:          ln,
		store:       opts.Store,
		dialTimeout: opts.DialTimeout,
		events:      opts.Events,
		logger:      log.WithListenAddr(log.WithComponent("tcp_proxy"), opts.Listen),
		conns:       make(map[net.Conn]struct{}),
		acceptDone:  make(chan struct{}),
	}
	if opts.RateLimitPerSecond > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = int(opts.RateLimitPerSecond)
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), burst)
	}

	task := actor.Spawn[Msg](parent, p, actor.Options{
		Name:           opts.Listen,
		Kind:           "tcp_proxy",
		MailboxSize:    opts.MailboxSize,
		FailureBackoff: opts.FailureBackoff,
		Registry:       opts.Registry,
	})
	go p.acceptLoop(task)

	metrics.ProxyInstances.Inc()
	p.logger.Info().Str("addr", ln.Addr().String()).Msg("TCP proxy listening")
	events.Publish(p.events, events.EventProxyStarted, opts.Listen, map[string]string{"listen": opts.Listen})

	return &Instance{task: task, addr: ln.Addr()}, nil
}

// acceptLoop hands every accepted connection to the task mailbox until the
// listener is closed
func (p *tcpProxy) acceptLoop(task *actor.Task[Msg]) {
	defer close(p.acceptDone)
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !task.IsAlive() {
				return
			}
			p.logger.Warn().Err(err).Msg("Accept failed")
			select {
			case <-time.After(50 * time.Millisecond):
			case <-task.Context().Done():
				return
			}
			continue
		}

		if p.limiter != nil && !p.limiter.Allow() {
			metrics.ProxyConnectionsTotal.WithLabelValues(p.listen, "rate_limited").Inc()
			p.logger.Debug().Str("client", conn.RemoteAddr().String()).Msg("Connection rate limited")
			_ = conn.Close()
			continue
		}

		if err := task.Send(task.Context(), accepted{conn: conn}); err != nil {
			_ = conn.Close()
			return
		}
	}
}

func (p *tcpProxy) OnMessage(ctx context.Context, msg Msg) error {
	switch m := msg.(type) {
	case Add:
		p.add(m.Backend)
	case RemoveAsk:
		p.remove(m.Addr)
	case accepted:
		p.serve(m.conn)
	default:
		return fmt.Errorf("unexpected message %T", msg)
	}
	return nil
}

func (p *tcpProxy) OnTimer(context.Context) error { return nil }

// OnStop closes the listener, waits for the accept loop so no connection is
// queued afterwards, then closes every open connection and waits for the
// copy goroutines to finish
func (p *tcpProxy) OnStop(context.Context) {
	_ = p.ln.Close()
	<-p.acceptDone

	p.connMu.Lock()
	p.closed = true
	for conn := range p.conns {
		_ = conn.Close()
	}
	p.connMu.Unlock()
	p.wg.Wait()

	metrics.ProxyInstances.Dec()
	metrics.ProxyBackends.DeleteLabelValues(p.listen)
	p.logger.Info().Msg("TCP proxy stopped")
	events.Publish(p.events, events.EventProxyStopped, p.listen, map[string]string{"listen": p.listen})
}

// OnDrop closes connections accepted but never served
func (p *tcpProxy) OnDrop(msg Msg) {
	if m, ok := msg.(accepted); ok {
		metrics.ProxyConnectionsTotal.WithLabelValues(p.listen, "dropped").Inc()
		_ = m.conn.Close()
	}
}

func (p *tcpProxy) add(b Backend) {
	for _, existing := range p.backends {
		if existing.Addr == b.Addr {
			return
		}
	}
	p.backends = append(p.backends, b)
	metrics.ProxyBackends.WithLabelValues(p.listen).Set(float64(len(p.backends)))
	p.logger.Info().Str("backend", b.Addr).Str("container_id", b.ContainerID.Short()).Msg("Backend added")
}

func (p *tcpProxy) remove(addr string) {
	for i, b := range p.backends {
		if b.Addr == addr {
			p.backends = append(p.backends[:i], p.backends[i+1:]...)
			metrics.ProxyBackends.WithLabelValues(p.listen).Set(float64(len(p.backends)))
			p.logger.Info().Str("backend", addr).Msg("Backend removed")
			return
		}
	}
}

func (p *tcpProxy) healthy(b Backend) bool {
	if p.store == nil {
		return true
	}
	return p.store.AllHealthy(b.Targets)
}

// serve picks a backend and starts copying. Picking happens here so the
// backend list is never shared.
func (p *tcpProxy) serve(client net.Conn) {
	backend, err := p.balancer.Pick(p.backends, p.healthy)
	if err != nil {
		metrics.ProxyConnectionsTotal.WithLabelValues(p.listen, "no_backend").Inc()
		p.logger.Warn().Str("client", client.RemoteAddr().String()).Msg("No backend for connection")
		_ = client.Close()
		return
	}

	p.track(client)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.untrack(client)
		p.pipe(client, backend)
	}()
}

func (p *tcpProxy) pipe(client net.Conn, backend Backend) {
	logger := p.logger.With().Str("backend", backend.Addr).Str("client", client.RemoteAddr().String()).Logger()

	upstream, err := net.DialTimeout("tcp", backend.Addr, p.dialTimeout)
	if err != nil {
		metrics.ProxyConnectionsTotal.WithLabelValues(p.listen, "dial_failed").Inc()
		logger.Warn().Err(err).Msg("Failed to dial backend")
		return
	}
	p.track(upstream)
	defer p.untrack(upstream)

	metrics.ProxyConnectionsTotal.WithLabelValues(p.listen, "ok").Inc()
	active := metrics.ProxyActiveConnections.WithLabelValues(p.listen)
	active.Inc()
	defer active.Dec()

	done := make(chan int64, 1)
	go func() {
		n, _ := io.Copy(upstream, client)
		closeWrite(upstream)
		done <- n
	}()

	out, _ := io.Copy(client, upstream)
	closeWrite(client)
	in := <-done

	metrics.ProxyBytesTotal.WithLabelValues(p.listen, "in").Add(float64(in))
	metrics.ProxyBytesTotal.WithLabelValues(p.listen, "out").Add(float64(out))
	logger.Debug().Int64("bytes_in", in).Int64("bytes_out", out).Msg("Connection closed")
}

func (p *tcpProxy) track(c net.Conn) {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.closed {
		_ = c.Close()
		return
	}
	p.conns[c] = struct{}{}
}

func (p *tcpProxy) untrack(c net.Conn) {
	p.connMu.Lock()
	delete(p.conns, c)
	p.connMu.Unlock()
	_ = c.Close()
}

// closeWrite half-closes c so the peer sees EOF while the other direction
// keeps flowing
func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}
