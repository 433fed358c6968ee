package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventContainerStarted     EventType = "container.started"
	EventContainerStartFailed EventType = "container.start_failed"
	EventContainerMarked      EventType = "container.marked_for_deletion"
	EventContainerReaped      EventType = "container.reaped"
	EventHealthChanged        EventType = "health.changed"
	EventHealthCheckStarted   EventType = "health.check_started"
	EventHealthCheckStopped   EventType = "health.check_stopped"
	EventProxyStarted         EventType = "proxy.started"
	EventProxyStopped         EventType = "proxy.stopped"
	EventProxyBackendAdded    EventType = "proxy.backend_added"
	EventProxyBackendRemoved  EventType = "proxy.backend_removed"
	EventConfigReloaded       EventType = "config.reloaded"
	EventConfigRejected       EventType = "config.rejected"
)

// Event represents something that changed in the daemon
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Publisher is the write side of a Broker. A nil Publisher is valid for
// components that run without an event stream.
type Publisher interface {
	Publish(event *Event)
}

// Publish sends event through p if p is non-nil.
func Publish(p Publisher, typ EventType, message string, metadata map[string]string) {
	if p == nil {
		return
	}
	p.Publish(&Event{Type: typ, Message: message, Metadata: metadata})
}

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	dropped     atomic.Uint64
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker. Safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for all subscribers. It never blocks the caller:
// when the broker queue is full the event is dropped and counted.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
