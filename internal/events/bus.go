package events

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/linkstashapp/linkstash-sync/internal/id"
)

// Subscriber represents a registered event consumer.
type Subscriber struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	// Types filters delivery. Empty means "receive all".
	Types map[EventType]bool
}

// Bus fans events out to subscribers.
//
// Emit is safe to call from any goroutine, including store write paths
// and the sync engine. Delivery is non-blocking per subscriber.
type Bus struct {
	subscribers map[string]*Subscriber
	events      chan Event
	logger      *slog.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewBus creates a new event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		events:      make(chan Event, 1000), // Buffer 1000 events
		logger:      logger,
	}
}

// Start begins the event broadcasting loop.
// This should be called once at startup in a goroutine.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	defer b.wg.Done()

	b.logger.Debug("event bus starting")

	for {
		select {
		case event := <-b.events:
			b.broadcast(event)

		case <-ctx.Done():
			b.logger.Debug("event bus stopping")
			b.closeAllSubscribers()
			return
		}
	}
}

// Shutdown gracefully shuts down the bus.
// It stops accepting new events, drains remaining events, and closes all subscribers.
func (b *Bus) Shutdown(ctx context.Context) error {
	// Mark as shutdown AND close channel atomically while holding lock.
	// This prevents race with Emit() which holds read lock during send.
	b.shutdownMu.Lock()
	b.shutdown = true
	close(b.events)
	b.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range b.events {
			b.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("event drain timeout, some events may be lost")
	}

	b.wg.Wait()
	return nil
}

// broadcast sends an event to subscribers, filtered by type.
func (b *Bus) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.Types) > 0 && !sub.Types[event.Type] {
			continue
		}

		// Non-blocking send (drop if subscriber is slow/stuck).
		select {
		case sub.EventChan <- event:
		default:
			b.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", sub.ID),
				slog.String("event_type", string(event.Type)))
		}
	}
}

// Subscribe registers a new subscriber. With no types given, the subscriber
// receives every event; otherwise only the listed types.
func (b *Bus) Subscribe(types ...EventType) (*Subscriber, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	var filter map[EventType]bool
	if len(types) > 0 {
		filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}

	sub := &Subscriber{
		ID:          subID,
		Types:       filter,
		EventChan:   make(chan Event, 100), // Buffer 100 events per subscriber
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channels.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, subID)
	b.mu.Unlock()

	close(sub.Done)
	close(sub.EventChan)
}

// Emit queues an event for broadcasting to subscribers.
// This implements the store.EventEmitter interface.
func (b *Bus) Emit(event any) {
	evt, ok := event.(Event)
	if !ok {
		b.logger.Error("invalid event type emitted")
		return
	}

	// Hold read lock through the entire send operation.
	// This prevents race with Shutdown() which holds write lock when closing channel.
	b.shutdownMu.RLock()
	defer b.shutdownMu.RUnlock()

	if b.shutdown {
		// Silently drop events after shutdown - this is expected during shutdown
		return
	}

	select {
	case b.events <- evt:
	default:
		b.logger.Error("event channel full, dropping event",
			slog.String("event_type", string(evt.Type)))
	}
}

// Subscribers returns an iterator over all registered subscribers.
func (b *Bus) Subscribers() iter.Seq[*Subscriber] {
	return func(yield func(*Subscriber) bool) {
		b.mu.RLock()
		defer b.mu.RUnlock()

		for _, sub := range b.subscribers {
			if !yield(sub) {
				return
			}
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// closeAllSubscribers closes all subscriber channels (used during shutdown).
func (b *Bus) closeAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		close(sub.Done)
		close(sub.EventChan)
	}
	b.subscribers = make(map[string]*Subscriber)
}
