// Package connectivity tracks whether the remote API is reachable.
//
// The Monitor is the single source of truth for online state. It probes on a
// ticker, announces real transitions on the event bus, and after coming back
// online waits out a settle delay before triggering a queue drain, so a
// flapping connection does not fire half-finished sync passes.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linkstashapp/linkstash-sync/internal/events"
	"github.com/linkstashapp/linkstash-sync/internal/store"
)

// Checker probes the remote API once. A nil error means reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Pinger is the slice of the API client the HTTP checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPChecker probes the API's health endpoint.
type HTTPChecker struct {
	client Pinger
}

// NewHTTPChecker creates a checker backed by the API client.
func NewHTTPChecker(client Pinger) *HTTPChecker {
	return &HTTPChecker{client: client}
}

// Check implements Checker.
func (c *HTTPChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// Monitor watches connectivity and triggers drains on recovery.
type Monitor struct {
	checker     Checker
	store       *store.Store
	bus         store.EventEmitter
	logger      *slog.Logger
	interval    time.Duration
	settleDelay time.Duration
	onOnline    func(ctx context.Context)

	online   atomic.Bool
	observed atomic.Bool

	mu          sync.Mutex
	settleTimer *time.Timer
}

// Config holds monitor dependencies.
type Config struct {
	Checker Checker
	Store   *store.Store
	Bus     store.EventEmitter
	Logger  *slog.Logger

	// ProbeInterval is how often connectivity is checked. Default 30s.
	ProbeInterval time.Duration
	// SettleDelay is how long a recovered connection must hold before a
	// drain is triggered. Default 1s.
	SettleDelay time.Duration

	// OnOnline runs after the settle delay when the connection held and
	// the queue has pending work. Typically the engine's Drain.
	OnOnline func(ctx context.Context)
}

// New creates a connectivity monitor.
func New(cfg Config) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = time.Second
	}
	if cfg.Bus == nil {
		cfg.Bus = store.NewNoopEmitter()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		checker:     cfg.Checker,
		store:       cfg.Store,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		interval:    cfg.ProbeInterval,
		settleDelay: cfg.SettleDelay,
		onOnline:    cfg.OnOnline,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Start probes once immediately, then on every tick until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.cancelSettle()
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe checks connectivity once and handles any state transition. Exposed
// so the host app can force a re-check (e.g. on a platform network-change
// signal) without waiting for the next tick.
func (m *Monitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	online := m.checker.Check(probeCtx) == nil

	// First observation establishes the baseline silently.
	if !m.observed.Swap(true) {
		m.online.Store(online)
		m.logger.Info("connectivity observed", "online", online)
		return
	}

	previous := m.online.Swap(online)
	if previous == online {
		return
	}

	m.logger.Info("connectivity changed", "online", online)
	m.bus.Emit(events.NewConnectivityChangedEvent(online))

	if online {
		m.scheduleDrain(ctx)
	} else {
		// Went dark before the settle delay elapsed. No drain.
		m.cancelSettle()
	}
}

// scheduleDrain arms the settle timer. A timer already armed is reset, so a
// flapping connection keeps pushing the drain out.
func (m *Monitor) scheduleDrain(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settleTimer != nil {
		m.settleTimer.Stop()
	}
	m.settleTimer = time.AfterFunc(m.settleDelay, func() {
		m.drainIfPending(ctx)
	})
}

func (m *Monitor) cancelSettle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
	}
}

// drainIfPending fires the drain callback when the connection held and there
// is queued work.
func (m *Monitor) drainIfPending(ctx context.Context) {
	if !m.online.Load() || m.onOnline == nil {
		return
	}

	pending, err := m.store.SyncQueueLength(ctx)
	if err != nil {
		m.logger.Error("failed to check queue before drain", "error", err)
		return
	}
	if pending == 0 {
		return
	}

	m.logger.Info("connection settled, draining queue", "pending", pending)
	m.onOnline(ctx)
}
