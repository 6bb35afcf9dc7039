package connectivity_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linkstashapp/linkstash-sync/internal/connectivity"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/events"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeChecker reports whatever the test sets.
type fakeChecker struct {
	online atomic.Bool
}

func (f *fakeChecker) Check(context.Context) error {
	if f.online.Load() {
		return nil
	}
	return fmt.Errorf("unreachable")
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := event.(events.Event); ok {
		r.events = append(r.events, e)
	}
}

func (r *recordingEmitter) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func setupMonitorStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "connectivity-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})
	return s
}

func enqueueDummyItem(t *testing.T, s *store.Store) {
	t.Helper()
	item, err := domain.NewSyncQueueItem(domain.EntityLink, domain.OpDelete, "lnk-1", nil)
	require.NoError(t, err)
	require.NoError(t, s.EnqueueSyncItem(context.Background(), item))
}

func TestMonitor_InitialObservationIsSilent(t *testing.T) {
	s := setupMonitorStore(t)
	checker := &fakeChecker{}
	checker.online.Store(true)
	bus := &recordingEmitter{}

	m := connectivity.New(connectivity.Config{
		Checker: checker,
		Store:   s,
		Bus:     bus,
	})

	m.Probe(context.Background())
	require.True(t, m.Online())
	require.Zero(t, bus.count(events.EventConnectivityChanged))
}

func TestMonitor_EmitsOncePerTransition(t *testing.T) {
	s := setupMonitorStore(t)
	checker := &fakeChecker{}
	bus := &recordingEmitter{}

	m := connectivity.New(connectivity.Config{
		Checker: checker,
		Store:   s,
		Bus:     bus,
	})
	ctx := context.Background()

	m.Probe(ctx) // baseline: offline
	require.False(t, m.Online())

	// Repeated offline probes stay quiet.
	m.Probe(ctx)
	m.Probe(ctx)
	require.Zero(t, bus.count(events.EventConnectivityChanged))

	checker.online.Store(true)
	m.Probe(ctx)
	require.True(t, m.Online())
	require.Equal(t, 1, bus.count(events.EventConnectivityChanged))

	// Still online: no further events.
	m.Probe(ctx)
	require.Equal(t, 1, bus.count(events.EventConnectivityChanged))

	checker.online.Store(false)
	m.Probe(ctx)
	require.False(t, m.Online())
	require.Equal(t, 2, bus.count(events.EventConnectivityChanged))
}

func TestMonitor_DrainsAfterSettleDelay(t *testing.T) {
	s := setupMonitorStore(t)
	enqueueDummyItem(t, s)

	checker := &fakeChecker{}
	var drains atomic.Int32

	m := connectivity.New(connectivity.Config{
		Checker:     checker,
		Store:       s,
		SettleDelay: 20 * time.Millisecond,
		OnOnline: func(context.Context) {
			drains.Add(1)
		},
	})
	ctx := context.Background()

	m.Probe(ctx) // baseline: offline
	checker.online.Store(true)
	m.Probe(ctx) // recovery

	require.Eventually(t, func() bool {
		return drains.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_EmptyQueueSkipsDrain(t *testing.T) {
	s := setupMonitorStore(t)
	checker := &fakeChecker{}
	var drains atomic.Int32

	m := connectivity.New(connectivity.Config{
		Checker:     checker,
		Store:       s,
		SettleDelay: 10 * time.Millisecond,
		OnOnline: func(context.Context) {
			drains.Add(1)
		},
	})
	ctx := context.Background()

	m.Probe(ctx)
	checker.online.Store(true)
	m.Probe(ctx)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, drains.Load())
}

func TestMonitor_FlapCancelsDrain(t *testing.T) {
	s := setupMonitorStore(t)
	enqueueDummyItem(t, s)

	checker := &fakeChecker{}
	var drains atomic.Int32

	m := connectivity.New(connectivity.Config{
		Checker:     checker,
		Store:       s,
		SettleDelay: 50 * time.Millisecond,
		OnOnline: func(context.Context) {
			drains.Add(1)
		},
	})
	ctx := context.Background()

	m.Probe(ctx) // baseline: offline
	checker.online.Store(true)
	m.Probe(ctx) // recovery arms the settle timer

	// Connection drops again before the delay elapses.
	checker.online.Store(false)
	m.Probe(ctx)

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, drains.Load())
}
