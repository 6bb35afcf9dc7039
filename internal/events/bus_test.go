package events

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testBus(t *testing.T) (*Bus, context.CancelFunc) {
	t.Helper()
	bus := NewBus(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	return bus, cancel
}

func waitForEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_DeliversToSubscriber(t *testing.T) {
	bus, cancel := testBus(t)
	defer cancel()

	sub, err := bus.Subscribe()
	require.NoError(t, err)

	bus.Emit(NewEntityEvent(EventLinkCreated, "usr-1", "lnk-1"))

	evt := waitForEvent(t, sub.EventChan)
	require.Equal(t, EventLinkCreated, evt.Type)

	data, ok := evt.Data.(EntityEventData)
	require.True(t, ok)
	require.Equal(t, "lnk-1", data.EntityID)
}

func TestBus_FiltersByType(t *testing.T) {
	bus, cancel := testBus(t)
	defer cancel()

	sub, err := bus.Subscribe(EventSyncCompleted)
	require.NoError(t, err)

	bus.Emit(NewEntityEvent(EventLinkCreated, "usr-1", "lnk-1"))
	bus.Emit(NewSyncCompletedEvent(SyncCompletedEventData{Synced: 2}))

	// Only the sync event should arrive.
	evt := waitForEvent(t, sub.EventChan)
	require.Equal(t, EventSyncCompleted, evt.Type)
	require.Empty(t, sub.EventChan)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus, cancel := testBus(t)
	defer cancel()

	sub, err := bus.Subscribe()
	require.NoError(t, err)
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(sub.ID)
	require.Equal(t, 0, bus.SubscriberCount())

	select {
	case <-sub.Done:
	default:
		t.Fatal("expected Done channel to be closed")
	}
}

func TestBus_EmitAfterShutdownIsSafe(t *testing.T) {
	bus, cancel := testBus(t)
	defer cancel()

	require.NoError(t, bus.Shutdown(context.Background()))

	// Must not panic.
	bus.Emit(NewDataInvalidatedEvent())
}
