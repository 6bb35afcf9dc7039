// Package events implements an in-process event bus for notifying the
// application shell about data and sync state changes.
package events

import (
	"time"
)

// EventType represents the type of bus event.
type EventType string

const (
	// EventLinkCreated represents a link creation event.
	EventLinkCreated EventType = "link.created"
	// EventLinkUpdated represents a link update event.
	EventLinkUpdated EventType = "link.updated"
	// EventLinkDeleted represents a link deletion event.
	EventLinkDeleted EventType = "link.deleted"

	// EventTagCreated represents a tag creation event.
	EventTagCreated EventType = "tag.created"
	// EventTagUpdated represents a tag update event.
	EventTagUpdated EventType = "tag.updated"
	// EventTagDeleted represents a tag deletion event.
	EventTagDeleted EventType = "tag.deleted"

	// EventSyncStarted fires when a drain pass begins.
	EventSyncStarted EventType = "sync.started"
	// EventSyncCompleted fires when a drain pass finishes, successfully or not.
	EventSyncCompleted EventType = "sync.completed"
	// EventSyncItemDropped fires when a queue item hits the attempt ceiling
	// and is discarded.
	EventSyncItemDropped EventType = "sync.item_dropped"

	// EventConnectivityChanged fires when the online/offline state settles.
	EventConnectivityChanged EventType = "connectivity.changed"

	// EventDataInvalidated tells read-layer consumers to refetch.
	EventDataInvalidated EventType = "data.invalidated"
)

// Event represents a bus event delivered to subscribers.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// EntityEventData is the data payload for link and tag CRUD events.
type EntityEventData struct {
	EntityID string `json:"entity_id"`
	UserID   string `json:"user_id"`
}

// SyncCompletedEventData is the data payload for sync.completed events.
type SyncCompletedEventData struct {
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Dropped   int  `json:"dropped"`
	Remaining int  `json:"remaining"`
	Online    bool `json:"online"`
}

// SyncItemDroppedEventData is the data payload for sync.item_dropped events.
type SyncItemDroppedEventData struct {
	ItemID    string `json:"item_id"`
	EntityID  string `json:"entity_id"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
	Attempts  int    `json:"attempts"`
}

// ConnectivityEventData is the data payload for connectivity.changed events.
type ConnectivityEventData struct {
	Online bool `json:"online"`
}

// NewEntityEvent creates a link or tag CRUD event.
func NewEntityEvent(t EventType, userID, entityID string) Event {
	return Event{
		Type:      t,
		Data:      EntityEventData{EntityID: entityID, UserID: userID},
		Timestamp: time.Now(),
	}
}

// NewSyncStartedEvent creates a sync.started event.
func NewSyncStartedEvent() Event {
	return Event{Type: EventSyncStarted, Timestamp: time.Now()}
}

// NewSyncCompletedEvent creates a sync.completed event.
func NewSyncCompletedEvent(data SyncCompletedEventData) Event {
	return Event{Type: EventSyncCompleted, Data: data, Timestamp: time.Now()}
}

// NewSyncItemDroppedEvent creates a sync.item_dropped event.
func NewSyncItemDroppedEvent(data SyncItemDroppedEventData) Event {
	return Event{Type: EventSyncItemDropped, Data: data, Timestamp: time.Now()}
}

// NewConnectivityChangedEvent creates a connectivity.changed event.
func NewConnectivityChangedEvent(online bool) Event {
	return Event{
		Type:      EventConnectivityChanged,
		Data:      ConnectivityEventData{Online: online},
		Timestamp: time.Now(),
	}
}

// NewDataInvalidatedEvent creates a data.invalidated event.
func NewDataInvalidatedEvent() Event {
	return Event{Type: EventDataInvalidated, Timestamp: time.Now()}
}
