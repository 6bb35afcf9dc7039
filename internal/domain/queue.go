package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies which replicated table a queued operation targets.
type EntityType string

// Entity types carried by sync queue items.
const (
	EntityLink    EntityType = "link"
	EntityTag     EntityType = "tag"
	EntityLinkTag EntityType = "linkTag"
)

// OperationType identifies the remote operation a queue item replays.
type OperationType string

// Operation types carried by sync queue items.
const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// SyncQueueItem is one pending remote operation in the durable sync queue.
//
// Timestamp is the enqueue time and defines replay order: older operations for
// the same entity are always attempted before newer ones, preserving
// create-before-update-before-delete ordering per entity.
type SyncQueueItem struct {
	Timestamp     time.Time       `json:"timestamp"`
	LastAttempt   *time.Time      `json:"last_attempt,omitempty"`
	ID            string          `json:"id"`
	EntityType    EntityType      `json:"entity_type"`
	OperationType OperationType   `json:"operation_type"`
	EntityID      string          `json:"entity_id"`
	Error         string          `json:"error,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Attempts      int             `json:"attempts"`
}

// NewSyncQueueItem builds a queue item for one entity operation. The payload
// is snapshotted at enqueue time so later local edits cannot change what gets
// replayed. The id is derived from the operation coordinates plus the enqueue
// timestamp, so two distinct operations never collide accidentally.
func NewSyncQueueItem(entity EntityType, op OperationType, entityID string, payload any) (*SyncQueueItem, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal queue payload: %w", err)
		}
		data = b
	}

	now := time.Now()
	return &SyncQueueItem{
		ID:            fmt.Sprintf("%s-%s-%s-%d", entity, op, entityID, now.UnixNano()),
		EntityType:    entity,
		OperationType: op,
		EntityID:      entityID,
		Data:          data,
		Timestamp:     now,
	}, nil
}

// RecordFailure increments the attempt counter and remembers the last error.
func (i *SyncQueueItem) RecordFailure(err error) {
	now := time.Now()
	i.Attempts++
	i.LastAttempt = &now
	if err != nil {
		i.Error = err.Error()
	}
}

// Exhausted reports whether the item has reached the attempt ceiling and must
// be purged from the queue.
func (i *SyncQueueItem) Exhausted(maxAttempts int) bool {
	return i.Attempts >= maxAttempts
}

// DecodePayload unmarshals the snapshotted payload into dest.
func (i *SyncQueueItem) DecodePayload(dest any) error {
	if len(i.Data) == 0 {
		return fmt.Errorf("queue item %s has no payload", i.ID)
	}
	if err := json.Unmarshal(i.Data, dest); err != nil {
		return fmt.Errorf("decode queue payload: %w", err)
	}
	return nil
}
