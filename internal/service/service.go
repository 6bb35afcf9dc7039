// Package service implements the local-first mutation layer.
//
// Every mutator follows the same shape: validate, apply the change to the
// local store, then enqueue the corresponding operation for the sync engine.
// The local write is the source of truth for the UI; the queue is how the
// change eventually reaches the server. A mutation never waits on the
// network.
package service

import (
	"context"
	"fmt"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/store"
)

// enqueue records an operation on the durable sync queue.
func enqueue(ctx context.Context, st *store.Store, entity domain.EntityType, op domain.OperationType, entityID string, payload any) error {
	item, err := domain.NewSyncQueueItem(entity, op, entityID, payload)
	if err != nil {
		return fmt.Errorf("build queue item: %w", err)
	}
	if err := st.EnqueueSyncItem(ctx, item); err != nil {
		return fmt.Errorf("enqueue %s %s: %w", op, entity, err)
	}
	return nil
}

// hasPendingCreate reports whether the entity's create operation is still
// waiting on the queue. Such an entity has never reached the server, even
// when later local edits already reset its Synced flag.
func hasPendingCreate(ctx context.Context, st *store.Store, entity domain.EntityType, entityID string) (bool, error) {
	items, err := st.ListSyncQueue(ctx)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.EntityType == entity && item.EntityID == entityID && item.OperationType == domain.OpCreate {
			return true, nil
		}
	}
	return false, nil
}
