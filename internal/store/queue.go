package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

// Sync Queue Operations
//
// Queue keys embed the enqueue timestamp so a prefix scan yields items in
// the order they were created. This ordering is what lets the sync engine
// replay offline work against the server without breaking causality
// (a link must be created before its tag association, etc.).

const queuePrefix = "queue:"

// queueKey builds the ordered storage key for a queue item.
func queueKey(item *domain.SyncQueueItem) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", queuePrefix, item.Timestamp.UnixNano(), item.ID))
}

// EnqueueSyncItem durably appends an item to the sync queue.
func (s *Store) EnqueueSyncItem(ctx context.Context, item *domain.SyncQueueItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(queueKey(item), data)
	})
	if err != nil {
		return fmt.Errorf("enqueue sync item: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("sync item enqueued",
			"id", item.ID,
			"entity", string(item.EntityType),
			"op", string(item.OperationType),
		)
	}
	return nil
}

// ListSyncQueue returns all pending queue items in enqueue order.
func (s *Store) ListSyncQueue(ctx context.Context) ([]*domain.SyncQueueItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []*domain.SyncQueueItem
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(queuePrefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(queuePrefix)); it.ValidForPrefix([]byte(queuePrefix)); it.Next() {
			var item domain.SyncQueueItem
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				return fmt.Errorf("unmarshal queue item: %w", err)
			}
			items = append(items, &item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sync queue: %w", err)
	}

	return items, nil
}

// UpdateSyncItem rewrites a queue item in place (attempt bookkeeping).
// The item keeps its position because the key is derived from the original
// enqueue timestamp.
func (s *Store) UpdateSyncItem(ctx context.Context, item *domain.SyncQueueItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}

	key := queueKey(item)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("update sync item: %w", err)
	}
	return nil
}

// DeleteSyncItem removes a completed or dropped queue item. Idempotent.
func (s *Store) DeleteSyncItem(ctx context.Context, item *domain.SyncQueueItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(queueKey(item))
	})
	if err != nil {
		return fmt.Errorf("delete sync item: %w", err)
	}
	return nil
}

// DeleteSyncItemsForEntity removes every pending queue item targeting the
// given entity, returning how many were purged. Used when a never-synced
// entity is deleted locally: replaying its create and updates against the
// server would be pointless round trips.
func (s *Store) DeleteSyncItemsForEntity(ctx context.Context, entity domain.EntityType, entityID string) (int, error) {
	items, err := s.ListSyncQueue(ctx)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, item := range items {
		if item.EntityType != entity || item.EntityID != entityID {
			continue
		}
		if err := s.DeleteSyncItem(ctx, item); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 && s.logger != nil {
		s.logger.Debug("purged pending sync items",
			"entity", string(entity),
			"entity_id", entityID,
			"count", purged,
		)
	}
	return purged, nil
}

// SyncQueueLength returns the number of pending queue items.
func (s *Store) SyncQueueLength(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(queuePrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(queuePrefix)); it.ValidForPrefix([]byte(queuePrefix)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count sync queue: %w", err)
	}
	return count, nil
}

// OldestSyncItemAge returns how long the head of the queue has been waiting,
// or zero if the queue is empty. Useful for surfacing sync lag.
func (s *Store) OldestSyncItemAge(ctx context.Context) (time.Duration, error) {
	items, err := s.ListSyncQueue(ctx)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	return time.Since(items[0].Timestamp), nil
}
