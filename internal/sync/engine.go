// Package sync drains the durable operation queue against the remote API.
//
// Delivery is at-least-once: the server accepts client-generated ids, so a
// replayed create is harmless. Items are dispatched strictly in enqueue
// order. A failed item stays on the queue and counts an attempt; once it
// reaches the attempt ceiling it is dropped and the drop is announced on
// the event bus so the host UI can surface it.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/errors"
	"github.com/linkstashapp/linkstash-sync/internal/events"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/linkstashapp/linkstash-sync/internal/util"
)

// RemoteAPI is the slice of the server the engine replays operations against.
// Implemented by api.Client; faked in tests.
type RemoteAPI interface {
	CreateLink(ctx context.Context, link *domain.Link) error
	UpdateLink(ctx context.Context, link *domain.Link) error
	DeleteLink(ctx context.Context, linkID string) error

	CreateTag(ctx context.Context, tag *domain.Tag) (*domain.Tag, error)
	ListTags(ctx context.Context) ([]*domain.Tag, error)
	UpdateTag(ctx context.Context, tag *domain.Tag) error
	DeleteTag(ctx context.Context, tagID string) error

	CreateLinkTag(ctx context.Context, lt *domain.LinkTag) error
	DeleteLinkTag(ctx context.Context, linkID, tagID string) error
}

// Invalidator is notified after a drain pass touches entity types, so read
// caches can be flushed.
type Invalidator interface {
	Invalidate(entities ...domain.EntityType)
}

// Engine drains the sync queue.
type Engine struct {
	store       *store.Store
	api         RemoteAPI
	bus         store.EventEmitter
	invalidator Invalidator
	logger      *slog.Logger
	maxAttempts int
	syncing     atomic.Bool
}

// Config holds engine dependencies.
type Config struct {
	Store       *store.Store
	API         RemoteAPI
	Bus         store.EventEmitter
	Invalidator Invalidator
	Logger      *slog.Logger
	MaxAttempts int
}

// New creates a sync engine.
func New(cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Bus == nil {
		cfg.Bus = store.NewNoopEmitter()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:       cfg.Store,
		api:         cfg.API,
		bus:         cfg.Bus,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Result summarizes one drain pass.
type Result struct {
	Synced    int
	Failed    int
	Dropped   int
	Remaining int
	// Skipped is true when another drain was already running.
	Skipped bool
}

// Syncing reports whether a drain pass is currently running.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// SetInvalidator wires the read-layer cache invalidation hook after
// construction. The reader depends on the monitor, which depends on the
// engine, so this edge cannot be set in the constructor.
func (e *Engine) SetInvalidator(inv Invalidator) {
	e.invalidator = inv
}

// Drain replays pending queue items against the server, oldest first.
//
// Concurrent calls are no-ops: only one drain runs at a time. An empty
// queue returns immediately without announcing anything. Per-item failures
// never abort the pass.
func (e *Engine) Drain(ctx context.Context) (Result, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		return Result{Skipped: true}, nil
	}
	defer e.syncing.Store(false)

	items, err := e.store.ListSyncQueue(ctx)
	if err != nil {
		return Result{}, errors.Storage(err)
	}
	if len(items) == 0 {
		return Result{}, nil
	}

	e.bus.Emit(events.NewSyncStartedEvent())
	e.logger.Info("sync drain started", "pending", len(items))

	var result Result
	touched := make(map[domain.EntityType]bool)

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}

		if err := e.dispatch(ctx, item, items[i+1:]); err != nil {
			item.RecordFailure(err)
			if item.Exhausted(e.maxAttempts) {
				if derr := e.store.DeleteSyncItem(ctx, item); derr != nil {
					e.logger.Error("failed to drop exhausted sync item", "item_id", item.ID, "error", derr)
				}
				e.bus.Emit(events.NewSyncItemDroppedEvent(events.SyncItemDroppedEventData{
					ItemID:    item.ID,
					EntityID:  item.EntityID,
					Operation: string(item.OperationType),
					Error:     item.Error,
					Attempts:  item.Attempts,
				}))
				e.logger.Warn("sync item dropped after attempt ceiling",
					"item_id", item.ID,
					"entity", string(item.EntityType),
					"op", string(item.OperationType),
					"attempts", item.Attempts,
					"error", item.Error,
				)
				result.Dropped++
			} else {
				if uerr := e.store.UpdateSyncItem(ctx, item); uerr != nil {
					e.logger.Error("failed to record sync attempt", "item_id", item.ID, "error", uerr)
				}
				result.Failed++
			}
			continue
		}

		if err := e.store.DeleteSyncItem(ctx, item); err != nil {
			e.logger.Error("failed to dequeue synced item", "item_id", item.ID, "error", err)
		}
		touched[item.EntityType] = true
		result.Synced++
	}

	if e.invalidator != nil && len(touched) > 0 {
		entityTypes := make([]domain.EntityType, 0, len(touched))
		for et := range touched {
			entityTypes = append(entityTypes, et)
		}
		e.invalidator.Invalidate(entityTypes...)
	}

	remaining, err := e.store.SyncQueueLength(ctx)
	if err != nil {
		e.logger.Error("failed to count remaining queue items", "error", err)
	}
	result.Remaining = remaining

	e.bus.Emit(events.NewSyncCompletedEvent(events.SyncCompletedEventData{
		Synced:    result.Synced,
		Failed:    result.Failed,
		Dropped:   result.Dropped,
		Remaining: result.Remaining,
		Online:    true,
	}))
	e.logger.Info("sync drain finished",
		"synced", result.Synced,
		"failed", result.Failed,
		"dropped", result.Dropped,
		"remaining", result.Remaining,
	)
	return result, nil
}

// dispatch replays one queue item against the server and updates local sync
// bookkeeping on success. pending carries the not-yet-dispatched remainder of
// the pass, so a tag id remap can rewrite items before they are replayed.
func (e *Engine) dispatch(ctx context.Context, item *domain.SyncQueueItem, pending []*domain.SyncQueueItem) error {
	switch item.EntityType {
	case domain.EntityLink:
		return e.dispatchLink(ctx, item)
	case domain.EntityTag:
		return e.dispatchTag(ctx, item, pending)
	case domain.EntityLinkTag:
		return e.dispatchLinkTag(ctx, item)
	default:
		return errors.Rejectedf("unknown queue entity type %q", item.EntityType)
	}
}

func (e *Engine) dispatchLink(ctx context.Context, item *domain.SyncQueueItem) error {
	switch item.OperationType {
	case domain.OpCreate, domain.OpUpdate:
		var link domain.Link
		if err := item.DecodePayload(&link); err != nil {
			return errors.Rejected(err.Error())
		}
		var err error
		if item.OperationType == domain.OpCreate {
			err = e.api.CreateLink(ctx, &link)
		} else {
			err = e.api.UpdateLink(ctx, &link)
		}
		if err != nil {
			return err
		}
		return e.markSynced(ctx, e.store.MarkLinkSynced, link.ID)

	case domain.OpDelete:
		return e.api.DeleteLink(ctx, item.EntityID)

	default:
		return errors.Rejectedf("unknown queue operation %q", item.OperationType)
	}
}

func (e *Engine) dispatchTag(ctx context.Context, item *domain.SyncQueueItem, pending []*domain.SyncQueueItem) error {
	switch item.OperationType {
	case domain.OpCreate:
		var tag domain.Tag
		if err := item.DecodePayload(&tag); err != nil {
			return errors.Rejected(err.Error())
		}

		// The server may already hold this name under another id, created
		// from another device. Check before creating so the replay stays
		// idempotent against a plain-create server.
		existing, err := e.remoteTagByName(ctx, tag.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.ID == tag.ID {
				return e.markSynced(ctx, e.store.MarkTagSynced, tag.ID)
			}
			return e.adoptCanonicalTag(ctx, tag.ID, existing, pending)
		}

		canonical, err := e.api.CreateTag(ctx, &tag)
		if err != nil {
			return err
		}
		if canonical.ID != tag.ID {
			// A deduplicating server answered with its own record anyway.
			// Adopt the server identity locally.
			return e.adoptCanonicalTag(ctx, tag.ID, canonical, pending)
		}
		return e.markSynced(ctx, e.store.MarkTagSynced, tag.ID)

	case domain.OpUpdate:
		var tag domain.Tag
		if err := item.DecodePayload(&tag); err != nil {
			return errors.Rejected(err.Error())
		}
		if err := e.api.UpdateTag(ctx, &tag); err != nil {
			return err
		}
		return e.markSynced(ctx, e.store.MarkTagSynced, tag.ID)

	case domain.OpDelete:
		return e.api.DeleteTag(ctx, item.EntityID)

	default:
		return errors.Rejectedf("unknown queue operation %q", item.OperationType)
	}
}

func (e *Engine) dispatchLinkTag(ctx context.Context, item *domain.SyncQueueItem) error {
	var lt domain.LinkTag
	if err := item.DecodePayload(&lt); err != nil {
		return errors.Rejected(err.Error())
	}

	switch item.OperationType {
	case domain.OpCreate:
		if err := e.api.CreateLinkTag(ctx, &lt); err != nil {
			return err
		}
		return e.markSynced(ctx, e.store.MarkLinkTagSynced, lt.ID)

	case domain.OpDelete:
		return e.api.DeleteLinkTag(ctx, lt.LinkID, lt.TagID)

	default:
		return errors.Rejectedf("unknown queue operation %q", item.OperationType)
	}
}

// markSynced flips the local Synced flag, tolerating an entity that was
// deleted locally while its create or update was still queued.
func (e *Engine) markSynced(ctx context.Context, mark func(context.Context, string) error, id string) error {
	if err := mark(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Storage(err)
	}
	return nil
}

// remoteTagByName fetches the server's current tag list and returns the tag
// whose name matches under case folding, or nil when there is none. The list
// is scoped to the authenticated user by the API.
func (e *Engine) remoteTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	serverTags, err := e.api.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	folded := util.FoldTagName(name)
	for _, tag := range serverTags {
		if util.FoldTagName(tag.Name) == folded {
			return tag, nil
		}
	}
	return nil, nil
}

// adoptCanonicalTag replaces the locally generated tag id with the server's
// and rewrites every pending queue item still referencing the old id.
func (e *Engine) adoptCanonicalTag(ctx context.Context, localID string, canonical *domain.Tag, pending []*domain.SyncQueueItem) error {
	e.logger.Info("adopting server tag identity",
		"local_id", localID,
		"server_id", canonical.ID,
		"name", canonical.Name,
	)

	if err := e.store.RemapTagID(ctx, localID, canonical.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Tag was deleted locally while queued. Nothing to remap.
			return nil
		}
		return errors.Storage(err)
	}

	return e.rewritePendingTagRefs(ctx, pending, localID, canonical.ID)
}

// rewritePendingTagRefs updates queued items that still point at the old tag
// id, both in the durable queue and in the in-flight snapshot of the current
// pass. Items keep their queue position; only the payload changes.
func (e *Engine) rewritePendingTagRefs(ctx context.Context, pending []*domain.SyncQueueItem, oldID, newID string) error {
	for _, item := range pending {
		switch item.EntityType {
		case domain.EntityTag:
			if item.EntityID != oldID {
				continue
			}
			var tag domain.Tag
			if err := item.DecodePayload(&tag); err != nil {
				continue
			}
			tag.ID = newID
			if err := rewriteItem(item, newID, tag); err != nil {
				return err
			}

		case domain.EntityLinkTag:
			var lt domain.LinkTag
			if err := item.DecodePayload(&lt); err != nil {
				continue
			}
			if lt.TagID != oldID {
				continue
			}
			lt.TagID = newID
			lt.ID = domain.LinkTagKey(lt.LinkID, newID)
			if err := rewriteItem(item, lt.ID, lt); err != nil {
				return err
			}

		default:
			continue
		}

		if err := e.store.UpdateSyncItem(ctx, item); err != nil {
			return errors.Storage(err)
		}
	}
	return nil
}

// rewriteItem swaps an item's entity reference and payload in place.
func rewriteItem(item *domain.SyncQueueItem, entityID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rewrite queue payload: %w", err)
	}
	item.EntityID = entityID
	item.Data = data
	return nil
}
