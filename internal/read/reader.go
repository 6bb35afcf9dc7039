// Package read serves collection reads from the best available source.
//
// Online, collections come from the server and are cached until the sync
// engine invalidates them; local changes that have not synced yet are
// overlaid so the user always sees their own writes. Offline, everything
// comes from the local store.
package read

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/errors"
	"github.com/linkstashapp/linkstash-sync/internal/events"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/linkstashapp/linkstash-sync/internal/util"
)

// RemoteLister is the slice of the API client the reader needs.
type RemoteLister interface {
	ListLinks(ctx context.Context) ([]*domain.Link, error)
	ListTags(ctx context.Context) ([]*domain.Tag, error)
}

// HybridReader serves reads from the server when online and from the local
// store when offline.
type HybridReader struct {
	store  *store.Store
	api    RemoteLister
	online func() bool
	bus    *events.Bus
	logger *slog.Logger

	mu         sync.RWMutex
	linkCache  []*domain.Link
	tagCache   []*domain.Tag
	linksValid bool
	tagsValid  bool
}

// Config holds reader dependencies.
type Config struct {
	Store  *store.Store
	API    RemoteLister
	Bus    *events.Bus
	Logger *slog.Logger

	// Online reports current connectivity. Typically Monitor.Online.
	Online func() bool
}

// New creates a hybrid reader.
func New(cfg Config) *HybridReader {
	if cfg.Online == nil {
		cfg.Online = func() bool { return false }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &HybridReader{
		store:  cfg.Store,
		api:    cfg.API,
		online: cfg.Online,
		bus:    cfg.Bus,
		logger: cfg.Logger,
	}
}

// Links returns the user's links. Online, the server list is overlaid with
// local changes that have not synced yet; a failed fetch falls back to the
// local store rather than erroring the read.
func (r *HybridReader) Links(ctx context.Context, userID string) ([]*domain.Link, error) {
	if !r.online() {
		return r.localLinks(ctx, userID)
	}

	remote, err := r.remoteLinks(ctx)
	if err != nil {
		r.logger.Warn("remote link fetch failed, serving local replica", "error", err)
		return r.localLinks(ctx, userID)
	}
	return r.overlayLinks(ctx, userID, remote)
}

// Tags returns the user's tags. Online, the result is the union of the
// server's tags and local tags that have not synced yet, deduplicated by
// case-folded name with the local record winning.
func (r *HybridReader) Tags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	if !r.online() {
		return r.localTags(ctx, userID)
	}

	remote, err := r.remoteTags(ctx)
	if err != nil {
		r.logger.Warn("remote tag fetch failed, serving local replica", "error", err)
		return r.localTags(ctx, userID)
	}
	return r.overlayTags(ctx, userID, remote)
}

// SearchLinks is a local-only read: search always reflects the replica.
func (r *HybridReader) SearchLinks(ctx context.Context, userID, query string) ([]*domain.Link, error) {
	links, err := r.store.SearchLinks(ctx, userID, query)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return links, nil
}

// Invalidate flushes cached collections for the given entity types and
// announces the invalidation so subscribed views refetch.
// Implements the sync engine's invalidator hook.
func (r *HybridReader) Invalidate(entities ...domain.EntityType) {
	r.mu.Lock()
	for _, entity := range entities {
		switch entity {
		case domain.EntityLink, domain.EntityLinkTag:
			r.linksValid = false
			r.linkCache = nil
		case domain.EntityTag:
			r.tagsValid = false
			r.tagCache = nil
		}
	}
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Emit(events.NewDataInvalidatedEvent())
	}
}

// Subscribe registers for change notifications. The caller receives entity
// change, sync, connectivity, and invalidation events for the given types
// (all types when none are given).
func (r *HybridReader) Subscribe(types ...events.EventType) (*events.Subscriber, error) {
	return r.bus.Subscribe(types...)
}

// Unsubscribe releases a subscriber.
func (r *HybridReader) Unsubscribe(sub *events.Subscriber) {
	r.bus.Unsubscribe(sub.ID)
}

func (r *HybridReader) localLinks(ctx context.Context, userID string) ([]*domain.Link, error) {
	links, err := r.store.ListLinksByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return links, nil
}

func (r *HybridReader) localTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	tags, err := r.store.ListTagsByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return tags, nil
}

func (r *HybridReader) remoteLinks(ctx context.Context) ([]*domain.Link, error) {
	r.mu.RLock()
	if r.linksValid {
		cached := r.linkCache
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	links, err := r.api.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.linkCache = links
	r.linksValid = true
	r.mu.Unlock()
	return links, nil
}

func (r *HybridReader) remoteTags(ctx context.Context) ([]*domain.Tag, error) {
	r.mu.RLock()
	if r.tagsValid {
		cached := r.tagCache
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	tags, err := r.api.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.tagCache = tags
	r.tagsValid = true
	r.mu.Unlock()
	return tags, nil
}

// overlayLinks merges the server list with local state the server has not
// seen yet: unsynced local links replace or extend the server's, and links
// with a pending local delete disappear immediately.
func (r *HybridReader) overlayLinks(ctx context.Context, userID string, remote []*domain.Link) ([]*domain.Link, error) {
	local, err := r.localLinks(ctx, userID)
	if err != nil {
		return nil, err
	}
	pendingDeletes, err := r.pendingDeletes(ctx, domain.EntityLink)
	if err != nil {
		return nil, err
	}

	merged := make([]*domain.Link, 0, len(remote)+len(local))
	seen := make(map[string]bool, len(remote)+len(local))

	for _, link := range local {
		if link.Synced {
			continue
		}
		merged = append(merged, link)
		seen[link.ID] = true
	}
	for _, link := range remote {
		if seen[link.ID] || pendingDeletes[link.ID] {
			continue
		}
		merged = append(merged, link)
	}
	return merged, nil
}

// overlayTags unions server and local unsynced tags by folded name. The
// local record wins: the user's own rename or create shows immediately.
func (r *HybridReader) overlayTags(ctx context.Context, userID string, remote []*domain.Tag) ([]*domain.Tag, error) {
	local, err := r.localTags(ctx, userID)
	if err != nil {
		return nil, err
	}
	pendingDeletes, err := r.pendingDeletes(ctx, domain.EntityTag)
	if err != nil {
		return nil, err
	}

	merged := make([]*domain.Tag, 0, len(remote)+len(local))
	seenNames := make(map[string]bool, len(remote)+len(local))

	for _, tag := range local {
		if tag.Synced {
			continue
		}
		merged = append(merged, tag)
		seenNames[util.FoldTagName(tag.Name)] = true
	}
	for _, tag := range remote {
		if seenNames[util.FoldTagName(tag.Name)] || pendingDeletes[tag.ID] {
			continue
		}
		merged = append(merged, tag)
	}
	return merged, nil
}

// pendingDeletes collects entity ids with a queued delete, so remote rows
// the user already removed do not resurface while the queue drains.
func (r *HybridReader) pendingDeletes(ctx context.Context, entity domain.EntityType) (map[string]bool, error) {
	items, err := r.store.ListSyncQueue(ctx)
	if err != nil {
		return nil, errors.Storage(err)
	}

	deletes := make(map[string]bool)
	for _, item := range items {
		if item.EntityType == entity && item.OperationType == domain.OpDelete {
			deletes[item.EntityID] = true
		}
	}
	return deletes, nil
}
