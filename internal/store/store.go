// Package store provides the local replica of bookmark data on top of an
// embedded Badger database. It holds links, tags, link-tag associations, and
// the durable sync queue.
package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/util"
)

// EventEmitter is the interface for emitting bus events.
// Store uses this to broadcast changes without depending on bus implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// SearchIndexer is the interface for updating the search index.
// Store uses this to keep search in sync without depending on search implementation.
type SearchIndexer interface {
	IndexLink(ctx context.Context, link *domain.Link) error
	DeleteLink(ctx context.Context, linkID string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexLink is a no-op.
func (NoopSearchIndexer) IndexLink(context.Context, *domain.Link) error { return nil }

// DeleteLink is a no-op.
func (NoopSearchIndexer) DeleteLink(context.Context, string) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Event emitter for broadcasting changes.
	eventEmitter EventEmitter

	// Search indexer for keeping search in sync with store changes.
	// Set via SetSearchIndexer after store creation to avoid circular dependencies.
	searchIndexer SearchIndexer

	// Generic entities
	Links    *Entity[domain.Link]
	Tags     *Entity[domain.Tag]
	LinkTags *Entity[domain.LinkTag]
}

// New creates a new Store instance with the given database path and event emitter.
// The emitter is required and used to broadcast store changes.
func New(path string, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Writes survive process crashes, required for queue durability
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
	}

	// Initialize generic entities
	store.initLinks()
	store.initTags()
	store.initLinkTags()

	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
// This is set after store creation to avoid circular dependencies
// (store needs to exist before the search index can be created).
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.searchIndexer = indexer
}

// Helper methods for database operations.

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// delete removes a key from the database.
func (s *Store) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// initLinks initializes the Links entity on the store.
// Indexed by user (all links of a user) and by tag name within a user
// (folded, so lookups are case-insensitive).
func (s *Store) initLinks() {
	s.Links = NewEntity[domain.Link](s, "link:").
		WithIndex("user", func(l *domain.Link) []string {
			return []string{l.UserID}
		}).
		WithIndex("tag", func(l *domain.Link) []string {
			keys := make([]string, 0, len(l.Tags))
			for _, tag := range l.Tags {
				keys = append(keys, l.UserID+":"+util.FoldTagName(tag))
			}
			return keys
		})
}

// initTags initializes the Tags entity on the store.
// Tag names are unique per user, compared case-insensitively.
func (s *Store) initTags() {
	s.Tags = NewEntity[domain.Tag](s, "tag:").
		WithIndex("user", func(t *domain.Tag) []string {
			return []string{t.UserID}
		}).
		WithUniqueIndexTransform("name",
			func(t *domain.Tag) []string {
				return []string{t.UserID + ":" + util.FoldTagName(t.Name)}
			},
			// Lookups arrive as "userID:name"; fold only the name part.
			foldNameLookup,
		)
}

// initLinkTags initializes the LinkTags entity on the store.
// Indexed by link and by tag for cascade lookups in both directions.
func (s *Store) initLinkTags() {
	s.LinkTags = NewEntity[domain.LinkTag](s, "lt:").
		WithIndex("link", func(lt *domain.LinkTag) []string {
			return []string{lt.LinkID}
		}).
		WithIndex("tag", func(lt *domain.LinkTag) []string {
			return []string{lt.TagID}
		})
}

// foldNameLookup transforms a "userID:name" lookup value, folding the name.
func foldNameLookup(value string) string {
	for i := range len(value) {
		if value[i] == ':' {
			return value[:i+1] + util.FoldTagName(value[i+1:])
		}
	}
	return util.FoldTagName(value)
}
