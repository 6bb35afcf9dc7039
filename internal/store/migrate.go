package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// schemaVersion is the current on-disk schema version.
//
// History:
//
//	v1: initial schema (links, tags, link-tags, queue)
//	v2: links gained IsFavorite; existing links are rewritten so the field
//	    is materialized and index entries stay consistent
const schemaVersion = 2

var schemaKey = []byte("schema:version")

// Migrate brings the database up to the current schema version.
// Called once on store open, before any reads are served.
func (s *Store) Migrate(ctx context.Context) error {
	current, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if current == schemaVersion {
		return nil
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	// Fresh database: stamp and done.
	if current == 0 {
		empty, err := s.isEmpty()
		if err != nil {
			return err
		}
		if empty {
			return s.setSchemaVersion(schemaVersion)
		}
		// Pre-versioning databases are v1.
		current = 1
	}

	if s.logger != nil {
		s.logger.Info("migrating store schema", "from", current, "to", schemaVersion)
	}

	for v := current; v < schemaVersion; v++ {
		var err error
		switch v {
		case 1:
			err = s.migrateV1toV2(ctx)
		default:
			err = fmt.Errorf("no migration path from schema version %d", v)
		}
		if err != nil {
			return fmt.Errorf("migrate v%d to v%d: %w", v, v+1, err)
		}
		if err := s.setSchemaVersion(v + 1); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1toV2 rewrites every link so IsFavorite is materialized as false
// and index entries are regenerated.
func (s *Store) migrateV1toV2(ctx context.Context) error {
	var ids []string
	for link, err := range s.Links.List(ctx) {
		if err != nil {
			return err
		}
		ids = append(ids, link.ID)
	}

	for _, id := range ids {
		link, err := s.Links.Get(ctx, id)
		if err != nil {
			return err
		}
		// Unmarshal already defaults IsFavorite to false; the rewrite
		// persists it.
		if err := s.Links.Update(ctx, id, link); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("backfilled favorite flag on links", "count", len(ids))
	}
	return nil
}

func (s *Store) getSchemaVersion() (int, error) {
	var version int
	err := s.get(schemaKey, &version)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(version int) error {
	if err := s.set(schemaKey, version); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// isEmpty reports whether the database holds no keys at all.
func (s *Store) isEmpty() (bool, error) {
	empty := true
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if it.Valid() {
			empty = false
		}
		return nil
	})
	return empty, err
}
