package store

import (
	"context"
	"fmt"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

// Sync Bookkeeping
//
// The engine calls these after a successful remote replay. They flip the
// Synced flag without touching LastModified and without emitting change
// events: nothing the user can see has changed.

// MarkLinkSynced records that the link's current state reached the server.
func (s *Store) MarkLinkSynced(ctx context.Context, id string) error {
	link, err := s.Links.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("mark link synced: %w", err)
	}
	link.MarkSynced()
	if err := s.Links.Update(ctx, id, link); err != nil {
		return fmt.Errorf("mark link synced: %w", err)
	}
	return nil
}

// MarkTagSynced records that the tag's current state reached the server.
func (s *Store) MarkTagSynced(ctx context.Context, id string) error {
	tag, err := s.Tags.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("mark tag synced: %w", err)
	}
	tag.MarkSynced()
	if err := s.Tags.Update(ctx, id, tag); err != nil {
		return fmt.Errorf("mark tag synced: %w", err)
	}
	return nil
}

// MarkLinkTagSynced records that the association reached the server.
func (s *Store) MarkLinkTagSynced(ctx context.Context, id string) error {
	lt, err := s.LinkTags.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("mark link-tag synced: %w", err)
	}
	lt.MarkSynced()
	if err := s.LinkTags.Update(ctx, id, lt); err != nil {
		return fmt.Errorf("mark link-tag synced: %w", err)
	}
	return nil
}

// RemapTagID rewrites a tag under a new id, moving its association rows
// along. Used when the server deduplicates a tag create by name and answers
// with an id that differs from the locally generated one.
func (s *Store) RemapTagID(ctx context.Context, oldID, newID string) error {
	tag, err := s.Tags.Get(ctx, oldID)
	if err != nil {
		return fmt.Errorf("remap tag: %w", err)
	}

	if err := s.Tags.Delete(ctx, oldID); err != nil {
		return fmt.Errorf("remap tag: %w", err)
	}
	tag.ID = newID
	tag.MarkSynced()
	if err := s.Tags.Create(ctx, newID, tag); err != nil {
		return fmt.Errorf("remap tag: %w", err)
	}

	lts, err := s.ListLinkTagsByTag(ctx, oldID)
	if err != nil {
		return fmt.Errorf("remap tag associations: %w", err)
	}
	for _, lt := range lts {
		if err := s.LinkTags.Delete(ctx, lt.ID); err != nil {
			return fmt.Errorf("remap tag associations: %w", err)
		}
		remapped := *lt
		remapped.TagID = newID
		remapped.ID = domain.LinkTagKey(lt.LinkID, newID)
		if err := s.LinkTags.Create(ctx, remapped.ID, &remapped); err != nil {
			return fmt.Errorf("remap tag associations: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Debug("tag id remapped",
			"old_id", oldID,
			"new_id", newID,
			"associations", len(lts),
		)
	}
	return nil
}
