package store

import (
	"context"
	"fmt"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

// LinkTag Operations
//
// Link-tag associations mirror the remote join table. The local Link keeps a
// denormalized Tags slice for fast rendering; these records exist so sync can
// replay association changes as their own operations.

// CreateLinkTag persists a link-tag association.
// Returns ErrAlreadyExists if the association already exists.
func (s *Store) CreateLinkTag(ctx context.Context, lt *domain.LinkTag) error {
	if err := s.LinkTags.Create(ctx, lt.ID, lt); err != nil {
		return fmt.Errorf("create link-tag: %w", err)
	}
	return nil
}

// GetLinkTag retrieves an association by its composite key.
func (s *Store) GetLinkTag(ctx context.Context, linkID, tagID string) (*domain.LinkTag, error) {
	return s.LinkTags.Get(ctx, domain.LinkTagKey(linkID, tagID))
}

// UpdateLinkTag updates an existing association (sync bookkeeping only).
func (s *Store) UpdateLinkTag(ctx context.Context, lt *domain.LinkTag) error {
	if err := s.LinkTags.Update(ctx, lt.ID, lt); err != nil {
		return fmt.Errorf("update link-tag: %w", err)
	}
	return nil
}

// DeleteLinkTag removes an association. Idempotent.
func (s *Store) DeleteLinkTag(ctx context.Context, linkID, tagID string) error {
	if err := s.LinkTags.Delete(ctx, domain.LinkTagKey(linkID, tagID)); err != nil {
		return fmt.Errorf("delete link-tag: %w", err)
	}
	return nil
}

// ListLinkTagsByLink returns all associations of a link.
func (s *Store) ListLinkTagsByLink(ctx context.Context, linkID string) ([]*domain.LinkTag, error) {
	var lts []*domain.LinkTag
	for lt, err := range s.LinkTags.ListByIndex(ctx, "link", linkID) {
		if err != nil {
			return nil, fmt.Errorf("list link-tags by link: %w", err)
		}
		lts = append(lts, lt)
	}
	return lts, nil
}

// ListLinkTagsByTag returns all associations of a tag.
func (s *Store) ListLinkTagsByTag(ctx context.Context, tagID string) ([]*domain.LinkTag, error) {
	var lts []*domain.LinkTag
	for lt, err := range s.LinkTags.ListByIndex(ctx, "tag", tagID) {
		if err != nil {
			return nil, fmt.Errorf("list link-tags by tag: %w", err)
		}
		lts = append(lts, lt)
	}
	return lts, nil
}
