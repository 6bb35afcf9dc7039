package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/events"
)

// Tag Operations

// CreateTag persists a new tag.
// Returns ErrAlreadyExists if the user already has a tag with this name
// (compared case-insensitively).
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	if err := s.Tags.Create(ctx, tag.ID, tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "tag created",
			slog.String("id", tag.ID),
			slog.String("name", tag.Name),
		)
	}

	s.eventEmitter.Emit(events.NewEntityEvent(events.EventTagCreated, tag.UserID, tag.ID))
	return nil
}

// GetTag retrieves a tag by ID.
func (s *Store) GetTag(ctx context.Context, id string) (*domain.Tag, error) {
	return s.Tags.Get(ctx, id)
}

// GetTagByName retrieves a user's tag by name, compared case-insensitively.
func (s *Store) GetTagByName(ctx context.Context, userID, name string) (*domain.Tag, error) {
	return s.Tags.GetByIndex(ctx, "name", userID+":"+name)
}

// UpdateTag updates an existing tag.
// Returns ErrAlreadyExists if the new name collides with another tag of the
// same user.
func (s *Store) UpdateTag(ctx context.Context, tag *domain.Tag) error {
	if err := s.Tags.Update(ctx, tag.ID, tag); err != nil {
		return fmt.Errorf("update tag: %w", err)
	}

	s.eventEmitter.Emit(events.NewEntityEvent(events.EventTagUpdated, tag.UserID, tag.ID))
	return nil
}

// DeleteTag removes a tag. Idempotent.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	tag, err := s.Tags.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	if err := s.Tags.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	s.eventEmitter.Emit(events.NewEntityEvent(events.EventTagDeleted, tag.UserID, id))
	return nil
}

// ListTagsByUser returns all tags belonging to a user.
func (s *Store) ListTagsByUser(ctx context.Context, userID string) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	for tag, err := range s.Tags.ListByIndex(ctx, "user", userID) {
		if err != nil {
			return nil, fmt.Errorf("list tags by user: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// TagUsageCounts returns, for each of a user's tags, how many links carry it.
func (s *Store) TagUsageCounts(ctx context.Context, userID string) (map[string]int, error) {
	tags, err := s.ListTagsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(tags))
	for _, tag := range tags {
		n, err := s.CountLinksByTagName(ctx, userID, tag.Name)
		if err != nil {
			return nil, fmt.Errorf("count links for tag %s: %w", tag.ID, err)
		}
		counts[tag.ID] = n
	}
	return counts, nil
}
