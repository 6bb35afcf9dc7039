package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/events"
	"github.com/linkstashapp/linkstash-sync/internal/util"
)

// Link Operations

// CreateLink persists a new link and indexes it for search.
func (s *Store) CreateLink(ctx context.Context, link *domain.Link) error {
	if err := s.Links.Create(ctx, link.ID, link); err != nil {
		return fmt.Errorf("create link: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "link created",
			slog.String("id", link.ID),
			slog.String("url", link.URL),
		)
	}

	s.indexLinkAsync(link)
	s.eventEmitter.Emit(events.NewEntityEvent(events.EventLinkCreated, link.UserID, link.ID))
	return nil
}

// GetLink retrieves a link by ID.
func (s *Store) GetLink(ctx context.Context, id string) (*domain.Link, error) {
	return s.Links.Get(ctx, id)
}

// UpdateLink updates an existing link and refreshes its search entry.
func (s *Store) UpdateLink(ctx context.Context, link *domain.Link) error {
	if err := s.Links.Update(ctx, link.ID, link); err != nil {
		return fmt.Errorf("update link: %w", err)
	}

	s.indexLinkAsync(link)
	s.eventEmitter.Emit(events.NewEntityEvent(events.EventLinkUpdated, link.UserID, link.ID))
	return nil
}

// DeleteLink removes a link. Idempotent.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	// Read first so the deletion event can carry the owner.
	link, err := s.Links.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Already gone, nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	if err := s.Links.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	if s.searchIndexer != nil {
		go func() {
			if err := s.searchIndexer.DeleteLink(context.Background(), id); err != nil {
				if s.logger != nil {
					s.logger.Warn("failed to remove link from search index", "link_id", id, "error", err)
				}
			}
		}()
	}

	s.eventEmitter.Emit(events.NewEntityEvent(events.EventLinkDeleted, link.UserID, id))
	return nil
}

// ListLinksByUser returns all links belonging to a user, most recently
// modified first.
func (s *Store) ListLinksByUser(ctx context.Context, userID string) ([]*domain.Link, error) {
	var links []*domain.Link
	for link, err := range s.Links.ListByIndex(ctx, "user", userID) {
		if err != nil {
			return nil, fmt.Errorf("list links by user: %w", err)
		}
		links = append(links, link)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].LastModified.After(links[j].LastModified)
	})
	return links, nil
}

// SearchLinks returns a user's links whose title, URL, or description
// contains the query, compared case-insensitively. Recency-ordered. The
// bleve index is the ranked path; this is the dependency-free fallback.
func (s *Store) SearchLinks(ctx context.Context, userID, query string) ([]*domain.Link, error) {
	links, err := s.ListLinksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return links, nil
	}

	var matched []*domain.Link
	for _, link := range links {
		if strings.Contains(strings.ToLower(link.Title), needle) ||
			strings.Contains(strings.ToLower(link.URL), needle) ||
			(link.Description != nil && strings.Contains(strings.ToLower(*link.Description), needle)) {
			matched = append(matched, link)
		}
	}
	return matched, nil
}

// ListLinksByTagName returns all of a user's links carrying the given tag,
// compared case-insensitively.
func (s *Store) ListLinksByTagName(ctx context.Context, userID, tagName string) ([]*domain.Link, error) {
	var links []*domain.Link
	indexValue := userID + ":" + util.FoldTagName(tagName)
	for link, err := range s.Links.ListByIndex(ctx, "tag", indexValue) {
		if err != nil {
			return nil, fmt.Errorf("list links by tag: %w", err)
		}
		links = append(links, link)
	}
	return links, nil
}

// CountLinksByTagName returns how many of a user's links carry the given tag.
func (s *Store) CountLinksByTagName(ctx context.Context, userID, tagName string) (int, error) {
	return s.Links.CountByIndex(ctx, "tag", userID+":"+util.FoldTagName(tagName))
}

// indexLinkAsync updates the search index without blocking the write path.
func (s *Store) indexLinkAsync(link *domain.Link) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.IndexLink(context.Background(), link); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to index link for search", "link_id", link.ID, "error", err)
			}
		}
	}()
}
