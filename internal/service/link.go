package service

import (
	"context"
	"log/slog"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/errors"
	"github.com/linkstashapp/linkstash-sync/internal/id"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/linkstashapp/linkstash-sync/internal/util"
	"github.com/linkstashapp/linkstash-sync/internal/validation"
)

// LinkService orchestrates link mutations: local write plus sync enqueue.
type LinkService struct {
	store     *store.Store
	tags      *TagService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewLinkService creates a new link service.
func NewLinkService(store *store.Store, tags *TagService, validator *validation.Validator, logger *slog.Logger) *LinkService {
	return &LinkService{
		store:     store,
		tags:      tags,
		validator: validator,
		logger:    logger,
	}
}

// CreateLinkInput is the input for creating a link.
type CreateLinkInput struct {
	Title       string   `json:"title" validate:"required,min=1,max=500"`
	URL         string   `json:"url" validate:"required,url"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Tags        []string `json:"tags,omitempty"`
	IsFavorite  bool     `json:"is_favorite"`
}

// UpdateLinkInput is the input for updating a link. Nil fields are left
// unchanged; a non-nil Tags slice replaces the tag set wholesale.
type UpdateLinkInput struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	URL         *string   `json:"url,omitempty" validate:"omitempty,url"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Tags        *[]string `json:"tags,omitempty"`
	IsFavorite  *bool     `json:"is_favorite,omitempty"`
}

// CreateLink creates a link locally and queues it for sync.
// Unknown tag names are created as tags on the fly.
func (s *LinkService) CreateLink(ctx context.Context, userID string, input CreateLinkInput) (*domain.Link, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	linkID, err := id.Generate("lnk")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate link id")
	}

	link := &domain.Link{
		UserID:      userID,
		Title:       input.Title,
		URL:         input.URL,
		Description: input.Description,
		IsFavorite:  input.IsFavorite,
	}
	link.ID = linkID
	link.InitTimestamps()

	for _, raw := range input.Tags {
		name := util.NormalizeTagName(raw)
		if name == "" {
			continue
		}
		link.AddTag(name)
	}

	if err := s.store.CreateLink(ctx, link); err != nil {
		return nil, errors.Storage(err)
	}
	if err := enqueue(ctx, s.store, domain.EntityLink, domain.OpCreate, link.ID, link); err != nil {
		return nil, err
	}

	// Tags after the link so the queue replays in dependency order.
	for _, name := range link.Tags {
		if err := s.attachTag(ctx, link, name); err != nil {
			return nil, err
		}
	}

	s.logger.Info("link created",
		"link_id", link.ID,
		"user_id", userID,
		"tags", len(link.Tags),
	)
	return link, nil
}

// UpdateLink applies a partial update locally and queues it for sync.
func (s *LinkService) UpdateLink(ctx context.Context, linkID string, input UpdateLinkInput) (*domain.Link, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	link, err := s.store.GetLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("link %s not found", linkID)
		}
		return nil, errors.Storage(err)
	}

	if input.Title != nil {
		link.Title = *input.Title
	}
	if input.URL != nil {
		link.URL = *input.URL
	}
	if input.Description != nil {
		link.Description = input.Description
	}
	if input.IsFavorite != nil {
		link.IsFavorite = *input.IsFavorite
	}

	var added, removed []string
	if input.Tags != nil {
		added, removed = diffTags(link.Tags, *input.Tags)
	}

	// Settle the denormalized tag slice before the link row is written, so
	// the queued payload carries the same state the replica keeps.
	for _, name := range removed {
		if err := s.detachTag(ctx, link, name); err != nil {
			return nil, err
		}
	}
	for _, name := range added {
		link.AddTag(name)
	}

	link.Touch()
	if err := s.store.UpdateLink(ctx, link); err != nil {
		return nil, errors.Storage(err)
	}
	if err := enqueue(ctx, s.store, domain.EntityLink, domain.OpUpdate, link.ID, link); err != nil {
		return nil, err
	}

	// Association rows after the link so the queue replays in dependency order.
	for _, name := range added {
		if err := s.attachTag(ctx, link, name); err != nil {
			return nil, err
		}
	}

	s.logger.Info("link updated", "link_id", link.ID)
	return link, nil
}

// DeleteLink removes a link and its tag associations locally, queueing the
// deletions for sync. Deleting an unknown link is a no-op.
func (s *LinkService) DeleteLink(ctx context.Context, linkID string) error {
	link, err := s.store.GetLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return errors.Storage(err)
	}

	lts, err := s.store.ListLinkTagsByLink(ctx, linkID)
	if err != nil {
		return errors.Storage(err)
	}
	for _, lt := range lts {
		if err := s.store.DeleteLinkTag(ctx, lt.LinkID, lt.TagID); err != nil {
			return errors.Storage(err)
		}
		if err := enqueue(ctx, s.store, domain.EntityLinkTag, domain.OpDelete, lt.ID, lt); err != nil {
			return err
		}
	}

	if err := s.store.DeleteLink(ctx, linkID); err != nil {
		return errors.Storage(err)
	}
	if err := enqueue(ctx, s.store, domain.EntityLink, domain.OpDelete, linkID, nil); err != nil {
		return err
	}

	s.logger.Info("link deleted", "link_id", linkID, "user_id", link.UserID)
	return nil
}

// SetFavorite toggles the favorite flag on a link.
func (s *LinkService) SetFavorite(ctx context.Context, linkID string, favorite bool) (*domain.Link, error) {
	return s.UpdateLink(ctx, linkID, UpdateLinkInput{IsFavorite: &favorite})
}

// GetLink fetches a link from the local store.
func (s *LinkService) GetLink(ctx context.Context, linkID string) (*domain.Link, error) {
	link, err := s.store.GetLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("link %s not found", linkID)
		}
		return nil, errors.Storage(err)
	}
	return link, nil
}

// ListLinks returns all of a user's links from the local store.
func (s *LinkService) ListLinks(ctx context.Context, userID string) ([]*domain.Link, error) {
	links, err := s.store.ListLinksByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return links, nil
}

// attachTag ensures the named tag exists and records the association,
// locally and on the queue.
func (s *LinkService) attachTag(ctx context.Context, link *domain.Link, name string) error {
	tag, err := s.tags.EnsureTag(ctx, link.UserID, name)
	if err != nil {
		return err
	}

	lt := domain.NewLinkTag(link.ID, tag.ID)
	if err := s.store.CreateLinkTag(ctx, lt); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return errors.Storage(err)
	}
	return enqueue(ctx, s.store, domain.EntityLinkTag, domain.OpCreate, lt.ID, lt)
}

// detachTag removes the named tag from the link and its association row,
// locally and on the queue.
func (s *LinkService) detachTag(ctx context.Context, link *domain.Link, name string) error {
	link.RemoveTag(name)

	tag, err := s.store.GetTagByName(ctx, link.UserID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return errors.Storage(err)
	}

	lt, err := s.store.GetLinkTag(ctx, link.ID, tag.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return errors.Storage(err)
	}

	if err := s.store.DeleteLinkTag(ctx, link.ID, tag.ID); err != nil {
		return errors.Storage(err)
	}
	return enqueue(ctx, s.store, domain.EntityLinkTag, domain.OpDelete, lt.ID, lt)
}

// diffTags compares current and desired tag sets under case folding.
// Returned slices carry the desired display names.
func diffTags(current, desired []string) (added, removed []string) {
	currentSet := make(map[string]string, len(current))
	for _, t := range current {
		currentSet[util.FoldTagName(t)] = t
	}
	desiredSet := make(map[string]bool, len(desired))

	for _, raw := range desired {
		name := util.NormalizeTagName(raw)
		if name == "" {
			continue
		}
		folded := util.FoldTagName(name)
		if desiredSet[folded] {
			continue
		}
		desiredSet[folded] = true
		if _, ok := currentSet[folded]; !ok {
			added = append(added, name)
		}
	}

	for folded, display := range currentSet {
		if !desiredSet[folded] {
			removed = append(removed, display)
		}
	}
	return added, removed
}
