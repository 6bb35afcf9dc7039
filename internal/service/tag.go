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

// TagService orchestrates tag mutations, including the cascades into the
// denormalized Link.Tags slices that keep local reads consistent.
type TagService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store *store.Store, validator *validation.Validator, logger *slog.Logger) *TagService {
	return &TagService{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// CreateTagInput is the input for creating a tag.
type CreateTagInput struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// CreateTag creates a tag locally and queues it for sync. Tag names are
// unique per user under case folding; a collision is a validation error,
// not a silent reuse.
func (s *TagService) CreateTag(ctx context.Context, userID string, input CreateTagInput) (*domain.Tag, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	name := util.NormalizeTagName(input.Name)
	if name == "" {
		return nil, errors.Validation("tag name must not be blank")
	}

	if _, err := s.store.GetTagByName(ctx, userID, name); err == nil {
		return nil, errors.Validationf("tag %q already exists", name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Storage(err)
	}

	return s.createTag(ctx, userID, name)
}

// EnsureTag returns the user's tag with the given name, creating it when it
// does not exist yet. The name comparison is case-insensitive, so "Reading"
// and "reading" resolve to the same tag.
func (s *TagService) EnsureTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	name = util.NormalizeTagName(name)
	if name == "" {
		return nil, errors.Validation("tag name must not be blank")
	}

	tag, err := s.store.GetTagByName(ctx, userID, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Storage(err)
	}

	return s.createTag(ctx, userID, name)
}

func (s *TagService) createTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	tagID, err := id.Generate("tag")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate tag id")
	}

	tag := &domain.Tag{
		UserID: userID,
		Name:   name,
	}
	tag.ID = tagID
	tag.InitTimestamps()

	if err := s.store.CreateTag(ctx, tag); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errors.Validationf("tag %q already exists", name)
		}
		return nil, errors.Storage(err)
	}
	if err := enqueue(ctx, s.store, domain.EntityTag, domain.OpCreate, tag.ID, tag); err != nil {
		return nil, err
	}

	s.logger.Info("tag created", "tag_id", tag.ID, "user_id", userID, "name", name)
	return tag, nil
}

// RenameTag changes a tag's display name and rewrites the denormalized tag
// slice of every link that carries it. A rename that only changes casing is
// allowed; a rename that collides with another tag of the same user is not.
func (s *TagService) RenameTag(ctx context.Context, tagID, newName string) (*domain.Tag, error) {
	newName = util.NormalizeTagName(newName)
	if newName == "" {
		return nil, errors.Validation("tag name must not be blank")
	}

	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("tag %s not found", tagID)
		}
		return nil, errors.Storage(err)
	}
	if tag.Name == newName {
		return tag, nil
	}

	if other, err := s.store.GetTagByName(ctx, tag.UserID, newName); err == nil && other.ID != tag.ID {
		return nil, errors.Validationf("tag %q already exists", newName)
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Storage(err)
	}

	oldName := tag.Name
	tag.Name = newName
	tag.Touch()
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		return nil, errors.Storage(err)
	}
	if err := enqueue(ctx, s.store, domain.EntityTag, domain.OpUpdate, tag.ID, tag); err != nil {
		return nil, err
	}

	// Cascade into every link carrying the old name. The association rows
	// reference the tag by id and need no rewrite.
	links, err := s.store.ListLinksByTagName(ctx, tag.UserID, oldName)
	if err != nil {
		return nil, errors.Storage(err)
	}
	for _, link := range links {
		link.RenameTag(oldName, newName)
		link.Touch()
		if err := s.store.UpdateLink(ctx, link); err != nil {
			return nil, errors.Storage(err)
		}
		if err := enqueue(ctx, s.store, domain.EntityLink, domain.OpUpdate, link.ID, link); err != nil {
			return nil, err
		}
	}

	s.logger.Info("tag renamed",
		"tag_id", tag.ID,
		"from", oldName,
		"to", newName,
		"links_updated", len(links),
	)
	return tag, nil
}

// DeleteTag removes a tag, strips it from every link that carries it, and
// drops its association rows. Deleting an unknown tag is a no-op.
//
// If the tag's create is still queued it never reached the server, so its
// pending queue items are purged instead of a delete being enqueued: the
// server has nothing to remove. A tag whose create already drained gets a
// remote delete even when later edits reset its Synced flag.
func (s *TagService) DeleteTag(ctx context.Context, tagID string) error {
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return errors.Storage(err)
	}

	links, err := s.store.ListLinksByTagName(ctx, tag.UserID, tag.Name)
	if err != nil {
		return errors.Storage(err)
	}
	for _, link := range links {
		link.RemoveTag(tag.Name)
		link.Touch()
		if err := s.store.UpdateLink(ctx, link); err != nil {
			return errors.Storage(err)
		}
		if err := enqueue(ctx, s.store, domain.EntityLink, domain.OpUpdate, link.ID, link); err != nil {
			return err
		}
	}

	if err := s.removeAssociations(ctx, tagID); err != nil {
		return err
	}

	pendingCreate, err := hasPendingCreate(ctx, s.store, domain.EntityTag, tagID)
	if err != nil {
		return errors.Storage(err)
	}

	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return errors.Storage(err)
	}
	if pendingCreate {
		if _, err := s.store.DeleteSyncItemsForEntity(ctx, domain.EntityTag, tagID); err != nil {
			return errors.Storage(err)
		}
	} else {
		if err := enqueue(ctx, s.store, domain.EntityTag, domain.OpDelete, tagID, nil); err != nil {
			return err
		}
	}

	s.logger.Info("tag deleted",
		"tag_id", tagID,
		"user_id", tag.UserID,
		"links_updated", len(links),
	)
	return nil
}

// MergeTags moves every link from the source tag onto the destination tag,
// then deletes the source. Both tags must belong to the same user.
func (s *TagService) MergeTags(ctx context.Context, sourceID, destID string) error {
	if sourceID == destID {
		return errors.Validation("cannot merge a tag into itself")
	}

	source, err := s.store.GetTag(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("tag %s not found", sourceID)
		}
		return errors.Storage(err)
	}
	dest, err := s.store.GetTag(ctx, destID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("tag %s not found", destID)
		}
		return errors.Storage(err)
	}
	if source.UserID != dest.UserID {
		return errors.Validation("cannot merge tags across users")
	}

	links, err := s.store.ListLinksByTagName(ctx, source.UserID, source.Name)
	if err != nil {
		return errors.Storage(err)
	}
	for _, link := range links {
		link.RemoveTag(source.Name)
		link.AddTag(dest.Name)
		link.Touch()
		if err := s.store.UpdateLink(ctx, link); err != nil {
			return errors.Storage(err)
		}
		if err := enqueue(ctx, s.store, domain.EntityLink, domain.OpUpdate, link.ID, link); err != nil {
			return err
		}

		if _, err := s.store.GetLinkTag(ctx, link.ID, dest.ID); errors.Is(err, store.ErrNotFound) {
			lt := domain.NewLinkTag(link.ID, dest.ID)
			if err := s.store.CreateLinkTag(ctx, lt); err != nil {
				return errors.Storage(err)
			}
			if err := enqueue(ctx, s.store, domain.EntityLinkTag, domain.OpCreate, lt.ID, lt); err != nil {
				return err
			}
		} else if err != nil {
			return errors.Storage(err)
		}
	}

	if err := s.DeleteTag(ctx, sourceID); err != nil {
		return err
	}

	s.logger.Info("tags merged",
		"source_id", sourceID,
		"dest_id", destID,
		"links_moved", len(links),
	)
	return nil
}

// GetTag fetches a tag from the local store.
func (s *TagService) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("tag %s not found", tagID)
		}
		return nil, errors.Storage(err)
	}
	return tag, nil
}

// ListTags returns all of a user's tags from the local store.
func (s *TagService) ListTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	tags, err := s.store.ListTagsByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return tags, nil
}

// TagUsage returns per-tag link counts for a user.
func (s *TagService) TagUsage(ctx context.Context, userID string) (map[string]int, error) {
	counts, err := s.store.TagUsageCounts(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return counts, nil
}

// removeAssociations drops every association row referencing the tag. Rows
// whose create is still queued get their pending queue items purged instead
// of a delete: they never reached the server.
func (s *TagService) removeAssociations(ctx context.Context, tagID string) error {
	lts, err := s.store.ListLinkTagsByTag(ctx, tagID)
	if err != nil {
		return errors.Storage(err)
	}
	for _, lt := range lts {
		pendingCreate, err := hasPendingCreate(ctx, s.store, domain.EntityLinkTag, lt.ID)
		if err != nil {
			return errors.Storage(err)
		}
		if err := s.store.DeleteLinkTag(ctx, lt.LinkID, lt.TagID); err != nil {
			return errors.Storage(err)
		}
		if pendingCreate {
			if _, err := s.store.DeleteSyncItemsForEntity(ctx, domain.EntityLinkTag, lt.ID); err != nil {
				return errors.Storage(err)
			}
		} else {
			if err := enqueue(ctx, s.store, domain.EntityLinkTag, domain.OpDelete, lt.ID, lt); err != nil {
				return err
			}
		}
	}
	return nil
}
