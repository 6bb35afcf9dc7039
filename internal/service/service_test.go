package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/errors"
	"github.com/linkstashapp/linkstash-sync/internal/logger"
	"github.com/linkstashapp/linkstash-sync/internal/service"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/linkstashapp/linkstash-sync/internal/validation"
	"github.com/stretchr/testify/require"
)

func setupServices(t *testing.T) (*store.Store, *service.LinkService, *service.TagService) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	log := logger.Noop().Logger
	v := validation.New()
	tags := service.NewTagService(s, v, log)
	links := service.NewLinkService(s, tags, v, log)
	return s, links, tags
}

// queueItems returns the pending queue items for one entity type, in order.
func queueItems(t *testing.T, s *store.Store, entity domain.EntityType) []*domain.SyncQueueItem {
	t.Helper()

	all, err := s.ListSyncQueue(context.Background())
	require.NoError(t, err)

	var filtered []*domain.SyncQueueItem
	for _, item := range all {
		if item.EntityType == entity {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func TestLinkService_CreateLink(t *testing.T) {
	s, links, _ := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "The Go Blog",
		URL:   "https://go.dev/blog",
		Tags:  []string{"Go", "Reading"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, link.ID)
	require.Equal(t, []string{"Go", "Reading"}, link.Tags)

	// Both tags were created on the fly.
	goTag, err := s.GetTagByName(ctx, "usr-1", "go")
	require.NoError(t, err)
	require.Equal(t, "Go", goTag.Name)

	lts, err := s.ListLinkTagsByLink(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, lts, 2)

	// Queue replays in dependency order: link before its associations.
	all, err := s.ListSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, domain.EntityLink, all[0].EntityType)
	require.Equal(t, domain.OpCreate, all[0].OperationType)
	require.Equal(t, link.ID, all[0].EntityID)
}

func TestLinkService_CreateLink_ReusesExistingTag(t *testing.T) {
	s, links, tags := setupServices(t)
	ctx := context.Background()

	existing, err := tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "Reading"})
	require.NoError(t, err)

	// Different casing resolves to the same tag.
	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
		Tags:  []string{"reading"},
	})
	require.NoError(t, err)

	userTags, err := s.ListTagsByUser(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, userTags, 1)

	lt, err := s.GetLinkTag(ctx, link.ID, existing.ID)
	require.NoError(t, err)
	require.Equal(t, existing.ID, lt.TagID)
}

func TestLinkService_CreateLink_RejectsInvalidURL(t *testing.T) {
	_, links, _ := setupServices(t)

	_, err := links.CreateLink(context.Background(), "usr-1", service.CreateLinkInput{
		Title: "Broken",
		URL:   "not a url",
	})
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestLinkService_UpdateLink_ReplacesTagSet(t *testing.T) {
	s, links, _ := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
		Tags:  []string{"keep", "drop"},
	})
	require.NoError(t, err)

	newTags := []string{"keep", "added"}
	updated, err := links.UpdateLink(ctx, link.ID, service.UpdateLinkInput{Tags: &newTags})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"keep", "added"}, updated.Tags)

	dropTag, err := s.GetTagByName(ctx, "usr-1", "drop")
	require.NoError(t, err)
	_, err = s.GetLinkTag(ctx, link.ID, dropTag.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	addTag, err := s.GetTagByName(ctx, "usr-1", "added")
	require.NoError(t, err)
	_, err = s.GetLinkTag(ctx, link.ID, addTag.ID)
	require.NoError(t, err)
}

func TestLinkService_UpdateLink_QueuedPayloadCarriesAddedTags(t *testing.T) {
	s, links, _ := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
	})
	require.NoError(t, err)

	newTags := []string{"x"}
	updated, err := links.UpdateLink(ctx, link.ID, service.UpdateLinkInput{Tags: &newTags})
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, updated.Tags)

	// The single queued update must describe the same state the replica
	// keeps, or the server permanently diverges from the local tag slice.
	var updates []*domain.SyncQueueItem
	for _, item := range queueItems(t, s, domain.EntityLink) {
		if item.OperationType == domain.OpUpdate {
			updates = append(updates, item)
		}
	}
	require.Len(t, updates, 1)

	var payload domain.Link
	require.NoError(t, updates[0].DecodePayload(&payload))
	require.Equal(t, []string{"x"}, payload.Tags)
}

func TestLinkService_DeleteLink(t *testing.T) {
	s, links, _ := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
		Tags:  []string{"go"},
	})
	require.NoError(t, err)

	require.NoError(t, links.DeleteLink(ctx, link.ID))

	_, err = s.GetLink(ctx, link.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	lts, err := s.ListLinkTagsByLink(ctx, link.ID)
	require.NoError(t, err)
	require.Empty(t, lts)

	items := queueItems(t, s, domain.EntityLink)
	last := items[len(items)-1]
	require.Equal(t, domain.OpDelete, last.OperationType)
	require.Equal(t, link.ID, last.EntityID)

	// Deleting again is a no-op.
	require.NoError(t, links.DeleteLink(ctx, link.ID))
}

func TestLinkService_SetFavorite(t *testing.T) {
	_, links, _ := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
	})
	require.NoError(t, err)
	require.False(t, link.IsFavorite)

	updated, err := links.SetFavorite(ctx, link.ID, true)
	require.NoError(t, err)
	require.True(t, updated.IsFavorite)
}

func TestTagService_CreateTag_DuplicateName(t *testing.T) {
	_, _, tags := setupServices(t)
	ctx := context.Background()

	_, err := tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "Reading"})
	require.NoError(t, err)

	_, err = tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "READING"})
	require.ErrorIs(t, err, errors.ErrValidation)

	// Same name under a different user is fine.
	_, err = tags.CreateTag(ctx, "usr-2", service.CreateTagInput{Name: "reading"})
	require.NoError(t, err)
}

func TestTagService_RenameTag_CascadesToLinks(t *testing.T) {
	s, links, tags := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
		Tags:  []string{"golang"},
	})
	require.NoError(t, err)

	tag, err := s.GetTagByName(ctx, "usr-1", "golang")
	require.NoError(t, err)

	renamed, err := tags.RenameTag(ctx, tag.ID, "Go")
	require.NoError(t, err)
	require.Equal(t, "Go", renamed.Name)

	got, err := s.GetLink(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Go"}, got.Tags)

	// An update for the cascaded link landed on the queue.
	items := queueItems(t, s, domain.EntityLink)
	last := items[len(items)-1]
	require.Equal(t, domain.OpUpdate, last.OperationType)
	require.Equal(t, link.ID, last.EntityID)
}

func TestTagService_RenameTag_CascadeEnqueuesEveryLink(t *testing.T) {
	s, links, tags := setupServices(t)
	ctx := context.Background()

	linkIDs := make(map[string]bool)
	for _, title := range []string{"A", "B", "C"} {
		link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
			Title: title,
			URL:   "https://" + title + ".test",
			Tags:  []string{"go"},
		})
		require.NoError(t, err)
		linkIDs[link.ID] = true
	}

	before, err := s.SyncQueueLength(ctx)
	require.NoError(t, err)
	tag, err := s.GetTagByName(ctx, "usr-1", "go")
	require.NoError(t, err)

	_, err = tags.RenameTag(ctx, tag.ID, "Golang")
	require.NoError(t, err)

	// Renaming a tag on N links enqueues exactly N+1 items: one tag update
	// plus one update per carrying link.
	after, err := s.SyncQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, before+4, after)

	all, err := s.ListSyncQueue(ctx)
	require.NoError(t, err)
	cascaded := make(map[string]bool)
	for _, item := range all[before:] {
		switch item.EntityType {
		case domain.EntityTag:
			require.Equal(t, domain.OpUpdate, item.OperationType)
			var payload domain.Tag
			require.NoError(t, item.DecodePayload(&payload))
			require.Equal(t, "Golang", payload.Name)
		case domain.EntityLink:
			require.Equal(t, domain.OpUpdate, item.OperationType)
			var payload domain.Link
			require.NoError(t, item.DecodePayload(&payload))
			require.Equal(t, []string{"Golang"}, payload.Tags)
			cascaded[item.EntityID] = true
		default:
			t.Fatalf("unexpected cascade item for %s", item.EntityType)
		}
	}
	require.Equal(t, linkIDs, cascaded)
}

func TestTagService_RenameTag_CollisionRejected(t *testing.T) {
	_, _, tags := setupServices(t)
	ctx := context.Background()

	a, err := tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "golang"})
	require.NoError(t, err)
	_, err = tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "go"})
	require.NoError(t, err)

	_, err = tags.RenameTag(ctx, a.ID, "GO")
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestTagService_DeleteTag_NeverSyncedScrubsQueue(t *testing.T) {
	s, _, tags := setupServices(t)
	ctx := context.Background()

	tag, err := tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "fleeting"})
	require.NoError(t, err)
	require.Len(t, queueItems(t, s, domain.EntityTag), 1)

	require.NoError(t, tags.DeleteTag(ctx, tag.ID))

	// The pending create was purged and no delete was enqueued: the server
	// never heard of this tag.
	require.Empty(t, queueItems(t, s, domain.EntityTag))
}

func TestTagService_DeleteTag_SyncedEnqueuesDelete(t *testing.T) {
	s, _, tags := setupServices(t)
	ctx := context.Background()

	tag := &domain.Tag{UserID: "usr-1", Name: "archived"}
	tag.ID = "tag-1"
	tag.InitTimestamps()
	tag.MarkSynced()
	require.NoError(t, s.CreateTag(ctx, tag))

	require.NoError(t, tags.DeleteTag(ctx, tag.ID))

	items := queueItems(t, s, domain.EntityTag)
	require.Len(t, items, 1)
	require.Equal(t, domain.OpDelete, items[0].OperationType)
	require.Equal(t, "tag-1", items[0].EntityID)
}

func TestTagService_DeleteTag_AfterRenameStillEnqueuesDelete(t *testing.T) {
	s, _, tags := setupServices(t)
	ctx := context.Background()

	// The tag reached the server once; a later rename resets its Synced
	// flag while the update waits on the queue.
	tag := &domain.Tag{UserID: "usr-1", Name: "archived"}
	tag.ID = "tag-1"
	tag.InitTimestamps()
	tag.MarkSynced()
	require.NoError(t, s.CreateTag(ctx, tag))

	renamed, err := tags.RenameTag(ctx, tag.ID, "filed")
	require.NoError(t, err)
	require.False(t, renamed.Synced)

	require.NoError(t, tags.DeleteTag(ctx, tag.ID))

	// The server still holds the tag, so a remote delete must go out.
	var deletes []*domain.SyncQueueItem
	for _, item := range queueItems(t, s, domain.EntityTag) {
		if item.OperationType == domain.OpDelete {
			deletes = append(deletes, item)
		}
	}
	require.Len(t, deletes, 1)
	require.Equal(t, "tag-1", deletes[0].EntityID)
}

func TestTagService_DeleteTag_StripsLinks(t *testing.T) {
	s, links, tags := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
		Tags:  []string{"go", "reading"},
	})
	require.NoError(t, err)

	tag, err := s.GetTagByName(ctx, "usr-1", "go")
	require.NoError(t, err)
	require.NoError(t, tags.DeleteTag(ctx, tag.ID))

	got, err := s.GetLink(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"reading"}, got.Tags)

	lts, err := s.ListLinkTagsByLink(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, lts, 1)
}

func TestTagService_MergeTags(t *testing.T) {
	s, links, tags := setupServices(t)
	ctx := context.Background()

	link, err := links.CreateLink(ctx, "usr-1", service.CreateLinkInput{
		Title: "A",
		URL:   "https://a.test",
		Tags:  []string{"golang"},
	})
	require.NoError(t, err)

	source, err := s.GetTagByName(ctx, "usr-1", "golang")
	require.NoError(t, err)
	dest, err := tags.CreateTag(ctx, "usr-1", service.CreateTagInput{Name: "Go"})
	require.NoError(t, err)

	require.NoError(t, tags.MergeTags(ctx, source.ID, dest.ID))

	got, err := s.GetLink(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Go"}, got.Tags)

	_, err = s.GetTag(ctx, source.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetLinkTag(ctx, link.ID, dest.ID)
	require.NoError(t, err)
}

func TestTagService_MergeTags_SelfRejected(t *testing.T) {
	_, _, tags := setupServices(t)

	tag, err := tags.CreateTag(context.Background(), "usr-1", service.CreateTagInput{Name: "solo"})
	require.NoError(t, err)

	err = tags.MergeTags(context.Background(), tag.ID, tag.ID)
	require.ErrorIs(t, err, errors.ErrValidation)
}
