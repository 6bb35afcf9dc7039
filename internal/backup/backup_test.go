package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkstashapp/linkstash-sync/internal/backup"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/stretchr/testify/require"
)

func setupBackup(t *testing.T) (*store.Store, *backup.Service, string) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "backup-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	backupDir := filepath.Join(tmpDir, "backups")
	return s, backup.New(s, backupDir, nil), backupDir
}

func seedLink(t *testing.T, s *store.Store, id, title string) *domain.Link {
	t.Helper()
	link := &domain.Link{UserID: "usr-1", Title: title, URL: "https://" + id + ".test"}
	link.ID = id
	link.InitTimestamps()
	require.NoError(t, s.CreateLink(context.Background(), link))
	return link
}

func seedTag(t *testing.T, s *store.Store, id, name string) *domain.Tag {
	t.Helper()
	tag := &domain.Tag{UserID: "usr-1", Name: name}
	tag.ID = id
	tag.InitTimestamps()
	require.NoError(t, s.CreateTag(context.Background(), tag))
	return tag
}

func TestBackup_RoundTrip(t *testing.T) {
	src, svc, _ := setupBackup(t)
	ctx := context.Background()

	seedLink(t, src, "lnk-1", "Go Blog")
	seedTag(t, src, "tag-1", "golang")
	lt := domain.NewLinkTag("lnk-1", "tag-1")
	require.NoError(t, src.CreateLinkTag(ctx, lt))

	item, err := domain.NewSyncQueueItem(domain.EntityLink, domain.OpCreate, "lnk-1", nil)
	require.NoError(t, err)
	require.NoError(t, src.EnqueueSyncItem(ctx, item))

	result, err := svc.Create(ctx, backup.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, result.Counts.Links)
	require.Equal(t, 1, result.Counts.Tags)
	require.Equal(t, 1, result.Counts.LinkTags)
	require.Equal(t, 1, result.Counts.QueueItems)

	// Restore into a fresh replica.
	dst, dstSvc, _ := setupBackup(t)
	restored, err := dstSvc.Restore(ctx, result.Path, backup.DefaultRestoreOptions())
	require.NoError(t, err)
	require.Equal(t, 1, restored.Imported["links"])
	require.Equal(t, 1, restored.Imported["tags"])
	require.Equal(t, 1, restored.Imported["link_tags"])
	require.Equal(t, 1, restored.Imported["queue_items"])

	link, err := dst.GetLink(ctx, "lnk-1")
	require.NoError(t, err)
	require.Equal(t, "Go Blog", link.Title)

	length, err := dst.SyncQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, length)
}

func TestBackup_MergeNewestKeepsNewerLocal(t *testing.T) {
	src, svc, _ := setupBackup(t)
	ctx := context.Background()

	seedLink(t, src, "lnk-1", "Old title")

	result, err := svc.Create(ctx, backup.DefaultOptions())
	require.NoError(t, err)

	// Local copy moved on since the backup was taken.
	link, err := src.GetLink(ctx, "lnk-1")
	require.NoError(t, err)
	link.Title = "New title"
	link.LastModified = time.Now().Add(time.Hour)
	require.NoError(t, src.UpdateLink(ctx, link))

	restored, err := svc.Restore(ctx, result.Path, backup.RestoreOptions{Strategy: backup.MergeNewest})
	require.NoError(t, err)
	require.Equal(t, 1, restored.Skipped["links"])

	got, err := src.GetLink(ctx, "lnk-1")
	require.NoError(t, err)
	require.Equal(t, "New title", got.Title)
}

func TestBackup_MergeKeepBackupOverwrites(t *testing.T) {
	src, svc, _ := setupBackup(t)
	ctx := context.Background()

	seedLink(t, src, "lnk-1", "Archived title")

	result, err := svc.Create(ctx, backup.DefaultOptions())
	require.NoError(t, err)

	link, err := src.GetLink(ctx, "lnk-1")
	require.NoError(t, err)
	link.Title = "Local title"
	link.LastModified = time.Now().Add(time.Hour)
	require.NoError(t, src.UpdateLink(ctx, link))

	_, err = svc.Restore(ctx, result.Path, backup.RestoreOptions{Strategy: backup.MergeKeepBackup})
	require.NoError(t, err)

	got, err := src.GetLink(ctx, "lnk-1")
	require.NoError(t, err)
	require.Equal(t, "Archived title", got.Title)
}

func TestBackup_DryRunWritesNothing(t *testing.T) {
	src, svc, _ := setupBackup(t)
	ctx := context.Background()

	seedLink(t, src, "lnk-1", "A")
	result, err := svc.Create(ctx, backup.DefaultOptions())
	require.NoError(t, err)

	dst, dstSvc, _ := setupBackup(t)
	restored, err := dstSvc.Restore(ctx, result.Path, backup.RestoreOptions{
		Strategy: backup.MergeNewest,
		DryRun:   true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, restored.Imported["links"])

	_, err = dst.GetLink(ctx, "lnk-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBackup_ValidateDetectsManifest(t *testing.T) {
	src, svc, backupDir := setupBackup(t)
	ctx := context.Background()

	seedLink(t, src, "lnk-1", "A")
	result, err := svc.Create(ctx, backup.DefaultOptions())
	require.NoError(t, err)

	manifest, err := svc.Validate(result.Path)
	require.NoError(t, err)
	require.Equal(t, backup.FormatVersion, manifest.Version)
	require.Equal(t, 1, manifest.Counts.Links)

	// A zip without a manifest is rejected.
	bogus := filepath.Join(backupDir, "bogus.linkstash.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip"), 0o644))
	_, err = svc.Validate(bogus)
	require.Error(t, err)
}

func TestBackup_ListNewestFirst(t *testing.T) {
	src, svc, _ := setupBackup(t)
	ctx := context.Background()

	seedLink(t, src, "lnk-1", "A")

	first, err := svc.Create(ctx, backup.Options{OutputPath: ""})
	require.NoError(t, err)
	_, err = svc.Create(ctx, backup.Options{
		OutputPath: filepath.Join(filepath.Dir(first.Path), "backup-later.linkstash.zip"),
	})
	require.NoError(t, err)

	infos, err := svc.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
}
