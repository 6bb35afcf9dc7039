package read_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/read"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	links     []*domain.Link
	tags      []*domain.Tag
	err       error
	linkCalls atomic.Int32
	tagCalls  atomic.Int32
}

func (f *fakeRemote) ListLinks(context.Context) ([]*domain.Link, error) {
	f.linkCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.links, nil
}

func (f *fakeRemote) ListTags(context.Context) ([]*domain.Tag, error) {
	f.tagCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

func setupReader(t *testing.T, remote *fakeRemote, online bool) (*store.Store, *read.HybridReader) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "reader-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	r := read.New(read.Config{
		Store:  s,
		API:    remote,
		Online: func() bool { return online },
	})
	return s, r
}

func storeLink(t *testing.T, s *store.Store, id, title string, synced bool) *domain.Link {
	t.Helper()
	link := &domain.Link{UserID: "usr-1", Title: title, URL: "https://" + id + ".test"}
	link.ID = id
	link.InitTimestamps()
	if synced {
		link.MarkSynced()
	}
	require.NoError(t, s.CreateLink(context.Background(), link))
	return link
}

func remoteLink(id, title string) *domain.Link {
	link := &domain.Link{UserID: "usr-1", Title: title, URL: "https://" + id + ".test"}
	link.ID = id
	return link
}

func TestHybridReader_OfflineServesLocal(t *testing.T) {
	remote := &fakeRemote{links: []*domain.Link{remoteLink("lnk-remote", "Remote")}}
	s, r := setupReader(t, remote, false)

	storeLink(t, s, "lnk-local", "Local", true)

	links, err := r.Links(context.Background(), "usr-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "lnk-local", links[0].ID)
	require.Zero(t, remote.linkCalls.Load())
}

func TestHybridReader_OnlineOverlaysUnsyncedLocal(t *testing.T) {
	remote := &fakeRemote{links: []*domain.Link{
		remoteLink("lnk-1", "Server copy"),
		remoteLink("lnk-2", "Server only"),
	}}
	s, r := setupReader(t, remote, true)

	// Local edit of lnk-1 has not synced yet; the user must see their version.
	storeLink(t, s, "lnk-1", "Local edit", false)

	links, err := r.Links(context.Background(), "usr-1")
	require.NoError(t, err)
	require.Len(t, links, 2)

	byID := make(map[string]*domain.Link)
	for _, l := range links {
		byID[l.ID] = l
	}
	require.Equal(t, "Local edit", byID["lnk-1"].Title)
	require.Equal(t, "Server only", byID["lnk-2"].Title)
}

func TestHybridReader_PendingDeleteHidesRemoteRow(t *testing.T) {
	remote := &fakeRemote{links: []*domain.Link{remoteLink("lnk-gone", "Deleted locally")}}
	s, r := setupReader(t, remote, true)
	ctx := context.Background()

	item, err := domain.NewSyncQueueItem(domain.EntityLink, domain.OpDelete, "lnk-gone", nil)
	require.NoError(t, err)
	require.NoError(t, s.EnqueueSyncItem(ctx, item))

	links, err := r.Links(ctx, "usr-1")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestHybridReader_TagUnionDedupesByFoldedName(t *testing.T) {
	serverTag := &domain.Tag{UserID: "usr-1", Name: "Reading"}
	serverTag.ID = "tag-server"
	otherTag := &domain.Tag{UserID: "usr-1", Name: "golang"}
	otherTag.ID = "tag-other"
	remote := &fakeRemote{tags: []*domain.Tag{serverTag, otherTag}}

	s, r := setupReader(t, remote, true)
	ctx := context.Background()

	// Local unsynced tag with the same folded name wins over the server's.
	local := &domain.Tag{UserID: "usr-1", Name: "reading"}
	local.ID = "tag-local"
	local.InitTimestamps()
	require.NoError(t, s.CreateTag(ctx, local))

	tags, err := r.Tags(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, tags, 2)

	byID := make(map[string]bool)
	for _, tag := range tags {
		byID[tag.ID] = true
	}
	require.True(t, byID["tag-local"])
	require.True(t, byID["tag-other"])
	require.False(t, byID["tag-server"])
}

func TestHybridReader_RemoteFailureFallsBackToLocal(t *testing.T) {
	remote := &fakeRemote{err: fmt.Errorf("gateway timeout")}
	s, r := setupReader(t, remote, true)

	storeLink(t, s, "lnk-local", "Local", true)

	links, err := r.Links(context.Background(), "usr-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "lnk-local", links[0].ID)
}

func TestHybridReader_CachesUntilInvalidated(t *testing.T) {
	remote := &fakeRemote{links: []*domain.Link{remoteLink("lnk-1", "A")}}
	_, r := setupReader(t, remote, true)
	ctx := context.Background()

	_, err := r.Links(ctx, "usr-1")
	require.NoError(t, err)
	_, err = r.Links(ctx, "usr-1")
	require.NoError(t, err)
	require.Equal(t, int32(1), remote.linkCalls.Load())

	r.Invalidate(domain.EntityLink)

	_, err = r.Links(ctx, "usr-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), remote.linkCalls.Load())
}

func TestHybridReader_SearchIsAlwaysLocal(t *testing.T) {
	remote := &fakeRemote{}
	s, r := setupReader(t, remote, true)

	storeLink(t, s, "lnk-1", "Go concurrency patterns", true)
	storeLink(t, s, "lnk-2", "Rust ownership", true)

	links, err := r.SearchLinks(context.Background(), "usr-1", "concurrency")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "lnk-1", links[0].ID)
	require.Zero(t, remote.linkCalls.Load())
}
