package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/store"
	"github.com/stretchr/testify/require"
)

func enqueueTestItem(t *testing.T, s *store.Store, entity domain.EntityType, op domain.OperationType, entityID string, ts time.Time) *domain.SyncQueueItem {
	t.Helper()

	item, err := domain.NewSyncQueueItem(entity, op, entityID, nil)
	require.NoError(t, err)
	item.Timestamp = ts

	require.NoError(t, s.EnqueueSyncItem(context.Background(), item))
	return item
}

func TestStore_SyncQueue_FIFOOrder(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now()
	enqueueTestItem(t, s, domain.EntityLink, domain.OpCreate, "lnk-1", base)
	enqueueTestItem(t, s, domain.EntityTag, domain.OpCreate, "tag-1", base.Add(time.Millisecond))
	enqueueTestItem(t, s, domain.EntityLinkTag, domain.OpCreate, "lnk-1:tag-1", base.Add(2*time.Millisecond))

	items, err := s.ListSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "lnk-1", items[0].EntityID)
	require.Equal(t, "tag-1", items[1].EntityID)
	require.Equal(t, "lnk-1:tag-1", items[2].EntityID)
}

func TestStore_SyncQueue_UpdatePreservesPosition(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now()
	first := enqueueTestItem(t, s, domain.EntityLink, domain.OpCreate, "lnk-1", base)
	enqueueTestItem(t, s, domain.EntityLink, domain.OpCreate, "lnk-2", base.Add(time.Millisecond))

	first.RecordFailure(errDummy("connection refused"))
	require.NoError(t, s.UpdateSyncItem(ctx, first))

	items, err := s.ListSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "lnk-1", items[0].EntityID)
	require.Equal(t, 1, items[0].Attempts)
	require.Equal(t, "connection refused", items[0].Error)
}

func TestStore_SyncQueue_DeleteAndLength(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now()
	item := enqueueTestItem(t, s, domain.EntityLink, domain.OpDelete, "lnk-1", base)
	enqueueTestItem(t, s, domain.EntityTag, domain.OpDelete, "tag-1", base.Add(time.Millisecond))

	n, err := s.SyncQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.DeleteSyncItem(ctx, item))

	n, err = s.SyncQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Idempotent.
	require.NoError(t, s.DeleteSyncItem(ctx, item))
}

func TestStore_SyncQueue_SurvivesReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	s, err := store.New(dbPath, nil, store.NewNoopEmitter())
	require.NoError(t, err)
	enqueueTestItem(t, s, domain.EntityLink, domain.OpCreate, "lnk-1", time.Now())
	require.NoError(t, s.Close())

	s, err = store.New(dbPath, nil, store.NewNoopEmitter())
	require.NoError(t, err)
	defer s.Close()

	items, err := s.ListSyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "lnk-1", items[0].EntityID)
}

type errDummy string

func (e errDummy) Error() string { return string(e) }
