package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/search"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T) *search.SearchIndex {
	t.Helper()

	idx, err := search.NewSearchIndex(search.Options{
		DataPath: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx
}

func indexTestLink(t *testing.T, idx *search.SearchIndex, id, userID, title, url string, tags ...string) {
	t.Helper()

	link := &domain.Link{
		UserID: userID,
		Title:  title,
		URL:    url,
		Tags:   tags,
	}
	link.ID = id
	link.CreatedAt = time.Now()
	link.LastModified = time.Now()

	require.NoError(t, idx.IndexLink(context.Background(), link))
}

func TestSearch_TitleMatch(t *testing.T) {
	idx := setupTestIndex(t)

	indexTestLink(t, idx, "lnk-1", "usr-1", "The Go Blog", "https://go.dev/blog")
	indexTestLink(t, idx, "lnk-2", "usr-1", "Rust Book", "https://doc.rust-lang.org/book")

	params := search.DefaultSearchParams()
	params.UserID = "usr-1"
	params.Query = "go blog"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	require.Equal(t, "lnk-1", result.Hits[0].ID)
	require.Equal(t, "The Go Blog", result.Hits[0].Title)
}

func TestSearch_ScopedToUser(t *testing.T) {
	idx := setupTestIndex(t)

	indexTestLink(t, idx, "lnk-1", "usr-1", "Go Blog", "https://go.dev/blog")
	indexTestLink(t, idx, "lnk-2", "usr-2", "Go Blog Mirror", "https://example.com/go")

	params := search.DefaultSearchParams()
	params.UserID = "usr-2"
	params.Query = "go"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "lnk-2", result.Hits[0].ID)
}

func TestSearch_RequiresUserID(t *testing.T) {
	idx := setupTestIndex(t)

	params := search.DefaultSearchParams()
	params.Query = "anything"

	_, err := idx.Search(context.Background(), params)
	require.Error(t, err)
}

func TestSearch_TagFilterCaseInsensitive(t *testing.T) {
	idx := setupTestIndex(t)

	indexTestLink(t, idx, "lnk-1", "usr-1", "A", "https://a.test", "Slow Burn")
	indexTestLink(t, idx, "lnk-2", "usr-1", "B", "https://b.test", "golang")

	params := search.DefaultSearchParams()
	params.UserID = "usr-1"
	params.Tags = []string{"slow burn"}

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "lnk-1", result.Hits[0].ID)
}

func TestSearch_FavoritesOnly(t *testing.T) {
	idx := setupTestIndex(t)

	fav := &domain.Link{UserID: "usr-1", Title: "Fav", URL: "https://fav.test", IsFavorite: true}
	fav.ID = "lnk-1"
	require.NoError(t, idx.IndexLink(context.Background(), fav))
	indexTestLink(t, idx, "lnk-2", "usr-1", "Plain", "https://plain.test")

	params := search.DefaultSearchParams()
	params.UserID = "usr-1"
	params.FavoritesOnly = true

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "lnk-1", result.Hits[0].ID)
}

func TestSearch_DeleteLink(t *testing.T) {
	idx := setupTestIndex(t)

	indexTestLink(t, idx, "lnk-1", "usr-1", "Go Blog", "https://go.dev/blog")
	require.NoError(t, idx.DeleteLink(context.Background(), "lnk-1"))

	params := search.DefaultSearchParams()
	params.UserID = "usr-1"
	params.Query = "go"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Empty(t, result.Hits)
}

func TestSearch_BatchIndexAndCount(t *testing.T) {
	idx := setupTestIndex(t)

	links := make([]*domain.Link, 0, 10)
	for i := range 10 {
		link := &domain.Link{UserID: "usr-1", Title: "Link", URL: "https://x.test"}
		link.ID = string(rune('a'+i)) + "-lnk"
		links = append(links, link)
	}
	require.NoError(t, idx.IndexLinks(links))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	require.Equal(t, uint64(10), count)
}
