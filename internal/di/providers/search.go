package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/linkstashapp/linkstash-sync/internal/config"
	"github.com/linkstashapp/linkstash-sync/internal/logger"
	"github.com/linkstashapp/linkstash-sync/internal/search"
)

// SearchIndexHandle wraps the bleve index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve search index and hooks it into the
// store so writes keep it current.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetSearchIndexer(index)

	count, err := index.DocumentCount()
	if err == nil {
		log.Info("Search index ready", "path", cfg.SearchPath(), "documents", count)
	}

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// RebuildSearchIndexIfEmpty reindexes every stored link when the index has
// no documents, e.g. after the index directory was wiped or the mapping
// version changed.
func RebuildSearchIndexIfEmpty(i do.Injector) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	count, err := indexHandle.DocumentCount()
	if err != nil || count > 0 {
		return
	}

	go func() {
		ctx := context.Background()
		var indexed int
		for link, err := range storeHandle.Links.List(ctx) {
			if err != nil {
				log.Warn("Search rebuild aborted", "error", err)
				return
			}
			if err := indexHandle.IndexLink(ctx, link); err != nil {
				log.Warn("Failed to index link during rebuild", "link_id", link.ID, "error", err)
				continue
			}
			indexed++
		}
		if indexed > 0 {
			log.Info("Search index rebuilt", "documents", indexed)
		}
	}()
}
