// Package di provides dependency injection configuration for the sync core.
package di

import (
	"github.com/samber/do/v2"

	"github.com/linkstashapp/linkstash-sync/internal/api"
	"github.com/linkstashapp/linkstash-sync/internal/backup"
	"github.com/linkstashapp/linkstash-sync/internal/config"
	"github.com/linkstashapp/linkstash-sync/internal/di/providers"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/logger"
	"github.com/linkstashapp/linkstash-sync/internal/read"
	"github.com/linkstashapp/linkstash-sync/internal/service"
	"github.com/linkstashapp/linkstash-sync/internal/sync"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideBus)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideInstance)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Remote boundary
	do.Provide(injector, providers.ProvideAPIClient)

	// Mutation services
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideLinkService)
	do.Provide(injector, providers.ProvideBackupService)

	// Sync machinery
	do.Provide(injector, providers.ProvideSyncEngine)
	do.Provide(injector, providers.ProvideMonitor)
	do.Provide(injector, providers.ProvideHybridReader)

	return injector
}

// Bootstrap initializes all services and returns once the core is running.
// This triggers lazy initialization in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.BusHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*domain.Instance](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*api.Client](injector)

	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.LinkService](injector)
	_ = do.MustInvoke[*backup.Service](injector)

	_ = do.MustInvoke[*sync.Engine](injector)
	_ = do.MustInvoke[*providers.MonitorHandle](injector)
	_ = do.MustInvoke[*read.HybridReader](injector)

	// Late wiring that would otherwise form a provider cycle.
	providers.WireInvalidator(injector)
	providers.RebuildSearchIndexIfEmpty(injector)

	return nil
}
