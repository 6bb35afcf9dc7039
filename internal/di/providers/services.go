package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/linkstashapp/linkstash-sync/internal/api"
	"github.com/linkstashapp/linkstash-sync/internal/backup"
	"github.com/linkstashapp/linkstash-sync/internal/config"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/logger"
	"github.com/linkstashapp/linkstash-sync/internal/service"
	"github.com/linkstashapp/linkstash-sync/internal/validation"
)

// ProvideAPIClient provides the remote bookmark API client.
func ProvideAPIClient(i do.Injector) (*api.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	instance := do.MustInvoke[*domain.Instance](i)

	client := api.New(api.Config{
		BaseURL:  cfg.API.BaseURL,
		ClientID: instance.ID,
		Timeout:  cfg.API.Timeout,
		RPS:      cfg.API.RPS,
		Logger:   log.Logger,
	})

	log.Info("API client configured", "base_url", cfg.API.BaseURL)
	return client, nil
}

// ProvideTagService provides the tag mutation service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, v, log.Logger), nil
}

// ProvideBackupService provides replica archive export and restore.
func ProvideBackupService(i do.Injector) (*backup.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	backupDir := filepath.Join(cfg.Store.BasePath, "backups")
	return backup.New(storeHandle.Store, backupDir, log.Logger), nil
}

// ProvideLinkService provides the link mutation service.
func ProvideLinkService(i do.Injector) (*service.LinkService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tags := do.MustInvoke[*service.TagService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLinkService(storeHandle.Store, tags, v, log.Logger), nil
}
