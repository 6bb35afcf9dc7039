package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/linkstashapp/linkstash-sync/internal/config"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/events"
	"github.com/linkstashapp/linkstash-sync/internal/logger"
	"github.com/linkstashapp/linkstash-sync/internal/store"
)

// BusHandle wraps the event bus with its context for lifecycle management.
type BusHandle struct {
	*events.Bus
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *BusHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Bus.Shutdown(ctx)
}

// ProvideBus provides the event bus.
func ProvideBus(i do.Injector) (*BusHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	bus := events.NewBus(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)

	log.Info("Event bus started")

	return &BusHandle{Bus: bus, cancel: cancel}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the local replica store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*BusHandle](i)

	db, err := store.New(cfg.DBPath(), log.Logger, busHandle.Bus)
	if err != nil {
		return nil, err
	}

	log.Info("Local store initialized", "path", cfg.DBPath())

	return &StoreHandle{Store: db}, nil
}

// ProvideInstance ensures the installation identity exists. The id travels
// with every API request so the server can tell installations apart.
func ProvideInstance(i do.Injector) (*domain.Instance, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	instance, err := storeHandle.InitializeInstance(context.Background())
	if err != nil {
		return nil, err
	}

	log.Info("Installation identity ready", "instance_id", instance.ID)
	return instance, nil
}
