package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/linkstashapp/linkstash-sync/internal/api"
	"github.com/linkstashapp/linkstash-sync/internal/config"
	"github.com/linkstashapp/linkstash-sync/internal/connectivity"
	"github.com/linkstashapp/linkstash-sync/internal/logger"
	"github.com/linkstashapp/linkstash-sync/internal/read"
	"github.com/linkstashapp/linkstash-sync/internal/sync"
)

// ProvideHybridReader provides the read layer.
func ProvideHybridReader(i do.Injector) (*read.HybridReader, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	client := do.MustInvoke[*api.Client](i)
	monitor := do.MustInvoke[*MonitorHandle](i)

	return read.New(read.Config{
		Store:  storeHandle.Store,
		API:    client,
		Bus:    busHandle.Bus,
		Logger: log.Logger,
		Online: monitor.Online,
	}), nil
}

// ProvideSyncEngine provides the queue drain engine.
func ProvideSyncEngine(i do.Injector) (*sync.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	client := do.MustInvoke[*api.Client](i)

	return sync.New(sync.Config{
		Store:       storeHandle.Store,
		API:         client,
		Bus:         busHandle.Bus,
		Logger:      log.Logger,
		MaxAttempts: cfg.Sync.MaxAttempts,
	}), nil
}

// MonitorHandle wraps the connectivity monitor with its probe loop.
type MonitorHandle struct {
	*connectivity.Monitor
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *MonitorHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideMonitor provides the connectivity monitor wired to the drain engine.
func ProvideMonitor(i do.Injector) (*MonitorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	busHandle := do.MustInvoke[*BusHandle](i)
	client := do.MustInvoke[*api.Client](i)
	engine := do.MustInvoke[*sync.Engine](i)

	monitor := connectivity.New(connectivity.Config{
		Checker:       connectivity.NewHTTPChecker(client),
		Store:         storeHandle.Store,
		Bus:           busHandle.Bus,
		Logger:        log.Logger,
		ProbeInterval: cfg.Sync.ProbeInterval,
		SettleDelay:   cfg.Sync.SettleDelay,
		OnOnline: func(ctx context.Context) {
			if _, err := engine.Drain(ctx); err != nil {
				log.Error("Drain after reconnect failed", "error", err)
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go monitor.Start(ctx)

	log.Info("Connectivity monitor started",
		"probe_interval", cfg.Sync.ProbeInterval,
		"settle_delay", cfg.Sync.SettleDelay,
	)

	return &MonitorHandle{Monitor: monitor, cancel: cancel}, nil
}

// WireInvalidator connects the engine's cache invalidation to the reader.
// Separate from the providers to break the engine→reader→monitor cycle.
func WireInvalidator(i do.Injector) {
	engine := do.MustInvoke[*sync.Engine](i)
	reader := do.MustInvoke[*read.HybridReader](i)
	engine.SetInvalidator(reader)
}
