package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/appconfig"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/identity"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/internal/persist"
	"pkt.systems/tabstrip/schema"
)

// loadCatalog returns the configured catalog, or the built-in one when no
// catalog file is set.
func loadCatalog(cfg appconfig.Config) (*catalog.Catalog, error) {
	if strings.TrimSpace(cfg.CatalogFile) == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", cfg.CatalogFile, err)
	}
	return cat, nil
}

func serviceConfig(cfg appconfig.Config, cat *catalog.Catalog) schema.ServiceConfig {
	return schema.ServiceConfig{
		Catalog:      cat.Tabs(),
		DisableWatch: !cfg.Storage.Watch,
	}
}

func layoutEngine(cfg appconfig.Config) layout.Engine {
	return layout.NewEngine(cfg.Layout.PinnedWidth, cfg.Layout.TabWidth, cfg.Layout.Reserve)
}

func openStore(cfg appconfig.Config, logger pslog.Logger) (persist.DocumentStore, error) {
	switch cfg.Storage.Backend {
	case appconfig.BackendSQLite:
		store, err := persist.OpenSQLite(cfg.Storage.SQLitePath, persist.SQLiteOptions{
			PollInterval: time.Duration(cfg.Storage.PollIntervalMS) * time.Millisecond,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case appconfig.BackendFile, "":
		store, err := persist.NewFileStoreWithLogger(cfg.StateDir, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openBackend builds the persistence adapter: the configured document store,
// the identity resolver chain and the legacy layout file.
func openBackend(ctx context.Context, cfg appconfig.Config) (*persist.Backend, error) {
	logger := pslog.Ctx(ctx)
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	backend, err := persist.NewBackend(persist.BackendConfig{
		Resolver: identity.Default(cfg.Identity.Account, cfg.Identity.DeviceFile),
		Store:    store,
		Legacy:   persist.LegacyFile{Path: cfg.Storage.LegacyPath},
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("storage backend ready", "backend", cfg.Storage.Backend, "writer", backend.Writer())
	return backend, nil
}
