package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fodmapworks/fodmap-flow/internal/config"
	"github.com/fodmapworks/fodmap-flow/internal/engine"
	"github.com/fodmapworks/fodmap-flow/internal/storage"
)

// app bundles the wired components a command needs.
type app struct {
	cfg    *config.Config
	store  *storage.SQLiteStorage
	engine *engine.Engine
}

// openApp loads configuration, opens a migrated database and wires the
// engine. Callers must Close the result.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	router, err := engine.NewRouter(cfg.Router, slog.Default())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		store:  store,
		engine: engine.New(store, router, cfg.Engine, slog.Default()),
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	a.engine.Close()
	_ = a.store.Close()
}
