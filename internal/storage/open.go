// Package storage opens the configured ledger store.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vanshika/supplytrace/internal/config"
	"github.com/vanshika/supplytrace/internal/graph"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/repository"
	"github.com/vanshika/supplytrace/internal/storage/sqlite"
)

// GraphDialer opens a graph client; tests substitute an in-memory one.
type GraphDialer func(ctx context.Context, opts graph.Options) (graph.Client, error)

// Open returns the store selected by cfg.Store.Backend.
func Open(ctx context.Context, logger *slog.Logger, cfg config.Config) (registry.Store, error) {
	return OpenWith(ctx, logger, cfg, graph.NewNeo4jClient)
}

// OpenWith is Open with an explicit graph dialer.
func OpenWith(ctx context.Context, logger *slog.Logger, cfg config.Config, dial GraphDialer) (registry.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		logger.Warn("using in-memory store; state is lost on exit")
		return registry.NewMemoryStore(), nil
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", "path", cfg.SQLite.Path)
		return store, nil
	case config.BackendNeo4j:
		client, err := dial(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		store := repository.New(client)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		logger.Info("connected to graph store", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
