package main

import (
	"context"

	"github.com/nainya/metacatalog/internal/config"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/platform/sqlregistry"
	"github.com/nainya/metacatalog/pkg/storage"
	"github.com/nainya/metacatalog/pkg/storage/boltkv"
	"github.com/nainya/metacatalog/pkg/storage/memkv"
	"github.com/nainya/metacatalog/pkg/storage/rediskv"
)

// openStore opens the metadata key-value backend named by cfg.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		if cfg.Journal == "" {
			return memkv.New(), nil
		}
		s, err := memkv.Open(cfg.Journal)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBolt:
		s, err := boltkv.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		s, err := rediskv.Dial(ctx, cfg.RedisAddr, cfg.RedisKey)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, config.Error.New("unknown storage backend %q", cfg.Backend)
}

// openRegistry opens the entity registry named by cfg.
func openRegistry(cfg config.RegistryConfig) (platform.Registry, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return platform.NewMemoryRegistry(), nil
	case config.BackendSQLite:
		r, err := sqlregistry.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, config.Error.New("unknown registry backend %q", cfg.Backend)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// readiness pings the store and, when it supports it, the registry.
func readiness(store storage.Store, reg platform.Registry) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return err
		}
		if p, ok := reg.(pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}
