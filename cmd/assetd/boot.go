package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/assetdb"
	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/config"
	"github.com/l1jgo/assetcore/internal/core/gate"
	"github.com/l1jgo/assetcore/internal/effect"
	"github.com/l1jgo/assetcore/internal/persist"
	"github.com/l1jgo/assetcore/internal/scripting"
	"go.uber.org/zap"
)

// openSource returns the catalog source named by the config and a func
// that releases it.
func openSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (catalog.Source, func(), error) {
	switch cfg.Catalog.Source {
	case "postgres":
		connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		db, err := persist.NewDB(connCtx, cfg.Database, log.Named("db"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		applied, err := persist.RunMigrations(connCtx, db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", zap.Int("count", applied))
		return persist.NewAssetRepo(db), db.Close, nil
	default:
		return catalog.ManifestSource{Path: cfg.Catalog.Manifest}, func() {}, nil
	}
}

// openIndex prefers the SQLite index built by assetctl and falls back to
// scanning the manifest in memory.
func openIndex(cfg *config.Config, log *zap.Logger) (asset.Index, func(), error) {
	if cfg.Index.Path != "" {
		if _, err := os.Stat(cfg.Index.Path); err == nil {
			idx, err := assetdb.Open(cfg.Index.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("open index: %w", err)
			}
			return idx, func() { idx.Close() }, nil
		}
		log.Warn("index not built, scanning manifest", zap.String("path", cfg.Index.Path))
	}
	entries, err := catalog.LoadManifest(cfg.Catalog.Manifest)
	if err != nil {
		return nil, nil, err
	}
	return catalog.NewManifestIndex(entries), func() {}, nil
}

// applySettings hands script configuration to the effect pool and queues the
// preload list behind the gate.
func applySettings(enqueue func(func()), cache *asset.Cache, fx *effect.Pool, s scripting.Settings, fallback time.Duration, log *zap.Logger) {
	fx.SetUniqueDefaults(s.Unique)
	lifetime := s.DefaultLifetime
	if lifetime == 0 {
		lifetime = fallback
	}
	fx.SetDefaultLifetime(lifetime)

	if len(s.Preload) == 0 {
		return
	}
	keys := s.Preload
	enqueue(func() {
		n, err := cache.Preload(context.Background(), keys, asset.Plain())
		if err != nil {
			log.Warn("preload incomplete", zap.Int("loaded", n), zap.Int("requested", len(keys)), zap.Error(err))
			return
		}
		log.Info("preload done", zap.Int("loaded", n))
	})
}

// bootstrap starts g, retrying every delay until it succeeds or ctx ends.
func bootstrap(ctx context.Context, g *gate.Gate, delay time.Duration, log *zap.Logger) error {
	for {
		err := g.Start(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gate.ErrBootstrap) {
			return err
		}
		log.Info("retrying bootstrap", zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
