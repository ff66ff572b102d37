package main

import (
	"bytes"
	"context"
	"testing"
	"testing/fstest"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/config"
	"github.com/l1jgo/assetcore/internal/core/gate"
	"github.com/l1jgo/assetcore/internal/effect"
	"github.com/l1jgo/assetcore/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectBootReport(t *testing.T) {
	entries := []catalog.Entry{
		{Key: "ui_icons", Kind: catalog.KindAtlas, Path: "ui.bin"},
		{Key: "fx_hit", Kind: catalog.KindPrefab, Path: "fx.bin", Components: []string{effect.ComponentKind}},
		{Key: "unused", Kind: catalog.KindData, Path: "ui.bin"},
	}
	content := fstest.MapFS{"ui.bin": {Data: []byte("ui")}, "fx.bin": {Data: []byte("fx")}}
	cat := catalog.New(catalog.StaticSource(entries), content, zap.NewNop())

	var cache *asset.Cache
	g := gate.New(cat, nil, zap.NewNop())
	cache = asset.NewCache(cat, g, asset.Options{Runtime: true}, zap.NewNop())
	fx := effect.New(cache, pool.New(4), nil, zap.NewNop())
	g.Enqueue(func() { _, _ = cache.Resolve(context.Background(), "ui_icons", asset.Plain()) })

	require.NoError(t, g.Start(context.Background()))
	require.NotNil(t, fx.Show(context.Background(), "fx_hit", pool.Vec3{}, pool.Identity, false))

	r := collectBootReport(cat, g, cache, fx)
	assert.Equal(t, bootReport{Entries: 3, Resident: 2, Cached: 2, Attempts: 1, Drained: 1, LiveEffects: 1}, r)

	var buf bytes.Buffer
	printBootReport(&buf, r)
	assert.Contains(t, buf.String(), "資源統計")
	assert.Contains(t, buf.String(), "已執行回呼")
}

func TestPrintBannerShowsMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Catalog.Runtime = false

	var buf bytes.Buffer
	printBanner(&buf, cfg)
	assert.Contains(t, buf.String(), "assetcore")
	assert.Contains(t, buf.String(), "manifest · 設計期")
}

func TestColumnsCountsCJKWide(t *testing.T) {
	assert.Equal(t, 4, columns("abcd"))
	assert.Equal(t, 8, columns("資源統計"))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "loud", Format: "json"}, "test")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
}
