package system

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/core/event"
	"github.com/l1jgo/assetcore/internal/core/gate"
	coresys "github.com/l1jgo/assetcore/internal/core/system"
	"github.com/l1jgo/assetcore/internal/effect"
	"github.com/l1jgo/assetcore/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type world struct {
	now     time.Time
	bus     *event.Bus
	cache   *asset.Cache
	effects *effect.Pool
	runner  *coresys.Runner
	tele    *TelemetrySystem
	logs    *observer.ObservedLogs
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return w.now }

	entries := []catalog.Entry{
		{Key: "fx_hit", Kind: catalog.KindPrefab, Path: "fx.bin", Components: []string{effect.ComponentKind}, Lifetime: time.Second},
	}
	cat := catalog.New(catalog.StaticSource(entries), fstest.MapFS{"fx.bin": {Data: []byte("fx")}}, zap.NewNop())
	g := gate.New(cat, nil, zap.NewNop())
	require.NoError(t, g.Start(context.Background()))

	core, logs := observer.New(zapcore.InfoLevel)
	w.logs = logs
	w.bus = event.NewBus()
	w.cache = asset.NewCache(cat, g, asset.Options{Runtime: true, Events: w.bus}, zap.NewNop())
	w.effects = effect.New(w.cache, pool.New(8, pool.WithClock(clock)), w.bus, zap.NewNop())

	w.runner = coresys.NewRunner(zap.NewNop())
	w.tele = NewTelemetrySystem(w.bus, zap.New(core), 1)
	w.runner.Register(NewEffectExpirySystem(w.effects, clock))
	w.runner.Register(w.tele)
	w.runner.Register(NewEventSystem(w.bus))
	return w
}

func TestEffectExpiryOnTick(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NotNil(t, w.effects.Show(ctx, "fx_hit", pool.Vec3{}, pool.Identity, false))

	w.runner.Tick(200 * time.Millisecond)
	assert.Equal(t, 1, w.effects.LiveCount())

	w.now = w.now.Add(time.Second)
	w.runner.Tick(200 * time.Millisecond)
	assert.Equal(t, 0, w.effects.LiveCount())
}

func TestTelemetryCountsEvents(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	w.effects.Show(ctx, "fx_hit", pool.Vec3{}, pool.Identity, false)
	inst := w.effects.Show(ctx, "fx_hit", pool.Vec3{}, pool.Identity, false)
	w.effects.Hide("fx_hit", inst)
	_, err := w.cache.Resolve(ctx, "nope", asset.Plain())
	require.ErrorIs(t, err, asset.ErrNotFound)

	// events emitted this tick are dispatched by the next
	w.runner.Tick(time.Millisecond)
	assert.Equal(t, Counters{Shown: 2, Hidden: 1, Missing: 1}, w.tele.Last())
	require.Equal(t, 1, w.logs.FilterMessage("asset telemetry").Len())

	w.now = w.now.Add(2 * time.Second)
	w.runner.Tick(time.Millisecond) // expiry emits, dispatched next tick
	w.runner.Tick(time.Millisecond)
	assert.Equal(t, Counters{Expired: 1}, w.tele.Last())

	w.runner.Tick(time.Millisecond)
	assert.Equal(t, Counters{}, w.tele.Last())
	assert.Equal(t, 2, w.logs.FilterMessage("asset telemetry").Len(), "quiet windows are not logged")
}

func TestTelemetryInterval(t *testing.T) {
	bus := event.NewBus()
	tele := NewTelemetrySystem(bus, zap.NewNop(), 3)
	events := NewEventSystem(bus)

	event.Emit(bus, event.EffectShown{Name: "fx"})
	events.Update(0)
	tele.Update(0)
	tele.Update(0)
	assert.Equal(t, Counters{}, tele.Last())
	tele.Update(0)
	assert.Equal(t, Counters{Shown: 1}, tele.Last())
}
