package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/config"
	"github.com/l1jgo/assetcore/internal/core/event"
	"github.com/l1jgo/assetcore/internal/core/gate"
	coresys "github.com/l1jgo/assetcore/internal/core/system"
	"github.com/l1jgo/assetcore/internal/effect"
	"github.com/l1jgo/assetcore/internal/pool"
	"github.com/l1jgo/assetcore/internal/scripting"
	"github.com/l1jgo/assetcore/internal/system"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Daemon ────────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/assetcore.toml"
	if p := os.Getenv("ASSETCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	out := os.Stdout
	printBanner(out, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Catalog source
	printSection(out, "資源目錄")
	src, closeSrc, err := openSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSrc()
	printOK(out, fmt.Sprintf("來源: %s", cfg.Catalog.Source))

	cat := catalog.New(src, os.DirFS(cfg.Catalog.ContentRoot), log.Named("catalog"))

	// 4. Design-time index (unused in runtime mode)
	var idx asset.Index
	if !cfg.Catalog.Runtime {
		var closeIdx func()
		idx, closeIdx, err = openIndex(cfg, log)
		if err != nil {
			return err
		}
		defer closeIdx()
		printOK(out, "設計模式索引已開啟")
	}

	// 5. Lua scripts
	printSection(out, "腳本")
	lua, err := scripting.NewEngine(cfg.Scripting.Dir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("init lua: %w", err)
	}
	defer lua.Close()
	printOK(out, fmt.Sprintf("腳本目錄 %s", cfg.Scripting.Dir))

	// 6. Gate, cache, effect pool
	bus := event.NewBus()
	var cache *asset.Cache
	var fx *effect.Pool
	configure := func(_ context.Context, enqueue func(func())) error {
		s, err := lua.Configure(cat.ContainsKey)
		if err != nil {
			return err
		}
		applySettings(enqueue, cache, fx, s, cfg.Effects.DefaultLifetime, log)
		return nil
	}
	g := gate.New(cat, configure, log.Named("gate"))
	cache = asset.NewCache(cat, g, asset.Options{
		Runtime:    cfg.Catalog.Runtime,
		Index:      idx,
		DesignRoot: os.DirFS(cfg.Catalog.ContentRoot),
		Events:     bus,
	}, log.Named("cache"))
	instances := pool.New(cfg.Effects.PoolCapacity)
	fx = effect.New(cache, instances, bus, log.Named("effect"))

	// 7. Bootstrap in the background; Resolve callers block on the gate.
	bootDone := make(chan struct{})
	go func() {
		defer close(bootDone)
		if err := bootstrap(ctx, g, cfg.Catalog.RetryDelay, log); err != nil {
			log.Warn("bootstrap abandoned", zap.Error(err))
		}
	}()

	// 8. Tick systems
	runner := coresys.NewRunner(log.Named("runner"))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewTelemetrySystem(bus, log.Named("telemetry"), telemetryTicks(cfg.Effects.TickRate)))
	runner.Register(system.NewEffectExpirySystem(fx, nil))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Effects.TickRate)
	defer ticker.Stop()

	printSection(out, "就緒")
	printReady(out, fmt.Sprintf("特效池容量 %d", cfg.Effects.PoolCapacity))
	printReady(out, fmt.Sprintf("tick 迴圈啟動 (tick: %s)", cfg.Effects.TickRate))
	fmt.Fprintln(out)

	reported := false
	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Effects.TickRate)
			if !reported && g.State() == gate.StateDone {
				reported = true
				printBootReport(out, collectBootReport(cat, g, cache, fx))
			}
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			cancel()
			<-bootDone
			hidden := fx.HideAll()
			cache.ReleaseAll()
			log.Info("已停止", zap.Int("effects_hidden", hidden))
			return nil
		}
	}
}

// telemetryTicks is how many ticks make up a ten second report window.
func telemetryTicks(tick time.Duration) int {
	return max(int(10*time.Second/tick), 1)
}
