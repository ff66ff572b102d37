package asset

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/core/event"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Catalog is the runtime asset catalog. *catalog.Catalog implements it.
type Catalog interface {
	ContainsKey(key string) bool
	Load(ctx context.Context, key string) (*catalog.Asset, error)
	Release(key string)
	Sweep() int
}

// Index is the design-time lookup by display name. Implemented by
// *catalog.ManifestIndex and *assetdb.Index.
type Index interface {
	FindByName(ctx context.Context, name, kind string) (catalog.Entry, bool, error)
}

// Waiter blocks until the asset system is bootstrapped. *gate.Gate implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

type Options struct {
	// Runtime false means design-time: every Resolve goes through Index.
	Runtime bool
	Index   Index
	// DesignRoot holds the payloads of design-time lookups.
	DesignRoot fs.FS
	Events     *event.Bus
	// PreloadWorkers bounds Preload concurrency (default 8).
	PreloadWorkers int
}

// Cache resolves asset keys through the catalog, sharing one load per key
// and remembering which keys it holds so ReleaseAll can give them back.
type Cache struct {
	cat  Catalog
	gate Waiter
	opts Options
	log  *zap.Logger

	flight singleflight.Group

	mu     sync.Mutex
	cached map[string]*catalog.Asset
}

func NewCache(cat Catalog, gate Waiter, opts Options, log *zap.Logger) *Cache {
	if opts.PreloadWorkers <= 0 {
		opts.PreloadWorkers = 8
	}
	return &Cache{
		cat:    cat,
		gate:   gate,
		opts:   opts,
		log:    log,
		cached: make(map[string]*catalog.Asset),
	}
}

// Resolve returns the asset (or component) for key. Every failure is logged
// and returned as an error wrapping ErrNotFound.
func (c *Cache) Resolve(ctx context.Context, key string, req Request) (*Handle, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNotFound)
	}
	if !c.opts.Runtime {
		return c.resolveDesignTime(ctx, key, req)
	}
	if err := c.gate.Wait(ctx); err != nil {
		return nil, c.notFound(key, req, fmt.Errorf("wait for bootstrap: %w", err))
	}
	if !c.cat.ContainsKey(key) {
		return c.resolveDesignTime(ctx, key, req)
	}

	a, err := c.load(ctx, key)
	if err != nil {
		c.log.Error("asset load failed", zap.String("key", key), zap.Stringer("request", req), zap.Error(err))
		return nil, c.missing(key, req, err)
	}
	h, ok := (&Handle{Key: key, Asset: a}).extract(req)
	if !ok {
		return nil, c.notFound(key, req, fmt.Errorf("%s has no %q component", a.Kind, req.Component))
	}
	return h, nil
}

// load shares one catalog load between concurrent resolvers of key. The load
// runs to completion even if ctx ends first; the result stays cached.
func (c *Cache) load(ctx context.Context, key string) (*catalog.Asset, error) {
	if a, ok := c.lookup(key); ok {
		return a, nil
	}
	ch := c.flight.DoChan(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic during load: %v", r)
			}
		}()
		if a, ok := c.lookup(key); ok {
			return a, nil
		}
		a, err := c.cat.Load(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cached[key] = a
		c.mu.Unlock()
		return a, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*catalog.Asset), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookup(key string) (*catalog.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.cached[key]
	return a, ok
}

func (c *Cache) resolveDesignTime(ctx context.Context, key string, req Request) (*Handle, error) {
	if c.opts.Index == nil {
		return nil, c.notFound(key, req, fmt.Errorf("not in catalog and no design-time index"))
	}
	e, ok, err := c.opts.Index.FindByName(ctx, key, req.designKind())
	if err != nil {
		c.log.Error("design-time lookup failed", zap.String("key", key), zap.Error(err))
		return nil, c.missing(key, req, err)
	}
	if !ok {
		return nil, c.notFound(key, req, fmt.Errorf("no asset named %q", key))
	}
	if c.opts.DesignRoot == nil {
		return nil, c.notFound(key, req, fmt.Errorf("no design-time content root"))
	}
	a, err := catalog.ReadAsset(c.opts.DesignRoot, e)
	if err != nil {
		c.log.Error("design-time load failed", zap.String("key", key), zap.Error(err))
		return nil, c.missing(key, req, err)
	}
	h, ok := (&Handle{Key: key, Asset: a}).extract(req)
	if !ok {
		return nil, c.notFound(key, req, fmt.Errorf("%s has no %q component", a.Kind, req.Component))
	}
	return h, nil
}

// notFound logs an expected miss as a warning.
func (c *Cache) notFound(key string, req Request, reason error) error {
	c.log.Warn("asset not found", zap.String("key", key), zap.Stringer("request", req), zap.String("reason", reason.Error()))
	return c.missing(key, req, reason)
}

func (c *Cache) missing(key string, req Request, reason error) error {
	event.Emit(c.opts.Events, event.AssetMissing{Key: key, Request: req.String(), Reason: reason.Error()})
	return fmt.Errorf("%w: %q: %w", ErrNotFound, key, reason)
}

// Instantiate resolves key and returns an independent copy of the asset.
func (c *Cache) Instantiate(ctx context.Context, key string) (*Handle, error) {
	h, err := c.Resolve(ctx, key, Plain())
	if err != nil {
		return nil, err
	}
	return &Handle{Key: h.Key, Asset: h.Asset.Clone()}, nil
}

// SpriteFromAtlas resolves an atlas and returns one of its sprites. A missing
// sprite is reported as ErrSpriteNotFound, not ErrNotFound.
func (c *Cache) SpriteFromAtlas(ctx context.Context, atlasKey, spriteKey string) (*catalog.Sprite, error) {
	h, err := c.Resolve(ctx, atlasKey, Plain())
	if err != nil {
		return nil, err
	}
	sp, ok := h.Asset.Sprite(spriteKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrSpriteNotFound, spriteKey, atlasKey)
	}
	return sp, nil
}

// Preload resolves keys concurrently and returns once none are outstanding.
// Misses are logged by Resolve; the count of successes is returned.
func (c *Cache) Preload(ctx context.Context, keys []string, req Request) (int, error) {
	var ok atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.PreloadWorkers)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if _, err := c.Resolve(gctx, key, req); err == nil {
				ok.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return int(ok.Load()), err
	}
	return int(ok.Load()), nil
}

// Release gives one key back to the catalog and forgets it.
func (c *Cache) Release(key string) bool {
	c.mu.Lock()
	_, ok := c.cached[key]
	delete(c.cached, key)
	c.mu.Unlock()
	if ok {
		c.cat.Release(key)
	}
	return ok
}

// ReleaseAll releases every cached key, sweeps unused assets, and clears
// the cache. Safe to call on an empty cache.
func (c *Cache) ReleaseAll() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.cached))
	for k := range c.cached {
		keys = append(keys, k)
	}
	c.cached = make(map[string]*catalog.Asset)
	c.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		c.cat.Release(k)
	}
	swept := c.cat.Sweep()
	c.log.Info("asset cache released", zap.Int("keys", len(keys)), zap.Int("swept", swept))
}

// Contains reports whether key is in the cached set.
func (c *Cache) Contains(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Keys returns the cached keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.cached))
	for k := range c.cached {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sort.Strings(keys)
	return keys
}
