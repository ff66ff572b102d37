package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrUnknownKey     = errors.New("catalog: unknown key")
	ErrChecksum       = errors.New("catalog: checksum mismatch")
	ErrNotInitialized = errors.New("catalog: not initialized")
)

// Source lists catalog entries. Implemented by ManifestSource (YAML) and
// persist.AssetRepo (PostgreSQL).
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
}

type loadedAsset struct {
	asset *Asset
	refs  int
}

// Catalog maps keys to loadable assets and reference-counts what is loaded.
type Catalog struct {
	src  Source
	root fs.FS
	log  *zap.Logger

	mu      sync.Mutex
	entries map[string]*Entry
	loaded  map[string]*loadedAsset
}

func New(src Source, root fs.FS, log *zap.Logger) *Catalog {
	return &Catalog{
		src:    src,
		root:   root,
		log:    log,
		loaded: make(map[string]*loadedAsset),
	}
}

// Initialize (re)reads the entry list from the source. Loaded assets are kept.
func (c *Catalog) Initialize(ctx context.Context) error {
	list, err := c.src.Entries(ctx)
	if err != nil {
		return fmt.Errorf("list catalog entries: %w", err)
	}
	entries := make(map[string]*Entry, len(list))
	for i := range list {
		e := &list[i]
		if e.Key == "" {
			return fmt.Errorf("catalog entry %d (%q): empty key", i, e.Name)
		}
		if _, dup := entries[e.Key]; dup {
			return fmt.Errorf("catalog entry %d: duplicate key %q", i, e.Key)
		}
		entries[e.Key] = e
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.log.Info("catalog initialized", zap.Int("entries", len(entries)))
	return nil
}

func (c *Catalog) ContainsKey(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Entry returns a copy of the entry for key.
func (c *Catalog) Entry(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns every entry sorted by key.
func (c *Catalog) Entries() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Count returns the number of known entries.
func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Load returns the asset for key, reading it on first use, and takes one
// reference on it. Every Load must be paired with a Release.
func (c *Catalog) Load(ctx context.Context, key string) (*Asset, error) {
	c.mu.Lock()
	if c.entries == nil {
		c.mu.Unlock()
		return nil, ErrNotInitialized
	}
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if la, ok := c.loaded[key]; ok {
		la.refs++
		c.mu.Unlock()
		return la.asset, nil
	}
	entry := *e
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := ReadAsset(c.root, entry)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// another loader may have finished first
	if la, ok := c.loaded[key]; ok {
		la.refs++
		return la.asset, nil
	}
	c.loaded[key] = &loadedAsset{asset: a, refs: 1}
	c.log.Debug("asset loaded", zap.String("key", key), zap.Int("bytes", len(a.Payload)))
	return a, nil
}

// Release drops one reference on key. The asset stays resident until Sweep.
func (c *Catalog) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if la, ok := c.loaded[key]; ok && la.refs > 0 {
		la.refs--
	}
}

// Sweep unloads every resident asset with no references and returns how
// many were dropped.
func (c *Catalog) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, la := range c.loaded {
		if la.refs == 0 {
			delete(c.loaded, key)
			n++
		}
	}
	if n > 0 {
		c.log.Debug("unused assets swept", zap.Int("count", n))
	}
	return n
}

// Refs returns the reference count for key (0 when not resident).
func (c *Catalog) Refs(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if la, ok := c.loaded[key]; ok {
		return la.refs
	}
	return 0
}

// Resident reports whether key's payload is currently loaded.
func (c *Catalog) Resident(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.loaded[key]
	return ok
}
