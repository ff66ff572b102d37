package effect

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/core/event"
	"github.com/l1jgo/assetcore/internal/pool"
	"go.uber.org/zap"
)

// ComponentKind is the prefab component that marks an asset as an effect.
const ComponentKind = "effect"

// Resolver finds effect templates. *asset.Cache implements it.
type Resolver interface {
	Resolve(ctx context.Context, key string, req asset.Request) (*asset.Handle, error)
}

// Spawner is the pooling primitive. *pool.Pool implements it.
type Spawner interface {
	Spawn(tmpl pool.Template, pos pool.Vec3, rot pool.Quat) *pool.Instance
	Despawn(inst *pool.Instance) bool
}

type entry struct {
	requesting int // spawns in flight; gates unique spawns only
	instances  []*pool.Instance
	lifetime   time.Duration
}

// Pool tracks live effect instances by effect name.
type Pool struct {
	res    Resolver
	spawn  Spawner
	events *event.Bus
	log    *zap.Logger

	mu              sync.Mutex
	entries         map[string]*entry
	unique          map[string]bool
	defaultLifetime time.Duration
}

func New(res Resolver, spawn Spawner, events *event.Bus, log *zap.Logger) *Pool {
	return &Pool{
		res:     res,
		spawn:   spawn,
		events:  events,
		log:     log,
		entries: make(map[string]*entry),
		unique:  make(map[string]bool),
	}
}

// SetUniqueDefaults marks effect names that ShowDefault spawns as unique.
func (p *Pool) SetUniqueDefaults(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.unique[n] = true
	}
}

// SetDefaultLifetime applies to effects whose asset has no lifetime.
func (p *Pool) SetDefaultLifetime(d time.Duration) {
	p.mu.Lock()
	p.defaultLifetime = d
	p.mu.Unlock()
}

// Show spawns the named effect at pos/rot. With unique, an existing live
// instance is returned instead, and nil is returned while another spawn of
// the same name is in flight. A name with no effect asset yields nil.
func (p *Pool) Show(ctx context.Context, name string, pos pool.Vec3, rot pool.Quat, unique bool) *pool.Instance {
	h, err := p.res.Resolve(ctx, name, asset.Component(ComponentKind))
	if err != nil {
		return nil
	}

	p.mu.Lock()
	e := p.entries[name]
	if unique && e != nil {
		if len(e.instances) > 0 {
			inst := e.instances[0]
			p.mu.Unlock()
			return inst
		}
		if e.requesting > 0 {
			p.mu.Unlock()
			return nil
		}
	}
	if e == nil {
		e = &entry{}
		p.entries[name] = e
	}
	e.requesting++
	e.lifetime = h.Asset.Lifetime
	if e.lifetime == 0 {
		e.lifetime = p.defaultLifetime
	}
	p.mu.Unlock()

	inst := p.spawn.Spawn(h, pos, rot)

	p.mu.Lock()
	e.instances = append(e.instances, inst)
	e.requesting--
	p.mu.Unlock()

	event.Emit(p.events, event.EffectShown{Name: name, ID: inst.ID})
	return inst
}

// ShowDefault is Show with the unique policy configured for name.
func (p *Pool) ShowDefault(ctx context.Context, name string, pos pool.Vec3, rot pool.Quat) *pool.Instance {
	p.mu.Lock()
	unique := p.unique[name]
	p.mu.Unlock()
	return p.Show(ctx, name, pos, rot, unique)
}

// ShowAttached spawns at parent's world position and re-parents the
// instance under parent, keeping the instance's local scale. A nil parent
// yields nil.
func (p *Pool) ShowAttached(ctx context.Context, name string, parent *pool.Transform, rot pool.Quat, unique bool) *pool.Instance {
	if parent == nil {
		return nil
	}
	inst := p.Show(ctx, name, parent.WorldPosition(), rot, unique)
	if inst == nil {
		return nil
	}
	inst.Transform.SetParent(parent, true)
	return inst
}

// Hide returns instances of name to the pool: only target when it is given
// and tracked under name (matched by ID, so a stale handle is a no-op),
// otherwise every live instance. Returns how many
// were hidden.
func (p *Pool) Hide(name string, target *pool.Instance) int {
	p.mu.Lock()
	e := p.entries[name]
	if e == nil {
		p.mu.Unlock()
		return 0
	}
	var victims []*pool.Instance
	if target != nil {
		i := slices.IndexFunc(e.instances, func(inst *pool.Instance) bool { return inst.ID == target.ID })
		if i < 0 {
			p.mu.Unlock()
			return 0
		}
		victims = []*pool.Instance{e.instances[i]}
		e.instances = slices.Delete(e.instances, i, i+1)
	} else {
		victims = e.instances
		e.instances = nil
	}
	p.mu.Unlock()

	p.despawn(name, victims, false)
	return len(victims)
}

// HideAll hides every instance of every effect.
func (p *Pool) HideAll() int {
	n := 0
	for _, name := range p.Names() {
		n += p.Hide(name, nil)
	}
	return n
}

// Expire hides instances that have outlived their effect's lifetime.
func (p *Pool) Expire(now time.Time) int {
	type batch struct {
		name    string
		expired []*pool.Instance
	}
	var work []batch

	p.mu.Lock()
	for name, e := range p.entries {
		if e.lifetime <= 0 || len(e.instances) == 0 {
			continue
		}
		keep := e.instances[:0]
		var expired []*pool.Instance
		for _, inst := range e.instances {
			if now.Sub(inst.SpawnedAt) >= e.lifetime {
				expired = append(expired, inst)
			} else {
				keep = append(keep, inst)
			}
		}
		if len(expired) > 0 {
			clear(e.instances[len(keep):])
			e.instances = keep
			work = append(work, batch{name: name, expired: expired})
		}
	}
	p.mu.Unlock()

	n := 0
	for _, b := range work {
		p.despawn(b.name, b.expired, true)
		n += len(b.expired)
	}
	return n
}

func (p *Pool) despawn(name string, victims []*pool.Instance, expired bool) {
	for _, inst := range victims {
		id := inst.ID
		if !p.spawn.Despawn(inst) {
			p.log.Warn("effect instance already despawned", zap.String("effect", name), zap.Uint64("id", uint64(id)))
			continue
		}
		event.Emit(p.events, event.EffectHidden{Name: name, ID: id, Expired: expired})
	}
}

// Live returns a snapshot of the live instances of name.
func (p *Pool) Live(name string) []*pool.Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.entries[name]; e != nil {
		return slices.Clone(e.instances)
	}
	return nil
}

// Requesting reports whether a spawn of name is in flight.
func (p *Pool) Requesting(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entries[name]
	return e != nil && e.requesting > 0
}

// Has reports whether name has ever been spawned.
func (p *Pool) Has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[name]
	return ok
}

// Names returns every registered effect name, sorted.
func (p *Pool) Names() []string {
	p.mu.Lock()
	names := make([]string, 0, len(p.entries))
	for n := range p.entries {
		names = append(names, n)
	}
	p.mu.Unlock()
	sort.Strings(names)
	return names
}

// LiveCount returns the number of live instances across all effects.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		n += len(e.instances)
	}
	return n
}
