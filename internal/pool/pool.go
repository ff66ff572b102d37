package pool

import (
	"sync"
	"time"
)

// Template is whatever an instance is cloned from.
type Template interface {
	TemplateKey() string
}

// Instance is one spawned object. Every Spawn returns a new *Instance; only
// the slot behind its ID is recycled, under a new generation, so a handle
// kept after Despawn never refers to a later spawn.
type Instance struct {
	ID        ID
	Template  Template
	Transform *Transform
	SpawnedAt time.Time
}

// Pool is the pooling primitive behind effect spawning. Safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	slots   *slots
	live    map[ID]*Instance
	spawned map[string]int // live count per template key
	now     func() time.Time
}

type Option func(*Pool)

// WithClock overrides the time source used for SpawnedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

func New(capacity int, opts ...Option) *Pool {
	p := &Pool{
		slots:   newSlots(capacity),
		live:    make(map[ID]*Instance, capacity),
		spawned: make(map[string]int),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Spawn places a new instance of tmpl at pos/rot as a root transform,
// reusing a free slot when one exists.
func (p *Pool) Spawn(tmpl Template, pos Vec3, rot Quat) *Instance {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst := &Instance{
		ID:        p.slots.create(),
		Template:  tmpl,
		Transform: &Transform{Position: pos, Rotation: rot, LocalScale: One},
		SpawnedAt: p.now(),
	}
	p.live[inst.ID] = inst
	p.spawned[tmpl.TemplateKey()]++
	return inst
}

// Despawn frees inst's slot. Returns false for nil, stale or
// already-despawned instances.
func (p *Pool) Despawn(inst *Instance) bool {
	if inst == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live[inst.ID] != inst || !p.slots.destroy(inst.ID) {
		return false
	}
	delete(p.live, inst.ID)
	inst.Transform.Parent = nil
	key := inst.Template.TemplateKey()
	if p.spawned[key]--; p.spawned[key] <= 0 {
		delete(p.spawned, key)
	}
	return true
}

func (p *Pool) Alive(id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.live[id]
	return ok && p.slots.alive(id)
}

// Count returns the number of live instances.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Live returns the number of live instances of a template key.
func (p *Pool) Live(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spawned[key]
}
