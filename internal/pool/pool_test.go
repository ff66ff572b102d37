package pool

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tmpl string

func (t tmpl) TemplateKey() string { return string(t) }

func TestSpawnDespawnRecycles(t *testing.T) {
	p := New(4)

	a := p.Spawn(tmpl("spark"), Vec3{X: 1}, Identity)
	require.NotNil(t, a)
	assert.True(t, p.Alive(a.ID))
	assert.Equal(t, 1, p.Count())

	oldID := a.ID
	require.True(t, p.Despawn(a))
	assert.False(t, p.Alive(oldID))
	assert.Equal(t, 0, p.Count())
	assert.Equal(t, 0, p.Live("spark"))

	// double despawn is rejected
	assert.False(t, p.Despawn(a))

	b := p.Spawn(tmpl("spark"), Vec3{Y: 2}, Identity)
	assert.NotSame(t, a, b, "every spawn gets its own instance")
	assert.NotSame(t, a.Transform, b.Transform)
	assert.NotEqual(t, oldID, b.ID, "recycled slot gets a new generation")
	assert.Equal(t, oldID.Index(), b.ID.Index())
	assert.Equal(t, Vec3{Y: 2}, b.Transform.Position)
	assert.Equal(t, 1, p.Live("spark"))
}

func TestStaleHandleDoesNotTouchNewSpawn(t *testing.T) {
	p := New(1)
	old := p.Spawn(tmpl("spark"), Vec3{}, Identity)
	require.True(t, p.Despawn(old))

	fresh := p.Spawn(tmpl("spark"), Vec3{X: 5}, Identity)
	assert.Equal(t, old.ID.Index(), fresh.ID.Index())

	assert.False(t, p.Despawn(old), "stale handle")
	assert.True(t, p.Alive(fresh.ID))
	assert.Equal(t, Vec3{}, old.Transform.Position)
	assert.Equal(t, Vec3{X: 5}, fresh.Transform.Position)
	assert.Equal(t, 1, p.Count())
}

func TestSpawnKeepsTemplatesApart(t *testing.T) {
	p := New(4)
	a := p.Spawn(tmpl("spark"), Vec3{}, Identity)
	require.True(t, p.Despawn(a))

	b := p.Spawn(tmpl("smoke"), Vec3{}, Identity)
	assert.NotSame(t, a, b)
	assert.Equal(t, 0, p.Live("spark"))
	assert.Equal(t, 1, p.Live("smoke"))
}

func TestDespawnNil(t *testing.T) {
	assert.False(t, New(0).Despawn(nil))
}

func TestSpawnedAtUsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := New(1, WithClock(func() time.Time { return at }))
	inst := p.Spawn(tmpl("spark"), Vec3{}, Identity)
	assert.Equal(t, at, inst.SpawnedAt)
}

func approx(t *testing.T, want, got Vec3) {
	t.Helper()
	const eps = 1e-9
	if math.Abs(want.X-got.X) > eps || math.Abs(want.Y-got.Y) > eps || math.Abs(want.Z-got.Z) > eps {
		t.Fatalf("vector mismatch: want %+v, got %+v", want, got)
	}
}

func TestTransformWorldPosition(t *testing.T) {
	parent := NewTransform(Vec3{X: 10}, Euler(0, 0, 90))
	parent.LocalScale = Vec3{X: 2, Y: 2, Z: 2}
	child := &Transform{Position: Vec3{X: 1}, Rotation: Identity, LocalScale: One, Parent: parent}

	// (1,0,0) scaled by 2 then rotated 90° about Z lands on (0,2,0)
	approx(t, Vec3{X: 10, Y: 2}, child.WorldPosition())
	approx(t, Vec3{X: 2, Y: 2, Z: 2}, child.WorldScale())
}

func TestSetParentKeepsWorldPositionAndLocalScale(t *testing.T) {
	parent := NewTransform(Vec3{X: 5, Y: 5}, Euler(0, 0, 90))
	parent.LocalScale = Vec3{X: 3, Y: 3, Z: 3}

	child := NewTransform(Vec3{X: 5, Y: 5}, Identity)
	child.LocalScale = Vec3{X: 0.5, Y: 0.5, Z: 0.5}

	child.SetParent(parent, true)
	assert.Same(t, parent, child.Parent)
	approx(t, Vec3{X: 5, Y: 5}, child.WorldPosition())
	assert.Equal(t, Vec3{X: 0.5, Y: 0.5, Z: 0.5}, child.LocalScale)
}

func TestSetParentRescales(t *testing.T) {
	parent := NewTransform(Vec3{}, Identity)
	parent.LocalScale = Vec3{X: 2, Y: 2, Z: 2}

	child := NewTransform(Vec3{X: 4}, Identity)
	child.SetParent(parent, false)
	approx(t, Vec3{X: 2}, child.Position)
	approx(t, Vec3{X: 0.5, Y: 0.5, Z: 0.5}, child.LocalScale)
	approx(t, Vec3{X: 1, Y: 1, Z: 1}, child.WorldScale())
}
