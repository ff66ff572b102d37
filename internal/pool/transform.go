package pool

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

// Div divides component-wise; a zero divisor component yields zero.
func (v Vec3) Div(o Vec3) Vec3 {
	return Vec3{safeDiv(v.X, o.X), safeDiv(v.Y, o.Y), safeDiv(v.Z, o.Z)}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// One is the identity scale.
var One = Vec3{1, 1, 1}

// Quat is a unit rotation quaternion.
type Quat struct {
	X, Y, Z, W float64
}

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// Euler builds a rotation from angles in degrees, applied Z, then X, then Y.
func Euler(x, y, z float64) Quat {
	const deg = math.Pi / 180
	cx, sx := math.Cos(x*deg/2), math.Sin(x*deg/2)
	cy, sy := math.Cos(y*deg/2), math.Sin(y*deg/2)
	cz, sz := math.Cos(z*deg/2), math.Sin(z*deg/2)
	return Quat{
		X: cy*sx*cz + sy*cx*sz,
		Y: sy*cx*cz - cy*sx*sz,
		Z: cy*cx*sz - sy*sx*cz,
		W: cy*cx*cz + sy*sx*sz,
	}
}

func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

func (q Quat) Inverse() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	p := q.Mul(Quat{v.X, v.Y, v.Z, 0}).Mul(q.Inverse())
	return Vec3{p.X, p.Y, p.Z}
}

// Transform is a node in a parent chain. Position and Rotation are local to
// Parent (world space when Parent is nil).
type Transform struct {
	Position   Vec3
	Rotation   Quat
	LocalScale Vec3
	Parent     *Transform
}

// NewTransform returns a root transform at pos with unit scale.
func NewTransform(pos Vec3, rot Quat) *Transform {
	return &Transform{Position: pos, Rotation: rot, LocalScale: One}
}

func (t *Transform) WorldPosition() Vec3 {
	if t.Parent == nil {
		return t.Position
	}
	p := t.Parent
	return p.WorldPosition().Add(p.WorldRotation().Rotate(t.Position.Mul(p.WorldScale())))
}

func (t *Transform) WorldRotation() Quat {
	if t.Parent == nil {
		return t.Rotation
	}
	return t.Parent.WorldRotation().Mul(t.Rotation)
}

func (t *Transform) WorldScale() Vec3 {
	if t.Parent == nil {
		return t.LocalScale
	}
	return t.Parent.WorldScale().Mul(t.LocalScale)
}

// SetParent re-parents t while keeping its world position and rotation.
// With keepLocalScale the local scale is left as it was; otherwise it is
// rescaled so the world scale stays unchanged.
func (t *Transform) SetParent(parent *Transform, keepLocalScale bool) {
	worldPos := t.WorldPosition()
	worldRot := t.WorldRotation()
	worldScale := t.WorldScale()

	t.Parent = parent
	if parent == nil {
		t.Position, t.Rotation = worldPos, worldRot
		if !keepLocalScale {
			t.LocalScale = worldScale
		}
		return
	}
	pr := parent.WorldRotation()
	ps := parent.WorldScale()
	t.Position = pr.Inverse().Rotate(worldPos.Sub(parent.WorldPosition())).Div(ps)
	t.Rotation = pr.Inverse().Mul(worldRot)
	if !keepLocalScale {
		t.LocalScale = worldScale.Div(ps)
	}
}
