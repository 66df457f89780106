// Package geom provides the allocation-free geometric primitives used by the
// spatial index: vectors, bounding volumes, rays, capsules, frustums and a few
// fitting helpers. Everything is a value type with pure functions.
package geom

import "math"

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

func NewVector3(x, y, z float32) Vector3 {
	return Vector3{x, y, z}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector3) Dot(o Vector3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector3) LengthSq() float32 {
	return v.Dot(v)
}

func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSq())))
}

func (v Vector3) DistanceSq(o Vector3) float32 {
	return v.Sub(o).LengthSq()
}

func (v Vector3) Distance(o Vector3) float32 {
	return v.Sub(o).Length()
}

// Normalized returns the unit vector pointing in the same direction. The zero
// vector is returned unchanged.
func (v Vector3) Normalized() Vector3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vector3) Lerp(o Vector3, t float32) Vector3 {
	return v.Add(o.Sub(v).Scale(t))
}

func (v Vector3) Equal(o Vector3) bool {
	return v.X == o.X && v.Y == o.Y && v.Z == o.Z
}

func (v Vector3) EqualWithEpsilon(o Vector3, epsilon float64) bool {
	return math.Abs(float64(v.X-o.X)) <= epsilon &&
		math.Abs(float64(v.Y-o.Y)) <= epsilon &&
		math.Abs(float64(v.Z-o.Z)) <= epsilon
}

// XZ projects the vector onto the horizontal plane.
func (v Vector3) XZ() Vector2 {
	return Vector2{v.X, v.Z}
}

func MinVector3(a, b Vector3) Vector3 {
	return Vector3{
		float32(math.Min(float64(a.X), float64(b.X))),
		float32(math.Min(float64(a.Y), float64(b.Y))),
		float32(math.Min(float64(a.Z), float64(b.Z))),
	}
}

func MaxVector3(a, b Vector3) Vector3 {
	return Vector3{
		float32(math.Max(float64(a.X), float64(b.X))),
		float32(math.Max(float64(a.Y), float64(b.Y))),
		float32(math.Max(float64(a.Z), float64(b.Z))),
	}
}

type Vector2 struct {
	X float32
	Y float32
}

func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{v.X - o.X, v.Y - o.Y}
}
