package geom

// Side classifies a bounding volume against a plane set.
type Side int

const (
	SideOutside Side = iota
	SideIntersecting
	SideInside
)

// Plane is the set of points p where Normal·p + D == 0. The normal points
// toward the inside half-space.
type Plane struct {
	Normal Vector3
	D      float32
}

func NewPlane(normal Vector3, d float32) Plane {
	return Plane{Normal: normal.Normalized(), D: d}
}

// PlaneThrough builds the plane containing the given point with the given
// inside-facing normal.
func PlaneThrough(point, normal Vector3) Plane {
	n := normal.Normalized()
	return Plane{Normal: n, D: -n.Dot(point)}
}

func (p Plane) SignedDistance(v Vector3) float32 {
	return p.Normal.Dot(v) + p.D
}

// Frustum is a convex region described by inside-facing planes. Any plane
// count works; six for a camera frustum.
type Frustum []Plane
