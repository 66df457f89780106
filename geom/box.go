package geom

import "math"

// Box is an axis-aligned bounding box.
type Box struct {
	Min Vector3
	Max Vector3
}

func NewBox(min, max Vector3) Box {
	return Box{Min: min, Max: max}
}

// BoxAround builds a box from a center point and half-extents.
func BoxAround(center, extents Vector3) Box {
	return Box{
		Min: center.Sub(extents),
		Max: center.Add(extents),
	}
}

func (b Box) Centroid() Vector3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b Box) Size() Vector3 {
	return b.Max.Sub(b.Min)
}

func (b Box) Extents() Vector3 {
	return b.Size().Scale(0.5)
}

func (b Box) Volume() float32 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

func (b Box) SurfaceArea() float32 {
	s := b.Size()
	return 2 * (s.X*s.Y + s.Y*s.Z + s.Z*s.X)
}

// Cost ranks the box against other bounding volumes when the index picks
// placements and rebalances.
func (b Box) Cost() float32 {
	return b.Volume()
}

func (b Box) Union(o Box) Box {
	return Box{
		Min: MinVector3(b.Min, o.Min),
		Max: MaxVector3(b.Max, o.Max),
	}
}

func (b Box) Equal(o Box) bool {
	return b.Min.Equal(o.Min) && b.Max.Equal(o.Max)
}

func (b Box) Contains(o Box) bool {
	return b.Min.X <= o.Min.X && b.Min.Y <= o.Min.Y && b.Min.Z <= o.Min.Z &&
		b.Max.X >= o.Max.X && b.Max.Y >= o.Max.Y && b.Max.Z >= o.Max.Z
}

func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

func (b Box) ContainsPoint(p Vector3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Expanded(p Vector3) Box {
	return Box{
		Min: MinVector3(b.Min, p),
		Max: MaxVector3(b.Max, p),
	}
}

// Inflated grows the box by the given margin on every side.
func (b Box) Inflated(margin float32) Box {
	m := Vector3{margin, margin, margin}
	return Box{
		Min: b.Min.Sub(m),
		Max: b.Max.Add(m),
	}
}

func (b Box) ClosestPoint(p Vector3) Vector3 {
	return MaxVector3(b.Min, MinVector3(b.Max, p))
}

// MinDistanceSq is the squared distance from the point to the box surface,
// zero when the point is inside.
func (b Box) MinDistanceSq(p Vector3) float32 {
	return b.ClosestPoint(p).DistanceSq(p)
}

func (b Box) InsideBox(q Box) bool {
	return q.Contains(b)
}

func (b Box) IntersectsBox(q Box) bool {
	return b.Overlaps(q)
}

// InsideSphere reports whether the whole box fits within the sphere. It checks
// the corner farthest from the sphere center.
func (b Box) InsideSphere(q Sphere) bool {
	var farSq float32
	far := Vector3{
		maxAbs(b.Min.X-q.Center.X, b.Max.X-q.Center.X),
		maxAbs(b.Min.Y-q.Center.Y, b.Max.Y-q.Center.Y),
		maxAbs(b.Min.Z-q.Center.Z, b.Max.Z-q.Center.Z),
	}
	farSq = far.LengthSq()
	return farSq <= q.Radius*q.Radius
}

func (b Box) IntersectsSphere(q Sphere) bool {
	return b.MinDistanceSq(q.Center) <= q.Radius*q.Radius
}

// IntersectsCapsule is a conservative overlap test: the box is inflated by the
// capsule radius and tested against the capsule segment.
func (b Box) IntersectsCapsule(c Capsule) bool {
	inflated := b.Inflated(c.Radius)
	if inflated.ContainsPoint(c.A) {
		return true
	}
	dir := c.B.Sub(c.A)
	length := dir.Length()
	if length == 0 {
		return false
	}
	r := Ray{Origin: c.A, Dir: dir.Scale(1 / length)}
	_, _, n := b.Inflated(c.Radius).IntersectRay(r, length)
	return n > 0
}

// IntersectRay is the slab test bounded to [0, max]. It returns the surface
// hit parameters in ascending order and how many fall within the segment.
func (b Box) IntersectRay(r Ray, max float32) (float32, float32, int) {
	tmin := float32(math.Inf(-1))
	tmax := float32(math.Inf(1))

	mins := [3]float32{b.Min.X, b.Min.Y, b.Min.Z}
	maxs := [3]float32{b.Max.X, b.Max.Y, b.Max.Z}
	origins := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dirs := [3]float32{r.Dir.X, r.Dir.Y, r.Dir.Z}

	for i := 0; i < 3; i++ {
		if dirs[i] == 0 {
			if origins[i] < mins[i] || origins[i] > maxs[i] {
				return 0, 0, 0
			}
			continue
		}
		t0 := (mins[i] - origins[i]) / dirs[i]
		t1 := (maxs[i] - origins[i]) / dirs[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return 0, 0, 0
		}
	}

	if tmax < 0 || tmin > max {
		return 0, 0, 0
	}

	switch {
	case tmin >= 0 && tmax <= max:
		return tmin, tmax, 2
	case tmin >= 0:
		return tmin, 0, 1
	case tmax <= max:
		// ray starts inside, only the exit point is on the surface
		return tmax, 0, 1
	default:
		return 0, 0, 0
	}
}

func (b Box) SideOfFrustum(f Frustum) Side {
	c := b.Centroid()
	e := b.Extents()
	side := SideInside

	for _, p := range f {
		r := e.X*abs(p.Normal.X) + e.Y*abs(p.Normal.Y) + e.Z*abs(p.Normal.Z)
		d := p.SignedDistance(c)
		if d < -r {
			return SideOutside
		}
		if d < r {
			side = SideIntersecting
		}
	}
	return side
}

// EncloseBoxes returns the union of all given boxes. An empty input yields the
// zero box.
func EncloseBoxes(boxes []Box) Box {
	if len(boxes) == 0 {
		return Box{}
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func maxAbs(a, b float32) float32 {
	a = abs(a)
	b = abs(b)
	if a > b {
		return a
	}
	return b
}
