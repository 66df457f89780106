package geom

import "math"

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vector3
	Radius float32
}

func NewSphere(center Vector3, radius float32) Sphere {
	return Sphere{Center: center, Radius: radius}
}

func (s Sphere) Centroid() Vector3 {
	return s.Center
}

func (s Sphere) Volume() float32 {
	return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
}

// Cost ranks the sphere against other bounding volumes. The squared radius is
// cheaper than the volume and orders identically.
func (s Sphere) Cost() float32 {
	return s.Radius * s.Radius
}

// Union returns the smallest sphere enclosing both spheres.
func (s Sphere) Union(o Sphere) Sphere {
	d := s.Center.Distance(o.Center)
	if s.Radius >= d+o.Radius {
		return s
	}
	if o.Radius >= d+s.Radius {
		return o
	}

	radius := (d + s.Radius + o.Radius) / 2
	center := s.Center.Lerp(o.Center, (radius-s.Radius)/d)
	return Sphere{Center: center, Radius: radius}
}

func (s Sphere) Equal(o Sphere) bool {
	return s.Center.Equal(o.Center) && s.Radius == o.Radius
}

func (s Sphere) Contains(o Sphere) bool {
	return s.Center.Distance(o.Center)+o.Radius <= s.Radius
}

func (s Sphere) Overlaps(o Sphere) bool {
	r := s.Radius + o.Radius
	return s.Center.DistanceSq(o.Center) <= r*r
}

func (s Sphere) ContainsPoint(p Vector3) bool {
	return s.Center.DistanceSq(p) <= s.Radius*s.Radius
}

// MinDistanceSq is the squared distance from the point to the sphere surface,
// zero when the point is inside.
func (s Sphere) MinDistanceSq(p Vector3) float32 {
	d := s.Center.Distance(p) - s.Radius
	if d <= 0 {
		return 0
	}
	return d * d
}

func (s Sphere) InsideBox(q Box) bool {
	return s.Center.X-s.Radius >= q.Min.X && s.Center.X+s.Radius <= q.Max.X &&
		s.Center.Y-s.Radius >= q.Min.Y && s.Center.Y+s.Radius <= q.Max.Y &&
		s.Center.Z-s.Radius >= q.Min.Z && s.Center.Z+s.Radius <= q.Max.Z
}

func (s Sphere) IntersectsBox(q Box) bool {
	return q.MinDistanceSq(s.Center) <= s.Radius*s.Radius
}

func (s Sphere) InsideSphere(q Sphere) bool {
	return q.Contains(s)
}

func (s Sphere) IntersectsSphere(q Sphere) bool {
	return s.Overlaps(q)
}

func (s Sphere) IntersectsCapsule(c Capsule) bool {
	r := s.Radius + c.Radius
	return distSqPointSegment(s.Center, c.A, c.B) <= r*r
}

// IntersectRay solves the ray-sphere quadratic bounded to [0, max]. It returns
// the surface hit parameters in ascending order and how many fall within the
// segment.
func (s Sphere) IntersectRay(r Ray, max float32) (float32, float32, int) {
	oc := r.Origin.Sub(s.Center)
	b := oc.Dot(r.Dir)
	c := oc.LengthSq() - s.Radius*s.Radius

	disc := b*b - c
	if disc < 0 {
		return 0, 0, 0
	}

	sq := float32(math.Sqrt(float64(disc)))
	t0 := -b - sq
	t1 := -b + sq

	switch {
	case t0 >= 0 && t1 <= max:
		return t0, t1, 2
	case t0 >= 0 && t0 <= max:
		return t0, 0, 1
	case t1 >= 0 && t1 <= max:
		return t1, 0, 1
	default:
		return 0, 0, 0
	}
}

func (s Sphere) SideOfFrustum(f Frustum) Side {
	side := SideInside
	for _, p := range f {
		d := p.SignedDistance(s.Center)
		if d < -s.Radius {
			return SideOutside
		}
		if d < s.Radius {
			side = SideIntersecting
		}
	}
	return side
}

// EncloseSpheres returns a sphere centered on the centroid of the given sphere
// centers, with the smallest radius covering every sphere. An empty input
// yields the zero sphere.
func EncloseSpheres(spheres []Sphere) Sphere {
	if len(spheres) == 0 {
		return Sphere{}
	}

	var center Vector3
	for _, s := range spheres {
		center = center.Add(s.Center)
	}
	center = center.Scale(1 / float32(len(spheres)))

	var radius float32
	for _, s := range spheres {
		if r := center.Distance(s.Center) + s.Radius; r > radius {
			radius = r
		}
	}
	return Sphere{Center: center, Radius: radius}
}
