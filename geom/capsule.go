package geom

// Capsule is the swept volume of a sphere moved along the segment A-B. A
// capsule with A == B degenerates to a sphere.
type Capsule struct {
	A      Vector3
	B      Vector3
	Radius float32
}

func NewCapsule(a, b Vector3, radius float32) Capsule {
	return Capsule{A: a, B: b, Radius: radius}
}

func closestPointOnSegment(p, a, b Vector3) Vector3 {
	ab := b.Sub(a)
	lenSq := ab.LengthSq()
	if lenSq == 0 {
		return a
	}

	t := p.Sub(a).Dot(ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(ab.Scale(t))
}

func distSqPointSegment(p, a, b Vector3) float32 {
	return closestPointOnSegment(p, a, b).DistanceSq(p)
}
