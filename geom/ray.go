package geom

// Ray is a half-line with a normalized direction, so hit parameters are
// distances from the origin.
type Ray struct {
	Origin Vector3
	Dir    Vector3
}

func NewRay(origin, dir Vector3) Ray {
	return Ray{Origin: origin, Dir: dir.Normalized()}
}

// RayBetween builds the ray going from to through to. Both points equal yields
// a degenerate ray with a zero direction that hits nothing.
func RayBetween(from, to Vector3) Ray {
	return NewRay(from, to.Sub(from))
}

func (r Ray) Point(t float32) Vector3 {
	return r.Origin.Add(r.Dir.Scale(t))
}
