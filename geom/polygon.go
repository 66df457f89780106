package geom

import "math"

// Polygon is a simple polygon on the horizontal plane, already transformed
// into query space. Its vertices are XZ coordinates.
type Polygon struct {
	points []Vector2
	bounds Box
}

// Polygons are unbounded vertically, so their box form spans most of the
// float32 range on Y.
const polygonYExtent = float32(math.MaxFloat32) / 4

func NewPolygon(points []Vector2) Polygon {
	p := Polygon{points: points}
	if len(points) == 0 {
		return p
	}

	min := points[0]
	max := points[0]
	for _, v := range points[1:] {
		min.X = float32(math.Min(float64(min.X), float64(v.X)))
		min.Y = float32(math.Min(float64(min.Y), float64(v.Y)))
		max.X = float32(math.Max(float64(max.X), float64(v.X)))
		max.Y = float32(math.Max(float64(max.Y), float64(v.Y)))
	}
	p.bounds = Box{
		Min: Vector3{min.X, -polygonYExtent, min.Y},
		Max: Vector3{max.X, polygonYExtent, max.Y},
	}
	return p
}

func (p Polygon) Points() []Vector2 {
	return p.points
}

// Bounds is the polygon bounding box lifted to 3D, used to prune descent.
func (p Polygon) Bounds() Box {
	return p.bounds
}

// ContainsPoint is the even-odd crossing test.
func (p Polygon) ContainsPoint(v Vector2) bool {
	if len(p.points) < 3 {
		return false
	}

	inside := false
	j := len(p.points) - 1
	for i := 0; i < len(p.points); i++ {
		a := p.points[i]
		b := p.points[j]
		if (a.Y > v.Y) != (b.Y > v.Y) &&
			v.X < (b.X-a.X)*(v.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}
