package geom

// Line3 is an infinite line through Point along the unit vector Dir.
type Line3 struct {
	Point Vector3
	Dir   Vector3
}

// Project returns the signed parameter of the closest point on the line.
func (l Line3) Project(p Vector3) float32 {
	return l.Dir.Dot(p.Sub(l.Point))
}

// FitLine computes the least-squares regression line through the points:
// centroid plus the dominant covariance direction, found by power iteration.
// Degenerate clouds (all points equal) fall back to the X axis.
func FitLine(points []Vector3) Line3 {
	if len(points) == 0 {
		return Line3{Dir: Vector3{X: 1}}
	}

	var centroid Vector3
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Scale(1 / float32(len(points)))

	var xx, xy, xz, yy, yz, zz float32
	for _, p := range points {
		d := p.Sub(centroid)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}

	dir := Vector3{1, 1, 1}.Normalized()
	for i := 0; i < 32; i++ {
		next := Vector3{
			xx*dir.X + xy*dir.Y + xz*dir.Z,
			xy*dir.X + yy*dir.Y + yz*dir.Z,
			xz*dir.X + yz*dir.Y + zz*dir.Z,
		}
		if next.LengthSq() == 0 {
			break
		}
		dir = next.Normalized()
	}

	if dir.LengthSq() == 0 {
		dir = Vector3{X: 1}
	}
	return Line3{Point: centroid, Dir: dir}
}
