package bvh

import (
	"math"
	"sort"

	"github.com/aukilabs/yggdrasil/geom"
)

// guttmanSplit is the classical R-tree quadratic split: pick as seeds the
// pair whose union wastes the most cost, then repeatedly assign the unplaced
// entry with the largest difference in enlargement cost between the two
// groups to whichever group it enlarges least.
func guttmanSplit[B Bound[B]](bounds []B, maxGroup int) ([]int, []int) {
	s1, s2 := 0, 1
	worst := float32(math.Inf(-1))
	for i := 0; i < len(bounds); i++ {
		for j := i + 1; j < len(bounds); j++ {
			waste := bounds[i].Union(bounds[j]).Cost() - bounds[i].Cost() - bounds[j].Cost()
			if waste > worst {
				worst = waste
				s1, s2 = i, j
			}
		}
	}

	g1 := []int{s1}
	g2 := []int{s2}
	b1 := bounds[s1]
	b2 := bounds[s2]

	remaining := make([]int, 0, len(bounds)-2)
	for i := range bounds {
		if i != s1 && i != s2 {
			remaining = append(remaining, i)
		}
	}

	for len(remaining) > 0 {
		// a full group forfeits the rest to the other one
		if len(g1) >= maxGroup {
			g2 = append(g2, remaining...)
			break
		}
		if len(g2) >= maxGroup {
			g1 = append(g1, remaining...)
			break
		}

		pick := 0
		pickDiff := float32(-1)
		var pickD1, pickD2 float32
		for i, idx := range remaining {
			d1 := b1.Union(bounds[idx]).Cost() - b1.Cost()
			d2 := b2.Union(bounds[idx]).Cost() - b2.Cost()
			diff := abs32(d1 - d2)
			if diff > pickDiff {
				pickDiff = diff
				pick = i
				pickD1, pickD2 = d1, d2
			}
		}

		idx := remaining[pick]
		remaining[pick] = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]

		toFirst := pickD1 < pickD2
		if pickD1 == pickD2 {
			// break ties toward the smaller, then emptier group
			switch {
			case b1.Cost() != b2.Cost():
				toFirst = b1.Cost() < b2.Cost()
			default:
				toFirst = len(g1) <= len(g2)
			}
		}

		if toFirst {
			g1 = append(g1, idx)
			b1 = b1.Union(bounds[idx])
		} else {
			g2 = append(g2, idx)
			b2 = b2.Union(bounds[idx])
		}
	}

	return g1, g2
}

// medianSplit projects all entry centers onto a least-squares regression line
// through the cloud, sorts by projected position and splits at the median, so
// group sizes are balanced by construction.
func medianSplit[B Bound[B]](bounds []B) ([]int, []int) {
	centers := make([]geom.Vector3, len(bounds))
	for i, b := range bounds {
		centers[i] = b.Centroid()
	}
	line := geom.FitLine(centers)

	order := make([]int, len(bounds))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return line.Project(centers[order[i]]) < line.Project(centers[order[j]])
	})

	half := len(order) / 2
	return order[:half], order[half:]
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
