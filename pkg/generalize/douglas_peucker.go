package generalize

import (
	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/geo"
)

// douglasPeucker marks the vertices of pts that survive simplification
// with the given tolerance. The first and last vertex are always kept.
// A vertex is kept when its perpendicular deviation from the baseline of
// the enclosing subdivision reaches the tolerance; ties pick the first
// such vertex, which makes repeated runs reproduce the same result.
//
// The baseline may be degenerate (closed chains start and end on the
// same coordinate); deviation then reduces to plain point distance.
func douglasPeucker(pts []orb.Point, tolerance float64) []bool {
	keep := make([]bool, len(pts))
	if len(pts) == 0 {
		return keep
	}
	keep[0] = true
	keep[len(pts)-1] = true
	if len(pts) > 2 {
		dpSubdivide(pts, 0, len(pts)-1, tolerance, keep)
	}
	return keep
}

func dpSubdivide(pts []orb.Point, lo, hi int, tolerance float64, keep []bool) {
	maxDist := 0.0
	farthest := -1
	for i := lo + 1; i < hi; i++ {
		d := geo.PerpendicularDist(pts[i], pts[lo], pts[hi])
		if d > maxDist {
			maxDist = d
			farthest = i
		}
	}
	if farthest < 0 || maxDist < tolerance {
		return
	}
	keep[farthest] = true
	dpSubdivide(pts, lo, farthest, tolerance, keep)
	dpSubdivide(pts, farthest, hi, tolerance, keep)
}
