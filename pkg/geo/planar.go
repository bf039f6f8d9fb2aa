// Package geo provides planar geometry helpers for the road-network
// preparation pipeline. All core coordinates are already projected to a
// planar system (meters), so distances are plain Euclidean; the only
// spherical code lives in the lon/lat projection used by the OSM adapter.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Dist returns the Euclidean distance between two planar points.
func Dist(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// PointToSegment computes the distance from point p to segment ab and
// returns the projection ratio along ab (clamped to [0,1]).
// ratio 0 means the closest point is a, 1 means b.
func PointToSegment(p, a, b orb.Point) (dist, ratio float64) {
	// Degenerate segment: both endpoints identical.
	if a == b {
		return planar.Distance(p, a), 0
	}

	dx := b.X() - a.X()
	dy := b.Y() - a.Y()
	lenSq := dx*dx + dy*dy

	t := ((p.X()-a.X())*dx + (p.Y()-a.Y())*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	ex := p.X() - (a.X() + t*dx)
	ey := p.Y() - (a.Y() + t*dy)
	return math.Sqrt(ex*ex + ey*ey), t
}

// Interpolate returns the point at ratio t along segment ab.
func Interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{
		a.X() + t*(b.X()-a.X()),
		a.Y() + t*(b.Y()-a.Y()),
	}
}

// NearestOnLine finds the closest point on a polyline to p.
// It returns the closest point, the index of the segment it lies on
// (ls[seg]..ls[seg+1]), the projection ratio within that segment and the
// distance from p. Ties between equally distant segments keep the lowest
// segment index, which makes downstream edge splitting deterministic.
func NearestOnLine(p orb.Point, ls orb.LineString) (closest orb.Point, seg int, ratio, dist float64) {
	dist = math.Inf(1)
	for i := 0; i+1 < len(ls); i++ {
		d, t := PointToSegment(p, ls[i], ls[i+1])
		if d < dist {
			dist = d
			seg = i
			ratio = t
			closest = Interpolate(ls[i], ls[i+1], t)
		}
	}
	if len(ls) == 1 {
		closest = ls[0]
		dist = planar.Distance(p, ls[0])
	}
	return closest, seg, ratio, dist
}

// PerpendicularDist returns the deviation of point p from the baseline ab.
// Unlike PointToSegment the projection is not clamped when a == b; the
// degenerate baseline of a closed ring reduces to plain point distance.
func PerpendicularDist(p, a, b orb.Point) float64 {
	d, _ := PointToSegment(p, a, b)
	return d
}

// BoundDist returns the distance from p to an axis-aligned box, zero if
// p lies inside. Used as the pruning metric for spatial-index traversal.
func BoundDist(p orb.Point, min, max [2]float64) float64 {
	dx := axisDist(p.X(), min[0], max[0])
	dy := axisDist(p.Y(), min[1], max[1])
	return math.Sqrt(dx*dx + dy*dy)
}

func axisDist(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

// Length returns the total length of a polyline.
func Length(ls orb.LineString) float64 {
	return planar.Length(ls)
}

const earthRadiusMeters = 6_371_000.0

const degToMeters = math.Pi / 180 * earthRadiusMeters

// Project converts a lon/lat coordinate to planar meters using an
// equirectangular projection around a reference latitude. Accurate enough
// for city-scale extracts, which is all the simulator consumes.
func Project(lon, lat, refLat float64) orb.Point {
	return orb.Point{
		lon * math.Cos(refLat*math.Pi/180) * degToMeters,
		lat * degToMeters,
	}
}

// Unproject converts a projected planar point back to lon/lat.
func Unproject(p orb.Point, refLat float64) (lon, lat float64) {
	lon = p.X() / (math.Cos(refLat*math.Pi/180) * degToMeters)
	lat = p.Y() / degToMeters
	return lon, lat
}
