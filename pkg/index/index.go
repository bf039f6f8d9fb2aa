// Package index provides a disposable spatial index over the road graph.
// It is rebuilt after every mutating stage and never updated in place, so
// it can never diverge from the graph it was built from.
package index

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/geo"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
)

// Kind discriminates indexed entity types.
type Kind uint8

const (
	// KindNode marks an entry owned by a graph node.
	KindNode Kind = iota
	// KindEdge marks an entry owned by a graph edge.
	KindEdge
)

// Entry is a geometry key mapped back to its owning entity.
type Entry struct {
	Kind Kind
	ID   int64
}

// Hit is a query result with its exact geometric distance.
type Hit struct {
	Entry
	Dist float64
}

// Index is an immutable r-tree over node points and edge polylines.
type Index struct {
	tree    rtree.RTreeG[Entry]
	g       *graph.Graph
	version uint64
}

// Build indexes all nodes and edges of the graph. Nodes are stored as
// degenerate boxes, edges by their polyline bounding box; queries refine
// box candidates with exact geometry distances.
func Build(g *graph.Graph) *Index {
	ix := &Index{g: g, version: g.Version()}
	for _, id := range g.NodeIDs() {
		p := g.Node(id).Point
		ix.tree.Insert([2]float64{p.X(), p.Y()}, [2]float64{p.X(), p.Y()}, Entry{KindNode, int64(id)})
	}
	for _, id := range g.EdgeIDs() {
		b := g.EdgePolyline(id).Bound()
		ix.tree.Insert([2]float64{b.Min.X(), b.Min.Y()}, [2]float64{b.Max.X(), b.Max.Y()}, Entry{KindEdge, int64(id)})
	}
	return ix
}

// BuildNodes indexes only the given nodes. The partition resolver uses
// this to search bridge targets within the primary component.
func BuildNodes(g *graph.Graph, nodes []graph.NodeID) *Index {
	ix := &Index{g: g, version: g.Version()}
	for _, id := range nodes {
		n := g.Node(id)
		if n == nil {
			continue
		}
		p := n.Point
		ix.tree.Insert([2]float64{p.X(), p.Y()}, [2]float64{p.X(), p.Y()}, Entry{KindNode, int64(id)})
	}
	return ix
}

// Stale reports whether the graph has been mutated since the index was
// built. Stale indexes must not be queried.
func (ix *Index) Stale() bool {
	return ix.g.Version() != ix.version
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	return ix.tree.Len()
}

// entryDist computes the exact distance from p to the entry's geometry.
func (ix *Index) entryDist(p orb.Point, e Entry) float64 {
	switch e.Kind {
	case KindNode:
		return geo.Dist(p, ix.g.Node(graph.NodeID(e.ID)).Point)
	default:
		_, _, _, d := geo.NearestOnLine(p, ix.g.EdgePolyline(graph.EdgeID(e.ID)))
		return d
	}
}

// Nearest returns up to k entries ordered by ascending exact distance
// from p, limited to maxDist (ignored if maxDist <= 0). Entries at equal
// distance are ordered nodes before edges, then by ascending id, so
// results are deterministic. k <= 0 returns everything within maxDist.
func (ix *Index) Nearest(p orb.Point, k int, maxDist float64) []Hit {
	var hits []Hit
	ix.tree.Nearby(
		func(min, max [2]float64, data Entry, item bool) float64 {
			if !item {
				return geo.BoundDist(p, min, max)
			}
			return ix.entryDist(p, data)
		},
		func(min, max [2]float64, data Entry, dist float64) bool {
			if maxDist > 0 && dist > maxDist {
				return false
			}
			// Keep collecting past k while the distance ties the k-th
			// hit, so the id tie-break below sees all candidates.
			if k > 0 && len(hits) >= k && dist > hits[len(hits)-1].Dist {
				return false
			}
			hits = append(hits, Hit{Entry: data, Dist: dist})
			return true
		},
	)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Dist != hits[j].Dist {
			return hits[i].Dist < hits[j].Dist
		}
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind < hits[j].Kind
		}
		return hits[i].ID < hits[j].ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// NearestNode returns the closest indexed node within maxDist, or false
// if none qualifies. Intended for node-only indexes (see BuildNodes).
func (ix *Index) NearestNode(p orb.Point, maxDist float64) (graph.NodeID, float64, bool) {
	hits := ix.Nearest(p, 1, maxDist)
	if len(hits) == 0 || hits[0].Kind != KindNode {
		return 0, 0, false
	}
	return graph.NodeID(hits[0].ID), hits[0].Dist, true
}

// Range returns all entries whose bounding geometry intersects the box,
// ordered nodes first, then by ascending id.
func (ix *Index) Range(b orb.Bound) []Entry {
	var out []Entry
	ix.tree.Search(
		[2]float64{b.Min.X(), b.Min.Y()},
		[2]float64{b.Max.X(), b.Max.Y()},
		func(min, max [2]float64, data Entry) bool {
			out = append(out, data)
			return true
		},
	)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}
