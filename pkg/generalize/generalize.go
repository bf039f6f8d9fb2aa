// Package generalize reduces the node count of the road graph by
// simplifying chains of pass-through nodes while keeping junctions and
// the routable topology intact.
package generalize

import (
	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
)

// Options configures a generalization run.
type Options struct {
	// Tolerance is the maximum deviation of the simplified geometry
	// from the original, in map units. Zero or negative disables
	// simplification entirely.
	Tolerance float64
	// Anchors lists nodes that must survive regardless of degree, on
	// top of the implicit anchors (every node with degree != 2).
	// POI-bearing nodes go here.
	Anchors map[graph.NodeID]bool
	// Progress, if set, is called once per processed chain.
	Progress func(done, total int)
}

// Stats reports what a run changed.
type Stats struct {
	NodesBefore      int
	NodesAfter       int
	NodesRemoved     int
	ChainsSimplified int
	// DegenerateRings lists closed chains (by smallest node id) that
	// were left unsimplified because simplification would have reduced
	// them below three vertices.
	DegenerateRings []graph.NodeID
}

// chainVertex is one vertex of an assembled chain polyline: either a
// graph node or an interior shape vertex of one of the chain's edges.
type chainVertex struct {
	pt     orb.Point
	node   graph.NodeID
	isNode bool
}

// chain is a maximal run of degree-2 non-anchor nodes between two
// anchors, or a closed ring of such nodes.
type chain struct {
	nodes  []graph.NodeID // node sequence; first == last for closed chains
	edges  []graph.EdgeID // len(nodes)-1 edges connecting the sequence
	closed bool
}

// Run simplifies every maximal chain of the graph in place and returns
// the change statistics. Anchors are never removed, reachability is
// preserved, and re-running with the same tolerance changes nothing.
func Run(g *graph.Graph, opts Options) (Stats, error) {
	stats := Stats{NodesBefore: g.NumNodes(), NodesAfter: g.NumNodes()}
	if opts.Tolerance <= 0 {
		return stats, nil
	}

	isAnchor := func(id graph.NodeID) bool {
		return g.Degree(id) != 2 || opts.Anchors[id]
	}

	chains := collectChains(g, isAnchor)
	for i, c := range chains {
		simplifyChain(g, c, opts.Tolerance, &stats)
		if opts.Progress != nil {
			opts.Progress(i+1, len(chains))
		}
	}

	stats.NodesAfter = g.NumNodes()
	stats.NodesRemoved = stats.NodesBefore - stats.NodesAfter
	return stats, nil
}

// collectChains walks the graph once and returns every maximal chain.
// Open chains are found from their anchor endpoints; whatever edges
// remain unvisited afterwards belong to closed rings of pass-through
// nodes.
func collectChains(g *graph.Graph, isAnchor func(graph.NodeID) bool) []chain {
	visited := make(map[graph.EdgeID]bool, g.NumEdges())
	var chains []chain

	for _, start := range g.NodeIDs() {
		if !isAnchor(start) {
			continue
		}
		for _, eid := range g.IncidentEdges(start) {
			if visited[eid] {
				continue
			}
			chains = append(chains, walkChain(g, start, eid, isAnchor, visited))
		}
	}

	// Remaining edges are cycles with no anchor at all.
	for _, eid := range g.EdgeIDs() {
		if visited[eid] {
			continue
		}
		chains = append(chains, walkRing(g, eid, visited))
	}
	return chains
}

// walkChain follows first from start through pass-through nodes until it
// reaches the next anchor.
func walkChain(g *graph.Graph, start graph.NodeID, first graph.EdgeID, isAnchor func(graph.NodeID) bool, visited map[graph.EdgeID]bool) chain {
	c := chain{nodes: []graph.NodeID{start}}
	cur := start
	eid := first
	for {
		visited[eid] = true
		c.edges = append(c.edges, eid)
		next := g.Edge(eid).Other(cur)
		c.nodes = append(c.nodes, next)
		if isAnchor(next) {
			c.closed = next == start
			return c
		}
		// Degree-2 node: continue along its other incident edge.
		for _, cand := range g.IncidentEdges(next) {
			if cand != eid {
				eid = cand
				break
			}
		}
		cur = next
	}
}

// walkRing collects a closed cycle of pass-through nodes, rotated so it
// starts at the smallest node id for deterministic output.
func walkRing(g *graph.Graph, seed graph.EdgeID, visited map[graph.EdgeID]bool) chain {
	// First lap: find the smallest node id on the ring.
	startNode := g.Edge(seed).A
	minNode := startNode
	cur := startNode
	eid := seed
	for {
		next := g.Edge(eid).Other(cur)
		if next < minNode {
			minNode = next
		}
		if next == startNode {
			break
		}
		for _, cand := range g.IncidentEdges(next) {
			if cand != eid {
				eid = cand
				break
			}
		}
		cur = next
	}

	// Second lap from the minimum node, taking its lower edge first.
	c := chain{nodes: []graph.NodeID{minNode}, closed: true}
	cur = minNode
	eid = g.IncidentEdges(minNode)[0]
	for {
		visited[eid] = true
		c.edges = append(c.edges, eid)
		next := g.Edge(eid).Other(cur)
		c.nodes = append(c.nodes, next)
		if next == minNode {
			return c
		}
		for _, cand := range g.IncidentEdges(next) {
			if cand != eid {
				eid = cand
				break
			}
		}
		cur = next
	}
}

// assemble flattens the chain into a polyline of node coordinates
// interleaved with each edge's interior shape vertices, oriented along
// the walk direction.
func assemble(g *graph.Graph, c chain) []chainVertex {
	verts := []chainVertex{{pt: g.Node(c.nodes[0]).Point, node: c.nodes[0], isNode: true}}
	for i, eid := range c.edges {
		e := g.Edge(eid)
		from := c.nodes[i]
		to := c.nodes[i+1]
		shape := e.Shape
		if e.A != from {
			shape = reversed(shape)
		}
		for _, p := range shape {
			verts = append(verts, chainVertex{pt: p})
		}
		verts = append(verts, chainVertex{pt: g.Node(to).Point, node: to, isNode: true})
	}
	return verts
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}

// simplifyChain runs point elimination on one chain and rewrites its
// nodes and edges in place.
func simplifyChain(g *graph.Graph, c chain, tolerance float64, stats *Stats) {
	// A chain of two nodes has no interior to remove.
	if len(c.nodes) <= 2 && !c.closed {
		return
	}

	verts := assemble(g, c)
	if len(verts) <= 2 {
		return
	}

	pts := make([]orb.Point, len(verts))
	for i, v := range verts {
		pts[i] = v.pt
	}
	keep := douglasPeucker(pts, tolerance)

	if keptCount(keep) == len(verts) {
		// Nothing below tolerance; leave the chain untouched so a
		// second run is a strict no-op.
		return
	}

	// A closed chain lists its start vertex twice, so it retains
	// keptCount-1 distinct vertices. Below three the ring would collapse
	// into a degenerate sliver; keep it as-is and report it.
	if c.closed && keptCount(keep)-1 < 3 {
		stats.DegenerateRings = append(stats.DegenerateRings, c.nodes[0])
		return
	}

	rebuildChain(g, c, verts, keep)
	stats.ChainsSimplified++
}

func keptCount(keep []bool) int {
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	return n
}

// rebuildChain replaces the chain's edges with one edge per surviving
// node pair and deletes the eliminated interior nodes. Surviving shape
// vertices between two surviving nodes become the new edge's shape.
func rebuildChain(g *graph.Graph, c chain, verts []chainVertex, keep []bool) {
	// Tags of the first chain edge carry over to the replacements.
	tags := g.Edge(c.edges[0]).Tags

	for _, eid := range c.edges {
		g.RemoveEdge(eid)
	}

	var removedNodes []graph.NodeID
	seen := make(map[graph.NodeID]bool)
	for i, v := range verts {
		if v.isNode && !keep[i] && !seen[v.node] {
			seen[v.node] = true
			removedNodes = append(removedNodes, v.node)
		}
	}

	// Build replacement edges between consecutive surviving nodes.
	var (
		prevNode graph.NodeID
		havePrev bool
		shape    orb.LineString
	)
	for i, v := range verts {
		if !keep[i] {
			continue
		}
		if v.isNode {
			if havePrev {
				eid := g.NextEdgeID()
				// Endpoints exist: surviving nodes were never removed.
				_, _ = g.AddEdge(eid, prevNode, v.node, shape, tags)
			}
			prevNode = v.node
			havePrev = true
			shape = nil
		} else {
			shape = append(shape, v.pt)
		}
	}

	for _, nid := range removedNodes {
		// Chain edges are already gone, so no cascade is needed.
		_ = g.RemoveNode(nid, false)
	}
}
