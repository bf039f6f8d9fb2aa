// Package graph holds the mutable road-network graph that every
// preparation stage operates on: id-keyed nodes and edges with planar
// coordinates, plus connectivity analysis over the adjacency.
package graph

import (
	"sort"

	"github.com/paulmach/orb"
)

// NodeID identifies a node in the road graph.
type NodeID int64

// EdgeID identifies an edge in the road graph.
type EdgeID int64

// POIID identifies a point of interest.
type POIID int64

// Node is a graph vertex with a projected planar coordinate.
type Node struct {
	ID    NodeID
	Point orb.Point
	Tags  map[string]string
}

// Edge is an undirected road segment between two nodes. Endpoint order is
// stable (as loaded) so polyline direction is well defined. Shape holds
// interior geometry vertices only, excluding the endpoint coordinates.
type Edge struct {
	ID    EdgeID
	A, B  NodeID
	Shape orb.LineString
	Tags  map[string]string
}

// Attachment records how a POI was connected to the road network.
type Attachment struct {
	Node NodeID // network node the POI is routable from
	Via  EdgeID // connector edge POI->Node; 0 if the POI coincides with Node
}

// POI is a point of interest. It starts unconnected; the attacher fills
// in Attachment exactly once.
type POI struct {
	ID         POIID
	Point      orb.Point
	Tags       map[string]string
	Attachment *Attachment
}

// Attached reports whether the POI has been connected to the network.
func (p *POI) Attached() bool {
	return p.Attachment != nil
}

// Graph is the road network. Nodes and edges reference each other by id
// only; the maps here are the single owner of both. All mutations keep
// referential integrity: an edge can never outlive one of its endpoints.
type Graph struct {
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge
	adj   map[NodeID]map[EdgeID]struct{}

	maxNode NodeID
	maxEdge EdgeID
	version uint64
}

// New returns an empty road graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
		edges: make(map[EdgeID]*Edge),
		adj:   make(map[NodeID]map[EdgeID]struct{}),
	}
}

// Version is a mutation counter. Derived structures (spatial index,
// component labels) record the version they were built from and must be
// refreshed once it changes.
func (g *Graph) Version() uint64 {
	return g.version
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(id EdgeID) *Edge {
	return g.edges[id]
}

// NextNodeID returns an id that is not in use. Repeated calls without an
// intervening AddNode return the same id.
func (g *Graph) NextNodeID() NodeID {
	return g.maxNode + 1
}

// NextEdgeID returns an id that is not in use.
func (g *Graph) NextEdgeID() EdgeID {
	return g.maxEdge + 1
}

// AddNode inserts a node. Duplicate ids fail with MalformedInputError.
func (g *Graph) AddNode(id NodeID, pt orb.Point, tags map[string]string) (*Node, error) {
	if _, ok := g.nodes[id]; ok {
		return nil, &MalformedInputError{Kind: "node", ID: int64(id), Reason: "duplicate node id"}
	}
	n := &Node{ID: id, Point: pt, Tags: tags}
	g.nodes[id] = n
	g.adj[id] = make(map[EdgeID]struct{})
	if id > g.maxNode {
		g.maxNode = id
	}
	g.version++
	return n, nil
}

// AddEdge inserts an edge between two existing nodes. A duplicate edge id
// or a missing endpoint fails with MalformedInputError and leaves the
// graph unchanged.
func (g *Graph) AddEdge(id EdgeID, a, b NodeID, shape orb.LineString, tags map[string]string) (*Edge, error) {
	if _, ok := g.edges[id]; ok {
		return nil, &MalformedInputError{Kind: "edge", ID: int64(id), Reason: "duplicate edge id"}
	}
	if _, ok := g.nodes[a]; !ok {
		return nil, &MalformedInputError{Kind: "edge", ID: int64(id), Reason: "endpoint references missing node"}
	}
	if _, ok := g.nodes[b]; !ok {
		return nil, &MalformedInputError{Kind: "edge", ID: int64(id), Reason: "endpoint references missing node"}
	}
	e := &Edge{ID: id, A: a, B: b, Shape: shape, Tags: tags}
	g.edges[id] = e
	g.adj[a][id] = struct{}{}
	g.adj[b][id] = struct{}{}
	if id > g.maxEdge {
		g.maxEdge = id
	}
	g.version++
	return e, nil
}

// RemoveEdge deletes an edge. Removing an unknown id is a no-op.
func (g *Graph) RemoveEdge(id EdgeID) {
	e, ok := g.edges[id]
	if !ok {
		return
	}
	delete(g.adj[e.A], id)
	delete(g.adj[e.B], id)
	delete(g.edges, id)
	g.version++
}

// RemoveNode deletes a node. If edges still reference it and cascade is
// false, it fails with ReferentialIntegrityError and changes nothing.
// With cascade true the incident edges are removed first.
func (g *Graph) RemoveNode(id NodeID, cascade bool) error {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	incident := g.adj[id]
	if len(incident) > 0 {
		if !cascade {
			return &ReferentialIntegrityError{Node: id, Edges: len(incident)}
		}
		for _, eid := range g.IncidentEdges(id) {
			g.RemoveEdge(eid)
		}
	}
	delete(g.adj, id)
	delete(g.nodes, id)
	g.version++
	return nil
}

// IncidentEdges returns the ids of edges touching the node, ascending.
func (g *Graph) IncidentEdges(id NodeID) []EdgeID {
	set, ok := g.adj[id]
	if !ok {
		return nil
	}
	out := make([]EdgeID, 0, len(set))
	for eid := range set {
		out = append(out, eid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Degree returns the number of edge endpoints at the node. A self-loop
// counts twice.
func (g *Graph) Degree(id NodeID) int {
	deg := 0
	for eid := range g.adj[id] {
		e := g.edges[eid]
		if e.A == id {
			deg++
		}
		if e.B == id {
			deg++
		}
	}
	return deg
}

// Neighbors returns the distinct adjacent node ids, ascending.
func (g *Graph) Neighbors(id NodeID) []NodeID {
	set := make(map[NodeID]struct{})
	for eid := range g.adj[id] {
		e := g.edges[eid]
		if e.A != id {
			set[e.A] = struct{}{}
		}
		if e.B != id {
			set[e.B] = struct{}{}
		}
	}
	out := make([]NodeID, 0, len(set))
	for nid := range set {
		out = append(out, nid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NodeIDs returns all node ids in ascending order.
func (g *Graph) NodeIDs() []NodeID {
	out := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EdgeIDs returns all edge ids in ascending order.
func (g *Graph) EdgeIDs() []EdgeID {
	out := make([]EdgeID, 0, len(g.edges))
	for id := range g.edges {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EdgePolyline returns the full geometry of an edge including both
// endpoint coordinates.
func (g *Graph) EdgePolyline(id EdgeID) orb.LineString {
	e := g.edges[id]
	if e == nil {
		return nil
	}
	ls := make(orb.LineString, 0, len(e.Shape)+2)
	ls = append(ls, g.nodes[e.A].Point)
	ls = append(ls, e.Shape...)
	ls = append(ls, g.nodes[e.B].Point)
	return ls
}

// Other returns the opposite endpoint of an edge relative to from.
func (e *Edge) Other(from NodeID) NodeID {
	if e.A == from {
		return e.B
	}
	return e.A
}

// Bound returns the bounding box of all node and shape coordinates.
// Returns a zero bound for an empty graph.
func (g *Graph) Bound() orb.Bound {
	var b orb.Bound
	first := true
	extend := func(p orb.Point) {
		if first {
			b = orb.Bound{Min: p, Max: p}
			first = false
			return
		}
		b = b.Extend(p)
	}
	for _, n := range g.nodes {
		extend(n.Point)
	}
	for _, e := range g.edges {
		for _, p := range e.Shape {
			extend(p)
		}
	}
	return b
}
