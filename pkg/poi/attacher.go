// Package poi connects points of interest to the road network so they
// become routable endpoints. Each POI is linked to the nearest eligible
// node, or to a new node splitting the nearest edge at the closest
// point of its polyline.
package poi

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/geo"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/index"
)

// Reasons a POI can stay unconnected.
const (
	ReasonNoCandidate = "no road within search radius"
)

// connectorTags marks POI connector edges like the map editor does.
func connectorTags() map[string]string {
	return map[string]string{"highway": "footway"}
}

// Options configures the attacher.
type Options struct {
	// SearchRadius bounds the nearest-road search, in map units.
	SearchRadius float64
	// SnapTolerance is how much longer a connection to an existing edge
	// endpoint may be than the perpendicular connection before the
	// attacher prefers splitting the edge.
	SnapTolerance float64
	// Progress, if set, is called once per processed POI.
	Progress func(done, total int)
}

// Connection reports one successful attachment.
type Connection struct {
	POI     graph.POIID
	Node    graph.NodeID // network node the POI connects to
	Via     graph.EdgeID // connector edge, 0 if the POI coincides with Node
	Dist    float64
	Split   bool         // true if an edge was split to create Node
	SplitOf graph.EdgeID // the edge that was split
}

// Failure reports one POI that could not be connected.
type Failure struct {
	POI    graph.POIID
	Reason string
}

// Report is the outcome of an Attach run.
type Report struct {
	Connected   []Connection
	Unconnected []Failure
}

// decision is a planned attachment, computed against the frozen graph
// before any mutation is applied.
type decision struct {
	poi *graph.POI

	// Either a direct node connection ...
	node graph.NodeID
	dist float64

	// ... or an edge split.
	split bool
	edge  graph.EdgeID
	seg   int
	ratio float64
	at    orb.Point
}

// Attach connects every unattached POI to the network. Decisions are
// made in a first pass against the frozen graph and index, then applied
// in a second pass; the index is never queried after the first mutation,
// and running twice over the same input yields identical results.
//
// POIs are processed in ascending id order. Already attached POIs are
// skipped, making the operation idempotent per POI.
func Attach(g *graph.Graph, ix *index.Index, pois []*graph.POI, opts Options) (Report, error) {
	var rep Report

	ordered := make([]*graph.POI, len(pois))
	copy(ordered, pois)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	// Pass 1: decide against the frozen snapshot.
	var decisions []decision
	for i, p := range ordered {
		if p.Attached() {
			continue
		}
		d, ok := decide(g, ix, p, opts)
		if !ok {
			rep.Unconnected = append(rep.Unconnected, Failure{POI: p.ID, Reason: ReasonNoCandidate})
		} else {
			decisions = append(decisions, d)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(ordered))
		}
	}

	// Pass 2: apply. Splits are grouped per edge so several POIs can
	// share one edge without invalidating each other's segment indexes.
	applySplits(g, decisions)
	for _, d := range decisions {
		rep.Connected = append(rep.Connected, connect(g, d))
	}
	return rep, nil
}

// decide finds the nearest eligible entity for one POI.
func decide(g *graph.Graph, ix *index.Index, p *graph.POI, opts Options) (decision, bool) {
	hits := ix.Nearest(p.Point, 1, opts.SearchRadius)
	if len(hits) == 0 {
		return decision{}, false
	}
	h := hits[0]

	if h.Kind == index.KindNode {
		return decision{poi: p, node: graph.NodeID(h.ID), dist: h.Dist}, true
	}

	// Nearest entity is an edge: project the POI onto its polyline.
	eid := graph.EdgeID(h.ID)
	e := g.Edge(eid)
	at, seg, ratio, projDist := geo.NearestOnLine(p.Point, g.EdgePolyline(eid))

	// Prefer an existing endpoint when the detour over the
	// perpendicular connection stays within the snap tolerance.
	endA, endB := g.Node(e.A), g.Node(e.B)
	nodeID, nodeDist := e.A, geo.Dist(p.Point, endA.Point)
	if d := geo.Dist(p.Point, endB.Point); d < nodeDist || (d == nodeDist && e.B < nodeID) {
		nodeID, nodeDist = e.B, d
	}
	if nodeDist-projDist < opts.SnapTolerance {
		return decision{poi: p, node: nodeID, dist: nodeDist}, true
	}

	return decision{poi: p, split: true, edge: eid, seg: seg, ratio: ratio, at: at, dist: projDist}, true
}

// pendingSplit is one split point on an edge, ordered along its polyline.
type pendingSplit struct {
	seg      int
	ratio    float64
	at       orb.Point
	decision *decision
}

// applySplits replaces each split edge with a sequence of sub-edges and
// rewrites the affected decisions to point at the newly created nodes.
func applySplits(g *graph.Graph, decisions []decision) {
	byEdge := make(map[graph.EdgeID][]pendingSplit)
	var edgeOrder []graph.EdgeID
	for i := range decisions {
		d := &decisions[i]
		if !d.split {
			continue
		}
		if _, ok := byEdge[d.edge]; !ok {
			edgeOrder = append(edgeOrder, d.edge)
		}
		byEdge[d.edge] = append(byEdge[d.edge], pendingSplit{seg: d.seg, ratio: d.ratio, at: d.at, decision: d})
	}
	sort.Slice(edgeOrder, func(i, j int) bool { return edgeOrder[i] < edgeOrder[j] })

	for _, eid := range edgeOrder {
		splits := byEdge[eid]
		sort.SliceStable(splits, func(i, j int) bool {
			if splits[i].seg != splits[j].seg {
				return splits[i].seg < splits[j].seg
			}
			return splits[i].ratio < splits[j].ratio
		})
		splitEdge(g, eid, splits)
	}
}

// splitEdge rewrites one edge into len(splits)+1 sub-edges. Coincident
// split points share a single inserted node.
func splitEdge(g *graph.Graph, eid graph.EdgeID, splits []pendingSplit) {
	e := g.Edge(eid)
	poly := g.EdgePolyline(eid)
	tags := e.Tags
	a, b := e.A, e.B

	g.RemoveEdge(eid)

	prevNode := a
	prevSeg := 0
	var prevAt orb.Point
	havePrev := false

	emit := func(from, to graph.NodeID, shape orb.LineString) {
		// Sub-edges inherit the original tags; endpoints always exist.
		_, _ = g.AddEdge(g.NextEdgeID(), from, to, shape, tags)
	}

	// shapeBetween collects the original interior vertices strictly
	// between two split positions. Vertices coinciding with either split
	// point are dropped: a split landing exactly on a shape vertex would
	// otherwise leave a zero-length geometry segment.
	shapeBetween := func(fromSeg int, fromPt orb.Point, useFrom bool, toSeg int, toPt orb.Point) orb.LineString {
		var shape orb.LineString
		start := fromSeg + 1
		if !useFrom {
			start = 1
		}
		for v := start; v <= toSeg; v++ {
			p := poly[v]
			if useFrom && p == fromPt {
				continue
			}
			if p == toPt {
				continue
			}
			shape = append(shape, p)
		}
		return shape
	}

	for i := range splits {
		s := &splits[i]
		if havePrev && s.at == prevAt {
			// Same physical point as the previous split: reuse its node.
			s.decision.node = prevNode
			s.decision.dist = geo.Dist(s.decision.poi.Point, s.at)
			continue
		}

		nid := g.NextNodeID()
		// Endpoint-coincident splits should have been node snaps, but
		// guard against ratio rounding placing us exactly on a vertex.
		_, _ = g.AddNode(nid, s.at, nil)

		shape := shapeBetween(prevSeg, prevAt, havePrev, s.seg, s.at)
		emit(prevNode, nid, shape)

		s.decision.node = nid
		s.decision.dist = geo.Dist(s.decision.poi.Point, s.at)
		s.decision.split = true
		prevNode = nid
		prevSeg = s.seg
		prevAt = s.at
		havePrev = true
	}

	// Tail: from the last split node to the original B endpoint.
	var tail orb.LineString
	for v := prevSeg + 1; v < len(poly)-1; v++ {
		p := poly[v]
		if havePrev && p == prevAt {
			continue
		}
		tail = append(tail, p)
	}
	emit(prevNode, b, tail)
}

// connect materializes one decision: a new node at the POI coordinate
// linked to the target network node, or a zero-edge attachment when the
// POI already sits on the node.
func connect(g *graph.Graph, d decision) Connection {
	conn := Connection{POI: d.poi.ID, Node: d.node, Dist: d.dist, Split: d.split, SplitOf: d.edge}

	if g.Node(d.node).Point == d.poi.Point {
		// The POI coincides with a network node; no connector needed.
		d.poi.Attachment = &graph.Attachment{Node: d.node}
		return conn
	}

	pnid := g.NextNodeID()
	_, _ = g.AddNode(pnid, d.poi.Point, d.poi.Tags)
	eid := g.NextEdgeID()
	_, _ = g.AddEdge(eid, pnid, d.node, nil, connectorTags())

	conn.Via = eid
	d.poi.Attachment = &graph.Attachment{Node: d.node, Via: eid}
	return conn
}
