package poi

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/index"
)

// lineGraph builds a single edge 1(0,0) - 2(10,0).
func lineGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	if _, err := g.AddNode(1, orb.Point{0, 0}, nil); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := g.AddNode(2, orb.Point{10, 0}, nil); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := g.AddEdge(1, 1, 2, nil, nil); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	return g
}

func newPOI(id graph.POIID, x, y float64) *graph.POI {
	return &graph.POI{ID: id, Point: orb.Point{x, y}, Tags: map[string]string{"amenity": "cafe"}}
}

func TestAttachBySplit(t *testing.T) {
	// POI at (5,5), nearest edge passes through (5,0) at
	// distance 5, search radius 10 -> attached via new split node.
	g := lineGraph(t)
	ix := index.Build(g)
	p := newPOI(1, 5, 5)

	rep, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(rep.Connected) != 1 || len(rep.Unconnected) != 0 {
		t.Fatalf("report = %+v, want exactly one connection", rep)
	}

	c := rep.Connected[0]
	if !c.Split || c.SplitOf != 1 {
		t.Errorf("connection = %+v, want split of edge 1", c)
	}
	if c.Dist != 5 {
		t.Errorf("Dist = %f, want 5", c.Dist)
	}
	split := g.Node(c.Node)
	if split == nil || split.Point != (orb.Point{5, 0}) {
		t.Errorf("split node at %v, want (5,0)", split)
	}
	if !p.Attached() || p.Attachment.Node != c.Node {
		t.Errorf("POI attachment = %+v", p.Attachment)
	}

	// Original edge replaced by two halves plus the connector.
	if g.Edge(1) != nil {
		t.Error("split edge 1 still present")
	}
	if g.NumEdges() != 3 {
		t.Errorf("edges = %d, want 3 (two halves + connector)", g.NumEdges())
	}
	// Connectivity: original endpoints still reachable through the split.
	if got := g.Degree(c.Node); got != 3 {
		t.Errorf("split node degree = %d, want 3", got)
	}
}

func TestAttachSnapsToNearbyEndpoint(t *testing.T) {
	// POI projects onto the edge 1 unit from endpoint 2; with a snap
	// tolerance of 2 the endpoint wins over a split.
	g := lineGraph(t)
	ix := index.Build(g)
	p := newPOI(1, 9.5, 3)

	rep, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10, SnapTolerance: 2})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(rep.Connected) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	c := rep.Connected[0]
	if c.Split {
		t.Error("expected endpoint snap, got edge split")
	}
	if c.Node != 2 {
		t.Errorf("connected to node %d, want 2", c.Node)
	}
	if g.Edge(1) == nil {
		t.Error("edge 1 must survive an endpoint snap")
	}
}

func TestAttachOutOfRadiusReported(t *testing.T) {
	g := lineGraph(t)
	ix := index.Build(g)
	p := newPOI(7, 500, 500)

	rep, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(rep.Connected) != 0 {
		t.Errorf("Connected = %+v, want none", rep.Connected)
	}
	if len(rep.Unconnected) != 1 || rep.Unconnected[0].POI != 7 {
		t.Fatalf("Unconnected = %+v, want POI 7", rep.Unconnected)
	}
	if rep.Unconnected[0].Reason != ReasonNoCandidate {
		t.Errorf("Reason = %q", rep.Unconnected[0].Reason)
	}
	if p.Attached() {
		t.Error("out-of-radius POI must stay unattached")
	}
}

func TestAttachCoincidentWithNode(t *testing.T) {
	g := lineGraph(t)
	ix := index.Build(g)
	p := newPOI(1, 0, 0) // exactly on node 1

	rep, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	c := rep.Connected[0]
	if c.Node != 1 || c.Via != 0 {
		t.Errorf("connection = %+v, want direct attachment to node 1", c)
	}
	if p.Attachment.Via != 0 {
		t.Errorf("Attachment.Via = %d, want 0", p.Attachment.Via)
	}
	// No connector edge added.
	if g.NumEdges() != 1 {
		t.Errorf("edges = %d, want 1", g.NumEdges())
	}
}

func TestAttachIdempotentPerPOI(t *testing.T) {
	g := lineGraph(t)
	ix := index.Build(g)
	p := newPOI(1, 5, 5)

	if _, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10}); err != nil {
		t.Fatalf("first Attach: %v", err)
	}
	att := *p.Attachment
	edges := g.NumEdges()

	ix = index.Build(g)
	rep, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("second Attach: %v", err)
	}
	if len(rep.Connected) != 0 || len(rep.Unconnected) != 0 {
		t.Errorf("second run report = %+v, want empty", rep)
	}
	if *p.Attachment != att {
		t.Errorf("attachment changed: %+v -> %+v", att, *p.Attachment)
	}
	if g.NumEdges() != edges {
		t.Errorf("second run changed edge count %d -> %d", edges, g.NumEdges())
	}
}

func TestAttachDeterministic(t *testing.T) {
	build := func() (*graph.Graph, []*graph.POI) {
		g := lineGraph(t)
		return g, []*graph.POI{newPOI(3, 2, 4), newPOI(1, 7, 3), newPOI(2, 400, 0)}
	}

	g1, pois1 := build()
	rep1, err := Attach(g1, index.Build(g1), pois1, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	g2, pois2 := build()
	rep2, err := Attach(g2, index.Build(g2), pois2, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if len(rep1.Connected) != len(rep2.Connected) {
		t.Fatalf("connection counts differ: %d vs %d", len(rep1.Connected), len(rep2.Connected))
	}
	for i := range rep1.Connected {
		if rep1.Connected[i] != rep2.Connected[i] {
			t.Errorf("run 1 connection %d = %+v, run 2 = %+v", i, rep1.Connected[i], rep2.Connected[i])
		}
	}
	// Ascending POI id order in the report.
	if rep1.Connected[0].POI != 1 || rep1.Connected[1].POI != 3 {
		t.Errorf("connection order = %+v, want POIs 1 then 3", rep1.Connected)
	}
}

func TestTwoSplitsOnOneEdge(t *testing.T) {
	g := lineGraph(t)
	ix := index.Build(g)
	pois := []*graph.POI{newPOI(1, 3, 4), newPOI(2, 7, 4)}

	rep, err := Attach(g, ix, pois, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(rep.Connected) != 2 {
		t.Fatalf("report = %+v, want two connections", rep)
	}

	n1 := g.Node(rep.Connected[0].Node)
	n2 := g.Node(rep.Connected[1].Node)
	if n1.Point != (orb.Point{3, 0}) || n2.Point != (orb.Point{7, 0}) {
		t.Errorf("split nodes at %v and %v, want (3,0) and (7,0)", n1.Point, n2.Point)
	}
	// Edge 1 became three sub-edges, plus two connectors.
	if g.NumEdges() != 5 {
		t.Errorf("edges = %d, want 5", g.NumEdges())
	}
	// The road is still one path 1 - s1 - s2 - 2.
	if g.Degree(1) != 1 || g.Degree(2) != 1 {
		t.Errorf("endpoint degrees = %d, %d, want 1, 1", g.Degree(1), g.Degree(2))
	}
}

func TestSplitOnShapeVertex(t *testing.T) {
	// Floating point can report a projection onto the interior vertex
	// (10,0) as segment 1 at ratio 0 instead of segment 0 at ratio 1.
	// The split must not keep that vertex as geometry of the first
	// sub-edge, which would leave a zero-length segment.
	g := graph.New()
	g.AddNode(1, orb.Point{0, 0}, nil)
	g.AddNode(2, orb.Point{20, 0}, nil)
	if _, err := g.AddEdge(1, 1, 2, orb.LineString{{10, 0}}, nil); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	p := newPOI(1, 10, 4)
	d := decision{poi: p, split: true, edge: 1}

	splitEdge(g, 1, []pendingSplit{{seg: 1, ratio: 0, at: orb.Point{10, 0}, decision: &d}})

	split := g.Node(d.node)
	if split == nil || split.Point != (orb.Point{10, 0}) {
		t.Fatalf("split node = %v, want (10,0)", split)
	}
	if g.Degree(d.node) != 2 {
		t.Errorf("split node degree = %d, want 2", g.Degree(d.node))
	}
	for _, eid := range g.EdgeIDs() {
		e := g.Edge(eid)
		for _, pt := range e.Shape {
			if pt == g.Node(e.A).Point || pt == g.Node(e.B).Point {
				t.Errorf("edge %d keeps endpoint coordinate %v as shape vertex", eid, pt)
			}
		}
	}
}

func TestSplitPreservesShape(t *testing.T) {
	g := graph.New()
	g.AddNode(1, orb.Point{0, 0}, nil)
	g.AddNode(2, orb.Point{20, 0}, nil)
	// Interior vertices at x=5 and x=15.
	if _, err := g.AddEdge(1, 1, 2, orb.LineString{{5, 0}, {15, 0}}, nil); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	ix := index.Build(g)
	p := newPOI(1, 10, 4)

	rep, err := Attach(g, ix, []*graph.POI{p}, Options{SearchRadius: 10})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	c := rep.Connected[0]
	if g.Node(c.Node).Point != (orb.Point{10, 0}) {
		t.Fatalf("split at %v, want (10,0)", g.Node(c.Node).Point)
	}

	// Each half must keep its original interior vertex.
	var halves []*graph.Edge
	for _, eid := range g.EdgeIDs() {
		e := g.Edge(eid)
		if e.Tags["highway"] == "footway" {
			continue
		}
		halves = append(halves, e)
	}
	if len(halves) != 2 {
		t.Fatalf("got %d road edges, want 2", len(halves))
	}
	if len(halves[0].Shape) != 1 || halves[0].Shape[0] != (orb.Point{5, 0}) {
		t.Errorf("first half shape = %v, want [(5,0)]", halves[0].Shape)
	}
	if len(halves[1].Shape) != 1 || halves[1].Shape[0] != (orb.Point{15, 0}) {
		t.Errorf("second half shape = %v, want [(15,0)]", halves[1].Shape)
	}
}
