package partition

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
)

// twoComponentGraph builds a main chain of n nodes at unit spacing
// starting at (0,0) and a minor pair of 2 nodes starting at (offset,0).
func twoComponentGraph(t *testing.T, n int, offset float64) *graph.Graph {
	t.Helper()
	g := graph.New()
	for i := 1; i <= n; i++ {
		if _, err := g.AddNode(graph.NodeID(i), orb.Point{float64(i - 1), 0}, nil); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	for i := 1; i < n; i++ {
		if _, err := g.AddEdge(graph.EdgeID(i), graph.NodeID(i), graph.NodeID(i+1), nil, nil); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	a := graph.NodeID(n + 1)
	b := graph.NodeID(n + 2)
	g.AddNode(a, orb.Point{offset, 0}, nil)
	g.AddNode(b, orb.Point{offset + 1, 0}, nil)
	g.AddEdge(graph.EdgeID(n), a, b, nil, nil)
	return g
}

func componentCount(g *graph.Graph) int {
	return len(g.Components())
}

func TestResolveEmptyGraphNoop(t *testing.T) {
	g := graph.New()
	rep, err := Resolve(g, Options{Policy: Drop})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(rep.Dropped) != 0 || len(rep.Bridged) != 0 {
		t.Errorf("empty graph produced report %+v", rep)
	}
}

func TestResolveSingleComponentNoop(t *testing.T) {
	g := graph.New()
	g.AddNode(1, orb.Point{0, 0}, nil)
	g.AddNode(2, orb.Point{1, 0}, nil)
	g.AddEdge(1, 1, 2, nil, nil)

	v := g.Version()
	rep, err := Resolve(g, Options{Policy: Drop})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.Version() != v {
		t.Error("single-component resolve mutated the graph")
	}
	if rep.Primary.Nodes != 2 {
		t.Errorf("Primary.Nodes = %d, want 2", rep.Primary.Nodes)
	}
}

func TestDropLeavesSingleComponent(t *testing.T) {
	g := twoComponentGraph(t, 5, 100)

	rep, err := Resolve(g, Options{Policy: Drop})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := componentCount(g); n != 1 {
		t.Errorf("components after Drop = %d, want 1", n)
	}
	if g.NumNodes() != 5 {
		t.Errorf("nodes after Drop = %d, want 5", g.NumNodes())
	}
	if len(rep.Dropped) != 1 || rep.Dropped[0].Nodes != 2 {
		t.Errorf("Dropped = %+v, want one 2-node component", rep.Dropped)
	}
	if rep.Dropped[0].ID != 6 {
		t.Errorf("Dropped[0].ID = %d, want 6", rep.Dropped[0].ID)
	}
}

func TestBridgeWithinThreshold(t *testing.T) {
	// Minor pair 10 units right of the main chain's last node (4,0).
	g := twoComponentGraph(t, 5, 14)

	rep, err := Resolve(g, Options{Policy: Bridge, BridgeMaxDist: 100})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := componentCount(g); n != 1 {
		t.Errorf("components after Bridge = %d, want 1", n)
	}
	if len(rep.Bridged) != 1 {
		t.Fatalf("Bridged = %+v, want one entry", rep.Bridged)
	}
	b := rep.Bridged[0]
	if b.BridgeDist != 10 {
		t.Errorf("BridgeDist = %f, want 10", b.BridgeDist)
	}
	e := g.Edge(b.BridgeEdge)
	if e == nil {
		t.Fatal("bridge edge not present in graph")
	}
	if e.Tags["highway"] != "footway" {
		t.Errorf("bridge edge tags = %v, want highway=footway", e.Tags)
	}
	// Nearest pair is minor node 6 (14,0) and main node 5 (4,0).
	if e.A != 6 || e.B != 5 {
		t.Errorf("bridge endpoints = (%d, %d), want (6, 5)", e.A, e.B)
	}
}

func TestBridgeFallsBackToDrop(t *testing.T) {
	// Main 50 nodes, minor 2 nodes roughly 550 units away, max bridge
	// length 100 -> minor dropped and reported as removed.
	g := twoComponentGraph(t, 50, 549)

	rep, err := Resolve(g, Options{Policy: Bridge, BridgeMaxDist: 100})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := componentCount(g); n != 1 {
		t.Errorf("components = %d, want 1", n)
	}
	if len(rep.Bridged) != 0 {
		t.Errorf("Bridged = %+v, want none", rep.Bridged)
	}
	if len(rep.Dropped) != 1 || rep.Dropped[0].Nodes != 2 {
		t.Errorf("Dropped = %+v, want the 2-node component", rep.Dropped)
	}
}

func TestMinComponentSizeDropsSmallEvenWithBridge(t *testing.T) {
	g := twoComponentGraph(t, 5, 10)

	rep, err := Resolve(g, Options{Policy: Bridge, BridgeMaxDist: 1000, MinComponentSize: 3})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(rep.Dropped) != 1 {
		t.Errorf("Dropped = %+v, want the undersized component", rep.Dropped)
	}
	if len(rep.Bridged) != 0 {
		t.Errorf("Bridged = %+v, want none", rep.Bridged)
	}
}

func TestResolveIsolatedNodes(t *testing.T) {
	g := graph.New()
	g.AddNode(1, orb.Point{0, 0}, nil)
	g.AddNode(2, orb.Point{1, 0}, nil)
	g.AddEdge(1, 1, 2, nil, nil)
	g.AddNode(3, orb.Point{50, 50}, nil) // isolated

	rep, err := Resolve(g, Options{Policy: Drop})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.Node(3) != nil {
		t.Error("isolated node survived Drop")
	}
	if len(rep.Dropped) != 1 || rep.Dropped[0].Nodes != 1 {
		t.Errorf("Dropped = %+v, want one singleton", rep.Dropped)
	}
}

func TestResolveIntegrity(t *testing.T) {
	g := twoComponentGraph(t, 5, 100)
	if _, err := Resolve(g, Options{Policy: Drop}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, eid := range g.EdgeIDs() {
		e := g.Edge(eid)
		if g.Node(e.A) == nil || g.Node(e.B) == nil {
			t.Errorf("edge %d has missing endpoint after resolve", eid)
		}
	}
}
