// Package pipeline wires the preparation stages into the single batch
// transform external collaborators call: load, resolve partitions,
// generalize, rebuild the spatial index, attach POIs.
package pipeline

import (
	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/generalize"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/index"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/partition"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/poi"
)

// NodeSpec is one pre-parsed, already projected input node.
type NodeSpec struct {
	ID   int64
	X, Y float64
	Tags map[string]string
}

// EdgeSpec is one input road segment referencing nodes by id.
type EdgeSpec struct {
	ID       int64
	From, To int64
	Shape    [][2]float64 // interior vertices, may be empty
	Tags     map[string]string
}

// POISpec is one input point of interest.
type POISpec struct {
	ID   int64
	X, Y float64
	Tags map[string]string
}

// Stage names a pipeline phase for progress reporting.
type Stage string

// Pipeline stages in execution order.
const (
	StagePartitions Stage = "partitions"
	StageGeneralize Stage = "generalize"
	StageIndex      Stage = "index"
	StagePOIs       Stage = "pois"
)

// Config enumerates every knob of a pipeline run. There are no
// process-wide defaults; callers pass the full configuration explicitly.
type Config struct {
	PartitionPolicy  partition.Policy
	BridgeMaxDist    float64
	MinComponentSize int

	SimplifyTolerance float64

	POISearchRadius  float64
	POISnapTolerance float64

	// Progress, if set, receives per-stage completion counts.
	Progress func(stage Stage, done, total int)
}

// Report collects the externally observable outcome of a run.
type Report struct {
	Partitions     partition.Report
	Simplification generalize.Stats
	POIs           poi.Report
}

// LoadGraph builds the road graph and POI set from pre-parsed input.
// Duplicate identifiers and dangling edge references fail with
// MalformedInputError; on error nothing partially built is returned.
func LoadGraph(nodes []NodeSpec, edges []EdgeSpec, pois []POISpec) (*graph.Graph, []*graph.POI, error) {
	g := graph.New()
	for _, n := range nodes {
		if _, err := g.AddNode(graph.NodeID(n.ID), orb.Point{n.X, n.Y}, n.Tags); err != nil {
			return nil, nil, err
		}
	}
	for _, e := range edges {
		var shape orb.LineString
		if len(e.Shape) > 0 {
			shape = make(orb.LineString, len(e.Shape))
			for i, p := range e.Shape {
				shape[i] = orb.Point{p[0], p[1]}
			}
		}
		if _, err := g.AddEdge(graph.EdgeID(e.ID), graph.NodeID(e.From), graph.NodeID(e.To), shape, e.Tags); err != nil {
			return nil, nil, err
		}
	}

	seen := make(map[graph.POIID]bool, len(pois))
	out := make([]*graph.POI, 0, len(pois))
	for _, p := range pois {
		id := graph.POIID(p.ID)
		if seen[id] {
			return nil, nil, &graph.MalformedInputError{Kind: "poi", ID: p.ID, Reason: "duplicate poi id"}
		}
		seen[id] = true
		out = append(out, &graph.POI{ID: id, Point: orb.Point{p.X, p.Y}, Tags: p.Tags})
	}
	return g, out, nil
}

// Run executes the full preparation pipeline over the graph in place
// and returns the combined report. The graph is mutated sequentially by
// one stage at a time; the spatial index is rebuilt after the last
// mutation and only then queried.
func Run(g *graph.Graph, pois []*graph.POI, cfg Config) (*Report, error) {
	rep := &Report{}

	partRep, err := partition.Resolve(g, partition.Options{
		Policy:           cfg.PartitionPolicy,
		BridgeMaxDist:    cfg.BridgeMaxDist,
		MinComponentSize: cfg.MinComponentSize,
	})
	if err != nil {
		return nil, err
	}
	rep.Partitions = partRep
	progress(cfg, StagePartitions, 1, 1)

	genStats, err := generalize.Run(g, generalize.Options{
		Tolerance: cfg.SimplifyTolerance,
		Anchors:   poiAnchors(g, pois),
		Progress: func(done, total int) {
			progress(cfg, StageGeneralize, done, total)
		},
	})
	if err != nil {
		return nil, err
	}
	rep.Simplification = genStats

	ix := index.Build(g)
	progress(cfg, StageIndex, 1, 1)

	poiRep, err := poi.Attach(g, ix, pois, poi.Options{
		SearchRadius:  cfg.POISearchRadius,
		SnapTolerance: cfg.POISnapTolerance,
		Progress: func(done, total int) {
			progress(cfg, StagePOIs, done, total)
		},
	})
	if err != nil {
		return nil, err
	}
	rep.POIs = poiRep

	return rep, nil
}

func progress(cfg Config, stage Stage, done, total int) {
	if cfg.Progress != nil {
		cfg.Progress(stage, done, total)
	}
}

// poiAnchors marks street nodes that coincide with a POI coordinate, so
// generalization keeps them addressable for the attacher.
func poiAnchors(g *graph.Graph, pois []*graph.POI) map[graph.NodeID]bool {
	if len(pois) == 0 {
		return nil
	}
	byPoint := make(map[orb.Point][]*graph.POI, len(pois))
	for _, p := range pois {
		byPoint[p.Point] = append(byPoint[p.Point], p)
	}
	anchors := make(map[graph.NodeID]bool)
	for _, nid := range g.NodeIDs() {
		if _, ok := byPoint[g.Node(nid).Point]; ok {
			anchors[nid] = true
		}
	}
	if len(anchors) == 0 {
		return nil
	}
	return anchors
}
