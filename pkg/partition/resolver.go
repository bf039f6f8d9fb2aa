// Package partition classifies the connected components of the road
// graph into one primary network and a set of spurious partitions, then
// eliminates the partitions by deleting or bridging them.
package partition

import (
	"fmt"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/index"
)

// Policy selects how minor components are eliminated. The strategy set
// is closed; there is no open-ended dispatch.
type Policy uint8

const (
	// Drop deletes every minor component outright.
	Drop Policy = iota
	// Bridge connects a minor component to the primary network via the
	// nearest inter-component node pair, falling back to Drop when the
	// pair is farther apart than BridgeMaxDist.
	Bridge
)

func (p Policy) String() string {
	switch p {
	case Drop:
		return "drop"
	case Bridge:
		return "bridge"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// bridgeTags marks connector edges the same way the map editor tags
// synthetic connections.
func bridgeTags() map[string]string {
	return map[string]string{"highway": "footway"}
}

// Options configures the resolver.
type Options struct {
	Policy Policy
	// BridgeMaxDist is the maximum length of a bridging edge in map
	// units. Only used with the Bridge policy.
	BridgeMaxDist float64
	// MinComponentSize drops components below this node count without
	// attempting to bridge them. Zero keeps every component eligible.
	MinComponentSize int
}

// ComponentInfo describes one component in the report. ID is the
// smallest node id the component contained when the resolver ran.
type ComponentInfo struct {
	ID    graph.NodeID
	Nodes int
	// Bridged components also record the connector.
	BridgeEdge graph.EdgeID
	BridgeDist float64
}

// Report is the externally observable outcome of a Resolve run.
type Report struct {
	Primary ComponentInfo
	Dropped []ComponentInfo
	Bridged []ComponentInfo
}

// Resolve mutates the graph so that at most one component remains. The
// largest component is kept as the primary network; every other
// component is bridged to it or deleted according to the policy. An
// empty or already connected graph is a no-op.
func Resolve(g *graph.Graph, opts Options) (Report, error) {
	var rep Report

	comps := g.Components()
	if len(comps) == 0 {
		return rep, nil
	}

	primary := comps[0]
	rep.Primary = ComponentInfo{ID: primary.MinNode(), Nodes: primary.Len()}
	if len(comps) == 1 {
		return rep, nil
	}

	// Bridge targets are searched in the primary component only, so a
	// partition can never end up connected to another partition that is
	// itself about to be dropped.
	var primaryIndex *index.Index
	if opts.Policy == Bridge {
		primaryIndex = index.BuildNodes(g, primary.Nodes)
	}

	for _, comp := range comps[1:] {
		info := ComponentInfo{ID: comp.MinNode(), Nodes: comp.Len()}

		if opts.Policy == Bridge && comp.Len() >= opts.MinComponentSize {
			if eid, dist, ok := bridge(g, primaryIndex, comp, opts.BridgeMaxDist); ok {
				info.BridgeEdge = eid
				info.BridgeDist = dist
				rep.Bridged = append(rep.Bridged, info)
				continue
			}
		}

		drop(g, comp)
		rep.Dropped = append(rep.Dropped, info)
	}
	return rep, nil
}

// bridge connects the component to the primary network with a new edge
// between the closest node pair, if one exists within maxDist.
func bridge(g *graph.Graph, primaryIndex *index.Index, comp graph.Component, maxDist float64) (graph.EdgeID, float64, bool) {
	var (
		bestDist float64
		bestFrom graph.NodeID
		bestTo   graph.NodeID
		found    bool
	)
	for _, nid := range comp.Nodes {
		target, dist, ok := primaryIndex.NearestNode(g.Node(nid).Point, maxDist)
		if !ok {
			continue
		}
		if !found || dist < bestDist || (dist == bestDist && nid < bestFrom) {
			bestDist = dist
			bestFrom = nid
			bestTo = target
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}

	eid := g.NextEdgeID()
	if _, err := g.AddEdge(eid, bestFrom, bestTo, nil, bridgeTags()); err != nil {
		// Both endpoints were just looked up; this cannot happen on a
		// well-formed graph.
		return 0, 0, false
	}
	return eid, bestDist, true
}

// drop removes every node of the component, cascading into its edges.
// Component edges always connect nodes of the same component, so nothing
// outside it is touched.
func drop(g *graph.Graph, comp graph.Component) {
	for _, nid := range comp.Nodes {
		// Cascade recovers the referential-integrity failure that plain
		// removal of a still-connected node would raise.
		_ = g.RemoveNode(nid, true)
	}
}
