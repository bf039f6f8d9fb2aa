// Package osmconv turns OpenStreetMap extracts into the planar node,
// edge and POI records the preparation pipeline consumes. Coordinates
// are projected from lon/lat to meters around the extract's mid
// latitude; every way vertex becomes a graph node so the generalizer
// decides later which ones carry information.
package osmconv

import (
	"context"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/geo"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/pipeline"
)

// walkableHighways lists highway tag values a pedestrian can use. This
// is deliberately broader than a car profile: footways, paths and steps
// are the backbone of the network, motorways are excluded.
var walkableHighways = map[string]bool{
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
	"pedestrian":     true,
	"track":          true,
	"footway":        true,
	"path":           true,
	"steps":          true,
	"cycleway":       true,
}

// Filters selects which ways become streets and which nodes become POIs.
type Filters struct {
	// Highways overrides the default walkable highway set when non-nil.
	Highways map[string]bool
	// POITags maps a tag key to accepted values; the value "*" accepts
	// any. A node matching any entry becomes a POI.
	POITags map[string][]string
}

func (f Filters) highways() map[string]bool {
	if f.Highways != nil {
		return f.Highways
	}
	return walkableHighways
}

// acceptWay reports whether the way belongs to the street network.
func (f Filters) acceptWay(tags map[string]string) bool {
	if !f.highways()[tags["highway"]] {
		return false
	}
	// Area highways (plazas) have no linear geometry to route on.
	if tags["area"] == "yes" {
		return false
	}
	access := tags["access"]
	if access == "no" || access == "private" {
		return false
	}
	return true
}

// acceptPOI reports whether a node's tags match any POI filter entry.
func (f Filters) acceptPOI(tags map[string]string) bool {
	for key, values := range f.POITags {
		v, ok := tags[key]
		if !ok {
			continue
		}
		for _, want := range values {
			if want == "*" || want == v {
				return true
			}
		}
	}
	return false
}

// Result is the converted extract, ready for pipeline.LoadGraph.
type Result struct {
	Nodes []pipeline.NodeSpec
	Edges []pipeline.EdgeSpec
	POIs  []pipeline.POISpec

	// RefLat is the reference latitude of the projection, needed to
	// unproject results back to lon/lat.
	RefLat float64
}

// wayInfo is a street way collected during the way pass.
type wayInfo struct {
	id      int64
	nodeIDs []osm.NodeID
	tags    map[string]string
}

// nodeInfo is a raw node collected during the node pass.
type nodeInfo struct {
	lon, lat float64
	tags     map[string]string
	street   bool
	poi      bool
}

// collector accumulates both scanner passes before conversion.
type collector struct {
	filters    Filters
	ways       []wayInfo
	referenced map[osm.NodeID]struct{}
	nodes      map[osm.NodeID]*nodeInfo
}

func newCollector(filters Filters) *collector {
	return &collector{
		filters:    filters,
		referenced: make(map[osm.NodeID]struct{}),
		nodes:      make(map[osm.NodeID]*nodeInfo),
	}
}

func (c *collector) addWay(w *osm.Way) {
	tags := w.TagMap()
	if !c.filters.acceptWay(tags) {
		return
	}
	if len(w.Nodes) < 2 {
		return
	}
	nodeIDs := make([]osm.NodeID, len(w.Nodes))
	for i, wn := range w.Nodes {
		nodeIDs[i] = wn.ID
		c.referenced[wn.ID] = struct{}{}
	}
	c.ways = append(c.ways, wayInfo{id: int64(w.ID), nodeIDs: nodeIDs, tags: tags})
}

func (c *collector) addNode(n *osm.Node) {
	tags := n.TagMap()
	_, street := c.referenced[n.ID]
	poi := c.filters.acceptPOI(tags)
	if !street && !poi {
		return
	}
	c.nodes[n.ID] = &nodeInfo{lon: n.Lon, lat: n.Lat, tags: tags, street: street, poi: poi}
}

// finish projects the collected data and assembles the Result.
func (c *collector) finish() *Result {
	res := &Result{RefLat: c.refLat()}

	ids := make([]osm.NodeID, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		n := c.nodes[id]
		pt := geo.Project(n.lon, n.lat, res.RefLat)
		if n.street {
			var tags map[string]string
			if len(n.tags) > 0 {
				tags = n.tags
			}
			res.Nodes = append(res.Nodes, pipeline.NodeSpec{ID: int64(id), X: pt.X(), Y: pt.Y(), Tags: tags})
		}
		if n.poi {
			res.POIs = append(res.POIs, pipeline.POISpec{ID: int64(id), X: pt.X(), Y: pt.Y(), Tags: n.tags})
		}
	}

	var nextEdge int64 = 1
	var skipped int
	for _, w := range c.ways {
		for i := 0; i+1 < len(w.nodeIDs); i++ {
			from, to := w.nodeIDs[i], w.nodeIDs[i+1]
			if c.nodes[from] == nil || c.nodes[to] == nil {
				// Node missing from the extract (clipped at the border).
				skipped++
				continue
			}
			res.Edges = append(res.Edges, pipeline.EdgeSpec{
				ID:   nextEdge,
				From: int64(from),
				To:   int64(to),
				Tags: w.tags,
			})
			nextEdge++
		}
	}
	if skipped > 0 {
		log.Printf("Warning: skipped %d segments due to missing node coordinates", skipped)
	}
	log.Printf("Converted %d nodes, %d segments, %d POIs", len(res.Nodes), len(res.Edges), len(res.POIs))
	return res
}

// refLat picks the mid latitude of the extract as projection reference.
func (c *collector) refLat() float64 {
	first := true
	var minLat, maxLat float64
	for _, n := range c.nodes {
		if first {
			minLat, maxLat = n.lat, n.lat
			first = false
			continue
		}
		if n.lat < minLat {
			minLat = n.lat
		}
		if n.lat > maxLat {
			maxLat = n.lat
		}
	}
	return (minLat + maxLat) / 2
}

// ParseFile reads an OSM extract and converts it. PBF files are
// detected by their .pbf suffix, anything else is parsed as OSM XML.
// The file is scanned twice: ways first to learn which nodes the street
// network references, then nodes.
func ParseFile(ctx context.Context, path string, filters Filters) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open osm file")
	}
	defer f.Close()

	pbf := strings.HasSuffix(strings.ToLower(path), ".pbf")
	c := newCollector(filters)

	// Pass 1: ways.
	scanner := newScanner(ctx, f, pbf)
	for scanner.Scan() {
		if w, ok := scanner.Object().(*osm.Way); ok {
			c.addWay(w)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "scan ways")
	}
	scanner.Close()
	log.Printf("Pass 1 complete: %d ways, %d referenced nodes", len(c.ways), len(c.referenced))

	// Pass 2: nodes.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek for node pass")
	}
	scanner = newScanner(ctx, f, pbf)
	for scanner.Scan() {
		if n, ok := scanner.Object().(*osm.Node); ok {
			c.addNode(n)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, errors.Wrap(err, "scan nodes")
	}
	scanner.Close()
	log.Printf("Pass 2 complete: %d node coordinates collected", len(c.nodes))

	return c.finish(), nil
}

func newScanner(ctx context.Context, r io.Reader, pbf bool) osm.Scanner {
	if pbf {
		return osmpbf.New(ctx, r, 1)
	}
	return osmxml.New(ctx, r)
}

// FromObjects converts an in-memory object set, in the same two-pass
// order as ParseFile.
func FromObjects(objs []osm.Object, filters Filters) *Result {
	c := newCollector(filters)
	for _, obj := range objs {
		if w, ok := obj.(*osm.Way); ok {
			c.addWay(w)
		}
	}
	for _, obj := range objs {
		if n, ok := obj.(*osm.Node); ok {
			c.addNode(n)
		}
	}
	return c.finish()
}
