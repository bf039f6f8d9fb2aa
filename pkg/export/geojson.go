// Package export serializes a prepared road network to GeoJSON for
// inspection in standard map tooling.
package export

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/geo"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/graph"
)

// Options controls coordinate output.
type Options struct {
	// Unproject converts planar meters back to lon/lat using RefLat as
	// the projection reference. When false coordinates are emitted as-is.
	Unproject bool
	RefLat    float64
}

// FeatureCollection renders the graph's edges as LineString features
// and the POIs as Point features. Edge features carry the edge id and
// tags; POI features carry the attachment state.
func FeatureCollection(g *graph.Graph, pois []*graph.POI, opts Options) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, eid := range g.EdgeIDs() {
		e := g.Edge(eid)
		poly := g.EdgePolyline(eid)
		coords := make([][]float64, len(poly))
		for i, p := range poly {
			coords[i] = coord(p, opts)
		}
		f := geojson.NewLineStringFeature(coords)
		f.ID = int64(eid)
		f.SetProperty("edge_id", int64(eid))
		f.SetProperty("from", int64(e.A))
		f.SetProperty("to", int64(e.B))
		for k, v := range e.Tags {
			f.SetProperty(k, v)
		}
		fc.AddFeature(f)
	}

	for _, p := range pois {
		f := geojson.NewPointFeature(coord(p.Point, opts))
		f.ID = int64(p.ID)
		f.SetProperty("poi_id", int64(p.ID))
		f.SetProperty("attached", p.Attached())
		if p.Attached() {
			f.SetProperty("node", int64(p.Attachment.Node))
			if p.Attachment.Via != 0 {
				f.SetProperty("via", int64(p.Attachment.Via))
			}
		}
		for k, v := range p.Tags {
			f.SetProperty(k, v)
		}
		fc.AddFeature(f)
	}

	return fc
}

func coord(p orb.Point, opts Options) []float64 {
	if !opts.Unproject {
		return []float64{p.X(), p.Y()}
	}
	lon, lat := geo.Unproject(p, opts.RefLat)
	return []float64{lon, lat}
}
