package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bhenne/MoSP-Geo-Tool/pkg/export"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/osmconv"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/partition"
	"github.com/bhenne/MoSP-Geo-Tool/pkg/pipeline"
)

func main() {
	input := flag.String("input", "", "Path to OSM extract (.osm, .xml or .osm.pbf)")
	output := flag.String("output", "network.geojson", "Output GeoJSON file path")
	policy := flag.String("partitions", "bridge", "Partition policy: drop or bridge")
	bridgeDist := flag.Float64("bridge-dist", 100, "Maximum bridge length in meters")
	minSize := flag.Int("min-component", 2, "Smallest component worth bridging (node count)")
	tolerance := flag.Float64("tolerance", 1, "Generalization tolerance in meters (0 disables)")
	poiRadius := flag.Float64("poi-radius", 250, "POI attachment search radius in meters")
	poiSnap := flag.Float64("poi-snap", 10, "POI endpoint snap tolerance in meters")
	poiTags := flag.String("poi-tags", "", "POI filters: key=value[,key=value], value * matches any (e.g. amenity=*,shop=bakery)")
	lonlat := flag.Bool("lonlat", true, "Write output coordinates as lon/lat instead of projected meters")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: mapprep --input <file.osm> [--output network.geojson] [--partitions drop|bridge] [--poi-tags amenity=*]")
		os.Exit(1)
	}

	var partitionPolicy partition.Policy
	switch *policy {
	case "drop":
		partitionPolicy = partition.Drop
	case "bridge":
		partitionPolicy = partition.Bridge
	default:
		log.Fatalf("Unknown partition policy %q (want drop or bridge)", *policy)
	}

	filters := osmconv.Filters{POITags: parsePOITags(*poiTags)}

	start := time.Now()

	log.Println("Parsing OSM data...")
	res, err := osmconv.ParseFile(context.Background(), *input, filters)
	if err != nil {
		log.Fatalf("Failed to parse OSM data: %v", err)
	}

	log.Println("Building graph...")
	g, pois, err := pipeline.LoadGraph(res.Nodes, res.Edges, res.POIs)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	log.Printf("Graph: %d nodes, %d edges, %d POIs", g.NumNodes(), g.NumEdges(), len(pois))

	log.Println("Running preparation pipeline...")
	rep, err := pipeline.Run(g, pois, pipeline.Config{
		PartitionPolicy:   partitionPolicy,
		BridgeMaxDist:     *bridgeDist,
		MinComponentSize:  *minSize,
		SimplifyTolerance: *tolerance,
		POISearchRadius:   *poiRadius,
		POISnapTolerance:  *poiSnap,
	})
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	log.Printf("Partitions: %d bridged, %d dropped (primary %d nodes)",
		len(rep.Partitions.Bridged), len(rep.Partitions.Dropped), rep.Partitions.Primary.Nodes)
	log.Printf("Generalization: %d -> %d nodes (%d removed, %d chains)",
		rep.Simplification.NodesBefore, rep.Simplification.NodesAfter,
		rep.Simplification.NodesRemoved, rep.Simplification.ChainsSimplified)
	if n := len(rep.Simplification.DegenerateRings); n > 0 {
		log.Printf("Warning: %d rings left unsimplified (would collapse below three vertices)", n)
	}
	log.Printf("POIs: %d connected, %d unconnected", len(rep.POIs.Connected), len(rep.POIs.Unconnected))
	for _, f := range rep.POIs.Unconnected {
		log.Printf("Warning: POI %d not connected: %s", f.POI, f.Reason)
	}

	log.Printf("Writing GeoJSON to %s...", *output)
	fc := export.FeatureCollection(g, pois, export.Options{Unproject: *lonlat, RefLat: res.RefLat})
	raw, err := json.Marshal(fc)
	if err != nil {
		log.Fatalf("Failed to encode GeoJSON: %v", err)
	}
	if err := os.WriteFile(*output, raw, 0o644); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	elapsed := time.Since(start)
	log.Printf("Done in %s. Output: %s (%.1f KB)", elapsed.Round(time.Millisecond), *output, float64(len(raw))/1024)
}

// parsePOITags parses "key=value,key=value" into the filter map.
func parsePOITags(s string) map[string][]string {
	if s == "" {
		return nil
	}
	out := make(map[string][]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			log.Fatalf("Invalid POI filter %q (want key=value)", pair)
		}
		out[key] = append(out[key], value)
	}
	return out
}
