// Package proximity answers "how far is the nearest X on foot" for
// user-selected point-of-interest categories, walking the street graph
// from the query address.
package proximity

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/geoproj"
	"github.com/relonav/navigator/internal/landuse"
	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/internal/taxonomy"
	"github.com/relonav/navigator/internal/walkgraph"
)

// Result is one row of the proximity table. Name, DistanceM, and the
// centroid coordinates are meaningful only when Present is true.
type Result struct {
	Category  string  `json:"category"`
	Present   bool    `json:"present"`
	Name      string  `json:"nearest_name,omitempty"`
	DistanceM float64 `json:"nearest_distance_m,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	FeatureID string  `json:"feature_id,omitempty"`
}

// LocateNearest reports, per selected category, the walking distance
// from home to the nearest candidate feature. Candidates are snapped
// to the street graph by their metric centroid; ties at the minimum
// distance keep the first candidate encountered. Categories with no
// reachable candidate report Present=false. An empty category list
// means all selector categories.
func LocateNearest(graph *walkgraph.Graph, home osm.Point, categories []string, candidates []landuse.Row, tx *taxonomy.Taxonomy) ([]Result, error) {
	if len(categories) == 0 {
		categories = tx.Categories()
	}

	results := make([]Result, 0, len(categories))
	homeNode, err := graph.NearestNode(home.Lat, home.Lon)
	if err != nil {
		// No street network around the point: every category degrades
		// to absent rather than failing the query.
		zap.L().Warn("proximity: no street network, reporting all absent", zap.Error(err))
		for _, c := range categories {
			results = append(results, Result{Category: c})
		}
		return results, nil
	}

	proj, err := geoproj.ProjectorFor(home.Lon, home.Lat)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: choose metric projection")
	}

	distances := graph.ShortestPathsFrom(homeNode.ID)

	byCategory := make(map[string][]landuse.Row)
	for _, row := range candidates {
		cat, ok := tx.CategoryOfTag(row.Key, row.Value)
		if !ok {
			continue
		}
		byCategory[cat] = append(byCategory[cat], row)
	}

	for _, category := range categories {
		results = append(results, nearestInCategory(category, byCategory[category], graph, proj, distances))
	}
	return results, nil
}

func nearestInCategory(category string, rows []landuse.Row, graph *walkgraph.Graph, proj *geoproj.Projector, distances map[int64]float64) Result {
	best := Result{Category: category}

	for _, row := range rows {
		lon, lat, ok := centroidWGS84(row.Geom, proj)
		if !ok {
			continue
		}
		node, err := graph.NearestNode(lat, lon)
		if err != nil {
			continue
		}
		dist, reachable := distances[node.ID]
		if !reachable {
			// Disconnected from the home component; an unreachable
			// candidate is treated as absent.
			continue
		}
		if !best.Present || dist < best.DistanceM {
			best.Present = true
			best.Name = row.Name
			best.DistanceM = dist
			best.Lat = lat
			best.Lon = lon
			best.FeatureID = row.ID.String()
		}
	}
	return best
}

// centroidWGS84 computes a geometry's centroid in the metric projection
// and returns it in geographic coordinates. Centroids of polygons are
// area-weighted, which is only meaningful in a metric system.
func centroidWGS84(g geom.T, proj *geoproj.Projector) (lon, lat float64, ok bool) {
	projected, err := geoproj.ToUTM(g, proj)
	if err != nil {
		return 0, 0, false
	}

	var c geom.Coord
	switch t := projected.(type) {
	case *geom.Point:
		c = t.Coords()
	case *geom.MultiPoint:
		c = flatMean(t.FlatCoords())
	case *geom.LineString:
		c = xy.LinesCentroid(t)
	case *geom.MultiLineString:
		lines := make([]*geom.LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			lines = append(lines, t.LineString(i))
		}
		if len(lines) == 0 {
			return 0, 0, false
		}
		c = xy.LinesCentroid(lines[0], lines[1:]...)
	case *geom.Polygon:
		c = xy.PolygonsCentroid(t)
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
		if len(polys) == 0 {
			return 0, 0, false
		}
		c = xy.PolygonsCentroid(polys[0], polys[1:]...)
	default:
		return 0, 0, false
	}
	if len(c) < 2 {
		return 0, 0, false
	}

	lon, lat = proj.Inverse(c[0], c[1])
	return lon, lat, true
}

func flatMean(flat []float64) geom.Coord {
	if len(flat) == 0 {
		return nil
	}
	var sx, sy float64
	n := 0
	for i := 0; i+1 < len(flat); i += 2 {
		sx += flat[i]
		sy += flat[i+1]
		n++
	}
	return geom.Coord{sx / float64(n), sy / float64(n)}
}
