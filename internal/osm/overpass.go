package osm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relonav/navigator/internal/geoproj"
	"github.com/relonav/navigator/internal/resilience"
)

// Closed ways with these keys are linear features (a roundabout is not
// an area), so they are never promoted to polygons.
var linearKeys = map[string]bool{
	"highway":  true,
	"barrier":  true,
	"waterway": true,
	"railway":  true,
}

// OverpassSource fetches features from an Overpass API endpoint.
type OverpassSource struct {
	client  *overpass.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// OverpassOptions configures an OverpassSource.
type OverpassOptions struct {
	Endpoint   string
	Timeout    time.Duration
	RatePerSec float64
	MaxRetries int
}

// NewOverpassSource creates an OverpassSource for the given endpoint.
func NewOverpassSource(opts OverpassOptions) *OverpassSource {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	client := overpass.NewWithSettings(opts.Endpoint, 1, httpClient)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.OnRetry = resilience.RetryLogger("overpass", "query")

	return &OverpassSource{
		client:  &client,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		retry:   retry,
	}
}

// FeaturesNear implements Source against the Overpass API.
func (s *OverpassSource) FeaturesNear(ctx context.Context, center Point, filter TagFilter, radiusMeters float64) ([]Feature, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Err: err}
	}

	query := buildAroundQuery(center, filter, radiusMeters)
	zap.L().Debug("overpass query",
		zap.Float64("lat", center.Lat),
		zap.Float64("lon", center.Lon),
		zap.Float64("radius_m", radiusMeters),
		zap.String("filter", filter.CanonicalKey()),
	)

	result, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (overpass.Result, error) {
		return s.client.Query(query)
	})
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	features := convertResult(&result, filter)
	zap.L().Debug("overpass result",
		zap.Int("features", len(features)),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("ways", len(result.Ways)),
		zap.Int("relations", len(result.Relations)),
	)
	return features, nil
}

// buildAroundQuery renders a TagFilter as an Overpass QL union of
// around-filters over nodes, ways, and relations.
func buildAroundQuery(center Point, filter TagFilter, radiusMeters float64) string {
	var b strings.Builder
	b.WriteString("[out:json];\n(\n")
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusMeters, center.Lat, center.Lon)
	for _, key := range filter.Keys() {
		m := filter[key]
		if m.Any {
			fmt.Fprintf(&b, "  nwr[%q]%s;\n", key, around)
			continue
		}
		values := make([]string, len(m.Values))
		copy(values, m.Values)
		sort.Strings(values)
		fmt.Fprintf(&b, "  nwr[%q~\"^(%s)$\"]%s;\n", key, strings.Join(values, "|"), around)
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// convertResult turns an Overpass result into features. Untagged
// elements (way members pulled in by recursion) are skipped.
func convertResult(result *overpass.Result, filter TagFilter) []Feature {
	var features []Feature

	for _, node := range result.Nodes {
		if node == nil || !filter.Matches(node.Tags) {
			continue
		}
		features = append(features, Feature{
			ID:   FeatureID{Type: ElementNode, Ref: node.ID},
			Geom: geom.NewPointFlat(geom.XY, []float64{node.Lon, node.Lat}),
			CRS:  geoproj.WGS84,
			Tags: node.Tags,
			Name: node.Tags["name"],
		})
	}

	memberWays := relationMemberWays(result)

	for _, way := range result.Ways {
		if way == nil || !filter.Matches(way.Tags) {
			continue
		}
		// Ways that only exist as multipolygon members are represented
		// by their relation, not duplicated standalone.
		if memberWays[way.ID] {
			continue
		}
		g := wayGeometry(way)
		if g == nil {
			continue
		}
		features = append(features, Feature{
			ID:   FeatureID{Type: ElementWay, Ref: way.ID},
			Geom: g,
			CRS:  geoproj.WGS84,
			Tags: way.Tags,
			Name: way.Tags["name"],
		})
	}

	for _, rel := range result.Relations {
		if rel == nil || !filter.Matches(rel.Tags) {
			continue
		}
		if rel.Tags["type"] != "multipolygon" {
			continue
		}
		g := multipolygonGeometry(rel)
		if g == nil {
			zap.L().Debug("osm: skipping un-closable multipolygon", zap.Int64("relation", rel.ID))
			continue
		}
		features = append(features, Feature{
			ID:   FeatureID{Type: ElementRelation, Ref: rel.ID},
			Geom: g,
			CRS:  geoproj.WGS84,
			Tags: rel.Tags,
			Name: rel.Tags["name"],
		})
	}

	return features
}

// relationMemberWays collects the way ids referenced by multipolygon relations.
func relationMemberWays(result *overpass.Result) map[int64]bool {
	members := make(map[int64]bool)
	for _, rel := range result.Relations {
		if rel == nil || rel.Tags["type"] != "multipolygon" {
			continue
		}
		for _, m := range rel.Members {
			if m.Way != nil {
				members[m.Way.ID] = true
			}
		}
	}
	return members
}

// wayGeometry builds a Polygon for closed area ways, a LineString otherwise.
func wayGeometry(way *overpass.Way) geom.T {
	if len(way.Nodes) < 2 {
		return nil
	}
	coords := make([]float64, 0, 2*len(way.Nodes))
	for _, n := range way.Nodes {
		if n == nil {
			return nil
		}
		coords = append(coords, n.Lon, n.Lat)
	}

	first, last := way.Nodes[0], way.Nodes[len(way.Nodes)-1]
	closed := first.ID == last.ID && len(way.Nodes) >= 4
	if closed && !hasLinearTag(way.Tags) {
		return geom.NewPolygonFlat(geom.XY, coords, []int{len(coords)})
	}
	return geom.NewLineStringFlat(geom.XY, coords)
}

func hasLinearTag(tags map[string]string) bool {
	if tags["area"] == "yes" {
		return false
	}
	for key := range tags {
		if linearKeys[key] {
			return true
		}
	}
	return false
}

// multipolygonGeometry assembles a MultiPolygon from a relation's outer
// and inner member ways. Open member ways are stitched end to end; a
// ring that cannot be closed voids the whole geometry.
func multipolygonGeometry(rel *overpass.Relation) geom.T {
	var outers, inners [][]float64

	outerWays, innerWays := splitMembers(rel)
	for _, ring := range assembleRings(outerWays) {
		outers = append(outers, ring)
	}
	if len(outers) == 0 {
		return nil
	}
	for _, ring := range assembleRings(innerWays) {
		inners = append(inners, ring)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, outer := range outers {
		poly := geom.NewPolygonFlat(geom.XY, outer, []int{len(outer)})
		// Attach each hole to the first outer ring whose bounding box
		// contains it. Exact containment is settled during clipping.
		for _, inner := range inners {
			if bboxContains(outer, inner) {
				flat := append(append([]float64{}, poly.FlatCoords()...), inner...)
				ends := append(append([]int{}, poly.Ends()...), len(poly.FlatCoords())+len(inner))
				poly = geom.NewPolygonFlat(geom.XY, flat, ends)
			}
		}
		if err := mp.Push(poly); err != nil {
			return nil
		}
	}
	return mp
}

func splitMembers(rel *overpass.Relation) (outer, inner []*overpass.Way) {
	for _, m := range rel.Members {
		if m.Way == nil {
			continue
		}
		switch m.Role {
		case "inner":
			inner = append(inner, m.Way)
		default:
			// Missing roles default to outer, matching common mapping practice.
			outer = append(outer, m.Way)
		}
	}
	return outer, inner
}

// assembleRings stitches member ways into closed rings of flat XY coords.
func assembleRings(ways []*overpass.Way) [][]float64 {
	type segment struct {
		coords []float64
		used   bool
	}
	var segments []*segment
	for _, w := range ways {
		if w == nil || len(w.Nodes) < 2 {
			continue
		}
		coords := make([]float64, 0, 2*len(w.Nodes))
		valid := true
		for _, n := range w.Nodes {
			if n == nil {
				valid = false
				break
			}
			coords = append(coords, n.Lon, n.Lat)
		}
		if valid {
			segments = append(segments, &segment{coords: coords})
		}
	}

	var rings [][]float64
	for _, seg := range segments {
		if seg.used {
			continue
		}
		seg.used = true
		ring := append([]float64{}, seg.coords...)

		for !ringClosed(ring) {
			extended := false
			for _, next := range segments {
				if next.used {
					continue
				}
				if joined, ok := joinSegments(ring, next.coords); ok {
					ring = joined
					next.used = true
					extended = true
					break
				}
			}
			if !extended {
				break
			}
		}

		if ringClosed(ring) && len(ring) >= 8 {
			rings = append(rings, ring)
		}
	}
	return rings
}

func ringClosed(ring []float64) bool {
	n := len(ring)
	return n >= 8 && ring[0] == ring[n-2] && ring[1] == ring[n-1]
}

// joinSegments appends next to ring if their endpoints meet, reversing
// next if needed.
func joinSegments(ring, next []float64) ([]float64, bool) {
	rn := len(ring)
	endX, endY := ring[rn-2], ring[rn-1]

	if next[0] == endX && next[1] == endY {
		return append(ring, next[2:]...), true
	}
	n := len(next)
	if next[n-2] == endX && next[n-1] == endY {
		reversed := make([]float64, 0, n)
		for i := n - 2; i >= 0; i -= 2 {
			reversed = append(reversed, next[i], next[i+1])
		}
		return append(ring, reversed[2:]...), true
	}
	return nil, false
}

func bboxContains(outer, inner []float64) bool {
	minX, minY, maxX, maxY := bounds(outer)
	iMinX, iMinY, iMaxX, iMaxY := bounds(inner)
	return iMinX >= minX && iMinY >= minY && iMaxX <= maxX && iMaxY <= maxY
}

func bounds(coords []float64) (minX, minY, maxX, maxY float64) {
	minX, minY = coords[0], coords[1]
	maxX, maxY = coords[0], coords[1]
	for i := 2; i+1 < len(coords); i += 2 {
		if coords[i] < minX {
			minX = coords[i]
		}
		if coords[i] > maxX {
			maxX = coords[i]
		}
		if coords[i+1] < minY {
			minY = coords[i+1]
		}
		if coords[i+1] > maxY {
			maxY = coords[i+1]
		}
	}
	return minX, minY, maxX, maxY
}
