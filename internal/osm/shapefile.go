package osm

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/geoproj"
)

// ShapefileSource reads features from a directory of OSM-extract
// shapefiles, for offline use. Tag keys are taken from the DBF columns;
// an `osm_id` column supplies the feature identity.
type ShapefileSource struct {
	dir string
}

// NewShapefileSource creates a source over all .shp files in dir.
func NewShapefileSource(dir string) *ShapefileSource {
	return &ShapefileSource{dir: dir}
}

// FeaturesNear implements Source by scanning the extract shapefiles and
// keeping records whose geometry touches the query radius.
func (s *ShapefileSource) FeaturesNear(ctx context.Context, center Point, filter TagFilter, radiusMeters float64) ([]Feature, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &FetchError{Err: eris.Wrapf(err, "osm: read shapefile dir %s", s.dir)}
	}

	var features []Feature
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".shp") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Err: err}
		}
		fs, err := s.readFile(filepath.Join(s.dir, entry.Name()), center, filter, radiusMeters)
		if err != nil {
			return nil, err
		}
		features = append(features, fs...)
	}
	return features, nil
}

func (s *ShapefileSource) readFile(path string, center Point, filter TagFilter, radiusMeters float64) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, &FetchError{Err: eris.Wrapf(err, "osm: open shapefile %s", path)}
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	var features []Feature
	var skipped int
	var ref int64

	for reader.Next() {
		_, shape := reader.Shape()
		ref++

		tags := make(map[string]string)
		for name, idx := range fieldIdx {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if val != "" {
				tags[name] = val
			}
		}
		if !filter.Matches(tags) {
			continue
		}

		g := shapeGeometry(shape)
		if g == nil {
			skipped++
			continue
		}
		if !withinRadius(g, center, radiusMeters) {
			continue
		}

		id := FeatureID{Type: ElementWay, Ref: ref}
		if osmID, ok := parseOSMID(tags["osm_id"]); ok {
			id.Ref = osmID
		}

		features = append(features, Feature{
			ID:   id,
			Geom: g,
			CRS:  geoproj.WGS84,
			Tags: tags,
			Name: tags["name"],
		})
	}

	if skipped > 0 {
		zap.L().Debug("osm: skipped shapefile records",
			zap.String("file", filepath.Base(path)),
			zap.Int("skipped", skipped),
		)
	}
	return features, nil
}

// shapeGeometry converts a go-shp shape to a go-geom geometry.
func shapeGeometry(shape shp.Shape) geom.T {
	switch t := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{t.X, t.Y})

	case *shp.PolyLine:
		return partedGeometry(t.NumParts, t.Parts, t.Points, false)

	case *shp.Polygon:
		return partedGeometry(t.NumParts, t.Parts, t.Points, true)

	default:
		return nil
	}
}

func partedGeometry(numParts int32, parts []int32, points []shp.Point, area bool) geom.T {
	if numParts == 0 || len(points) == 0 {
		return nil
	}

	var flat []float64
	var ends []int
	for i := int32(0); i < numParts; i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts {
			end = parts[i+1]
		}
		for j := start; j < end; j++ {
			flat = append(flat, points[j].X, points[j].Y)
		}
		ends = append(ends, len(flat))
	}

	if area {
		return geom.NewPolygonFlat(geom.XY, flat, ends)
	}
	if len(ends) == 1 {
		return geom.NewLineStringFlat(geom.XY, flat)
	}
	return geom.NewMultiLineStringFlat(geom.XY, flat, ends)
}

// withinRadius reports whether any vertex of g lies inside the query
// radius. Boundary-straddling polygons are kept; precise restriction
// happens during clipping.
func withinRadius(g geom.T, center Point, radiusMeters float64) bool {
	coords := g.FlatCoords()
	stride := g.Stride()
	for i := 0; i+1 < len(coords); i += stride {
		if geoproj.Haversine(center.Lat, center.Lon, coords[i+1], coords[i]) <= radiusMeters {
			return true
		}
	}
	return false
}

func parseOSMID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var id int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		id = id*10 + int64(r-'0')
	}
	return id, true
}
