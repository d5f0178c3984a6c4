package landuse

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/geoproj"
	"github.com/relonav/navigator/internal/osm"
)

// circleSegments controls how densely the catchment circle is
// approximated in metric space. At 128 segments the area error of the
// inscribed polygon is about 0.04%.
const circleSegments = 128

// ClippedRow is a polygon Row restricted to the catchment circle, with
// its metric area. Geom is back in WGS84 for rendering; AreaM2 was
// measured in the UTM projection before unprojecting.
type ClippedRow struct {
	Row
	AreaM2 float64
}

// Clip intersects polygon rows with the metric catchment circle around
// center. Non-area rows are excluded from the output (the caller keeps
// the originals for point-type handling). Empty input degrades to an
// empty result, not an error.
func Clip(rows []Row, center osm.Point, radiusMeters float64) ([]ClippedRow, error) {
	if radiusMeters <= 0 {
		return nil, eris.Errorf("landuse: radius must be positive, got %g", radiusMeters)
	}

	area, _ := AreaRows(rows)
	if len(area) == 0 {
		return nil, nil
	}

	proj, err := geoproj.ProjectorFor(center.Lon, center.Lat)
	if err != nil {
		return nil, eris.Wrap(err, "landuse: choose metric projection")
	}

	cx, cy := proj.Forward(center.Lon, center.Lat)
	circle := circleRing(cx, cy, radiusMeters)

	var clipped []ClippedRow
	for _, row := range area {
		crs, assumed := geoproj.EnsureGeographic(row.CRS)
		if assumed {
			zap.L().Debug("landuse: row CRS assumed WGS84", zap.String("feature", row.ID.String()))
		}
		if crs.Kind != geoproj.Geographic {
			return nil, eris.Errorf("landuse: row %s has projected CRS %s, expected geographic", row.ID, crs)
		}

		projected, err := geoproj.ToUTM(row.Geom, proj)
		if err != nil {
			return nil, eris.Wrapf(err, "landuse: project feature %s", row.ID)
		}

		metric, areaM2 := clipGeometry(projected, circle)
		if metric == nil || areaM2 <= 0 {
			continue
		}

		// Reproject for rendering only; the area is taken from the metric
		// geometry above, never from degrees.
		wgs, err := geoproj.ToWGS84(metric, proj)
		if err != nil {
			return nil, eris.Wrapf(err, "landuse: unproject feature %s", row.ID)
		}

		out := row
		out.Geom = wgs
		out.CRS = geoproj.WGS84
		clipped = append(clipped, ClippedRow{Row: out, AreaM2: areaM2})
	}
	return clipped, nil
}

// UnclippedAreaM2 returns the metric area of a polygon row without
// clipping, in the UTM zone of the given center.
func UnclippedAreaM2(row Row, center osm.Point) (float64, error) {
	proj, err := geoproj.ProjectorFor(center.Lon, center.Lat)
	if err != nil {
		return 0, err
	}
	projected, err := geoproj.ToUTM(row.Geom, proj)
	if err != nil {
		return 0, err
	}
	switch t := projected.(type) {
	case *geom.Polygon:
		return polygonArea(t.FlatCoords(), 0, t.Ends()), nil
	case *geom.MultiPolygon:
		var sum float64
		start := 0
		for _, ends := range t.Endss() {
			sum += polygonArea(t.FlatCoords(), start, ends)
			if len(ends) > 0 {
				start = ends[len(ends)-1]
			}
		}
		return sum, nil
	default:
		return 0, eris.Errorf("landuse: not an area geometry: %T", projected)
	}
}

// circleRing builds the catchment circle as a closed CCW ring of flat
// XY coords in metric space.
func circleRing(cx, cy, r float64) []float64 {
	ring := make([]float64, 0, 2*(circleSegments+1))
	for i := 0; i < circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		ring = append(ring, cx+r*math.Cos(theta), cy+r*math.Sin(theta))
	}
	ring = append(ring, ring[0], ring[1])
	return ring
}

// clipGeometry intersects a projected polygon or multipolygon with the
// circle ring, returning the clipped metric geometry and its area.
// A nil geometry means the intersection is empty.
func clipGeometry(g geom.T, circle []float64) (geom.T, float64) {
	switch t := g.(type) {
	case *geom.Polygon:
		flat, ends, area := clipPolygon(t.FlatCoords(), 0, t.Ends(), circle)
		if len(ends) == 0 {
			return nil, 0
		}
		return geom.NewPolygonFlat(geom.XY, flat, ends), area

	case *geom.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		var total float64
		start := 0
		for _, ends := range t.Endss() {
			flat, polyEnds, area := clipPolygon(t.FlatCoords(), start, ends, circle)
			if len(ends) > 0 {
				start = ends[len(ends)-1]
			}
			if len(polyEnds) == 0 {
				continue
			}
			if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, polyEnds)); err != nil {
				continue
			}
			total += area
		}
		if mp.NumPolygons() == 0 {
			return nil, 0
		}
		return mp, total

	default:
		return nil, 0
	}
}

// clipPolygon clips every ring of one polygon against the convex circle
// ring. The first ring is the shell; later rings are holes whose areas
// subtract. Holes that vanish under clipping are dropped. start is the
// absolute flat-coords offset of the first ring, which for multipolygon
// members indexing shared coords is not zero.
func clipPolygon(flat []float64, start int, ends []int, circle []float64) (outFlat []float64, outEnds []int, area float64) {
	for i, end := range ends {
		ring := openRing(flat[start:end])
		start = end

		clipped := clipRingConvex(ring, circle)
		if len(clipped) < 6 {
			if i == 0 {
				return nil, nil, 0 // shell gone, whole polygon gone
			}
			continue
		}

		ringArea := math.Abs(signedArea(clipped))
		if ringArea == 0 {
			if i == 0 {
				return nil, nil, 0
			}
			continue
		}
		if i == 0 {
			area = ringArea
		} else {
			area -= ringArea
		}

		closed := append(clipped, clipped[0], clipped[1])
		outFlat = append(outFlat, closed...)
		outEnds = append(outEnds, len(outFlat))
	}
	if area < 0 {
		area = 0
	}
	return outFlat, outEnds, area
}

// openRing strips the duplicated closing vertex, if present.
func openRing(ring []float64) []float64 {
	n := len(ring)
	if n >= 4 && ring[0] == ring[n-2] && ring[1] == ring[n-1] {
		return ring[:n-2]
	}
	return ring
}

// clipRingConvex is the Sutherland–Hodgman intersection of a subject
// ring with a convex CCW clip ring. Both are open flat XY lists.
func clipRingConvex(subject, clip []float64) []float64 {
	output := subject
	clipOpen := openRing(clip)
	n := len(clipOpen)

	for i := 0; i < n; i += 2 {
		if len(output) == 0 {
			return nil
		}
		ax, ay := clipOpen[i], clipOpen[i+1]
		bx, by := clipOpen[(i+2)%n], clipOpen[(i+3)%n]

		input := output
		output = nil
		m := len(input)
		for j := 0; j < m; j += 2 {
			sx, sy := input[(j+m-2)%m], input[(j+m-1)%m]
			ex, ey := input[j], input[j+1]

			eIn := leftOf(ax, ay, bx, by, ex, ey)
			sIn := leftOf(ax, ay, bx, by, sx, sy)

			switch {
			case eIn && sIn:
				output = append(output, ex, ey)
			case eIn && !sIn:
				ix, iy := intersect(ax, ay, bx, by, sx, sy, ex, ey)
				output = append(output, ix, iy, ex, ey)
			case !eIn && sIn:
				ix, iy := intersect(ax, ay, bx, by, sx, sy, ex, ey)
				output = append(output, ix, iy)
			}
		}
	}
	return output
}

// leftOf reports whether point p is on or to the left of the directed
// edge a→b.
func leftOf(ax, ay, bx, by, px, py float64) bool {
	return (bx-ax)*(py-ay)-(by-ay)*(px-ax) >= 0
}

// intersect returns where segment s→e crosses the infinite line a→b.
func intersect(ax, ay, bx, by, sx, sy, ex, ey float64) (float64, float64) {
	dx, dy := bx-ax, by-ay
	rx, ry := ex-sx, ey-sy
	denom := rx*dy - ry*dx
	if denom == 0 {
		return ex, ey
	}
	t := ((ax-sx)*dy - (ay-sy)*dx) / denom
	return sx + t*rx, sy + t*ry
}

// signedArea is the shoelace area of an open flat XY ring, positive for
// CCW winding.
func signedArea(ring []float64) float64 {
	n := len(ring)
	if n < 6 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i += 2 {
		x1, y1 := ring[i], ring[i+1]
		x2, y2 := ring[(i+2)%n], ring[(i+3)%n]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}

// polygonArea computes shell area minus hole areas for one polygon's
// rings. start is the absolute flat-coords offset of the first ring.
func polygonArea(flat []float64, start int, ends []int) float64 {
	var area float64
	for i, end := range ends {
		ring := openRing(flat[start:end])
		start = end
		a := math.Abs(signedArea(ring))
		if i == 0 {
			area = a
		} else {
			area -= a
		}
	}
	if area < 0 {
		return 0
	}
	return area
}
