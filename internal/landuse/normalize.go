// Package landuse implements the land-use statistics pipeline: fanning
// wide multi-tag features out into (key, value) rows, clipping polygon
// rows to the metric catchment circle, and aggregating clipped areas
// into pie categories.
package landuse

import (
	"errors"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/geoproj"
	"github.com/relonav/navigator/internal/osm"
)

// ErrNoTagKeys signals that none of the requested tag keys exists in
// the fetched data: a taxonomy/filter mismatch the caller must surface
// rather than render an empty chart from.
var ErrNoTagKeys = errors.New("landuse: no requested tag key present in feature set")

// Row is one normalized (feature, tag key, tag value) triple. Geom is
// a reference to the source feature's geometry, never a mutated copy.
type Row struct {
	ID    osm.FeatureID
	Geom  geom.T
	CRS   geoproj.CRS
	Key   string
	Value string
	Name  string
}

// Normalize fans features out into one Row per (feature, key) pair with
// a non-empty value. Requested keys absent from the whole collection
// are skipped, not an error; they are returned for observability.
// ErrNoTagKeys is returned when no requested key survives restriction.
func Normalize(features []osm.Feature, tagKeys []string) (rows []Row, skipped []string, err error) {
	if len(features) == 0 {
		// Zero fetched features is a legitimate state (rural address);
		// the mismatch error is reserved for data that has tags, just
		// not the requested ones.
		return nil, nil, nil
	}

	present := make(map[string]bool)
	for _, f := range features {
		for _, key := range tagKeys {
			if _, ok := f.Tag(key); ok {
				present[key] = true
			}
		}
	}

	var kept []string
	for _, key := range tagKeys {
		if present[key] {
			kept = append(kept, key)
		} else {
			skipped = append(skipped, key)
		}
	}
	if len(kept) == 0 {
		return nil, skipped, ErrNoTagKeys
	}
	if len(skipped) > 0 {
		zap.L().Debug("landuse: tag keys absent from fetch", zap.Strings("skipped", skipped))
	}

	for _, f := range features {
		for _, key := range kept {
			value, ok := f.Tag(key)
			if !ok {
				continue
			}
			rows = append(rows, Row{
				ID:    f.ID,
				Geom:  f.Geom,
				CRS:   f.CRS,
				Key:   key,
				Value: value,
				Name:  f.Name,
			})
		}
	}
	return rows, skipped, nil
}

// AreaRows returns the rows carrying polygonal geometry. The remainder
// is what point-type handling (markers, proximity) operates on.
func AreaRows(rows []Row) (area, other []Row) {
	for _, r := range rows {
		switch r.Geom.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
			area = append(area, r)
		default:
			other = append(other, r)
		}
	}
	return area, other
}
