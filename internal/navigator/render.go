package navigator

import (
	"strings"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/relonav/navigator/internal/landuse"
	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/internal/proximity"
	"github.com/relonav/navigator/internal/taxonomy"
	"github.com/relonav/navigator/internal/walkgraph"
)

// Marker is one styled map pin for a nearest-POI hit.
type Marker struct {
	Category  string  `json:"category"`
	Label     string  `json:"label"`
	Name      string  `json:"name,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Color     string  `json:"color,omitempty"`
	Icon      string  `json:"icon,omitempty"`
	DistanceM float64 `json:"distance_m"`
}

// Payload is the complete render-ready result handed to the external
// display layer.
type Payload struct {
	QueryID      string                      `json:"query_id"`
	Address      string                      `json:"address"`
	AddressFound bool                        `json:"address_found"`
	DisplayName  string                      `json:"display_name,omitempty"`
	Center       osm.Point                   `json:"center"`
	RadiusMeters float64                     `json:"radius_meters"`
	Categories   []landuse.CategoryAggregate `json:"categories"`
	Landuse      *geojson.FeatureCollection  `json:"landuse"`
	Proximity    []proximity.Result          `json:"proximity"`
	StreetGrades *geojson.FeatureCollection  `json:"street_grades,omitempty"`
	Markers      []Marker                    `json:"markers"`
}

var titleCaser = cases.Title(language.English)

// displayLabel turns a raw category or value into a popup label, e.g.
// "recreation_ground" becomes "Recreation Ground".
func displayLabel(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// BuildPayload flattens a Summary into the render payload.
func BuildPayload(summary *Summary, tx *taxonomy.Taxonomy) *Payload {
	p := &Payload{
		QueryID:      uuid.New().String(),
		Address:      summary.Address,
		AddressFound: summary.AddressFound,
		DisplayName:  summary.DisplayName,
		Center:       summary.Center,
		RadiusMeters: summary.RadiusMeters,
		Categories:   summary.Aggregates,
		Proximity:    summary.Proximity,
		Landuse:      &geojson.FeatureCollection{},
	}
	if !summary.AddressFound {
		return p
	}

	for _, row := range summary.Clipped {
		category, _ := tx.CategoryFor(row.Key, row.Value)
		p.Landuse.Features = append(p.Landuse.Features, &geojson.Feature{
			ID:       row.ID.String(),
			Geometry: row.Geom,
			Properties: map[string]any{
				"key":      row.Key,
				"value":    row.Value,
				"category": category,
				"area_m2":  row.AreaM2,
				"name":     row.Name,
			},
		})
	}

	p.Markers = buildMarkers(summary.Proximity, tx)
	p.StreetGrades = buildGradeLayer(summary.Graph)
	return p
}

func buildMarkers(results []proximity.Result, tx *taxonomy.Taxonomy) []Marker {
	var markers []Marker
	for _, r := range results {
		if !r.Present {
			continue
		}
		m := Marker{
			Category:  r.Category,
			Label:     displayLabel(r.Category),
			Name:      r.Name,
			Lat:       r.Lat,
			Lon:       r.Lon,
			DistanceM: r.DistanceM,
		}
		if selectors := tx.SelectorsFor([]string{r.Category}); len(selectors) > 0 {
			m.Color = selectors[0].Color
			m.Icon = selectors[0].Icon
		}
		markers = append(markers, m)
	}
	return markers
}

// buildGradeLayer emits one LineString feature per grade-annotated
// street edge for line-colored rendering. Nil when no edge carries a
// grade.
func buildGradeLayer(g *walkgraph.Graph) *geojson.FeatureCollection {
	if g == nil {
		return nil
	}
	var fc geojson.FeatureCollection
	for _, e := range g.Edges() {
		if e.GradePct == nil {
			continue
		}
		from, okF := g.Node(e.From)
		to, okT := g.Node(e.To)
		if !okF || !okT {
			continue
		}
		line := geom.NewLineStringFlat(geom.XY, []float64{from.Lon, from.Lat, to.Lon, to.Lat})
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: line,
			Properties: map[string]any{
				"grade_pct": *e.GradePct,
				"length_m":  e.LengthM,
			},
		})
	}
	if len(fc.Features) == 0 {
		return nil
	}
	return &fc
}
