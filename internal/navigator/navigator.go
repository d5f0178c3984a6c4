// Package navigator orchestrates one relocation query end to end:
// geocode the address, fetch and classify surrounding land use, clip
// it to the catchment circle, and walk the street graph to the nearest
// points of interest.
package navigator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/landuse"
	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/internal/proximity"
	"github.com/relonav/navigator/internal/taxonomy"
	"github.com/relonav/navigator/internal/walkgraph"
	"github.com/relonav/navigator/pkg/geocode"
)

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

// FeatureProvider fetches tagged map features around a point.
type FeatureProvider interface {
	FeaturesNear(ctx context.Context, center osm.Point, filter osm.TagFilter, radiusMeters float64) ([]osm.Feature, error)
}

// NetworkProvider fetches the walkable street graph around a point.
type NetworkProvider interface {
	NetworkNear(ctx context.Context, center osm.Point, radiusMeters float64) (*walkgraph.Graph, error)
}

// GradeAnnotator adds elevations and edge grades to a street graph.
type GradeAnnotator interface {
	AnnotateGraph(ctx context.Context, g *walkgraph.Graph) error
}

// Query is one user request.
type Query struct {
	Address       string   `json:"address"`
	RadiusMeters  float64  `json:"radius_meters"`
	Categories    []string `json:"categories,omitempty"`
	WithElevation bool     `json:"with_elevation,omitempty"`
}

// Summary is the display-ready result of one query. When AddressFound
// is false only Address is meaningful: geocoding missed and the
// pipeline did no further work.
type Summary struct {
	Address      string
	AddressFound bool
	DisplayName  string
	Center       osm.Point
	RadiusMeters float64

	Aggregates  []landuse.CategoryAggregate
	Clipped     []landuse.ClippedRow
	Proximity   []proximity.Result
	Graph       *walkgraph.Graph
	SkippedKeys []string
}

// Options bound query parameters.
type Options struct {
	LanduseKeys    []string
	DefaultRadiusM float64
	MinRadiusM     float64
	MaxRadiusM     float64
}

// Navigator wires the pipeline's collaborators together.
type Navigator struct {
	geocoder Geocoder
	features FeatureProvider
	network  NetworkProvider
	grades   GradeAnnotator
	tx       *taxonomy.Taxonomy
	opts     Options
}

func New(geocoder Geocoder, features FeatureProvider, network NetworkProvider, grades GradeAnnotator, tx *taxonomy.Taxonomy, opts Options) *Navigator {
	if len(opts.LanduseKeys) == 0 {
		opts.LanduseKeys = []string{"landuse", "natural", "leisure", "amenity", "shop", "building"}
	}
	if opts.DefaultRadiusM <= 0 {
		opts.DefaultRadiusM = 500
	}
	if opts.MinRadiusM <= 0 {
		opts.MinRadiusM = 100
	}
	if opts.MaxRadiusM <= 0 {
		opts.MaxRadiusM = 3000
	}
	return &Navigator{
		geocoder: geocoder,
		features: features,
		network:  network,
		grades:   grades,
		tx:       tx,
		opts:     opts,
	}
}

// clampRadius folds a requested radius into the configured bounds.
func (n *Navigator) clampRadius(r float64) float64 {
	if r <= 0 {
		return n.opts.DefaultRadiusM
	}
	if r < n.opts.MinRadiusM {
		return n.opts.MinRadiusM
	}
	if r > n.opts.MaxRadiusM {
		return n.opts.MaxRadiusM
	}
	return r
}

// Run executes one query synchronously: geocode, land-use pipeline,
// proximity pipeline, optional elevation grades.
func (n *Navigator) Run(ctx context.Context, q Query) (*Summary, error) {
	radius := n.clampRadius(q.RadiusMeters)
	summary := &Summary{Address: q.Address, RadiusMeters: radius}

	loc, err := n.geocoder.Geocode(ctx, q.Address)
	if err != nil {
		return nil, eris.Wrap(err, "navigator: geocode address")
	}
	if !loc.Matched {
		zap.L().Info("address not found", zap.String("address", q.Address))
		return summary, nil
	}
	summary.AddressFound = true
	summary.DisplayName = loc.DisplayName
	summary.Center = osm.Point{Lat: loc.Latitude, Lon: loc.Longitude}

	if err := n.runLanduse(ctx, summary, radius); err != nil {
		return nil, err
	}
	if err := n.runProximity(ctx, summary, q, radius); err != nil {
		return nil, err
	}

	if q.WithElevation && n.grades != nil && summary.Graph != nil {
		// Annotate a copy: the network provider memoizes graphs and the
		// cached value must stay immutable across concurrent queries.
		summary.Graph = summary.Graph.Clone()
		// Elevation is a supplementary layer: a failed lookup keeps the
		// rest of the summary intact.
		if err := n.grades.AnnotateGraph(ctx, summary.Graph); err != nil {
			zap.L().Warn("elevation annotation failed", zap.Error(err))
		}
	}

	zap.L().Info("query complete",
		zap.String("address", q.Address),
		zap.Float64("radius_m", radius),
		zap.Int("categories", len(summary.Aggregates)),
		zap.Int("proximity_rows", len(summary.Proximity)),
	)
	return summary, nil
}

func (n *Navigator) runLanduse(ctx context.Context, summary *Summary, radius float64) error {
	filter := make(osm.TagFilter, len(n.opts.LanduseKeys))
	for _, key := range n.opts.LanduseKeys {
		filter[key] = osm.MatchAny()
	}

	features, err := n.features.FeaturesNear(ctx, summary.Center, filter, radius)
	if err != nil {
		return eris.Wrap(err, "navigator: fetch land-use features")
	}

	rows, skipped, err := landuse.Normalize(features, n.opts.LanduseKeys)
	summary.SkippedKeys = skipped
	if err != nil {
		if errors.Is(err, landuse.ErrNoTagKeys) {
			// Data present but none of the configured keys: a taxonomy
			// mismatch the user must see, not an empty chart.
			return eris.Wrap(err, "navigator: normalize land-use features")
		}
		return err
	}

	clipped, err := landuse.Clip(rows, summary.Center, radius)
	if err != nil {
		return eris.Wrap(err, "navigator: clip land-use polygons")
	}
	summary.Clipped = clipped
	summary.Aggregates = landuse.Aggregate(clipped, n.tx)
	return nil
}

func (n *Navigator) runProximity(ctx context.Context, summary *Summary, q Query, radius float64) error {
	graph, err := n.network.NetworkNear(ctx, summary.Center, radius)
	if err != nil {
		return eris.Wrap(err, "navigator: fetch street network")
	}
	summary.Graph = graph

	selectors := n.tx.SelectorsFor(q.Categories)
	filter := taxonomy.TagFilter(selectors)
	if len(filter) == 0 {
		return nil
	}

	features, err := n.features.FeaturesNear(ctx, summary.Center, filter, radius)
	if err != nil {
		return eris.Wrap(err, "navigator: fetch POI features")
	}

	candidates, _, err := landuse.Normalize(features, filter.Keys())
	if err != nil && !errors.Is(err, landuse.ErrNoTagKeys) {
		return eris.Wrap(err, "navigator: normalize POI features")
	}

	results, err := proximity.LocateNearest(graph, summary.Center, q.Categories, candidates, n.tx)
	if err != nil {
		return eris.Wrap(err, "navigator: locate nearest POIs")
	}
	summary.Proximity = results
	return nil
}
