package walkgraph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relonav/navigator/internal/cache"
	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/internal/resilience"
)

// nonWalkable excludes way classes a pedestrian cannot use from the
// network query.
const nonWalkable = "motorway|motorway_link|trunk|trunk_link|construction|proposed|raceway"

// OverpassBuilder fetches the pedestrian street network around a point
// from an Overpass API endpoint.
type OverpassBuilder struct {
	client  *overpass.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	cache   cache.Cache
}

// BuilderOptions configures an OverpassBuilder.
type BuilderOptions struct {
	Endpoint   string
	Timeout    time.Duration
	RatePerSec float64
	MaxRetries int
	Cache      cache.Cache
}

func NewOverpassBuilder(opts BuilderOptions) *OverpassBuilder {
	if opts.Timeout == 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.Cache == nil {
		opts.Cache = cache.Noop{}
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	client := overpass.NewWithSettings(opts.Endpoint, 1, httpClient)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.OnRetry = resilience.RetryLogger("overpass", "network")

	return &OverpassBuilder{
		client:  &client,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		retry:   retry,
		cache:   opts.Cache,
	}
}

// NetworkNear fetches walkable ways around center and assembles the
// street graph. Results are memoized per rounded center and radius.
func (b *OverpassBuilder) NetworkNear(ctx context.Context, center osm.Point, radiusMeters float64) (*Graph, error) {
	if radiusMeters <= 0 {
		return nil, eris.Errorf("walkgraph: radius must be positive, got %g", radiusMeters)
	}

	key := fmt.Sprintf("walkgraph/%.6f,%.6f/%.0f", center.Lat, center.Lon, radiusMeters)
	if cached, ok := b.cache.Get(key); ok {
		return cached.(*Graph), nil
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &osm.FetchError{Err: err}
	}

	query := buildNetworkQuery(center, radiusMeters)
	result, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) (overpass.Result, error) {
		return b.client.Query(query)
	})
	if err != nil {
		return nil, &osm.FetchError{Err: err}
	}

	graph := FromWays(result.Ways)
	zap.L().Debug("street network fetched",
		zap.Float64("lat", center.Lat),
		zap.Float64("lon", center.Lon),
		zap.Float64("radius_m", radiusMeters),
		zap.Int("nodes", graph.NumNodes()),
		zap.Int("edges", graph.NumEdges()),
	)

	b.cache.Put(key, graph)
	return graph, nil
}

// Invalidate drops all memoized graphs.
func (b *OverpassBuilder) Invalidate() {
	b.cache.Invalidate("walkgraph/")
}

func buildNetworkQuery(center osm.Point, radiusMeters float64) string {
	return fmt.Sprintf(
		"[out:json];\nway[\"highway\"][\"highway\"!~\"^(%s)$\"][\"area\"!~\"^yes$\"][\"foot\"!~\"^no$\"](around:%.0f,%.6f,%.6f);\nout body;\n>;\nout skel qt;\n",
		nonWalkable, radiusMeters, center.Lat, center.Lon,
	)
}

// FromWays assembles a graph from Overpass ways: every way node becomes
// a graph node, every consecutive node pair an edge weighted by its
// haversine length. Shared node IDs stitch ways into one network.
func FromWays(ways map[int64]*overpass.Way) *Graph {
	g := New()
	for _, way := range ways {
		if way == nil {
			continue
		}
		for _, n := range way.Nodes {
			if n == nil {
				continue
			}
			g.AddNode(n.ID, n.Lat, n.Lon)
		}
	}
	for _, way := range ways {
		if way == nil {
			continue
		}
		for i := 1; i < len(way.Nodes); i++ {
			a, b := way.Nodes[i-1], way.Nodes[i]
			if a == nil || b == nil {
				continue
			}
			g.AddEdge(a.ID, b.ID, 0)
		}
	}
	return g
}
