// Package elevation looks elevations up from a batched HTTP API and
// annotates the street graph with node elevations and edge grades.
// Elevation is a best-effort supplementary layer: batch failures
// degrade to missing values, never to a failed query.
package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/internal/resilience"
	"github.com/relonav/navigator/internal/walkgraph"
)

// maxBatchSize is the provider's cap on locations per request.
const maxBatchSize = 100

// BatchRange records one failed batch as a half-open index range into
// the request's point list.
type BatchRange struct {
	Start int
	End   int
	Err   error
}

// Batched carries per-point elevations in request order, nil where the
// covering batch failed, plus the failed ranges so the caller can
// decide whether median-fill is acceptable.
type Batched struct {
	Elevations []*float64
	Failed     []BatchRange
}

// Client talks to an open-elevation style lookup endpoint.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	batchSize int
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// BatchSize caps locations per request, clamped to the provider
	// maximum of 100.
	BatchSize int
	// RatePerSec spaces batch requests out; batches are always issued
	// strictly sequentially.
	RatePerSec float64
}

func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BatchSize <= 0 || opts.BatchSize > maxBatchSize {
		opts.BatchSize = maxBatchSize
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		batchSize: opts.BatchSize,
	}
}

type lookupResponse struct {
	Results []struct {
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup fetches elevations for all points, batch by batch, strictly
// sequentially. A failed batch leaves its range nil and is recorded in
// Failed; only context cancellation aborts the loop.
func (c *Client) Lookup(ctx context.Context, points []osm.Point) (Batched, error) {
	out := Batched{Elevations: make([]*float64, len(points))}

	for start := 0; start < len(points); start += c.batchSize {
		end := start + c.batchSize
		if end > len(points) {
			end = len(points)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "elevation: wait for rate limit")
		}

		values, err := c.lookupBatch(ctx, points[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return out, eris.Wrap(ctx.Err(), "elevation: lookup canceled")
			}
			zap.L().Warn("elevation batch failed",
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Error(err),
			)
			out.Failed = append(out.Failed, BatchRange{Start: start, End: end, Err: err})
			continue
		}
		for i, v := range values {
			v := v
			out.Elevations[start+i] = &v
		}
	}
	return out, nil
}

func (c *Client) lookupBatch(ctx context.Context, points []osm.Point) ([]float64, error) {
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]float64, error) {
		locs := make([]string, len(points))
		for i, p := range points {
			locs[i] = fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
		}
		u := c.baseURL + "/api/v1/lookup?locations=" + url.QueryEscape(strings.Join(locs, "|"))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, eris.Wrap(err, "elevation: build request")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			err := eris.Errorf("elevation: unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var parsed lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, eris.Wrap(err, "elevation: decode response")
		}
		if len(parsed.Results) != len(points) {
			return nil, eris.Errorf("elevation: got %d results for %d locations", len(parsed.Results), len(points))
		}

		values := make([]float64, len(parsed.Results))
		for i, r := range parsed.Results {
			values[i] = r.Elevation
		}
		return values, nil
	})
}

// FillMedian replaces nil elevations with the median of the present
// ones, in place, and reports how many were filled. With no data at
// all there is nothing to fill from and the slice is left untouched.
func FillMedian(elevs []*float64) int {
	present := make([]float64, 0, len(elevs))
	for _, e := range elevs {
		if e != nil {
			present = append(present, *e)
		}
	}
	if len(present) == 0 {
		return 0
	}
	sort.Float64s(present)
	mid := len(present) / 2
	median := present[mid]
	if len(present)%2 == 0 {
		median = (present[mid-1] + present[mid]) / 2
	}

	filled := 0
	for i, e := range elevs {
		if e == nil {
			m := median
			elevs[i] = &m
			filled++
		}
	}
	return filled
}

// AnnotateGraph looks up elevations for every graph node, median-fills
// the gaps, and computes edge grades. Best effort: a graph with no
// successful lookups is returned unannotated without error.
func AnnotateGraph(ctx context.Context, c *Client, g *walkgraph.Graph) error {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	points := make([]osm.Point, len(nodes))
	for i, n := range nodes {
		points[i] = osm.Point{Lat: n.Lat, Lon: n.Lon}
	}

	batched, err := c.Lookup(ctx, points)
	if err != nil {
		return err
	}
	filled := FillMedian(batched.Elevations)
	for i, n := range nodes {
		n.Elevation = batched.Elevations[i]
	}
	annotated := g.AnnotateGrades()

	zap.L().Debug("elevation annotated",
		zap.Int("nodes", len(nodes)),
		zap.Int("median_filled", filled),
		zap.Int("failed_batches", len(batched.Failed)),
		zap.Int("graded_edges", annotated),
	)
	return nil
}
