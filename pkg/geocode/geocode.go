// Package geocode resolves street addresses to geographic coordinates
// through pluggable providers, with persistent result caching. "Not
// found" is a normal outcome carried on the Result, never an error.
package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result holds the geocoding output for one address.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
	Source      string  `json:"source"`
	Matched     bool    `json:"matched"`
}

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Available() bool
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Store caches geocode results across queries and process restarts.
type Store interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Put(ctx context.Context, key string, result *Result) error
}

// cacheKey normalizes an address and hashes it so the cache is
// insensitive to case and whitespace variations.
func cacheKey(address string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(address), " "))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// CascadeClient tries providers in order until one matches. Results,
// including negative ones, are cached so repeated queries for the same
// address never hit a provider twice.
type CascadeClient struct {
	providers        []Provider
	store            Store
	batchConcurrency int
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithStore sets the result cache. Without one the client goes to the
// providers every time.
func WithStore(store Store) CascadeOption {
	return func(c *CascadeClient) { c.store = store }
}

// WithBatchConcurrency caps parallel lookups in BatchGeocode.
func WithBatchConcurrency(n int) CascadeOption {
	return func(c *CascadeClient) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// NewCascadeClient creates a client that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves one address. An unmatched address returns
// Matched=false with a nil error.
func (c *CascadeClient) Geocode(ctx context.Context, address string) (*Result, error) {
	key := cacheKey(address)

	if c.store != nil {
		cached, ok, err := c.store.Get(ctx, key)
		if err != nil {
			zap.L().Debug("geocode cache read failed", zap.Error(err))
		} else if ok {
			zap.L().Debug("geocode cache hit",
				zap.String("key", key[:12]),
				zap.Bool("matched", cached.Matched),
			)
			return cached, nil
		}
	}

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, address)
		if err != nil {
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			c.cache(ctx, key, result)
			return result, nil
		}
	}

	// All providers missed. Negative results are cached too: asking
	// again will not make the address exist.
	noMatch := &Result{Matched: false, Source: "cascade"}
	c.cache(ctx, key, noMatch)
	return noMatch, nil
}

// BatchGeocode resolves addresses in parallel, one Result per input in
// input order. Individual failures yield unmatched results, not errors.
func (c *CascadeClient) BatchGeocode(ctx context.Context, addresses []string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	results := make([]Result, len(addresses))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, addr := range addresses {
		i, addr := i, addr
		eg.Go(func() error {
			r, err := c.Geocode(gCtx, addr)
			if err != nil || r == nil {
				results[i] = Result{Matched: false, Source: "cascade"}
				return nil //nolint:nilerr // individual failures don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	_ = eg.Wait()
	return results, nil
}

func (c *CascadeClient) cache(ctx context.Context, key string, result *Result) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, key, result); err != nil {
		zap.L().Debug("geocode cache write failed", zap.Error(err))
	}
}

// String implements fmt.Stringer for logging.
func (r *Result) String() string {
	if !r.Matched {
		return "geocode: no match"
	}
	return fmt.Sprintf("%.6f,%.6f (%s)", r.Latitude, r.Longitude, r.Source)
}
