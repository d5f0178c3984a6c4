package osm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/cache"
)

// Fetcher memoizes a Source by the exact query tuple. Cached feature
// slices are shared and must not be mutated by callers.
type Fetcher struct {
	source Source
	cache  cache.Cache
}

// NewFetcher wraps a Source with the given cache.
func NewFetcher(source Source, c cache.Cache) *Fetcher {
	if c == nil {
		c = cache.Noop{}
	}
	return &Fetcher{source: source, cache: c}
}

// FeaturesNear fetches features, consulting the cache first. The cache
// key is order-independent in the tag filter, so logically equal
// filters hit the same entry.
func (f *Fetcher) FeaturesNear(ctx context.Context, center Point, filter TagFilter, radiusMeters float64) ([]Feature, error) {
	if radiusMeters <= 0 {
		return nil, &FetchError{Err: errors.New("radius must be positive")}
	}

	key := fetchKey(center, filter, radiusMeters)
	if v, ok := f.cache.Get(key); ok {
		features, cast := v.([]Feature)
		if cast {
			zap.L().Debug("feature cache hit", zap.String("key", key), zap.Int("features", len(features)))
			return features, nil
		}
	}

	features, err := f.source.FeaturesNear(ctx, center, filter, radiusMeters)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FetchError{Err: err}
	}

	// Zero results is a valid empty collection and is cached like any other.
	f.cache.Put(key, features)
	return features, nil
}

// Invalidate drops all memoized fetch results.
func (f *Fetcher) Invalidate() {
	f.cache.Invalidate("features/")
}

func fetchKey(center Point, filter TagFilter, radiusMeters float64) string {
	return fmt.Sprintf("features/%.6f,%.6f/%.0f/%s", center.Lat, center.Lon, radiusMeters, filter.CanonicalKey())
}
