package osm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/relonav/navigator/internal/cache"
	"github.com/relonav/navigator/internal/geoproj"
)

type countingSource struct {
	calls    int
	features []Feature
	err      error
}

func (s *countingSource) FeaturesNear(ctx context.Context, center Point, filter TagFilter, radiusMeters float64) ([]Feature, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.features, nil
}

func testFeature(ref int64) Feature {
	return Feature{
		ID:   FeatureID{Type: ElementNode, Ref: ref},
		Geom: geom.NewPointFlat(geom.XY, []float64{18.07, 59.33}),
		CRS:  geoproj.WGS84,
		Tags: map[string]string{"amenity": "cafe"},
	}
}

func TestFetcherMemoizes(t *testing.T) {
	src := &countingSource{features: []Feature{testFeature(1)}}
	f := NewFetcher(src, cache.NewMemory(8, time.Minute))

	center := Point{Lat: 59.33, Lon: 18.07}
	filter := TagFilter{"amenity": MatchAny()}

	first, err := f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)
	second, err := f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls, "second call should be served from cache")
	assert.Equal(t, first, second)
}

func TestFetcherKeyIncludesAllParameters(t *testing.T) {
	src := &countingSource{features: []Feature{testFeature(1)}}
	f := NewFetcher(src, cache.NewMemory(8, time.Minute))

	center := Point{Lat: 59.33, Lon: 18.07}
	filter := TagFilter{"amenity": MatchAny()}

	_, err := f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)
	_, err = f.FeaturesNear(context.Background(), center, filter, 1000)
	require.NoError(t, err)
	_, err = f.FeaturesNear(context.Background(), Point{Lat: 59.34, Lon: 18.07}, filter, 500)
	require.NoError(t, err)
	_, err = f.FeaturesNear(context.Background(), center, TagFilter{"shop": MatchAny()}, 500)
	require.NoError(t, err)

	assert.Equal(t, 4, src.calls)
}

func TestFetcherEquivalentFiltersShareEntry(t *testing.T) {
	src := &countingSource{features: []Feature{testFeature(1)}}
	f := NewFetcher(src, cache.NewMemory(8, time.Minute))

	center := Point{Lat: 59.33, Lon: 18.07}

	_, err := f.FeaturesNear(context.Background(), center, TagFilter{
		"amenity": MatchValues("cafe", "bar"),
		"shop":    MatchAny(),
	}, 500)
	require.NoError(t, err)
	_, err = f.FeaturesNear(context.Background(), center, TagFilter{
		"shop":    MatchAny(),
		"amenity": MatchValues("bar", "cafe"),
	}, 500)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
}

func TestFetcherCachesEmptyResult(t *testing.T) {
	src := &countingSource{}
	f := NewFetcher(src, cache.NewMemory(8, time.Minute))

	center := Point{Lat: 0, Lon: 0}
	filter := TagFilter{"building": MatchAny()}

	features, err := f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)
	assert.Empty(t, features)

	_, err = f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "empty result is a valid collection and should be cached")
}

func TestFetcherDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("connection refused")}
	f := NewFetcher(src, cache.NewMemory(8, time.Minute))

	center := Point{Lat: 59.33, Lon: 18.07}
	filter := TagFilter{"amenity": MatchAny()}

	_, err := f.FeaturesNear(context.Background(), center, filter, 500)
	require.Error(t, err)
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))

	_, err = f.FeaturesNear(context.Background(), center, filter, 500)
	require.Error(t, err)
	assert.Equal(t, 2, src.calls, "failures must not be memoized")
}

func TestFetcherRejectsNonPositiveRadius(t *testing.T) {
	src := &countingSource{}
	f := NewFetcher(src, cache.Noop{})

	_, err := f.FeaturesNear(context.Background(), Point{}, TagFilter{"building": MatchAny()}, 0)
	require.Error(t, err)
	assert.Equal(t, 0, src.calls)
}

func TestFetcherInvalidate(t *testing.T) {
	src := &countingSource{features: []Feature{testFeature(1)}}
	f := NewFetcher(src, cache.NewMemory(8, time.Minute))

	center := Point{Lat: 59.33, Lon: 18.07}
	filter := TagFilter{"amenity": MatchAny()}

	_, err := f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)
	f.Invalidate()
	_, err = f.FeaturesNear(context.Background(), center, filter, 500)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
