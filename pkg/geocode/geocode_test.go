package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns a canned result and counts calls.
type fakeProvider struct {
	name      string
	available bool
	result    *Result
	err       error
	calls     int
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Available() bool { return p.available }
func (p *fakeProvider) Geocode(context.Context, string) (*Result, error) {
	p.calls++
	return p.result, p.err
}

func matchedResult(lat, lon float64, source string) *Result {
	return &Result{Latitude: lat, Longitude: lon, Source: source, Matched: true}
}

func TestCascadeFirstProviderWins(t *testing.T) {
	first := &fakeProvider{name: "a", available: true, result: matchedResult(52.52, 13.405, "a")}
	second := &fakeProvider{name: "b", available: true, result: matchedResult(1, 1, "b")}

	c := NewCascadeClient([]Provider{first, second})
	r, err := c.Geocode(context.Background(), "Alexanderplatz 1, Berlin")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "a", r.Source)
	assert.Zero(t, second.calls)
}

func TestCascadeFallsThroughErrorsAndUnavailable(t *testing.T) {
	down := &fakeProvider{name: "down", available: false}
	failing := &fakeProvider{name: "failing", available: true, err: errors.New("boom")}
	working := &fakeProvider{name: "working", available: true, result: matchedResult(52.52, 13.405, "working")}

	c := NewCascadeClient([]Provider{down, failing, working})
	r, err := c.Geocode(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "working", r.Source)
	assert.Zero(t, down.calls)
	assert.Equal(t, 1, failing.calls)
}

func TestCascadeNoMatchIsNotAnError(t *testing.T) {
	miss := &fakeProvider{name: "miss", available: true, result: &Result{Matched: false, Source: "miss"}}

	c := NewCascadeClient([]Provider{miss})
	r, err := c.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, r.Matched)
}

func TestCascadeCachesPositiveAndNegative(t *testing.T) {
	hit := &fakeProvider{name: "hit", available: true, result: matchedResult(52.52, 13.405, "hit")}
	c := NewCascadeClient([]Provider{hit}, WithStore(NewMemoryStore(nil)))

	for i := 0; i < 3; i++ {
		r, err := c.Geocode(context.Background(), "Alexanderplatz 1")
		require.NoError(t, err)
		assert.True(t, r.Matched)
	}
	assert.Equal(t, 1, hit.calls)

	miss := &fakeProvider{name: "miss", available: true, result: &Result{Matched: false}}
	c = NewCascadeClient([]Provider{miss}, WithStore(NewMemoryStore(nil)))
	for i := 0; i < 3; i++ {
		r, err := c.Geocode(context.Background(), "Atlantis")
		require.NoError(t, err)
		assert.False(t, r.Matched)
	}
	assert.Equal(t, 1, miss.calls)
}

func TestCacheKeyNormalizes(t *testing.T) {
	assert.Equal(t, cacheKey("Alexanderplatz 1, Berlin"), cacheKey("  alexanderplatz   1,   BERLIN "))
	assert.NotEqual(t, cacheKey("Alexanderplatz 1"), cacheKey("Alexanderplatz 2"))
}

func TestBatchGeocodePreservesOrder(t *testing.T) {
	p := &fakeProvider{name: "p", available: true, result: matchedResult(52.52, 13.405, "p")}
	c := NewCascadeClient([]Provider{p}, WithBatchConcurrency(2))

	results, err := c.BatchGeocode(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Matched)
	}
}

func TestBatchGeocodeEmpty(t *testing.T) {
	c := NewCascadeClient(nil)
	results, err := c.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
