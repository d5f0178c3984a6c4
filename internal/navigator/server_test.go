package navigator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/pkg/geocode"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	features := &fakeFeatures{landuse: []osm.Feature{smallSquare()}, pois: []osm.Feature{cafeNode()}}
	nav := testNavigator(t, matchedGeocoder(), features, &fakeNetwork{graph: testStreetGraph()}, nil)
	srv := httptest.NewServer(Handler(nav, navigatorTaxonomy(t)))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerQuery(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/query?address=Alexanderplatz+1&radius=500")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var payload Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.AddressFound)
	assert.NotEmpty(t, payload.QueryID)
	require.Len(t, payload.Categories, 1)
	assert.Equal(t, "Green space", payload.Categories[0].Category)
	require.Len(t, payload.Markers, 1)
	assert.Equal(t, "Corner Café", payload.Markers[0].Name)
}

func TestHandlerMissingAddress(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerBadRadius(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/query?address=x&radius=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerUnmatchedAddress(t *testing.T) {
	nav := testNavigator(t,
		&fakeGeocoder{result: &geocode.Result{Matched: false}},
		&fakeFeatures{},
		&fakeNetwork{graph: testStreetGraph()},
		nil,
	)
	srv := httptest.NewServer(Handler(nav, navigatorTaxonomy(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/query?address=Atlantis")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerCategories(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/categories")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"Food"}, body.Categories)
}

func TestHandlerHealthz(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
