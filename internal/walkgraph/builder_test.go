package walkgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relonav/navigator/internal/osm"
)

func TestBuildNetworkQuery(t *testing.T) {
	q := buildNetworkQuery(osm.Point{Lat: 52.52, Lon: 13.405}, 500)

	assert.Contains(t, q, "[out:json];")
	assert.Contains(t, q, `way["highway"]`)
	assert.Contains(t, q, "(around:500,52.520000,13.405000)")
	assert.Contains(t, q, `["foot"!~"^no$"]`)
	assert.Contains(t, q, "motorway|motorway_link")
	assert.Contains(t, q, "out skel qt;")
}
