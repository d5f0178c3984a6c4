package osm

import (
	"testing"

	"github.com/serjvanilla/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestBuildAroundQuery(t *testing.T) {
	filter := TagFilter{
		"landuse": MatchAny(),
		"amenity": MatchValues("cafe", "bar"),
	}
	query := buildAroundQuery(Point{Lat: 59.3327, Lon: 18.0656}, filter, 500)

	assert.Contains(t, query, "[out:json];")
	assert.Contains(t, query, `nwr["amenity"~"^(bar|cafe)$"](around:500,59.332700,18.065600);`)
	assert.Contains(t, query, `nwr["landuse"](around:500,59.332700,18.065600);`)
	assert.Contains(t, query, "out body;")
	// Key order in the query must be deterministic.
	assert.Equal(t, query, buildAroundQuery(Point{Lat: 59.3327, Lon: 18.0656}, filter, 500))
}

func newTestNode(id int64, lat, lon float64, tags map[string]string) *overpass.Node {
	n := &overpass.Node{}
	n.ID = id
	n.Lat = lat
	n.Lon = lon
	n.Tags = tags
	return n
}

func newTestWay(id int64, tags map[string]string, nodes ...*overpass.Node) *overpass.Way {
	w := &overpass.Way{}
	w.ID = id
	w.Tags = tags
	w.Nodes = nodes
	return w
}

func TestConvertResultNodes(t *testing.T) {
	result := &overpass.Result{
		Nodes: map[int64]*overpass.Node{
			1: newTestNode(1, 59.33, 18.07, map[string]string{"amenity": "cafe", "name": "Kafé Å"}),
			2: newTestNode(2, 59.34, 18.08, nil), // untagged way member
		},
	}

	features := convertResult(result, TagFilter{"amenity": MatchAny()})
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, FeatureID{Type: ElementNode, Ref: 1}, f.ID)
	assert.Equal(t, "Kafé Å", f.Name)
	pt, ok := f.Geom.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, 18.07, pt.X(), 1e-9)
	assert.InDelta(t, 59.33, pt.Y(), 1e-9)
}

func TestConvertResultClosedWayBecomesPolygon(t *testing.T) {
	n1 := newTestNode(1, 59.330, 18.070, nil)
	n2 := newTestNode(2, 59.330, 18.071, nil)
	n3 := newTestNode(3, 59.331, 18.071, nil)

	result := &overpass.Result{
		Ways: map[int64]*overpass.Way{
			10: newTestWay(10, map[string]string{"building": "yes"}, n1, n2, n3, n1),
		},
	}

	features := convertResult(result, TagFilter{"building": MatchAny()})
	require.Len(t, features, 1)
	assert.Equal(t, FeatureID{Type: ElementWay, Ref: 10}, features[0].ID)
	_, ok := features[0].Geom.(*geom.Polygon)
	assert.True(t, ok, "closed building way should become a polygon")
}

func TestConvertResultClosedHighwayStaysLine(t *testing.T) {
	n1 := newTestNode(1, 59.330, 18.070, nil)
	n2 := newTestNode(2, 59.330, 18.071, nil)
	n3 := newTestNode(3, 59.331, 18.071, nil)

	result := &overpass.Result{
		Ways: map[int64]*overpass.Way{
			10: newTestWay(10, map[string]string{"highway": "residential"}, n1, n2, n3, n1),
		},
	}

	features := convertResult(result, TagFilter{"highway": MatchAny()})
	require.Len(t, features, 1)
	_, ok := features[0].Geom.(*geom.LineString)
	assert.True(t, ok, "closed roundabout should stay a linestring")
}

func TestConvertResultOpenWayBecomesLine(t *testing.T) {
	n1 := newTestNode(1, 59.330, 18.070, nil)
	n2 := newTestNode(2, 59.330, 18.071, nil)

	result := &overpass.Result{
		Ways: map[int64]*overpass.Way{
			10: newTestWay(10, map[string]string{"natural": "tree_row"}, n1, n2),
		},
	}

	features := convertResult(result, TagFilter{"natural": MatchAny()})
	require.Len(t, features, 1)
	_, ok := features[0].Geom.(*geom.LineString)
	assert.True(t, ok)
}

func TestConvertResultMultipolygonRelation(t *testing.T) {
	// Outer ring split across two open ways, plus one closed inner ring.
	n1 := newTestNode(1, 0.0, 0.0, nil)
	n2 := newTestNode(2, 0.0, 1.0, nil)
	n3 := newTestNode(3, 1.0, 1.0, nil)
	n4 := newTestNode(4, 1.0, 0.0, nil)
	outerA := newTestWay(10, nil, n1, n2, n3)
	outerB := newTestWay(11, nil, n3, n4, n1)

	h1 := newTestNode(5, 0.25, 0.25, nil)
	h2 := newTestNode(6, 0.25, 0.75, nil)
	h3 := newTestNode(7, 0.75, 0.75, nil)
	h4 := newTestNode(8, 0.75, 0.25, nil)
	inner := newTestWay(12, nil, h1, h2, h3, h4, h1)

	rel := &overpass.Relation{}
	rel.ID = 100
	rel.Tags = map[string]string{"type": "multipolygon", "landuse": "forest"}
	memberOuterA := overpass.RelationMember{Way: outerA, Role: "outer"}
	memberOuterB := overpass.RelationMember{Way: outerB, Role: "outer"}
	memberInner := overpass.RelationMember{Way: inner, Role: "inner"}
	rel.Members = []overpass.RelationMember{memberOuterA, memberOuterB, memberInner}

	result := &overpass.Result{
		Ways: map[int64]*overpass.Way{
			10: outerA, 11: outerB, 12: inner,
		},
		Relations: map[int64]*overpass.Relation{100: rel},
	}

	features := convertResult(result, TagFilter{"landuse": MatchAny()})
	require.Len(t, features, 1, "member ways must not be emitted standalone")

	f := features[0]
	assert.Equal(t, FeatureID{Type: ElementRelation, Ref: 100}, f.ID)
	mp, ok := f.Geom.(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings(), "inner ring should become a hole")
}

func TestConvertResultUnclosableRelationSkipped(t *testing.T) {
	n1 := newTestNode(1, 0.0, 0.0, nil)
	n2 := newTestNode(2, 0.0, 1.0, nil)
	n3 := newTestNode(3, 1.0, 1.0, nil)
	dangling := newTestWay(10, nil, n1, n2, n3)

	rel := &overpass.Relation{}
	rel.ID = 100
	rel.Tags = map[string]string{"type": "multipolygon", "landuse": "forest"}
	rel.Members = []overpass.RelationMember{{Way: dangling, Role: "outer"}}

	result := &overpass.Result{
		Ways:      map[int64]*overpass.Way{10: dangling},
		Relations: map[int64]*overpass.Relation{100: rel},
	}

	features := convertResult(result, TagFilter{"landuse": MatchAny()})
	assert.Empty(t, features)
}

func TestRingAssemblyReversesSegments(t *testing.T) {
	// Second segment runs in the opposite direction and must be reversed
	// during stitching.
	n1 := newTestNode(1, 0.0, 0.0, nil)
	n2 := newTestNode(2, 0.0, 1.0, nil)
	n3 := newTestNode(3, 1.0, 1.0, nil)
	segA := newTestWay(10, nil, n1, n2, n3)
	segB := newTestWay(11, nil, n1, n3) // endpoints reversed relative to segA

	rings := assembleRings([]*overpass.Way{segA, segB})
	require.Len(t, rings, 1)
	assert.True(t, ringClosed(rings[0]))
}
