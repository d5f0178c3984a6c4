package walkgraph

import (
	"testing"

	"github.com/serjvanilla/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridGraph builds a 3-node L shape with fixed edge lengths:
//
//	1 --100m-- 2 --50m-- 3
func gridGraph() *Graph {
	g := New()
	g.AddNode(1, 52.5200, 13.4050)
	g.AddNode(2, 52.5209, 13.4050)
	g.AddNode(3, 52.5209, 13.4057)
	g.AddEdge(1, 2, 100)
	g.AddEdge(2, 3, 50)
	return g
}

func TestShortestPathLength(t *testing.T) {
	g := gridGraph()

	d, err := g.ShortestPathLength(1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 150, d, 1e-9)

	// Undirected: same distance back.
	d, err = g.ShortestPathLength(3, 1)
	require.NoError(t, err)
	assert.InDelta(t, 150, d, 1e-9)
}

func TestShortestPathPrefersLighterRoute(t *testing.T) {
	g := gridGraph()
	g.AddNode(4, 52.5205, 13.4060)
	g.AddEdge(1, 4, 10)
	g.AddEdge(4, 3, 20)

	d, err := g.ShortestPathLength(1, 3)
	require.NoError(t, err)
	assert.InDelta(t, 30, d, 1e-9)
}

func TestShortestPathSameNode(t *testing.T) {
	g := gridGraph()
	d, err := g.ShortestPathLength(2, 2)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestShortestPathDisconnected(t *testing.T) {
	g := gridGraph()
	g.AddNode(99, 52.53, 13.41)

	_, err := g.ShortestPathLength(1, 99)
	require.ErrorIs(t, err, ErrNoPath)

	_, err = g.ShortestPathLength(1, 12345)
	require.ErrorIs(t, err, ErrNoPath)
}

func TestNearestNode(t *testing.T) {
	g := gridGraph()

	n, err := g.NearestNode(52.5201, 13.4050)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.ID)

	n, err = g.NearestNode(52.5209, 13.4056)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n.ID)
}

func TestNearestNodeEmptyGraph(t *testing.T) {
	_, err := New().NearestNode(52.52, 13.405)
	require.ErrorIs(t, err, ErrEmptyGraph)
}

func TestAddEdgeIgnoresUnknownAndSelfLoops(t *testing.T) {
	g := New()
	g.AddNode(1, 52.52, 13.405)
	g.AddEdge(1, 2, 100) // node 2 not registered
	g.AddEdge(1, 1, 100)
	assert.Zero(t, g.NumEdges())
}

func TestAddEdgeDefaultsToHaversineLength(t *testing.T) {
	g := New()
	g.AddNode(1, 52.5200, 13.4050)
	g.AddNode(2, 52.5209, 13.4050) // ~100m north
	g.AddEdge(1, 2, 0)

	require.Equal(t, 1, g.NumEdges())
	assert.InDelta(t, 100, g.Edges()[0].LengthM, 2)
}

func TestFromWaysStitchesSharedNodes(t *testing.T) {
	n1 := &overpass.Node{}
	n1.ID, n1.Lat, n1.Lon = 1, 52.5200, 13.4050
	n2 := &overpass.Node{}
	n2.ID, n2.Lat, n2.Lon = 2, 52.5209, 13.4050
	n3 := &overpass.Node{}
	n3.ID, n3.Lat, n3.Lon = 3, 52.5209, 13.4065

	w1 := &overpass.Way{}
	w1.ID = 10
	w1.Nodes = []*overpass.Node{n1, n2}
	w2 := &overpass.Way{}
	w2.ID = 11
	w2.Nodes = []*overpass.Node{n2, n3}

	g := FromWays(map[int64]*overpass.Way{10: w1, 11: w2})
	require.Equal(t, 3, g.NumNodes())
	require.Equal(t, 2, g.NumEdges())

	// The shared node makes the two ways one connected network.
	d, err := g.ShortestPathLength(1, 3)
	require.NoError(t, err)
	assert.Greater(t, d, 100.0)
}

func TestNodesSortedByID(t *testing.T) {
	g := gridGraph()
	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, int64(1), nodes[0].ID)
	assert.Equal(t, int64(3), nodes[2].ID)
}

func TestCloneIsIndependent(t *testing.T) {
	g := gridGraph()
	clone := g.Clone()

	// Annotating the clone must not leak into the original.
	for _, n := range clone.Nodes() {
		elev := 30.0 + float64(n.ID)*10
		n.Elevation = &elev
	}
	require.Positive(t, clone.AnnotateGrades())

	for _, n := range g.Nodes() {
		assert.Nil(t, n.Elevation, "node %d", n.ID)
	}
	for _, e := range g.Edges() {
		assert.Nil(t, e.GradePct)
	}
	for _, e := range clone.Edges() {
		assert.NotNil(t, e.GradePct)
	}

	// Both answer the same routing queries.
	want, err := g.ShortestPathLength(1, 3)
	require.NoError(t, err)
	got, err := clone.ShortestPathLength(1, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, g.NumNodes(), clone.NumNodes())
	assert.Equal(t, g.NumEdges(), clone.NumEdges())
}

func TestNearestNodeTieBreaksOnLowerID(t *testing.T) {
	g := New()
	// Two nodes at the identical coordinate: the lower ID must win
	// regardless of map iteration order.
	g.AddNode(9, 52.5200, 13.4050)
	g.AddNode(4, 52.5200, 13.4050)

	for i := 0; i < 20; i++ {
		n, err := g.NearestNode(52.5201, 13.4050)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n.ID)
	}
}
