// Package walkgraph models the pedestrian street network as a weighted
// undirected graph and answers nearest-node and shortest-path-length
// queries over it.
package walkgraph

import (
	"container/heap"
	"errors"
	"math"
	"sort"

	"github.com/relonav/navigator/internal/geoproj"
)

var (
	// ErrEmptyGraph is returned by lookups against a graph with no nodes.
	ErrEmptyGraph = errors.New("walkgraph: graph has no nodes")
	// ErrNoPath is returned when two nodes lie in disconnected components.
	ErrNoPath = errors.New("walkgraph: no path between nodes")
)

// Node is one street intersection or way vertex. Elevation is filled
// lazily by the elevation layer and stays nil when lookup failed.
type Node struct {
	ID        int64
	Lat       float64
	Lon       float64
	Elevation *float64
}

// Edge is one undirected street segment between two nodes. GradePct is
// the absolute elevation grade in percent, nil until annotated.
type Edge struct {
	From     int64
	To       int64
	LengthM  float64
	GradePct *float64
}

type halfEdge struct {
	to      int64
	lengthM float64
}

// Graph is a weighted undirected street network.
type Graph struct {
	nodes map[int64]*Node
	adj   map[int64][]halfEdge
	edges []Edge
}

func New() *Graph {
	return &Graph{
		nodes: make(map[int64]*Node),
		adj:   make(map[int64][]halfEdge),
	}
}

// AddNode registers a node, overwriting coordinates on re-add.
func (g *Graph) AddNode(id int64, lat, lon float64) {
	if n, ok := g.nodes[id]; ok {
		n.Lat, n.Lon = lat, lon
		return
	}
	g.nodes[id] = &Node{ID: id, Lat: lat, Lon: lon}
}

// AddEdge connects two known nodes both ways. A non-positive length is
// replaced by the haversine distance between the endpoints. Edges
// touching unknown nodes are ignored.
func (g *Graph) AddEdge(from, to int64, lengthM float64) {
	a, okA := g.nodes[from]
	b, okB := g.nodes[to]
	if !okA || !okB || from == to {
		return
	}
	if lengthM <= 0 {
		lengthM = geoproj.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	g.adj[from] = append(g.adj[from], halfEdge{to: to, lengthM: lengthM})
	g.adj[to] = append(g.adj[to], halfEdge{to: from, lengthM: lengthM})
	g.edges = append(g.edges, Edge{From: from, To: to, LengthM: lengthM})
}

// Clone returns a deep copy sharing no memory with the receiver, so a
// memoized graph can be annotated per request while the cached value
// stays immutable.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		nodes: make(map[int64]*Node, len(g.nodes)),
		adj:   make(map[int64][]halfEdge, len(g.adj)),
		edges: make([]Edge, len(g.edges)),
	}
	for id, n := range g.nodes {
		c := *n
		if n.Elevation != nil {
			elev := *n.Elevation
			c.Elevation = &elev
		}
		out.nodes[id] = &c
	}
	for id, hes := range g.adj {
		out.adj[id] = append([]halfEdge(nil), hes...)
	}
	for i, e := range g.edges {
		if e.GradePct != nil {
			grade := *e.GradePct
			e.GradePct = &grade
		}
		out.edges[i] = e
	}
	return out
}

// Node returns the node with the given ID.
func (g *Graph) Node(id int64) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by ID for deterministic iteration.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns the undirected edge list in insertion order.
func (g *Graph) Edges() []Edge { return g.edges }

func (g *Graph) NumNodes() int { return len(g.nodes) }
func (g *Graph) NumEdges() int { return len(g.edges) }

// AnnotateGrades fills each edge's GradePct from its endpoint
// elevations as |Δelevation| / length × 100. Edges with a missing
// endpoint elevation or zero length keep a nil grade. Returns how many
// edges were annotated.
func (g *Graph) AnnotateGrades() int {
	annotated := 0
	for i := range g.edges {
		e := &g.edges[i]
		from, okF := g.nodes[e.From]
		to, okT := g.nodes[e.To]
		if !okF || !okT || from.Elevation == nil || to.Elevation == nil || e.LengthM <= 0 {
			continue
		}
		grade := math.Abs(*to.Elevation-*from.Elevation) / e.LengthM * 100
		e.GradePct = &grade
		annotated++
	}
	return annotated
}

// NearestNode snaps a geographic point to the closest graph node by
// haversine distance. Exact ties go to the lower node ID so snapping
// stays deterministic across map iteration orders.
func (g *Graph) NearestNode(lat, lon float64) (*Node, error) {
	if len(g.nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	var best *Node
	bestDist := math.Inf(1)
	for _, n := range g.nodes {
		d := geoproj.Haversine(lat, lon, n.Lat, n.Lon)
		if d < bestDist || (d == bestDist && best != nil && n.ID < best.ID) {
			best, bestDist = n, d
		}
	}
	return best, nil
}

type pqItem struct {
	node int64
	dist float64
}

type distQueue []pqItem

func (q distQueue) Len() int           { return len(q) }
func (q distQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q distQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x any)        { *q = append(*q, x.(pqItem)) }
func (q *distQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ShortestPathsFrom runs Dijkstra from one node and returns the
// distance in meters to every reachable node. Unknown start nodes
// yield an empty map.
func (g *Graph) ShortestPathsFrom(from int64) map[int64]float64 {
	final := make(map[int64]float64)
	if _, ok := g.nodes[from]; !ok {
		return final
	}

	dist := map[int64]float64{from: 0}
	q := &distQueue{{node: from, dist: 0}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(pqItem)
		if _, ok := final[cur.node]; ok {
			continue
		}
		final[cur.node] = cur.dist
		for _, he := range g.adj[cur.node] {
			next := cur.dist + he.lengthM
			if d, seen := dist[he.to]; !seen || next < d {
				dist[he.to] = next
				heap.Push(q, pqItem{node: he.to, dist: next})
			}
		}
	}
	return final
}

// ShortestPathLength runs Dijkstra from one node and returns the
// edge-length-weighted distance in meters to the other. ErrNoPath is
// returned for disconnected pairs.
func (g *Graph) ShortestPathLength(from, to int64) (float64, error) {
	if _, ok := g.nodes[from]; !ok {
		return 0, ErrNoPath
	}
	if _, ok := g.nodes[to]; !ok {
		return 0, ErrNoPath
	}
	if from == to {
		return 0, nil
	}

	dist := map[int64]float64{from: 0}
	done := make(map[int64]bool)
	q := &distQueue{{node: from, dist: 0}}

	for q.Len() > 0 {
		cur := heap.Pop(q).(pqItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == to {
			return cur.dist, nil
		}
		for _, he := range g.adj[cur.node] {
			next := cur.dist + he.lengthM
			if d, seen := dist[he.to]; !seen || next < d {
				dist[he.to] = next
				heap.Push(q, pqItem{node: he.to, dist: next})
			}
		}
	}
	return 0, ErrNoPath
}
