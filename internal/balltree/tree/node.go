package tree

import "slices"

type nodeKind uint8

const (
	kindBall nodeKind = iota + 1
	kindCluster
)

const noChild int32 = -1

// node is either a Ball (two children, no samples) or a Cluster (a
// contiguous shard [start, end) of the arena's sample storage).
type node struct {
	kind     nodeKind
	centroid []float64
	radius   float64
	height   int32
	left     int32
	right    int32
	start    int32
	end      int32
}

// arena owns every node of one grown tree. Children always have a larger
// index than their parent. An arena is never mutated once published.
type arena[L any] struct {
	nodes   []node
	root    int32
	dims    int
	samples [][]float64
	labels  []L
	rows    []int
}

func (a *arena[L]) leaves() int {
	count := 0
	for i := range a.nodes {
		if a.nodes[i].kind == kindCluster {
			count++
		}
	}
	return count
}

// computeHeights fills node heights bottom-up, relying on the child index
// ordering.
func (a *arena[L]) computeHeights() {
	for i := len(a.nodes) - 1; i >= 0; i-- {
		n := &a.nodes[i]
		if n.kind == kindCluster {
			n.height = 1
			continue
		}
		n.height = 1 + max(a.nodes[n.left].height, a.nodes[n.right].height)
	}
}

// Node is a read-only handle onto a node of a trained tree.
type Node[L any] struct {
	arena *arena[L]
	id    int32
}

// ID returns the node's position in the tree's arena.
func (n Node[L]) ID() int { return int(n.id) }

// Leaf reports whether the node is a Cluster.
func (n Node[L]) Leaf() bool { return n.ref().kind == kindCluster }

// Centroid returns a copy of the node's center.
func (n Node[L]) Centroid() []float64 { return slices.Clone(n.ref().centroid) }

// Radius returns the largest distance from the centroid to any descendant sample.
func (n Node[L]) Radius() float64 { return n.ref().radius }

// Height returns the number of levels in the subtree rooted at the node.
func (n Node[L]) Height() int { return int(n.ref().height) }

// Balance returns the right subtree height minus the left subtree height.
func (n Node[L]) Balance() int {
	ref := n.ref()
	if ref.kind == kindCluster {
		return 0
	}
	return int(n.arena.nodes[ref.right].height - n.arena.nodes[ref.left].height)
}

// Children returns the two children of a Ball; ok is false for a Cluster.
func (n Node[L]) Children() (left, right Node[L], ok bool) {
	ref := n.ref()
	if ref.kind != kindBall {
		return Node[L]{}, Node[L]{}, false
	}
	return Node[L]{arena: n.arena, id: ref.left}, Node[L]{arena: n.arena, id: ref.right}, true
}

// Samples returns copies of the samples held by a Cluster, nil for a Ball.
func (n Node[L]) Samples() [][]float64 {
	ref := n.ref()
	if ref.kind != kindCluster {
		return nil
	}
	out := make([][]float64, 0, ref.end-ref.start)
	for i := ref.start; i < ref.end; i++ {
		out = append(out, slices.Clone(n.arena.samples[i]))
	}
	return out
}

// Labels returns the labels held by a Cluster, nil for a Ball.
func (n Node[L]) Labels() []L {
	ref := n.ref()
	if ref.kind != kindCluster {
		return nil
	}
	return slices.Clone(n.arena.labels[ref.start:ref.end])
}

func (n Node[L]) ref() *node { return &n.arena.nodes[n.id] }
