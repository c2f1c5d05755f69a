package tree

import (
	"fmt"
	"math"
	"slices"
)

// Snapshot is a flat, self-contained copy of a trained tree's node graph in
// arena order. Serializers walk it instead of the live nodes.
type Snapshot[L any] struct {
	Dimensions int
	Root       int
	Nodes      []NodeSnapshot[L]
}

// NodeSnapshot describes one node. Balls carry child indices and no members;
// Clusters carry members and Left/Right set to -1.
type NodeSnapshot[L any] struct {
	Leaf     bool
	Centroid []float64
	Radius   float64
	Left     int
	Right    int
	Samples  [][]float64
	Labels   []L
	Rows     []int
}

// Snapshot copies the trained tree; ok is false when the tree is bare.
func (t *Tree[L]) Snapshot() (Snapshot[L], bool) {
	a := t.current()
	if a == nil {
		return Snapshot[L]{}, false
	}
	s := Snapshot[L]{Dimensions: a.dims, Root: int(a.root), Nodes: make([]NodeSnapshot[L], len(a.nodes))}
	for i := range a.nodes {
		n := &a.nodes[i]
		ns := NodeSnapshot[L]{
			Leaf:     n.kind == kindCluster,
			Centroid: slices.Clone(n.centroid),
			Radius:   n.radius,
			Left:     int(n.left),
			Right:    int(n.right),
		}
		if ns.Leaf {
			for j := n.start; j < n.end; j++ {
				ns.Samples = append(ns.Samples, slices.Clone(a.samples[j]))
			}
			ns.Labels = slices.Clone(a.labels[n.start:n.end])
			ns.Rows = slices.Clone(a.rows[n.start:n.end])
		}
		s.Nodes[i] = ns
	}
	return s, true
}

// Restore replaces the tree's nodes with a previously taken snapshot. The
// snapshot is validated first: every Ball has exactly two children with a
// larger index, every non-root node has exactly one parent, and leaf members
// match the dimensionality.
func (t *Tree[L]) Restore(s Snapshot[L]) error {
	a, err := restore(s)
	if err != nil {
		return err
	}
	t.publish(a)
	return nil
}

func restore[L any](s Snapshot[L]) (*arena[L], error) {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("balltree: invalid snapshot: %s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
	}
	count := len(s.Nodes)
	if count == 0 {
		return nil, invalid("no nodes")
	}
	if s.Dimensions < 1 {
		return nil, invalid("dimensions %d", s.Dimensions)
	}
	if s.Root != 0 {
		return nil, invalid("root %d is not the first node", s.Root)
	}
	a := &arena[L]{nodes: make([]node, count), dims: s.Dimensions}
	parents := make([]int, count)
	for i, ns := range s.Nodes {
		if len(ns.Centroid) != s.Dimensions {
			return nil, invalid("node %d centroid has %d features", i, len(ns.Centroid))
		}
		if ns.Radius < 0 || math.IsNaN(ns.Radius) {
			return nil, invalid("node %d radius %v", i, ns.Radius)
		}
		n := node{centroid: slices.Clone(ns.Centroid), radius: ns.Radius, left: noChild, right: noChild}
		if !ns.Leaf {
			for _, c := range [2]int{ns.Left, ns.Right} {
				if c <= i || c >= count {
					return nil, invalid("node %d child %d out of range", i, c)
				}
				parents[c]++
			}
			if ns.Left == ns.Right {
				return nil, invalid("node %d has one distinct child", i)
			}
			n.kind, n.left, n.right = kindBall, int32(ns.Left), int32(ns.Right)
			a.nodes[i] = n
			continue
		}
		if len(ns.Samples) == 0 || len(ns.Samples) != len(ns.Labels) || len(ns.Samples) != len(ns.Rows) {
			return nil, invalid("node %d has %d samples, %d labels, %d rows", i, len(ns.Samples), len(ns.Labels), len(ns.Rows))
		}
		n.kind = kindCluster
		n.start = int32(len(a.samples))
		for j, sample := range ns.Samples {
			if len(sample) != s.Dimensions {
				return nil, invalid("node %d sample %d has %d features", i, j, len(sample))
			}
			a.samples = append(a.samples, slices.Clone(sample))
		}
		a.labels = append(a.labels, ns.Labels...)
		a.rows = append(a.rows, ns.Rows...)
		n.end = int32(len(a.samples))
		a.nodes[i] = n
	}
	for i := 1; i < count; i++ {
		if parents[i] != 1 {
			return nil, invalid("node %d has %d parents", i, parents[i])
		}
	}
	seen := make([]bool, len(a.rows))
	for _, r := range a.rows {
		if r < 0 || r >= len(a.rows) || seen[r] {
			return nil, invalid("row %d is duplicated or out of range", r)
		}
		seen[r] = true
	}
	a.computeHeights()
	return a, nil
}
