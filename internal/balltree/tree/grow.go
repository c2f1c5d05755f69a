package tree

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Grow builds the tree from a labeled dataset. Groups larger than the max
// leaf size are split around two pivots until every group fits in a leaf.
//
// Growing a trained tree builds a brand-new set of nodes and swaps it in;
// queries already running keep the nodes they started with.
func (t *Tree[L]) Grow(dataset *Labeled[L]) error {
	if dataset == nil {
		return fmt.Errorf("balltree: tree requires a labeled dataset: %w", ErrInvalidInput)
	}
	if dataset.NumRows() == 0 {
		return fmt.Errorf("balltree: dataset is empty: %w", ErrInvalidInput)
	}
	started := time.Now()
	b := &builder[L]{
		data:   dataset,
		kernel: t.kernel,
		pivot:  t.pivot,
		rng:    rand.New(rand.NewSource(t.seed)),
		arena: &arena[L]{
			dims:    dataset.Dimensions(),
			samples: make([][]float64, 0, dataset.NumRows()),
			labels:  make([]L, 0, dataset.NumRows()),
			rows:    make([]int, 0, dataset.NumRows()),
		},
	}
	a := b.build(t.maxLeafSize)
	t.publish(a)
	t.logger.Debug("grew ball tree",
		zap.Int("rows", dataset.NumRows()),
		zap.Int("nodes", len(a.nodes)),
		zap.Int("leaves", a.leaves()),
		zap.Int32("height", a.nodes[a.root].height),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

type builder[L any] struct {
	data   *Labeled[L]
	kernel Kernel
	pivot  Pivot
	rng    *rand.Rand
	arena  *arena[L]
}

// pending is a Ball whose group has not been split yet.
type pending struct {
	id   int32
	rows []int
}

func (b *builder[L]) build(maxLeafSize int) *arena[L] {
	rows := make([]int, b.data.NumRows())
	for i := range rows {
		rows[i] = i
	}
	if len(rows) <= maxLeafSize {
		b.cluster(rows)
		b.arena.computeHeights()
		return b.arena
	}
	stack := []pending{{id: b.ball(rows), rows: rows}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		left, right := b.split(current.rows, b.arena.nodes[current.id].centroid)
		var children [2]int32
		for i, group := range [2][]int{left, right} {
			if len(group) > maxLeafSize {
				children[i] = b.ball(group)
				stack = append(stack, pending{id: children[i], rows: group})
				continue
			}
			children[i] = b.cluster(group)
		}
		b.arena.nodes[current.id].left = children[0]
		b.arena.nodes[current.id].right = children[1]
	}
	b.arena.computeHeights()
	return b.arena
}

// ball appends an internal node bounding rows and returns its index.
func (b *builder[L]) ball(rows []int) int32 {
	centroid, radius := b.bound(rows)
	b.arena.nodes = append(b.arena.nodes, node{
		kind:     kindBall,
		centroid: centroid,
		radius:   radius,
		left:     noChild,
		right:    noChild,
	})
	return int32(len(b.arena.nodes) - 1)
}

// cluster appends a leaf that takes ownership of copies of rows' samples.
func (b *builder[L]) cluster(rows []int) int32 {
	centroid, radius := b.bound(rows)
	start := int32(len(b.arena.samples))
	for _, r := range rows {
		b.arena.samples = append(b.arena.samples, slices.Clone(b.data.Sample(r)))
		b.arena.labels = append(b.arena.labels, b.data.Label(r))
		b.arena.rows = append(b.arena.rows, r)
	}
	b.arena.nodes = append(b.arena.nodes, node{
		kind:     kindCluster,
		centroid: centroid,
		radius:   radius,
		left:     noChild,
		right:    noChild,
		start:    start,
		end:      int32(len(b.arena.samples)),
	})
	return int32(len(b.arena.nodes) - 1)
}

// bound returns the coordinate-wise mean of rows and the largest distance
// from it to any of them.
func (b *builder[L]) bound(rows []int) ([]float64, float64) {
	centroid := make([]float64, b.arena.dims)
	for _, r := range rows {
		floats.Add(centroid, b.data.Sample(r))
	}
	floats.Scale(1/float64(len(rows)), centroid)
	var radius float64
	for _, r := range rows {
		if d := b.kernel.Compute(centroid, b.data.Sample(r)); d > radius {
			radius = d
		}
	}
	return centroid, radius
}

// split assigns every row to the nearer of two pivots, ties going left.
// Both halves are non-empty whenever len(rows) >= 2.
func (b *builder[L]) split(rows []int, centroid []float64) (left, right []int) {
	var leftPivot []float64
	switch b.pivot {
	case PivotRandom:
		leftPivot = b.data.Sample(rows[b.rng.Intn(len(rows))])
	default:
		leftPivot = b.farthest(rows, centroid)
	}
	rightPivot := b.farthest(rows, leftPivot)

	left = make([]int, 0, len(rows)/2+1)
	right = make([]int, 0, len(rows)/2+1)
	for _, r := range rows {
		s := b.data.Sample(r)
		if b.kernel.Compute(s, leftPivot) <= b.kernel.Compute(s, rightPivot) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		// every sample is equidistant from both pivots
		half := len(rows) / 2
		return rows[:half:half], rows[half:]
	}
	return left, right
}

// farthest returns the sample in rows farthest from point, the earliest row
// winning ties.
func (b *builder[L]) farthest(rows []int, point []float64) []float64 {
	best, bestDistance := rows[0], -1.0
	for _, r := range rows {
		if d := b.kernel.Compute(point, b.data.Sample(r)); d > bestDistance {
			best, bestDistance = r, d
		}
	}
	return b.data.Sample(best)
}
