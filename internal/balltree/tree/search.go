package tree

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// pruneSlack widens the pruning bound by a relative epsilon so rounding in
// the kernel never discards a subtree holding a tied neighbor.
const pruneSlack = 1e-12

// Path returns the nodes visited from the root to a leaf by always
// descending into the child whose centroid is nearer to sample, ties going
// left. It returns an empty path when the tree is bare.
func (t *Tree[L]) Path(sample []float64) ([]Node[L], error) {
	a := t.current()
	if a == nil {
		return nil, nil
	}
	if err := checkQuery(sample, a.dims); err != nil {
		return nil, err
	}
	ids := a.path(sample, t.kernel)
	path := make([]Node[L], len(ids))
	for i, id := range ids {
		path[i] = Node[L]{arena: a, id: id}
	}
	return path, nil
}

// Search returns the leaf at the end of the sample's path; ok is false when
// the tree is bare.
func (t *Tree[L]) Search(sample []float64) (leaf Node[L], ok bool, err error) {
	path, err := t.Path(sample)
	if err != nil || len(path) == 0 {
		return Node[L]{}, false, err
	}
	return path[len(path)-1], true, nil
}

func (a *arena[L]) path(sample []float64, kernel Kernel) []int32 {
	path := make([]int32, 0, a.nodes[a.root].height)
	current := a.root
	for {
		path = append(path, current)
		n := &a.nodes[current]
		if n.kind == kindCluster {
			return path
		}
		lDistance := kernel.Compute(sample, a.nodes[n.left].centroid)
		rDistance := kernel.Compute(sample, a.nodes[n.right].centroid)
		if lDistance <= rDistance {
			current = n.left
		} else {
			current = n.right
		}
	}
}

// Nearest returns the k samples nearest to sample in ascending order of
// distance, ties resolved by original row order. Fewer than k neighbors are
// returned when the tree holds fewer samples.
//
// The search starts from the sample's path and widens by branch and bound:
// a child is expanded only when its bounding ball could hold a sample closer
// than the current k-th best.
func (t *Tree[L]) Nearest(sample []float64, k int) (Neighbors[L], error) {
	if k < 1 {
		return nil, fmt.Errorf("balltree: the number of nearest neighbors must be greater than 0, %d given: %w", k, ErrInvalidConfiguration)
	}
	a, err := t.trained(sample)
	if err != nil {
		return nil, err
	}
	visited := make([]bool, len(a.nodes))
	best := candidates{k: k}
	stack := a.path(sample, t.kernel)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		current := &a.nodes[id]
		switch current.kind {
		case kindBall:
			radius := best.bound()
			for _, c := range [2]int32{current.left, current.right} {
				if visited[c] {
					continue
				}
				child := &a.nodes[c]
				if within(t.kernel.Compute(sample, child.centroid), child.radius+radius) {
					stack = append(stack, c)
					continue
				}
				visited[c] = true
			}
		case kindCluster:
			for i := current.start; i < current.end; i++ {
				best.offer(i, t.kernel.Compute(sample, a.samples[i]), a.rows[i])
			}
		}
		visited[id] = true
	}
	return a.neighbors(best.items), nil
}

// Range returns every sample within radius of sample, in no particular order.
func (t *Tree[L]) Range(sample []float64, radius float64) (Neighbors[L], error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("balltree: radius must be greater than 0, %v given: %w", radius, ErrInvalidConfiguration)
	}
	a, err := t.trained(sample)
	if err != nil {
		return nil, err
	}
	var found []candidate
	stack := []int32{a.root}
	for len(stack) > 0 {
		current := &a.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		switch current.kind {
		case kindBall:
			for _, c := range [2]int32{current.left, current.right} {
				child := &a.nodes[c]
				if within(t.kernel.Compute(sample, child.centroid), child.radius+radius) {
					stack = append(stack, c)
				}
			}
		case kindCluster:
			for i := current.start; i < current.end; i++ {
				if d := t.kernel.Compute(sample, a.samples[i]); d <= radius {
					found = append(found, candidate{index: i, distance: d, row: a.rows[i]})
				}
			}
		}
	}
	return a.neighbors(found), nil
}

func within(distance, bound float64) bool {
	if math.IsInf(bound, 1) {
		return true
	}
	return distance <= bound+pruneSlack*math.Max(1, bound)
}

func (a *arena[L]) neighbors(items []candidate) Neighbors[L] {
	out := make(Neighbors[L], len(items))
	for i, c := range items {
		out[i] = Neighbor[L]{
			Sample:   slices.Clone(a.samples[c.index]),
			Label:    a.labels[c.index],
			Distance: c.distance,
			Row:      c.row,
		}
	}
	return out
}

type candidate struct {
	index    int32
	distance float64
	row      int
}

func (c candidate) before(o candidate) bool {
	if c.distance != o.distance {
		return c.distance < o.distance
	}
	return c.row < o.row
}

// candidates keeps the best k items sorted by (distance, row).
type candidates struct {
	k     int
	items []candidate
}

// bound is the current pruning radius: the k-th best distance, or +Inf
// until k candidates have been seen.
func (c *candidates) bound() float64 {
	if len(c.items) < c.k {
		return math.Inf(1)
	}
	return c.items[c.k-1].distance
}

func (c *candidates) offer(index int32, distance float64, row int) {
	item := candidate{index: index, distance: distance, row: row}
	if len(c.items) == c.k && !item.before(c.items[c.k-1]) {
		return
	}
	at := sort.Search(len(c.items), func(i int) bool { return item.before(c.items[i]) })
	if len(c.items) < c.k {
		c.items = append(c.items, candidate{})
	}
	copy(c.items[at+1:], c.items[at:len(c.items)-1])
	c.items[at] = item
}
