package tree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

const floatTol = 1e-9

// randomDataset draws integer coordinates so that equal distances are common.
func randomDataset(t *testing.T, seed int64, n, dims, spread int) *Labeled[int] {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	samples := make([][]float64, n)
	labels := make([]int, n)
	for i := range samples {
		samples[i] = make([]float64, dims)
		for d := range samples[i] {
			samples[i][d] = float64(rng.Intn(spread))
		}
		labels[i] = i
	}
	ds, err := NewLabeled(samples, labels)
	require.NoError(t, err)
	return ds
}

// bruteNearest is a stable linear scan: ascending distance, row order on ties.
func bruteNearest[L any](ds *Labeled[L], kernel Kernel, query []float64, k int) ([]int, []float64) {
	rows := make([]int, ds.NumRows())
	dist := make([]float64, ds.NumRows())
	for i := range rows {
		rows[i] = i
		dist[i] = kernel.Compute(query, ds.Sample(i))
	}
	sort.SliceStable(rows, func(a, b int) bool { return dist[rows[a]] < dist[rows[b]] })
	if k > len(rows) {
		k = len(rows)
	}
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		out[i] = dist[rows[i]]
	}
	return rows[:k], out
}

func bruteRange[L any](ds *Labeled[L], kernel Kernel, query []float64, radius float64) map[int]float64 {
	out := map[int]float64{}
	for i := 0; i < ds.NumRows(); i++ {
		if d := kernel.Compute(query, ds.Sample(i)); d <= radius {
			out[i] = d
		}
	}
	return out
}

func rowsOf[L any](n Neighbors[L]) []int {
	out := make([]int, len(n))
	for i := range n {
		out[i] = n[i].Row
	}
	return out
}

// subtree collects every leaf sample under n without recursion.
func subtree[L any](n Node[L]) [][]float64 {
	var out [][]float64
	stack := []Node[L]{n}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if left, right, ok := current.Children(); ok {
			stack = append(stack, left, right)
			continue
		}
		out = append(out, current.Samples()...)
	}
	return out
}

func allNodes[L any](root Node[L]) []Node[L] {
	var out []Node[L]
	stack := []Node[L]{root}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, current)
		if left, right, ok := current.Children(); ok {
			stack = append(stack, left, right)
		}
	}
	return out
}

func grown(t *testing.T, ds *Labeled[int], opts ...Option) *Tree[int] {
	t.Helper()
	tr, err := NewTree[int](opts...)
	require.NoError(t, err)
	require.NoError(t, tr.Grow(ds))
	return tr
}
