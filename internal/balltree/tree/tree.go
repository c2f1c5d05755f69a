package tree

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxLeafSize is the number of samples a leaf holds when no option
// overrides it.
const DefaultMaxLeafSize = 30

// Pivot selects how a group of samples is split into two.
type Pivot int

const (
	// PivotFarthest picks the sample farthest from the group centroid and
	// then the sample farthest from that one.
	PivotFarthest Pivot = iota
	// PivotRandom picks the first pivot from a source seeded with the tree
	// seed and the second as the sample farthest from it.
	PivotRandom
)

func (p Pivot) String() string {
	if p == PivotRandom {
		return "random"
	}
	return "farthest"
}

// ParsePivot resolves a pivot strategy from its configuration name.
func ParsePivot(name string) (Pivot, error) {
	switch name {
	case "", "farthest":
		return PivotFarthest, nil
	case "random":
		return PivotRandom, nil
	}
	return 0, fmt.Errorf("balltree: unknown pivot strategy %q: %w", name, ErrInvalidConfiguration)
}

type config struct {
	maxLeafSize int
	kernel      Kernel
	pivot       Pivot
	seed        int64
	logger      *zap.Logger
}

// Option configures a Tree.
type Option func(*config)

// WithMaxLeafSize sets the largest number of samples a leaf may hold.
func WithMaxLeafSize(n int) Option { return func(c *config) { c.maxLeafSize = n } }

// WithKernel sets the distance kernel.
func WithKernel(k Kernel) Option { return func(c *config) { c.kernel = k } }

// WithPivot sets the pivot strategy used during construction.
func WithPivot(p Pivot) Option { return func(c *config) { c.pivot = p } }

// WithSeed seeds the random source used by PivotRandom.
func WithSeed(seed int64) Option { return func(c *config) { c.seed = seed } }

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(l *zap.Logger) Option { return func(c *config) { c.logger = l } }

// Tree is a ball tree over labeled samples. A tree is Untrained until Grow
// succeeds; afterwards its nodes are immutable and may be queried from any
// number of goroutines.
type Tree[L any] struct {
	config
	mu    sync.RWMutex
	arena *arena[L]
}

// NewTree constructs an untrained tree.
func NewTree[L any](opts ...Option) (*Tree[L], error) {
	cfg := config{
		maxLeafSize: DefaultMaxLeafSize,
		kernel:      Euclidean{},
		pivot:       PivotFarthest,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxLeafSize < 1 {
		return nil, fmt.Errorf("balltree: at least one sample is required to form a leaf, %d given: %w", cfg.maxLeafSize, ErrInvalidConfiguration)
	}
	if err := validateKernel(cfg.kernel); err != nil {
		return nil, err
	}
	if cfg.pivot != PivotFarthest && cfg.pivot != PivotRandom {
		return nil, fmt.Errorf("balltree: unknown pivot strategy %d: %w", cfg.pivot, ErrInvalidConfiguration)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return &Tree[L]{config: cfg}, nil
}

// Kernel returns the distance kernel.
func (t *Tree[L]) Kernel() Kernel { return t.kernel }

// MaxLeafSize returns the leaf size limit.
func (t *Tree[L]) MaxLeafSize() int { return t.maxLeafSize }

// Pivot returns the split strategy.
func (t *Tree[L]) Pivot() Pivot { return t.pivot }

// Seed returns the seed of the random pivot source.
func (t *Tree[L]) Seed() int64 { return t.seed }

// Bare reports whether the tree has no root.
func (t *Tree[L]) Bare() bool { return t.current() == nil }

// Height returns the number of levels in the tree, 0 when bare.
func (t *Tree[L]) Height() int {
	a := t.current()
	if a == nil {
		return 0
	}
	return int(a.nodes[a.root].height)
}

// Balance returns the root's right subtree height minus its left subtree
// height. A balanced tree has a factor of 0.
func (t *Tree[L]) Balance() int {
	a := t.current()
	if a == nil {
		return 0
	}
	return Node[L]{arena: a, id: a.root}.Balance()
}

// Size returns the number of samples held by the tree's leaves.
func (t *Tree[L]) Size() int {
	a := t.current()
	if a == nil {
		return 0
	}
	return len(a.samples)
}

// Dimensions returns the sample dimensionality of a trained tree.
func (t *Tree[L]) Dimensions() int {
	a := t.current()
	if a == nil {
		return 0
	}
	return a.dims
}

// Leaves returns the number of Cluster nodes.
func (t *Tree[L]) Leaves() int {
	a := t.current()
	if a == nil {
		return 0
	}
	return a.leaves()
}

// Root returns the root node; ok is false when the tree is bare.
func (t *Tree[L]) Root() (Node[L], bool) {
	a := t.current()
	if a == nil {
		return Node[L]{}, false
	}
	return Node[L]{arena: a, id: a.root}, true
}

// Destroy drops the root and every node beneath it. Queries already running
// keep reading the nodes they started with.
func (t *Tree[L]) Destroy() {
	t.mu.Lock()
	t.arena = nil
	t.mu.Unlock()
}

func (t *Tree[L]) current() *arena[L] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.arena
}

func (t *Tree[L]) publish(a *arena[L]) {
	t.mu.Lock()
	t.arena = a
	t.mu.Unlock()
}

// trained returns the published arena after checking the query shape.
func (t *Tree[L]) trained(query []float64) (*arena[L], error) {
	a := t.current()
	if a == nil {
		return nil, fmt.Errorf("balltree: query on a bare tree: %w", ErrUntrained)
	}
	if err := checkQuery(query, a.dims); err != nil {
		return nil, err
	}
	return a, nil
}

func checkQuery(query []float64, dims int) error {
	if len(query) != dims {
		return fmt.Errorf("balltree: query has %d features, tree has %d: %w", len(query), dims, ErrInvalidInput)
	}
	for i, v := range query {
		if math.IsNaN(v) {
			return fmt.Errorf("balltree: query feature %d is NaN: %w", i, ErrInvalidInput)
		}
	}
	return nil
}
