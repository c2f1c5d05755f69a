package balltree

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/viant/balltree/internal/balltree/tree"
	"go.uber.org/zap"
)

// DefaultLeafSize is the leaf size used when WithLeafSize is not given.
const DefaultLeafSize = tree.DefaultMaxLeafSize

// Entry is the payload a ball tree leaf stores next to each vector.
type Entry struct {
	ID    string
	Label string
}

// Match is a query result.
type Match struct {
	ID       string
	Label    string
	Distance float64
}

type config struct {
	leafSize int
	kernel   string
	p        float64
	pivot    string
	seed     int64
	types    []tree.ColumnType
	logger   *zap.Logger
}

// Option configures an Index.
type Option func(*config)

// WithLeafSize sets the maximum number of vectors per leaf.
func WithLeafSize(n int) Option { return func(c *config) { c.leafSize = n } }

// WithKernel selects the distance kernel by name; p is the minkowski power.
func WithKernel(name string, p float64) Option {
	return func(c *config) { c.kernel, c.p = name, p }
}

// WithColumnTypes declares the type of each vector column for the gower
// kernel, which compares categorical columns by equality. Other kernels
// reject it.
func WithColumnTypes(types ...tree.ColumnType) Option {
	return func(c *config) { c.types = types }
}

// WithPivot selects the split strategy: "farthest" (default) or "random".
func WithPivot(name string) Option { return func(c *config) { c.pivot = name } }

// WithSeed seeds the random pivot strategy.
func WithSeed(seed int64) Option { return func(c *config) { c.seed = seed } }

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *zap.Logger) Option { return func(c *config) { c.logger = l } }

// Index is a ball tree vector index. It is safe for concurrent queries;
// Build and UnmarshalBinary swap the tree in atomically.
type Index struct {
	logger  *zap.Logger
	current atomic.Pointer[tree.Tree[Entry]]
}

// New returns an empty index.
func New(opts ...Option) (*Index, error) {
	cfg := config{leafSize: DefaultLeafSize, kernel: string(tree.KernelEuclidean)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	t, err := newTree(cfg)
	if err != nil {
		return nil, err
	}
	i := &Index{logger: cfg.logger}
	i.current.Store(t)
	return i, nil
}

func newTree(cfg config) (*tree.Tree[Entry], error) {
	kernel, err := tree.ParseKernel(cfg.kernel, cfg.p)
	if err != nil {
		return nil, err
	}
	if len(cfg.types) > 0 {
		g, ok := kernel.(tree.Gower)
		if !ok {
			return nil, fmt.Errorf("balltree: column types need the gower kernel, %s given: %w", cfg.kernel, ErrInvalidConfiguration)
		}
		g.Types = cfg.types
		kernel = g
	}
	pivot, err := tree.ParsePivot(cfg.pivot)
	if err != nil {
		return nil, err
	}
	return tree.NewTree[Entry](
		tree.WithMaxLeafSize(cfg.leafSize),
		tree.WithKernel(kernel),
		tree.WithPivot(pivot),
		tree.WithSeed(cfg.seed),
		tree.WithLogger(cfg.logger),
	)
}

// Build grows the tree from ids and vectors with empty labels.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	return i.BuildLabeled(ids, nil, vectors)
}

// BuildLabeled grows the tree from ids, labels and vectors. labels may be
// nil; otherwise it must match ids in length. Building from no vectors
// leaves the index empty.
func (i *Index) BuildLabeled(ids, labels []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("balltree: ids and vectors length mismatch: %d != %d: %w", len(ids), len(vectors), tree.ErrInvalidInput)
	}
	if labels != nil && len(labels) != len(ids) {
		return fmt.Errorf("balltree: ids and labels length mismatch: %d != %d: %w", len(ids), len(labels), tree.ErrInvalidInput)
	}
	if len(ids) == 0 {
		i.t().Destroy()
		return nil
	}
	samples := make([][]float64, len(vectors))
	entries := make([]Entry, len(ids))
	for j, v := range vectors {
		samples[j] = widen(v)
		entries[j].ID = ids[j]
		if labels != nil {
			entries[j].Label = labels[j]
		}
	}
	t := i.t()
	dataset, err := tree.NewLabeled(samples, entries, columnTypes(t)...)
	if err != nil {
		return err
	}
	return t.Grow(dataset)
}

// Query returns the k nearest ids and their distances. A k of zero or less
// returns every vector.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	matches, err := i.Nearest(query, k)
	if err != nil {
		return nil, nil, err
	}
	return unzip(matches)
}

// Range returns every id within radius of query, nearest first.
func (i *Index) Range(query []float32, radius float64) ([]string, []float64, error) {
	matches, err := i.Within(query, radius)
	if err != nil {
		return nil, nil, err
	}
	return unzip(matches)
}

// Nearest returns the k nearest matches. An empty index returns none.
func (i *Index) Nearest(query []float32, k int) ([]Match, error) {
	t := i.t()
	if k <= 0 {
		k = max(t.Size(), 1)
	}
	found, err := t.Nearest(widen(query), k)
	if errors.Is(err, tree.ErrUntrained) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return matches(found), nil
}

// Within returns every match within radius of query, nearest first with
// ties in build order.
func (i *Index) Within(query []float32, radius float64) ([]Match, error) {
	found, err := i.t().Range(widen(query), radius)
	if errors.Is(err, tree.ErrUntrained) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slices.SortFunc(found, func(a, b tree.Neighbor[Entry]) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Row, b.Row)
	})
	return matches(found), nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return i.t().Size() }

// Dimensions returns the vector dimensionality, 0 when empty.
func (i *Index) Dimensions() int { return i.t().Dimensions() }

// Height returns the number of tree levels, 0 when empty.
func (i *Index) Height() int { return i.t().Height() }

// Balance returns the root's right minus left subtree height.
func (i *Index) Balance() int { return i.t().Balance() }

// Leaves returns the number of leaf nodes.
func (i *Index) Leaves() int { return i.t().Leaves() }

// LeafSize returns the maximum number of vectors per leaf.
func (i *Index) LeafSize() int { return i.t().MaxLeafSize() }

// Kernel returns the configured kernel name and minkowski power.
func (i *Index) Kernel() (string, float64) {
	name, p, _ := tree.NameOf(i.t().Kernel())
	return string(name), p
}

func (i *Index) t() *tree.Tree[Entry] { return i.current.Load() }

// columnTypes returns the column types the tree's kernel was configured
// with, or nil when every column is continuous.
func columnTypes(t *tree.Tree[Entry]) []tree.ColumnType {
	if g, ok := t.Kernel().(tree.Gower); ok {
		return g.Types
	}
	return nil
}

func matches(found tree.Neighbors[Entry]) []Match {
	out := make([]Match, len(found))
	for j, n := range found {
		out[j] = Match{ID: n.Label.ID, Label: n.Label.Label, Distance: n.Distance}
	}
	return out
}

func unzip(matches []Match) ([]string, []float64, error) {
	if len(matches) == 0 {
		return nil, nil, nil
	}
	ids := make([]string, len(matches))
	distances := make([]float64, len(matches))
	for j, m := range matches {
		ids[j] = m.ID
		distances[j] = m.Distance
	}
	return ids, distances, nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for j, f := range v {
		out[j] = float64(f)
	}
	return out
}
