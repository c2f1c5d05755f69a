package tree

import (
	"fmt"
	"math"
	"math/rand"
)

// ColumnType describes how a feature column should be interpreted.
type ColumnType uint8

const (
	// Continuous columns hold real valued measurements.
	Continuous ColumnType = iota
	// Categorical columns hold integer encoded categories.
	Categorical
)

func (c ColumnType) String() string {
	if c == Categorical {
		return "categorical"
	}
	return "continuous"
}

// Labeled is a batch of samples positionally paired with labels. It is the
// only dataset shape the tree accepts.
type Labeled[L any] struct {
	samples [][]float64
	labels  []L
	types   []ColumnType
}

// NewLabeled validates and wraps samples and labels. Every sample must have
// the same non-zero dimensionality and contain no NaN values. types is either
// empty (all columns continuous) or one entry per column.
//
// The sample slices are retained, not copied; callers must not modify them
// until the dataset has been grown into a tree.
func NewLabeled[L any](samples [][]float64, labels []L, types ...ColumnType) (*Labeled[L], error) {
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("balltree: %d samples but %d labels: %w", len(samples), len(labels), ErrInvalidInput)
	}
	dims := 0
	if len(samples) > 0 {
		dims = len(samples[0])
		if dims == 0 {
			return nil, fmt.Errorf("balltree: samples must have at least one feature: %w", ErrInvalidInput)
		}
	}
	for i, s := range samples {
		if len(s) != dims {
			return nil, fmt.Errorf("balltree: sample %d has %d features, want %d: %w", i, len(s), dims, ErrInvalidInput)
		}
		for _, v := range s {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("balltree: sample %d contains NaN: %w", i, ErrInvalidInput)
			}
		}
	}
	if len(types) != 0 && len(types) != dims {
		return nil, fmt.Errorf("balltree: %d column types for %d columns: %w", len(types), dims, ErrInvalidInput)
	}
	return &Labeled[L]{samples: samples, labels: labels, types: types}, nil
}

// NumRows returns the number of samples.
func (d *Labeled[L]) NumRows() int { return len(d.samples) }

// Dimensions returns the number of features per sample, 0 when empty.
func (d *Labeled[L]) Dimensions() int {
	if len(d.samples) == 0 {
		return len(d.types)
	}
	return len(d.samples[0])
}

// Sample returns the i-th sample. The slice must be treated as read-only.
func (d *Labeled[L]) Sample(i int) []float64 { return d.samples[i] }

// Label returns the label paired with the i-th sample.
func (d *Labeled[L]) Label(i int) L { return d.labels[i] }

// Labels returns a copy of all labels in row order.
func (d *Labeled[L]) Labels() []L {
	return append([]L(nil), d.labels...)
}

// ColumnType returns the type of the given column.
func (d *Labeled[L]) ColumnType(column int) ColumnType {
	if column < 0 || column >= len(d.types) {
		return Continuous
	}
	return d.types[column]
}

// Randomize returns a copy of the dataset with rows shuffled by a source
// seeded with seed.
func (d *Labeled[L]) Randomize(seed int64) *Labeled[L] {
	perm := rand.New(rand.NewSource(seed)).Perm(len(d.samples))
	return d.subset(perm)
}

// Take returns the first n rows. n is clamped to the dataset size.
func (d *Labeled[L]) Take(n int) *Labeled[L] {
	if n > len(d.samples) {
		n = len(d.samples)
	}
	if n < 0 {
		n = 0
	}
	return &Labeled[L]{samples: d.samples[:n:n], labels: d.labels[:n:n], types: d.types}
}

// Partition splits the rows on a single column. Continuous columns go left
// when the value is below threshold; categorical columns go left when the
// value equals threshold.
func (d *Labeled[L]) Partition(column int, threshold float64) (left, right *Labeled[L], err error) {
	if column < 0 || column >= d.Dimensions() {
		return nil, nil, fmt.Errorf("balltree: column %d out of range [0,%d): %w", column, d.Dimensions(), ErrInvalidInput)
	}
	categorical := d.ColumnType(column) == Categorical
	var l, r []int
	for i, s := range d.samples {
		v := s[column]
		if (categorical && v == threshold) || (!categorical && v < threshold) {
			l = append(l, i)
		} else {
			r = append(r, i)
		}
	}
	return d.subset(l), d.subset(r), nil
}

func (d *Labeled[L]) subset(rows []int) *Labeled[L] {
	out := &Labeled[L]{
		samples: make([][]float64, len(rows)),
		labels:  make([]L, len(rows)),
		types:   d.types,
	}
	for i, r := range rows {
		out.samples[i] = d.samples[r]
		out.labels[i] = d.labels[r]
	}
	return out
}
