package dataset

import (
	"fmt"

	"github.com/viant/balltree/internal/balltree/tree"
)

// Columns splits records into the parallel id, label and vector slices an
// index is built from.
func Columns(records []Record) (ids, labels []string, vectors [][]float32) {
	ids = make([]string, len(records))
	labels = make([]string, len(records))
	vectors = make([][]float32, len(records))
	for i, r := range records {
		ids[i], labels[i], vectors[i] = r.ID, r.Label, r.Features
	}
	return ids, labels, vectors
}

// ToLabeled converts records into a labeled dataset for growing a tree
// directly.
func ToLabeled(records []Record) (*tree.Labeled[string], error) {
	samples := make([][]float64, len(records))
	labels := make([]string, len(records))
	for i, r := range records {
		samples[i] = make([]float64, len(r.Features))
		for j, f := range r.Features {
			samples[i][j] = float64(f)
		}
		labels[i] = r.Label
	}
	ds, err := tree.NewLabeled(samples, labels)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	return ds, nil
}
