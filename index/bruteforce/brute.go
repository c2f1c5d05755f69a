package bruteforce

import (
	"errors"
	"fmt"
	"sort"

	"github.com/viant/balltree/internal/balltree/tree"
	"github.com/viant/balltree/internal/codec"
)

const magic = "BRF1"

// Index is an exact index that answers every query by scanning all vectors.
// The zero value is an empty euclidean index.
type Index struct {
	kernel     tree.Kernel
	kernelName tree.KernelName
	p          float64
	ids        []string
	vecs       [][]float64
	dim        int
}

// New returns an empty index that measures distance with the named kernel.
func New(kernel string, p float64) (*Index, error) {
	k, err := tree.ParseKernel(kernel, p)
	if err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	i := &Index{}
	i.setKernel(k)
	return i, nil
}

func (i *Index) setKernel(k tree.Kernel) {
	i.kernel = k
	i.kernelName, i.p, _ = tree.NameOf(k)
}

func (i *Index) ensureKernel() {
	if i.kernel == nil {
		i.setKernel(tree.Euclidean{})
	}
}

// Build loads ids and vectors.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	i.ensureKernel()
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.dim = nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("bruteforce: vectors must have at least one dimension: %w", tree.ErrInvalidInput)
	}
	vecs := make([][]float64, len(vectors))
	for j := range vectors {
		if len(vectors[j]) != dim {
			return fmt.Errorf("bruteforce: inconsistent vector dims %d vs %d: %w", len(vectors[j]), dim, tree.ErrInvalidInput)
		}
		vecs[j] = widen(vectors[j])
	}
	i.ids = append([]string(nil), ids...)
	i.vecs = vecs
	i.dim = dim
	return nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

type scored struct {
	idx      int
	distance float64
}

func (i *Index) scan(query []float32, keep func(float64) bool) ([]scored, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("bruteforce: query dim %d != index dim %d: %w", len(query), i.dim, tree.ErrInvalidInput)
	}
	q := widen(query)
	out := make([]scored, 0, len(i.vecs))
	for j := range i.vecs {
		d := i.kernel.Compute(q, i.vecs[j])
		if keep(d) {
			out = append(out, scored{idx: j, distance: d})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].distance < out[b].distance })
	return out, nil
}

// Query returns the k nearest ids by ascending distance, ties in build order.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if len(i.vecs) == 0 {
		return nil, nil, nil
	}
	i.ensureKernel()
	all, err := i.scan(query, func(float64) bool { return true })
	if err != nil {
		return nil, nil, err
	}
	if k <= 0 || k > len(all) {
		k = len(all)
	}
	return i.unzip(all[:k])
}

// Range returns every id within radius of query, nearest first.
func (i *Index) Range(query []float32, radius float64) ([]string, []float64, error) {
	if !(radius > 0) {
		return nil, nil, fmt.Errorf("bruteforce: radius must be greater than 0, %v given: %w", radius, tree.ErrInvalidConfiguration)
	}
	if len(i.vecs) == 0 {
		return nil, nil, nil
	}
	i.ensureKernel()
	found, err := i.scan(query, func(d float64) bool { return d <= radius })
	if err != nil {
		return nil, nil, err
	}
	return i.unzip(found)
}

// unzip returns nil slices when nothing matched.
func (i *Index) unzip(items []scored) ([]string, []float64, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}
	ids := make([]string, len(items))
	distances := make([]float64, len(items))
	for n, s := range items {
		ids[n] = i.ids[s.idx]
		distances[n] = s.distance
	}
	return ids, distances, nil
}

// MarshalBinary stores: magic, kernel name, minkowski power, dim(uint32),
// n(uint32), then for each item: id, vec(float32[dim]).
func (i *Index) MarshalBinary() ([]byte, error) {
	i.ensureKernel()
	size := len(magic) + 24
	for _, id := range i.ids {
		size += 4 + len(id) + 4*i.dim
	}
	w := codec.NewWriter(size)
	w.Raw([]byte(magic))
	w.String(string(i.kernelName))
	w.F64(i.p)
	w.U32(uint32(i.dim))
	w.U32(uint32(len(i.ids)))
	for idx, id := range i.ids {
		w.String(id)
		for _, v := range i.vecs[idx] {
			w.F32(float32(v))
		}
	}
	return w.Bytes(), nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if !IsEncoded(data) {
		return errors.New("bruteforce: invalid data")
	}
	r := codec.NewReader(data[len(magic):])
	name := r.String()
	p := r.F64()
	dim := int(r.U32())
	n := r.Count(4, "bruteforce items")
	if err := r.Err(); err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	kernel, err := tree.ParseKernel(name, p)
	if err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for idx := 0; idx < n; idx++ {
		ids[idx] = r.String()
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = r.F32()
		}
		vecs[idx] = vec
		if err := r.Err(); err != nil {
			return fmt.Errorf("bruteforce: item %d: %w", idx, err)
		}
	}
	i.setKernel(kernel)
	return i.Build(ids, vecs)
}

// IsEncoded reports whether data starts with the brute-force magic.
func IsEncoded(data []byte) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
