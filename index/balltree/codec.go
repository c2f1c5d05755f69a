package balltree

import (
	"bytes"
	"fmt"

	"github.com/viant/balltree/internal/balltree/tree"
	"github.com/viant/balltree/internal/codec"
)

var magic = []byte("BTR2")

const (
	nodeBall    uint8 = 1
	nodeCluster uint8 = 2
)

// IsEncoded reports whether data holds a serialized ball tree index.
func IsEncoded(data []byte) bool { return bytes.HasPrefix(data, magic) }

// MarshalBinary stores: magic, kernel name, kernel parameter, leaf size,
// pivot, seed, column types (count then one byte each), dims, node count,
// root, then every node in tree order. A node is kind(u8), radius,
// centroid(float64[dims]) followed by its two child indexes for a ball, or by
// member count and (row, id, label, sample(float32[dims])) per member for a
// leaf.
func (i *Index) MarshalBinary() ([]byte, error) {
	t := i.t()
	name, p, ok := tree.NameOf(t.Kernel())
	if !ok {
		return nil, fmt.Errorf("balltree: kernel %T cannot be serialized: %w", t.Kernel(), ErrInvalidConfiguration)
	}
	snapshot, _ := t.Snapshot()
	w := codec.NewWriter(64 + len(snapshot.Nodes)*(16+8*snapshot.Dimensions))
	w.Raw(magic)
	w.String(string(name))
	w.F64(p)
	w.U32(uint32(t.MaxLeafSize()))
	w.String(t.Pivot().String())
	w.I64(t.Seed())
	types := columnTypes(t)
	w.U32(uint32(len(types)))
	for _, ct := range types {
		w.U8(uint8(ct))
	}
	w.U32(uint32(snapshot.Dimensions))
	w.U32(uint32(len(snapshot.Nodes)))
	w.U32(uint32(snapshot.Root))
	for _, n := range snapshot.Nodes {
		if n.Leaf {
			w.U8(nodeCluster)
		} else {
			w.U8(nodeBall)
		}
		w.F64(n.Radius)
		for _, c := range n.Centroid {
			w.F64(c)
		}
		if !n.Leaf {
			w.U32(uint32(n.Left))
			w.U32(uint32(n.Right))
			continue
		}
		w.U32(uint32(len(n.Samples)))
		for j, sample := range n.Samples {
			w.U32(uint32(n.Rows[j]))
			w.String(n.Labels[j].ID)
			w.String(n.Labels[j].Label)
			for _, v := range sample {
				w.F32(float32(v))
			}
		}
	}
	return w.Bytes(), nil
}

// UnmarshalBinary restores a serialized index, including its kernel and
// build options, without regrowing the tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	if !IsEncoded(data) {
		return fmt.Errorf("balltree: invalid data: %w", ErrInvalidInput)
	}
	r := codec.NewReader(data[len(magic):])
	cfg := config{logger: i.logger}
	cfg.kernel = r.String()
	cfg.p = r.F64()
	cfg.leafSize = int(r.U32())
	cfg.pivot = r.String()
	cfg.seed = r.I64()
	if n := r.Count(1, "column types"); n > 0 {
		cfg.types = make([]tree.ColumnType, n)
		for j := range cfg.types {
			cfg.types[j] = tree.ColumnType(r.U8())
		}
	}
	snapshot := tree.Snapshot[Entry]{Dimensions: int(r.U32())}
	count := r.Count(1+8, "balltree nodes")
	snapshot.Root = int(r.U32())
	if err := r.Err(); err != nil {
		return fmt.Errorf("balltree: header: %w: %w", err, ErrInvalidInput)
	}
	if count > 0 && (snapshot.Dimensions < 1 || snapshot.Dimensions > r.Remaining()/8) {
		return fmt.Errorf("balltree: header: %d dimensions: %w", snapshot.Dimensions, ErrInvalidInput)
	}
	t, err := newTree(cfg)
	if err != nil {
		return err
	}
	if count > 0 {
		snapshot.Nodes = make([]tree.NodeSnapshot[Entry], count)
		for n := range snapshot.Nodes {
			if snapshot.Nodes[n], err = readNode(r, snapshot.Dimensions); err != nil {
				return fmt.Errorf("balltree: node %d: %w", n, err)
			}
		}
		if err := t.Restore(snapshot); err != nil {
			return err
		}
	}
	i.current.Store(t)
	return nil
}

func readNode(r *codec.Reader, dims int) (tree.NodeSnapshot[Entry], error) {
	n := tree.NodeSnapshot[Entry]{Left: -1, Right: -1}
	kind := r.U8()
	n.Radius = r.F64()
	n.Centroid = make([]float64, dims)
	for j := range n.Centroid {
		n.Centroid[j] = r.F64()
	}
	switch kind {
	case nodeBall:
		n.Left = int(r.U32())
		n.Right = int(r.U32())
	case nodeCluster:
		n.Leaf = true
		members := r.Count(4+4+4+4*dims, "leaf members")
		n.Samples = make([][]float64, members)
		n.Labels = make([]Entry, members)
		n.Rows = make([]int, members)
		for j := 0; j < members; j++ {
			n.Rows[j] = int(r.U32())
			n.Labels[j] = Entry{ID: r.String(), Label: r.String()}
			sample := make([]float64, dims)
			for d := range sample {
				sample[d] = float64(r.F32())
			}
			n.Samples[j] = sample
			if r.Err() != nil {
				break
			}
		}
	default:
		if r.Err() == nil {
			return n, fmt.Errorf("unknown node kind %d: %w", kind, ErrInvalidInput)
		}
	}
	if err := r.Err(); err != nil {
		return n, fmt.Errorf("%w: %w", err, ErrInvalidInput)
	}
	return n, nil
}
