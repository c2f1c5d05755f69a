package index

// Index defines a generic vector index with basic lifecycle methods.
// It is built from (id, vector) pairs, answers exact kNN and radius queries,
// and serializes to a binary form for persistence.
type Index interface {
	// Build constructs the index from the given ids and vectors.
	// ids and vectors must have the same length and every vector the same
	// dimensionality. Building from no vectors leaves the index empty.
	Build(ids []string, vectors [][]float32) error

	// Query returns up to k matches as parallel slices of ids and distances,
	// nearest first; ties keep the order the vectors were built in. A k of
	// zero or less returns every vector. An empty index returns no matches.
	Query(query []float32, k int) (ids []string, distances []float64, err error)

	// Range returns every match within radius of query, nearest first.
	Range(query []float32, radius float64) (ids []string, distances []float64, err error)

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary reconstructs the index from a serialized byte slice.
	UnmarshalBinary(data []byte) error
}
