package tree

// Neighbor is a sample returned by a query together with its label, its
// distance to the query and its row in the dataset the tree was grown from.
type Neighbor[L any] struct {
	Sample   []float64
	Label    L
	Distance float64
	Row      int
}

// Neighbors is an ordered list of query results.
type Neighbors[L any] []Neighbor[L]

// Samples returns the result samples in order.
func (n Neighbors[L]) Samples() [][]float64 {
	out := make([][]float64, len(n))
	for i := range n {
		out[i] = n[i].Sample
	}
	return out
}

// Labels returns the result labels in order.
func (n Neighbors[L]) Labels() []L {
	out := make([]L, len(n))
	for i := range n {
		out[i] = n[i].Label
	}
	return out
}

// Distances returns the result distances in order.
func (n Neighbors[L]) Distances() []float64 {
	out := make([]float64, len(n))
	for i := range n {
		out[i] = n[i].Distance
	}
	return out
}
