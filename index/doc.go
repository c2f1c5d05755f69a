// Package index defines a minimal abstraction for exact vector indexes that
// can be built from labeled vectors, queried for kNN and radius matches, and
// serialized for persistence. Implementations in this module are a ball tree
// and a brute-force baseline used to verify it.
package index
