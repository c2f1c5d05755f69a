// Package bruteforce provides an exact vector index that answers kNN and
// radius queries by scanning all vectors with a configurable distance kernel.
// Results follow a stable linear scan order, which makes it the reference the
// ball tree is verified against. It supports a compact binary format for
// persistence in the index_storage table.
package bruteforce
