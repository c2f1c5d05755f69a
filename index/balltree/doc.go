// Package balltree provides an exact vector index backed by a ball tree.
// Vectors carry a string id and an optional class label; queries return
// matches nearest first with ties kept in build order, identical to a linear
// scan with the same kernel. The index persists as a compact binary snapshot
// of the grown tree, so a stored index is restored without regrowing.
package balltree
