package tree

import "errors"

var (
	// ErrInvalidConfiguration reports a parameter outside its domain, such as
	// a leaf size below one, k < 1 or a non-positive radius.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidInput reports a dataset or query vector of the wrong shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUntrained reports a query issued against a tree that has not been grown.
	ErrUntrained = errors.New("tree is untrained")
)
