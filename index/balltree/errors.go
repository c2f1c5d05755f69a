package balltree

import "github.com/viant/balltree/internal/balltree/tree"

// Errors reported by the index, matchable with errors.Is.
var (
	ErrInvalidConfiguration = tree.ErrInvalidConfiguration
	ErrInvalidInput         = tree.ErrInvalidInput
)
