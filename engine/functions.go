package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/viant/balltree/internal/balltree/tree"
	"github.com/viant/balltree/internal/codec"
	"github.com/viant/vec/search"
	sqlite "modernc.org/sqlite"
)

// RegisterVectorFunctions registers vec_cosine, vec_l2 and balltree_distance
// with the driver so they are available on new connections opened after
// this call.
// Note: existing open connections will not see new functions.
func RegisterVectorFunctions(_ *sql.DB) error {
	// Idempotent registration; driver rejects duplicates but we ignore errors silently here.
	_ = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosineImpl)
	_ = sqlite.RegisterDeterministicScalarFunction("vec_l2", 2, vecL2Impl)
	_ = sqlite.RegisterDeterministicScalarFunction("balltree_distance", 3, kernelDistanceImpl)
	return nil
}

func asVector(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return codec.DecodeFloat32s(v)
	default:
		return nil, fmt.Errorf("engine: unsupported argument type %T for vector; want BLOB", arg)
	}
}

func vectorPair(name string, args []driver.Value) (search.Float32s, search.Float32s, error) {
	a, err := asVector(args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, nil, err
	}
	if a != nil && b != nil && len(a) != len(b) {
		return nil, nil, fmt.Errorf("%s: dim mismatch %d vs %d", name, len(a), len(b))
	}
	return a, b, nil
}

// vecCosineImpl implements vec_cosine(a BLOB, b BLOB) → cosine similarity.
func vecCosineImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, b, err := vectorPair("vec_cosine", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	if len(a) == 0 {
		return nil, fmt.Errorf("vec_cosine: empty vectors")
	}
	if a.Magnitude() == 0 || b.Magnitude() == 0 {
		return nil, fmt.Errorf("vec_cosine: zero-magnitude vector")
	}
	return 1 - float64(a.CosineDistance(b)), nil
}

// vecL2Impl implements vec_l2(a BLOB, b BLOB) → euclidean distance.
func vecL2Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_l2: expected 2 arguments, got %d", len(args))
	}
	a, b, err := vectorPair("vec_l2", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return float64(a.EuclideanDistance(b)), nil
}

// kernelDistanceImpl implements balltree_distance(a BLOB, b BLOB, kernel TEXT)
// with the same kernels and float64 arithmetic the ball tree uses, so SQL
// results can be compared with index distances exactly.
func kernelDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("balltree_distance: expected 3 arguments, got %d", len(args))
	}
	a, b, err := vectorPair("balltree_distance", args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	var name string
	switch v := args[2].(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	case nil:
	default:
		return nil, fmt.Errorf("balltree_distance: unsupported kernel type %T", v)
	}
	kernel, err := tree.ParseKernel(name, 0)
	if err != nil {
		return nil, err
	}
	return kernel.Compute(widen(a), widen(b)), nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
