package dataset

import (
	"fmt"

	"github.com/viant/balltree/internal/codec"
)

// EncodeFeatures encodes a feature vector into a BLOB suitable for storage in
// SQLite: a little-endian sequence of float32 values without a length
// prefix; the length is derived from the BLOB size on decode.
func EncodeFeatures(v []float32) []byte { return codec.EncodeFloat32s(v) }

// DecodeFeatures decodes a BLOB produced by EncodeFeatures.
func DecodeFeatures(b []byte) ([]float32, error) {
	v, err := codec.DecodeFloat32s(b)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	return v, nil
}
