package dataset

import "context"

// Record is one labeled sample.
type Record struct {
	// ID is the logical identifier of the sample. When empty on insert, the
	// store generates one.
	ID string

	// Label is the class or target value paired with the sample.
	Label string

	// Features is the sample's feature vector.
	Features []float32
}

// Store defines the application-level sample store API.
type Store interface {
	// AddRecords inserts or replaces records and returns their IDs in input
	// order.
	AddRecords(ctx context.Context, records []Record) ([]string, error)

	// Records returns every stored record in insertion order.
	Records(ctx context.Context) ([]Record, error)

	// Remove deletes the record with the given ID.
	Remove(ctx context.Context, id string) error
}
