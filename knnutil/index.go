package knnutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/sqlindex"
)

// Index provides a Go API on top of a balltree virtual table and the sample
// table it searches. Writes go to the sample table; the triggers installed
// by the balltree module invalidate persisted trees so the next query
// rebuilds them.
//
// Virtual table queries run on the connection that created the table, since
// the driver installs Go modules per connection. Close releases it.
type Index struct {
	DB          *sql.DB
	VirtualName string
	SampleTable string
	store       *dataset.SQLiteStore
	conn        *sql.Conn
}

// Match represents a single search hit with the sample's features.
type Match struct {
	ID       string
	Label    string
	Distance float64
	Features []float32
}

// NewIndex creates, when missing, the sample table and a balltree virtual
// table named virtualTable over it. args are the module's key=value options,
// for example "leaf_size=8". The balltree module must already be registered
// with sqlindex.Register.
func NewIndex(ctx context.Context, db *sql.DB, virtualTable, sampleTable string, args ...string) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("knnutil: db is nil")
	}
	if sampleTable == "" {
		sampleTable = dataset.DefaultTable
	}
	if err := dataset.ValidateTableName(virtualTable); err != nil {
		return nil, fmt.Errorf("knnutil: %w", err)
	}
	if _, err := sqlindex.ParseOptions(args); err != nil {
		return nil, err
	}
	store, err := dataset.NewSQLiteStore(db, sampleTable)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("knnutil: failed to pin connection: %w", err)
	}
	moduleArgs := append([]string{sampleTable}, args...)
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING %s(%s)", virtualTable, sqlindex.ModuleName, strings.Join(moduleArgs, ", "))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Index{DB: db, VirtualName: virtualTable, SampleTable: sampleTable, store: store, conn: conn}, nil
}

// Close returns the pinned connection to the pool.
func (ix *Index) Close() error {
	if ix.conn == nil {
		return nil
	}
	err := ix.conn.Close()
	ix.conn = nil
	return err
}

// Upsert inserts or replaces records and returns their IDs.
func (ix *Index) Upsert(ctx context.Context, records []dataset.Record) ([]string, error) {
	return ix.store.AddRecords(ctx, records)
}

// Delete removes the samples with the given ids.
func (ix *Index) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := ix.store.Remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Nearest returns the k samples nearest to query.
func (ix *Index) Nearest(ctx context.Context, query []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, fmt.Errorf("knnutil: k must be greater than 0, %d given", k)
	}
	q := fmt.Sprintf("SELECT id, label, distance FROM %s WHERE id MATCH ? AND k = ?", ix.VirtualName)
	return ix.search(ctx, q, dataset.EncodeFeatures(query), k)
}

// Within returns every sample within radius of query, nearest first.
func (ix *Index) Within(ctx context.Context, query []float32, radius float64) ([]Match, error) {
	q := fmt.Sprintf("SELECT id, label, distance FROM %s WHERE id MATCH ? AND radius = ?", ix.VirtualName)
	return ix.search(ctx, q, dataset.EncodeFeatures(query), radius)
}

func (ix *Index) search(ctx context.Context, q string, args ...interface{}) ([]Match, error) {
	if ix.conn == nil {
		return nil, fmt.Errorf("knnutil: index %s is closed", ix.VirtualName)
	}
	rows, err := ix.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []Match
	for rows.Next() {
		var m Match
		var label sql.NullString
		if err := rows.Scan(&m.ID, &label, &m.Distance); err != nil {
			rows.Close()
			return nil, err
		}
		m.Label = label.String
		out = append(out, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Load features once the virtual table cursor is released.
	stmt := fmt.Sprintf("SELECT features FROM %s WHERE id = ?", ix.SampleTable)
	for i := range out {
		var blob []byte
		if err := ix.DB.QueryRowContext(ctx, stmt, out[i].ID).Scan(&blob); err != nil {
			return nil, err
		}
		if out[i].Features, err = dataset.DecodeFeatures(blob); err != nil {
			return nil, err
		}
	}
	return out, nil
}
