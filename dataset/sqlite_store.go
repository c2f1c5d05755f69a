package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SQLiteStore is a Store that keeps labeled samples in a SQLite table.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore creates a new SQLite-backed Store over table, creating the
// table when it does not exist. An empty table selects DefaultTable.
func NewSQLiteStore(db *sql.DB, table string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("dataset: db is nil")
	}
	if table == "" {
		table = DefaultTable
	}
	if err := EnsureSchema(db, table); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Table returns the backing table name.
func (s *SQLiteStore) Table() string { return s.table }

// AddRecords upserts records in a single transaction. Records without an
// ID get a random UUID. Every record must carry features of the same
// dimensionality as the rest of the batch.
func (s *SQLiteStore) AddRecords(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dims := len(records[0].Features)
	for i, r := range records {
		if len(r.Features) == 0 {
			return nil, fmt.Errorf("dataset: record %d has no features", i)
		}
		if len(r.Features) != dims {
			return nil, fmt.Errorf("dataset: record %d has %d features, want %d", i, len(r.Features), dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(id, label, features) VALUES(?, ?, ?)
ON CONFLICT(id) DO UPDATE SET label = excluded.label, features = excluded.features`, s.table))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(records))
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, r.Label, EncodeFeatures(r.Features)); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Records returns every record with features, in rowid order.
func (s *SQLiteStore) Records(ctx context.Context) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return Load(ctx, s.db, s.table)
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

// Remove deletes a record by ID.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("dataset: Remove called with empty id")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	return err
}

// Load reads every record with features from a samples table in rowid order.
// It is shared by the store and the SQL virtual tables, which read sample
// tables they do not own.
func Load(ctx context.Context, db *sql.DB, table string) ([]Record, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT id, label, features FROM %s WHERE features IS NOT NULL ORDER BY rowid`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			r     Record
			label sql.NullString
			blob  []byte
		)
		if err := rows.Scan(&r.ID, &label, &blob); err != nil {
			return nil, err
		}
		if len(blob) == 0 {
			continue
		}
		if r.Features, err = DecodeFeatures(blob); err != nil {
			return nil, fmt.Errorf("dataset: record %q: %w", r.ID, err)
		}
		r.Label = label.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
