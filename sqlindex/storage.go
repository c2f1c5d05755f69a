package sqlindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/index/balltree"
	"go.uber.org/zap"
)

// ensureIndexStorage ensures the shared index_storage table exists. Each row
// holds one serialized tree per sample table and configuration key.
func ensureIndexStorage(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlindex: db is nil")
	}
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS index_storage (
    table_name TEXT NOT NULL,
    config     TEXT NOT NULL DEFAULT '',
    "index"    BLOB,
    PRIMARY KEY (table_name, config)
)`)
	return err
}

func ensureIndexStorageLocks(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlindex: db is nil")
	}
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS index_storage_locks (
    table_name TEXT NOT NULL,
    config     TEXT NOT NULL DEFAULT '',
    owner      TEXT NOT NULL,
    locked_at  INTEGER NOT NULL,
    PRIMARY KEY (table_name, config)
)`)
	return err
}

// ensureSampleVersions ensures index_storage_versions exists. The sample
// table triggers bump a table's version on every write, so a build can tell
// whether its samples were superseded while the tree grew.
func ensureSampleVersions(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS index_storage_versions (
    table_name TEXT PRIMARY KEY,
    version    INTEGER NOT NULL DEFAULT 0
)`)
	return err
}

// sampleVersion returns the write counter of table; 0 before any write.
func sampleVersion(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var version int64
	err := db.QueryRowContext(ctx, `SELECT version FROM index_storage_versions WHERE table_name = ?`, table).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}

// ensureTriggers creates the sample table when missing and installs
// triggers that drop its persisted trees and cached indexes on any change.
func ensureTriggers(ctx context.Context, db *sql.DB, table string) error {
	if err := dataset.EnsureSchema(db, table); err != nil {
		return err
	}
	trigBase := sanitizeName("trg_balltree_" + table)
	tableLit := quoteLiteral(table)
	body := `DELETE FROM index_storage WHERE table_name = ` + tableLit + `; ` +
		`INSERT OR IGNORE INTO index_storage_versions(table_name, version) VALUES(` + tableLit + `, 0); ` +
		`UPDATE index_storage_versions SET version = version + 1 WHERE table_name = ` + tableLit + `; ` +
		`SELECT balltree_invalidate(` + tableLit + `);`
	for _, event := range []struct{ suffix, op string }{
		{"ins", "INSERT"},
		{"upd", "UPDATE"},
		{"del", "DELETE"},
	} {
		stmt := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_%s AFTER %s ON %s BEGIN %s END;`, trigBase, event.suffix, event.op, table, body)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Prepare creates the storage tables, the sample table and its
// invalidation triggers.
func Prepare(ctx context.Context, db *sql.DB, table string) error {
	if err := ensureIndexStorage(ctx, db); err != nil {
		return err
	}
	if err := ensureIndexStorageLocks(ctx, db); err != nil {
		return err
	}
	if err := ensureSampleVersions(ctx, db); err != nil {
		return err
	}
	return ensureTriggers(ctx, db, table)
}

// LoadPersisted returns the tree stored for table and opts; ok is false when
// nothing usable is stored.
func LoadPersisted(ctx context.Context, db *sql.DB, table string, opts Options, logger *zap.Logger) (*balltree.Index, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var blob []byte
	err := db.QueryRowContext(ctx, `SELECT "index" FROM index_storage WHERE table_name = ? AND config = ?`, table, opts.Key()).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !balltree.IsEncoded(blob) {
		return nil, false, nil
	}
	idx, err := opts.NewIndex(logger)
	if err != nil {
		return nil, false, err
	}
	if err := idx.UnmarshalBinary(blob); err != nil {
		logger.Warn("discarding unreadable persisted index", zap.String("table", table), zap.Error(err))
		return nil, false, nil
	}
	return idx, true, nil
}

// PersistedConfigs lists the configurations stored for table.
func PersistedConfigs(ctx context.Context, db *sql.DB, table string) ([]Options, error) {
	rows, err := db.QueryContext(ctx, `SELECT config FROM index_storage WHERE table_name = ? ORDER BY config`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Options
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		opts, err := parseKey(key)
		if err != nil {
			continue
		}
		out = append(out, opts)
	}
	return out, rows.Err()
}

// Rebuild grows a fresh tree over the sample table, persists it and
// publishes it to the shared cache. It returns the new index. A tree whose
// samples changed while it grew is returned but neither persisted nor
// published.
func Rebuild(ctx context.Context, db *sql.DB, table string, opts Options, logger *zap.Logger) (*balltree.Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Prepare(ctx, db, table); err != nil {
		return nil, err
	}
	dbPath, err := resolveDbPath(ctx, db, "")
	if err != nil {
		return nil, err
	}
	s := slotFor(dbPath, table, opts.Key())
	_, gen := s.snapshot()
	lease, err := leaseBuild(ctx, db, table, opts.Key())
	if err != nil {
		return nil, err
	}
	defer lease.release()
	idx, current, err := build(ctx, db, table, opts, logger)
	if err != nil {
		return nil, err
	}
	if current {
		s.publish(gen, idx)
	}
	return idx, nil
}

// build reads the samples, grows the tree and stores its encoding. current
// is false when a sample write landed while the tree grew; the stored row is
// then removed again.
func build(ctx context.Context, db *sql.DB, table string, opts Options, logger *zap.Logger) (idx *balltree.Index, current bool, err error) {
	started := time.Now()
	version, err := sampleVersion(ctx, db, table)
	if err != nil {
		return nil, false, err
	}
	records, err := dataset.Load(ctx, db, table)
	if err != nil {
		return nil, false, err
	}
	if idx, err = opts.NewIndex(logger); err != nil {
		return nil, false, err
	}
	ids, labels, vectors := dataset.Columns(records)
	if err := idx.BuildLabeled(ids, labels, vectors); err != nil {
		return nil, false, fmt.Errorf("sqlindex: build %s: %w", table, err)
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO index_storage(table_name, config, "index") VALUES(?, ?, ?)`, table, opts.Key(), data); err != nil {
		return nil, false, err
	}
	// Writes after the insert delete the row through the triggers; writes
	// before it show up as a newer version.
	after, err := sampleVersion(ctx, db, table)
	if err != nil {
		return nil, false, err
	}
	if after != version {
		if _, err := db.ExecContext(ctx, `DELETE FROM index_storage WHERE table_name = ? AND config = ?`, table, opts.Key()); err != nil {
			return nil, false, err
		}
		logger.Info("discarded ball tree grown from superseded samples",
			zap.String("table", table),
			zap.String("config", opts.Key()),
			zap.Int64("version", version),
			zap.Int64("latest", after),
		)
		return idx, false, nil
	}
	logger.Info("built ball tree index",
		zap.String("table", table),
		zap.String("config", opts.Key()),
		zap.Int("rows", idx.Len()),
		zap.Int("height", idx.Height()),
		zap.Int("leaves", idx.Leaves()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return idx, true, nil
}

const (
	leaseRetry = 50 * time.Millisecond
	leaseTTL   = 2 * time.Minute
)

var processTag = fmt.Sprintf("pid:%d-%d", os.Getpid(), time.Now().UnixNano())

var leaseSeq atomic.Uint64

// buildLease is this process's claim on the index_storage_locks row of one
// table and configuration. It keeps concurrent builders, in any process
// sharing the database file, from growing the same tree twice.
type buildLease struct {
	db     *sql.DB
	table  string
	config string
	owner  string
}

// leaseBuild blocks until the lease is free or its holder has been silent
// for leaseTTL.
func leaseBuild(ctx context.Context, db *sql.DB, table, config string) (*buildLease, error) {
	l := &buildLease{db: db, table: table, config: config, owner: fmt.Sprintf("%s#%d", processTag, leaseSeq.Add(1))}
	retry := time.NewTicker(leaseRetry)
	defer retry.Stop()
	for {
		taken, err := l.take(ctx)
		if err != nil {
			return nil, err
		}
		if taken {
			return l, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-retry.C:
		}
	}
}

// take inserts the lease row, or overwrites an expired one, in a single
// statement.
func (l *buildLease) take(ctx context.Context) (bool, error) {
	now := time.Now().Unix()
	expired := now - int64(leaseTTL/time.Second)
	res, err := l.db.ExecContext(ctx, `
INSERT INTO index_storage_locks(table_name, config, owner, locked_at) VALUES(?, ?, ?, ?)
ON CONFLICT(table_name, config) DO UPDATE SET owner = excluded.owner, locked_at = excluded.locked_at
WHERE index_storage_locks.locked_at <= ?`, l.table, l.config, l.owner, now, expired)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *buildLease) release() {
	_, _ = l.db.ExecContext(context.Background(), `DELETE FROM index_storage_locks WHERE table_name = ? AND config = ? AND owner = ?`, l.table, l.config, l.owner)
}

func resolveDbPath(ctx context.Context, db *sql.DB, dbName string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("sqlindex: db is nil")
	}
	rows, err := db.QueryContext(ctx, `SELECT name, file FROM pragma_database_list`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	want := dbName
	if want == "" {
		want = "main"
	}
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return "", err
		}
		if name != want {
			continue
		}
		if file == "" {
			return name, nil
		}
		return file, nil
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return want, nil
}
