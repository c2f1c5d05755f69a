package sqladmin

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/engine"
	"github.com/viant/balltree/sqlindex"
)

// openAdmin returns the pool and the connection that created bt_admin; the
// driver installs modules on that connection only.
func openAdmin(t *testing.T) (*sql.DB, *sql.Conn) {
	t.Helper()
	db, err := engine.Open(filepath.Join(t.TempDir(), "bt_admin.sqlite"))
	if err != nil {
		t.Fatalf("engine.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if err := sqlindex.Register(db); err != nil {
		t.Fatalf("sqlindex.Register failed: %v", err)
	}
	if err := Register(db, nil); err != nil {
		t.Fatalf("sqladmin.Register failed: %v", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		t.Fatalf("PRAGMA setup failed: %v", err)
	}
	conn, err := db.Conn(context.Background())
	if err != nil {
		t.Fatalf("db.Conn failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if _, err := conn.ExecContext(context.Background(), `CREATE VIRTUAL TABLE bt_admin USING balltree_admin(op)`); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: balltree_admin vtab not available (%v)", err)
		}
		t.Fatalf("CREATE VIRTUAL TABLE bt_admin failed: %v", err)
	}
	db.SetMaxOpenConns(2)
	store, err := dataset.NewSQLiteStore(db, "samples")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if _, err := store.AddRecords(context.Background(), []dataset.Record{
		{ID: "d1", Label: "one", Features: []float32{1, 0}},
		{ID: "d2", Label: "two", Features: []float32{0, 1}},
		{ID: "d3", Label: "two", Features: []float32{0, 2}},
	}); err != nil {
		t.Fatalf("AddRecords failed: %v", err)
	}
	return db, conn
}

func adminOp(t *testing.T, conn *sql.Conn, match string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := conn.QueryContext(ctx, `SELECT op FROM bt_admin WHERE op MATCH ?`, match)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || strings.Contains(err.Error(), "xBestIndex malfunction") || strings.Contains(err.Error(), "no such module") {
			t.Skipf("skipping: balltree_admin MATCH not supported in this environment (%v)", err)
		}
		t.Fatalf("balltree_admin MATCH failed: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatalf("expected one result from balltree_admin: %v", rows.Err())
	}
	var op string
	if err := rows.Scan(&op); err != nil {
		t.Fatalf("scan op: %v", err)
	}
	return op
}

func TestAdminReindex(t *testing.T) {
	db, conn := openAdmin(t)
	if op := adminOp(t, conn, "samples"); op != "reindexed:3" {
		t.Fatalf("unexpected op result %q", op)
	}
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM index_storage WHERE table_name = 'samples' AND "index" IS NOT NULL`).Scan(&cnt); err != nil {
		t.Fatalf("count index_storage failed: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 persisted tree, got %d", cnt)
	}

	if op := adminOp(t, conn, "samples leaf_size=1 kernel=manhattan"); op != "reindexed:3" {
		t.Fatalf("unexpected op result %q", op)
	}
	configs, err := sqlindex.PersistedConfigs(context.Background(), db, "samples")
	if err != nil {
		t.Fatalf("PersistedConfigs failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 persisted configurations, got %+v", configs)
	}

	// A sample write drops both; a bare reindex then rebuilds the default.
	if _, err := db.Exec(`DELETE FROM samples WHERE id = 'd3'`); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if op := adminOp(t, conn, "samples"); op != "reindexed:2" {
		t.Fatalf("unexpected op result %q", op)
	}
	idx, ok, err := sqlindex.LoadPersisted(context.Background(), db, "samples", sqlindex.DefaultOptions(), nil)
	if err != nil || !ok {
		t.Fatalf("LoadPersisted: ok=%v err=%v", ok, err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 indexed samples, got %d", idx.Len())
	}
}

func TestAdminReindex_Invalid(t *testing.T) {
	db, _ := openAdmin(t)
	ctx := context.Background()
	for _, op := range []string{"", "drop table", "samples leaf_size=0", "samples bogus=1"} {
		if _, err := Reindex(ctx, db, op, nil); err == nil {
			t.Fatalf("expected %q to fail", op)
		}
	}
}
