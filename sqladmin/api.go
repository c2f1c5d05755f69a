package sqladmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/sqlindex"
	"go.uber.org/zap"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name the admin module registers under.
const ModuleName = "balltree_admin"

// Module provides administrative operations via a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE bt_admin USING balltree_admin(op);
//	SELECT op FROM bt_admin WHERE op MATCH 'samples';                       -- rebuild persisted trees
//	SELECT op FROM bt_admin WHERE op MATCH 'samples leaf_size=8 kernel=l1'; -- rebuild one configuration
//
// Returns a single row with op='reindexed:<count>' on success.
type Module struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *zap.Logger
}

// registered is rebound by every Register call; the driver keeps the first
// module it was given.
var registered = &Module{}

// Table is an admin table instance.
type Table struct {
	db     *sql.DB
	logger *zap.Logger
}

// Cursor holds the result of one operation.
type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// Register registers the balltree_admin module with db. The logger may be
// nil.
func Register(db *sql.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	registered.mu.Lock()
	registered.db, registered.logger = db, logger
	registered.mu.Unlock()
	if err := vtab.RegisterModule(db, ModuleName, registered); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

// Create declares the single op column.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("sqladmin: need at least 3 args")
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Table{db: m.db, logger: m.logger}, nil
}

// Connect declares the single op column.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

// BestIndex pushes down MATCH on op.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error { return nil }
func (t *Table) Destroy() error { return nil }

// Filter runs the operation named by MATCH.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	arg, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("sqladmin: MATCH expects sample table name as TEXT")
	}
	n, err := Reindex(context.Background(), c.table.db, arg, c.table.logger)
	if err != nil {
		return err
	}
	c.rows = []string{fmt.Sprintf("reindexed:%d", n)}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("sqladmin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }

// Reindex rebuilds and persists ball trees for the sample table named by
// the first word of op. Remaining key=value words select a single
// configuration; without them every persisted configuration is rebuilt, or
// the default one when none is stored. It returns the number of indexed
// samples.
func Reindex(ctx context.Context, db *sql.DB, op string, logger *zap.Logger) (int, error) {
	fields := strings.Fields(op)
	if len(fields) == 0 {
		return 0, fmt.Errorf("sqladmin: MATCH expects a sample table name")
	}
	table := fields[0]
	if err := dataset.ValidateTableName(table); err != nil {
		return 0, fmt.Errorf("sqladmin: %w", err)
	}
	var configs []sqlindex.Options
	if len(fields) > 1 {
		opts, err := sqlindex.ParseOptions(fields[1:])
		if err != nil {
			return 0, err
		}
		configs = append(configs, opts)
	} else {
		if err := sqlindex.Prepare(ctx, db, table); err != nil {
			return 0, err
		}
		persisted, err := sqlindex.PersistedConfigs(ctx, db, table)
		if err != nil {
			return 0, err
		}
		configs = persisted
		if len(configs) == 0 {
			configs = append(configs, sqlindex.DefaultOptions())
		}
	}
	count := 0
	for _, opts := range configs {
		idx, err := sqlindex.Rebuild(ctx, db, table, opts, logger)
		if err != nil {
			return 0, err
		}
		count = idx.Len()
	}
	return count, nil
}
