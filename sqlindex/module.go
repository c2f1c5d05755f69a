package sqlindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/index/balltree"
	"go.uber.org/zap"
	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name the virtual table module registers under.
const ModuleName = "balltree"

// Module implements vtab.Module for the balltree virtual table.
type Module struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *zap.Logger
}

// bind points tables created from now on at db.
func (m *Module) bind(db *sql.DB, logger *zap.Logger) {
	m.mu.Lock()
	m.db, m.logger = db, logger
	m.mu.Unlock()
}

func (m *Module) bound() (*sql.DB, *zap.Logger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db, m.logger
}

// Option configures Register.
type Option func(*Module)

// WithLogger sets the logger used for index builds.
func WithLogger(l *zap.Logger) Option { return func(m *Module) { m.logger = l } }

// Table is one balltree virtual table over a sample table.
type Table struct {
	db        *sql.DB
	logger    *zap.Logger
	dbName    string
	tableName string
	samples   string
	opts      Options

	dbPathOnce sync.Once
	dbPath     string
}

var registerInvalidateOnce sync.Once

// registered is the process wide module instance: the driver keeps the first
// registration, so later calls rebind it instead.
var registered = &Module{}

// Register registers the balltree virtual table module and the
// balltree_invalidate(table) scalar function used by the sample table
// triggers. Tables created after the call read their samples through db.
//
// The driver installs the module only on the first connection it opens after
// registration; run virtual table statements on the connection that issued
// CREATE VIRTUAL TABLE.
func Register(db *sql.DB, opts ...Option) error {
	cfg := &Module{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	registerInvalidateOnce.Do(func() { _ = sqlite.RegisterDeterministicScalarFunction("balltree_invalidate", 1, invalidateFunc) })
	registered.bind(db, cfg.logger)
	if err := vtab.RegisterModule(db, ModuleName, registered); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

// Create initializes a balltree table instance. Storage tables are created
// on first use to avoid cross-connection DDL while the statement runs.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, "CREATE", args)
}

// Connect attaches to an existing balltree table instance.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, "CONNECT", args)
}

func (m *Module) connect(ctx vtab.Context, verb string, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("sqlindex: %s expects at least 3 args, got %d", verb, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("sqlindex: EnableConstraintSupport failed: %w", err)
	}
	samples := dataset.DefaultTable
	optStart := 3
	if len(args) > 3 {
		a := strings.TrimSpace(args[3])
		if a != "" && !strings.Contains(a, "=") {
			samples = strings.Trim(a, `'"`)
			optStart = 4
		}
	}
	if err := dataset.ValidateTableName(samples); err != nil {
		return nil, fmt.Errorf("sqlindex: %w", err)
	}
	opts, err := ParseOptions(args[optStart:])
	if err != nil {
		return nil, err
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(id TEXT, label TEXT, distance REAL HIDDEN, k INTEGER HIDDEN, radius REAL HIDDEN)", args[2])); err != nil {
		return nil, err
	}
	db, logger := m.bound()
	return &Table{db: db, logger: logger, dbName: args[1], tableName: args[2], samples: samples, opts: opts}, nil
}

const (
	colID = iota
	colLabel
	colDistance
	colK
	colRadius
)

// Query plans are a bit set over the pushed down constraints; the arguments
// arrive in MATCH, k, radius order.
const (
	idxScan   = 0
	idxMatch  = 1
	idxK      = 2
	idxRadius = 4
)

// BestIndex pushes down MATCH on id and equality on the hidden k and radius
// columns.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var match, k, radius *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colID && c.Op == vtab.OpMATCH:
			match = c
		case c.Column == colK && c.Op == vtab.OpEQ:
			k = c
		case c.Column == colRadius && c.Op == vtab.OpEQ:
			radius = c
		}
	}
	if match == nil {
		if k != nil || radius != nil {
			return fmt.Errorf("sqlindex: k and radius require an id MATCH constraint")
		}
		info.IdxNum = idxScan
		return nil
	}
	next := 0
	info.IdxNum = idxMatch
	for _, planned := range []struct {
		c   *vtab.Constraint
		bit int
	}{{match, 0}, {k, idxK}, {radius, idxRadius}} {
		if planned.c == nil {
			continue
		}
		planned.c.ArgIndex = next
		planned.c.Omit = true
		info.IdxNum |= planned.bit
		next++
	}
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect cleans up per-connection resources.
func (t *Table) Disconnect() error { return nil }

// Destroy keeps the sample table and persisted trees.
func (t *Table) Destroy() error { return nil }

type row struct {
	rowid    int64
	id       string
	label    string
	distance interface{}
}

// Cursor iterates over the rows of one Filter call.
type Cursor struct {
	table  *Table
	rows   []row
	pos    int
	k      interface{}
	radius interface{}
}

// Filter computes the result set based on idxNum/vals. Without MATCH it
// lists the sample table; with MATCH it returns the k nearest samples (k
// defaults to 1), or every sample within radius, nearest first. When both k
// and radius are given the nearest k within radius are returned.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	_ = idxStr
	c.rows, c.pos, c.k, c.radius = nil, 0, nil, nil
	if c.table == nil || c.table.db == nil {
		return nil
	}
	ctx := context.Background()
	if idxNum == idxScan {
		return c.scan(ctx)
	}
	if len(vals) == 0 || vals[0] == nil {
		return fmt.Errorf("sqlindex: MATCH argument is required")
	}
	query, err := decodeMatchArg(vals[0])
	if err != nil {
		return err
	}
	next := 1
	k := 1
	if idxNum&idxK != 0 {
		if k, err = asInt(vals[next]); err != nil {
			return err
		}
		if k < 1 {
			return fmt.Errorf("sqlindex: k must be greater than 0, %d given: %w", k, balltree.ErrInvalidConfiguration)
		}
		c.k = int64(k)
		next++
	}
	idx, err := c.table.ensureIndex(ctx)
	if err != nil {
		return err
	}
	var found []balltree.Match
	if idxNum&idxRadius != 0 {
		radius, err := asFloat(vals[next])
		if err != nil {
			return err
		}
		c.radius = radius
		if found, err = idx.Within(query, radius); err != nil {
			return err
		}
		if c.k != nil && len(found) > k {
			found = found[:k]
		}
	} else if found, err = idx.Nearest(query, k); err != nil {
		return err
	}
	out := make([]row, 0, len(found))
	for _, m := range found {
		rid, err := c.table.lookupRow(ctx, m.ID)
		if err != nil {
			return err
		}
		if rid == 0 {
			continue
		}
		out = append(out, row{rowid: rid, id: m.ID, label: m.Label, distance: m.Distance})
	}
	c.rows = out
	return nil
}

func (c *Cursor) scan(ctx context.Context) error {
	if err := dataset.EnsureSchema(c.table.db, c.table.samples); err != nil {
		return err
	}
	rows, err := c.table.db.QueryContext(ctx, fmt.Sprintf("SELECT rowid, id, label FROM %s ORDER BY rowid", c.table.samples))
	if err != nil {
		return err
	}
	defer rows.Close()
	var out []row
	for rows.Next() {
		var r row
		var label sql.NullString
		if err := rows.Scan(&r.rowid, &r.id, &label); err != nil {
			return err
		}
		r.label = label.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	c.rows = out
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of a column in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("sqlindex: Column out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	r := c.rows[c.pos]
	switch col {
	case colID:
		return r.id, nil
	case colLabel:
		return r.label, nil
	case colDistance:
		return r.distance, nil
	case colK:
		return c.k, nil
	case colRadius:
		return c.radius, nil
	}
	return nil, fmt.Errorf("sqlindex: unsupported column %d", col)
}

// Rowid returns the sample table rowid of the current row.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return 0, fmt.Errorf("sqlindex: Rowid out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	return c.rows[c.pos].rowid, nil
}

// Close releases resources.
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }

func (t *Table) cachedDbPath(ctx context.Context) string {
	t.dbPathOnce.Do(func() {
		path, err := resolveDbPath(ctx, t.db, t.dbName)
		if err != nil {
			t.logger.Warn("cannot resolve database path", zap.String("db", t.dbName), zap.Error(err))
			path = t.dbName
			if path == "" {
				path = "main"
			}
		}
		t.dbPath = path
	})
	return t.dbPath
}

// ensureIndex returns the cached tree for the table, loading the persisted
// one or growing and persisting a new one when needed. Concurrent callers
// wait for a single build.
func (t *Table) ensureIndex(ctx context.Context) (*balltree.Index, error) {
	if err := Prepare(ctx, t.db, t.samples); err != nil {
		return nil, err
	}
	s := slotFor(t.cachedDbPath(ctx), t.samples, t.opts.Key())
	for {
		idx, gen := s.snapshot()
		if idx != nil {
			return idx, nil
		}
		idx, ok, err := LoadPersisted(ctx, t.db, t.samples, t.opts, t.logger)
		if err != nil {
			return nil, err
		}
		if ok {
			s.publish(gen, idx)
			return idx, nil
		}
		if gen, claimed := s.claim(); claimed {
			return t.grow(ctx, s, gen)
		}
		if idx := s.wait(); idx != nil {
			return idx, nil
		}
	}
}

// grow builds the tree for a claimed slot under the cross-process lease.
func (t *Table) grow(ctx context.Context, s *slot, gen uint64) (*balltree.Index, error) {
	defer s.release()
	config := t.opts.Key()
	lease, err := leaseBuild(ctx, t.db, t.samples, config)
	if err != nil {
		return nil, err
	}
	defer lease.release()

	// Another process may have stored the tree while we waited.
	if idx, ok, err := LoadPersisted(ctx, t.db, t.samples, t.opts, t.logger); err != nil {
		return nil, err
	} else if ok {
		s.publish(gen, idx)
		return idx, nil
	}
	idx, current, err := build(ctx, t.db, t.samples, t.opts, t.logger)
	if err != nil {
		return nil, err
	}
	if current {
		s.publish(gen, idx)
	}
	return idx, nil
}

// lookupRow resolves the sample table rowid of id; 0 means the row is gone.
func (t *Table) lookupRow(ctx context.Context, id string) (int64, error) {
	var rid int64
	err := t.db.QueryRowContext(ctx, fmt.Sprintf("SELECT rowid FROM %s WHERE id = ?", t.samples), id).Scan(&rid)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return rid, err
}
