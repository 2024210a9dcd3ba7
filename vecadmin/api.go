package vecadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	idxapi "github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/index/bruteforce"
	"github.com/viant/sparsevec/vec"
	"modernc.org/sqlite/vtab"
)

// Module provides administrative operations via a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE vec_admin USING vec_admin(op);
//	SELECT op FROM vec_admin WHERE op MATCH 'main._vec_docs';            -- rebuild cosine indexes
//	SELECT op FROM vec_admin WHERE op MATCH 'main._vec_docs metric=l2';  -- rebuild l2 indexes
//
// Returns a single row with op='reindexed:<count>' on success.
type Module struct {
	mu sync.RWMutex
	db *sql.DB
}

type Table struct{ db *sql.DB }

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

var (
	registeredMu sync.Mutex
	registered   *Module
)

// Register registers vec_admin; registering again rebinds it to db.
func Register(db *sql.DB) error {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	mod := &Module{db: db}
	if err := vtab.RegisterModule(db, "vec_admin", mod); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
		if registered != nil {
			registered.mu.Lock()
			registered.db = db
			registered.mu.Unlock()
		}
		return nil
	}
	registered = mod
	return nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Connect(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec_admin: need at least 3 args")
	}
	// Single TEXT column `op` reporting results.
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Table{db: m.db}, nil
}

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
func (t *Table) Disconnect() error          { return nil }
func (t *Table) Destroy() error             { return nil }

func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	arg, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("vec_admin: MATCH expects shadow table name as TEXT")
	}
	req, err := parseRequest(arg)
	if err != nil {
		return err
	}
	n, err := Reindex(context.Background(), c.table.db, req.shadow, req.metric, bruteforce.WithCompression(req.compression))
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
		return nil, fmt.Errorf("vec_admin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }

type request struct {
	shadow      string
	metric      idxapi.Metric
	compression bruteforce.Compression
}

// parseRequest reads "<shadow> [metric=..] [compression=..]".
func parseRequest(arg string) (request, error) {
	fields := strings.FieldsFunc(arg, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) == 0 {
		return request{}, fmt.Errorf("vec_admin: MATCH expects a shadow table name")
	}
	req := request{shadow: fields[0], metric: idxapi.MetricCosine}
	for _, f := range fields[1:] {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			return req, fmt.Errorf("vec_admin: invalid option %q", f)
		}
		switch strings.ToLower(key) {
		case "metric":
			m, err := idxapi.ParseMetric(val)
			if err != nil {
				return req, fmt.Errorf("vec_admin: %w", err)
			}
			req.metric = m
		case "compression":
			c, err := bruteforce.ParseCompression(val)
			if err != nil {
				return req, fmt.Errorf("vec_admin: %w", err)
			}
			req.compression = c
		default:
			return req, fmt.Errorf("vec_admin: unknown option %q", key)
		}
	}
	return req, nil
}

// Reindex rebuilds and persists a brute-force index for every dataset of the
// given shadow table inside one transaction, then clears the cached indexes
// of that table. It returns the number of indexed documents.
func Reindex(ctx context.Context, db *sql.DB, shadow string, metric idxapi.Metric, opts ...bruteforce.Option) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	datasets, err := vec.Datasets(ctx, tx, shadow)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ds := range datasets {
		idx, err := vec.BuildIndex(ctx, tx, shadow, ds, metric, opts...)
		if err != nil {
			return 0, err
		}
		if err := vec.PersistIndex(ctx, tx, shadow, ds, idx); err != nil {
			return 0, err
		}
		total += idx.Len()
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	vec.InvalidateCache(shadow, "")
	return total, nil
}
