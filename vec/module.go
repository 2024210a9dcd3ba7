package vec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	idxapi "github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/index/bruteforce"
	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// Module implements vtab.Module for the vec virtual table. It creates a
// per-table shadow store and supports MATCH-based similarity scans.
type Module struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *slog.Logger
}

// Option configures the registered module.
type Option func(*Module)

// WithLogger sets the logger used for index build and load events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Table represents a single vec virtual table instance.
type Table struct {
	db        *sql.DB
	dbName    string
	tableName string
	shadow    string // qualified shadow table name (e.g. "main._vec_docs")
	logger    *slog.Logger

	dbPathOnce sync.Once
	dbPath     string

	metric      idxapi.Metric
	compression bruteforce.Compression
}

type tableOptions struct {
	metric      idxapi.Metric
	compression bruteforce.Compression
}

// parseTableOptions reads key=value arguments; unknown keys are ignored.
func parseTableOptions(args []string) (tableOptions, error) {
	opts := tableOptions{metric: idxapi.MetricCosine, compression: bruteforce.CompressionZSTD}
	for _, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.Trim(strings.TrimSpace(parts[1]), `'"`)
		switch key {
		case "metric":
			m, err := idxapi.ParseMetric(val)
			if err != nil {
				return opts, fmt.Errorf("vec: %w", err)
			}
			opts.metric = m
		case "compression":
			c, err := bruteforce.ParseCompression(val)
			if err != nil {
				return opts, fmt.Errorf("vec: %w", err)
			}
			opts.compression = c
		}
	}
	return opts, nil
}

// DeclaredMetric returns the metric a vec virtual table named table was
// created with, cosine when its declaration names none. ok is false when no
// such vec table exists in db.
func DeclaredMetric(ctx context.Context, db *sql.DB, table string) (metric idxapi.Metric, ok bool, err error) {
	var createSQL sql.NullString
	err = db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, table).Scan(&createSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("vec: read declaration of %s: %w", table, err)
	}
	opts, ok, err := declaredOptions(createSQL.String)
	if err != nil || !ok {
		return 0, false, err
	}
	return opts.metric, true, nil
}

var vecDeclaration = regexp.MustCompile(`(?is)^\s*create\s+virtual\s+table\b.*?\busing\s+vec\s*\((.*)\)\s*;?\s*$`)

// declaredOptions extracts the table options of a CREATE VIRTUAL TABLE ...
// USING vec(...) statement. ok is false for any other statement.
func declaredOptions(createSQL string) (opts tableOptions, ok bool, err error) {
	m := vecDeclaration.FindStringSubmatch(createSQL)
	if m == nil {
		return opts, false, nil
	}
	opts, err = parseTableOptions(strings.Split(m[1], ","))
	return opts, err == nil, err
}

var (
	registerInvalidateOnce sync.Once
	registeredMu           sync.Mutex
	registered             *Module
)

// Register registers the vec virtual table module with the provided *sql.DB.
// Module registration outlives the first database, so registering again
// rebinds the existing module to db and the given options; tables connected
// afterwards read through the new handle.
func Register(db *sql.DB, opts ...Option) error {
	mod := &Module{db: db, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(mod)
	}
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if err := vtab.RegisterModule(db, "vec", mod); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
		if registered != nil {
			registered.rebind(mod.db, mod.logger)
		}
	} else {
		registered = mod
	}
	// Register vec_invalidate globally for new connections; idempotent.
	registerInvalidateOnce.Do(func() { _ = sqlite.RegisterDeterministicScalarFunction("vec_invalidate", 2, invalidateFunc) })
	return nil
}

func (m *Module) rebind(db *sql.DB, logger *slog.Logger) {
	m.mu.Lock()
	m.db, m.logger = db, logger
	m.mu.Unlock()
}

func (m *Module) handles() (*sql.DB, *slog.Logger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db, m.logger
}

// Create initializes a vec table instance. Shadow and storage tables are
// created on first use to avoid cross-connection DDL during xCreate.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, "CREATE", args)
}

// Connect attaches to an existing vec table instance.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, "CONNECT", args)
}

func (m *Module) connect(ctx vtab.Context, op string, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec: %s expects at least 3 args, got %d", op, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("vec: EnableConstraintSupport failed: %w", err)
	}
	// Determine declared column name from args (e.g. USING vec(doc_id)).
	col := "doc_id"
	optStart := 3
	if len(args) > 3 {
		a := strings.TrimSpace(args[3])
		if a != "" && !strings.Contains(a, "=") {
			col = a
			optStart = 4
		}
	}
	opts, err := parseTableOptions(args[optStart:])
	if err != nil {
		return nil, err
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(dataset_id TEXT, %s TEXT, match_score REAL HIDDEN)", args[2], col)); err != nil {
		return nil, err
	}
	db, logger := m.handles()
	t := &Table{
		db:          db,
		dbName:      args[1],
		tableName:   args[2],
		logger:      logger,
		metric:      opts.metric,
		compression: opts.compression,
	}
	t.shadow = qualifiedShadow(t.dbName, t.tableName)
	return t, nil
}

const (
	idxDatasetScan = iota
	idxDatasetMatch
	idxDatasetMatchScoreGE
	idxDatasetMatchScoreGT
)

// BestIndex requires dataset_id equality and pushes down MATCH on the
// second column. A lower bound on match_score is pushed down for metrics
// where higher scores rank first; other score constraints are left to SQLite.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var (
		datasetConstraint *vtab.Constraint
		matchConstraint   *vtab.Constraint
		scoreConstraint   *vtab.Constraint
		nextArg           int
	)

	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == 0 && c.Op == vtab.OpEQ:
			datasetConstraint = c
		case c.Column == 1 && c.Op == vtab.OpMATCH:
			matchConstraint = c
		case c.Column == 2 && (c.Op == vtab.OpGE || c.Op == vtab.OpGT) && !t.metric.Ascending():
			scoreConstraint = c
		}
	}

	if datasetConstraint == nil {
		if matchConstraint != nil {
			return fmt.Errorf("vec: dataset_id constraint is required with MATCH")
		}
		return fmt.Errorf("vec: dataset_id constraint required")
	}
	datasetConstraint.ArgIndex = nextArg
	datasetConstraint.Omit = true
	nextArg++

	if matchConstraint == nil {
		info.IdxNum = idxDatasetScan
		return nil
	}
	matchConstraint.ArgIndex = nextArg
	matchConstraint.Omit = true
	nextArg++
	info.IdxNum = idxDatasetMatch

	if scoreConstraint != nil {
		scoreConstraint.ArgIndex = nextArg
		scoreConstraint.Omit = true
		info.IdxNum = idxDatasetMatchScoreGE
		if scoreConstraint.Op == vtab.OpGT {
			info.IdxNum = idxDatasetMatchScoreGT
		}
	}
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect cleans up per-connection resources.
func (t *Table) Disconnect() error { return nil }

// Destroy drops nothing; the shadow table and persisted indexes outlive the
// virtual table.
func (t *Table) Destroy() error { return nil }

// qualifiedShadow returns a fully-qualified shadow table name.
func qualifiedShadow(dbName, tableName string) string {
	base := "_vec_" + tableName
	if strings.TrimSpace(dbName) == "" {
		return base
	}
	return dbName + "." + base
}

func tableNameFromShadow(shadow string) string {
	if shadow == "" {
		return ""
	}
	if i := strings.Index(shadow, "._vec_"); i >= 0 {
		return shadow[i+len("._vec_"):]
	}
	if strings.HasPrefix(shadow, "_vec_") {
		return strings.TrimPrefix(shadow, "_vec_")
	}
	return ""
}
