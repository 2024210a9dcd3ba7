package vec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	idxapi "github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/index/bruteforce"
	"github.com/viant/sparsevec/vector"
	"modernc.org/sqlite/vtab"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ShadowName returns the qualified shadow table name backing a vec table
// created in the main database.
func ShadowName(table string) string { return qualifiedShadow("main", table) }

// EnsureShadow creates the vector_storage tables, the shadow table and its
// invalidation triggers when missing. Every insert, update or delete on the
// shadow drops the persisted index of the affected dataset and clears the
// in-memory cache through vec_invalidate.
func EnsureShadow(ctx context.Context, db Execer, shadow string) error {
	if db == nil {
		return fmt.Errorf("vec: db is nil")
	}
	if err := ensureVectorStorage(ctx, db); err != nil {
		return err
	}
	if err := ensureVectorStorageLocks(ctx, db); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    dataset_id TEXT NOT NULL,
    id TEXT NOT NULL,
    content TEXT,
    meta TEXT,
    embedding BLOB,
    PRIMARY KEY(dataset_id, id)
);
`, shadow)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return err
	}
	trigBase := sanitizeName("trg_vec_" + shadow)
	shadowLit := quoteLiteral(shadow)
	delNew := `DELETE FROM vector_storage WHERE shadow_table_name = ` + shadowLit + ` AND dataset_id = NEW.dataset_id;`
	invNew := `SELECT vec_invalidate(` + shadowLit + `, NEW.dataset_id);`
	delOld := `DELETE FROM vector_storage WHERE shadow_table_name = ` + shadowLit + ` AND dataset_id = OLD.dataset_id;`
	invOld := `SELECT vec_invalidate(` + shadowLit + `, OLD.dataset_id);`
	triggers := []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_ins AFTER INSERT ON %s BEGIN %s %s END;`, trigBase, shadow, delNew, invNew),
		// both datasets are invalidated so rows moving between datasets are handled
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_upd AFTER UPDATE ON %s BEGIN %s %s %s %s END;`, trigBase, shadow, delNew, invNew, delOld, invOld),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_del AFTER DELETE ON %s BEGIN %s %s END;`, trigBase, shadow, delOld, invOld),
	}
	for _, trig := range triggers {
		if _, err := db.ExecContext(ctx, trig); err != nil {
			return err
		}
	}
	return nil
}

// ensureVectorStorage ensures the shared vector_storage table exists.
func ensureVectorStorage(ctx context.Context, db Execer) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS vector_storage (
    shadow_table_name TEXT NOT NULL,
    dataset_id        TEXT NOT NULL DEFAULT '',
    "index"           BLOB,
    PRIMARY KEY (shadow_table_name, dataset_id)
)`)
	return err
}

func ensureVectorStorageLocks(ctx context.Context, db Execer) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS vector_storage_locks (
    shadow_table_name TEXT NOT NULL,
    dataset_id        TEXT NOT NULL DEFAULT '',
    owner             TEXT NOT NULL,
    locked_at         INTEGER NOT NULL,
    PRIMARY KEY (shadow_table_name, dataset_id)
)`)
	return err
}

// Datasets lists the distinct dataset ids stored in shadow.
func Datasets(ctx context.Context, db Queryer, shadow string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT dataset_id FROM %s ORDER BY dataset_id", shadow))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// BuildIndex loads the non-empty embeddings of dataset from shadow, in rowid
// order, into a brute-force index scoring with metric.
func BuildIndex(ctx context.Context, db Queryer, shadow, dataset string, metric idxapi.Metric, opts ...bruteforce.Option) (*bruteforce.Index, error) {
	q := fmt.Sprintf("SELECT id, embedding FROM %s WHERE dataset_id = ? AND embedding IS NOT NULL ORDER BY rowid", shadow)
	rows, err := db.QueryContext(ctx, q, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	var vecs []*vector.SparseVector
	for rows.Next() {
		var id string
		var emb []byte
		if err := rows.Scan(&id, &emb); err != nil {
			return nil, err
		}
		if len(emb) == 0 {
			continue
		}
		v, err := vector.DecodeEmbedding(emb)
		if err != nil {
			return nil, fmt.Errorf("vec: %s/%s: %w", dataset, id, err)
		}
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	idx := bruteforce.New(metric, opts...)
	if err := idx.Build(ids, vecs); err != nil {
		return nil, err
	}
	return idx, nil
}

// PersistIndex stores the serialized index for shadow/dataset in vector_storage.
func PersistIndex(ctx context.Context, db Execer, shadow, dataset string, idx idxapi.Index) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO vector_storage(shadow_table_name, dataset_id, "index") VALUES(?, ?, ?)`, shadow, dataset, data)
	return err
}

func (t *Table) ensureShadow(ctx context.Context) error {
	if t.db == nil {
		return fmt.Errorf("vec: db is nil")
	}
	return EnsureShadow(ctx, t.db, t.shadow)
}

func resolveDbPath(ctx context.Context, db *sql.DB, dbName string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("vec: db is nil")
	}
	rows, err := db.QueryContext(ctx, `SELECT name, file FROM pragma_database_list`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	if dbName == "" {
		dbName = "main"
	}
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return "", err
		}
		if name == dbName {
			if file == "" {
				return name, nil
			}
			return file, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return dbName, nil
}

func (t *Table) cachedDbPath(ctx context.Context) string {
	t.dbPathOnce.Do(func() {
		path, err := resolveDbPath(ctx, t.db, t.dbName)
		if err != nil {
			t.logger.Debug("vec: resolve db path", "table", t.tableName, "err", err)
			path = t.dbName
			if path == "" {
				path = "main"
			}
		}
		t.dbPath = path
	})
	return t.dbPath
}

// loadPersistedIndex returns the stored index when it decodes and was built
// with the table metric; anything else is treated as stale.
func (t *Table) loadPersistedIndex(ctx context.Context, dataset string) (idxapi.Index, bool, error) {
	var blob []byte
	err := t.db.QueryRowContext(ctx, `SELECT "index" FROM vector_storage WHERE shadow_table_name = ? AND dataset_id = ?`, t.shadow, dataset).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(blob) == 0 {
		return nil, false, nil
	}
	b := &bruteforce.Index{}
	if err := b.UnmarshalBinary(blob); err != nil {
		t.logger.Debug("vec: discard persisted index", "shadow", t.shadow, "dataset", dataset, "err", err)
		return nil, false, nil
	}
	if b.Metric() != t.metric {
		return nil, false, nil
	}
	return b, true, nil
}

const (
	lockRetryDelay = 50 * time.Millisecond
	lockStaleAfter = 2 * time.Minute
)

var lockOwnerID = fmt.Sprintf("pid:%d-%d", os.Getpid(), time.Now().UnixNano())

func acquireIndexBuildLock(ctx context.Context, db *sql.DB, shadow, dataset string) (func(), error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := time.Now().Unix()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO vector_storage_locks(shadow_table_name, dataset_id, owner, locked_at) VALUES(?, ?, ?, ?)`, shadow, dataset, lockOwnerID, now); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		var owner string
		var lockedAt int64
		if err := tx.QueryRowContext(ctx, `SELECT owner, locked_at FROM vector_storage_locks WHERE shadow_table_name = ? AND dataset_id = ?`, shadow, dataset).Scan(&owner, &lockedAt); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if owner != lockOwnerID && lockedAt <= time.Now().Add(-lockStaleAfter).Unix() {
			res, err := tx.ExecContext(ctx, `UPDATE vector_storage_locks SET owner = ?, locked_at = ? WHERE shadow_table_name = ? AND dataset_id = ? AND locked_at = ?`, lockOwnerID, now, shadow, dataset, lockedAt)
			if err != nil {
				_ = tx.Rollback()
				return nil, err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				owner = lockOwnerID
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		if owner == lockOwnerID {
			return func() {
				_, _ = db.ExecContext(context.Background(), `DELETE FROM vector_storage_locks WHERE shadow_table_name = ? AND dataset_id = ? AND owner = ?`, shadow, dataset, lockOwnerID)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// ensureIndex loads or builds an in-memory index and persists it in vector_storage.
func (t *Table) ensureIndex(ctx context.Context, dataset string) (idxapi.Index, error) {
	if strings.TrimSpace(dataset) == "" {
		return nil, fmt.Errorf("vec: dataset_id is required for ensureIndex")
	}
	if err := t.ensureShadow(ctx); err != nil {
		return nil, err
	}

	entry := sharedCache.entry(indexKey{dbPath: t.cachedDbPath(ctx), table: t.tableName, dataset: dataset})
	if idx := entry.load(); idx != nil {
		return idx, nil
	}
	gen := entry.generation()
	if idx, ok, err := t.loadPersistedIndex(ctx, dataset); err != nil {
		return nil, err
	} else if ok {
		t.logger.Debug("vec: loaded persisted index", "shadow", t.shadow, "dataset", dataset)
		entry.storeIfCurrent(idx, gen)
		return idx, nil
	}

	for {
		var (
			idx   idxapi.Index
			wait  <-chan struct{}
			build bool
		)
		idx, wait, gen, build = entry.claim()
		if idx != nil {
			return idx, nil
		}
		if build {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
	defer entry.release()

	unlock, err := acquireIndexBuildLock(ctx, t.db, t.shadow, dataset)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// another process may have persisted while we waited for the lock
	if idx, ok, err := t.loadPersistedIndex(ctx, dataset); err != nil {
		return nil, err
	} else if ok {
		entry.storeIfCurrent(idx, gen)
		return idx, nil
	}

	started := time.Now()
	built, err := BuildIndex(ctx, t.db, t.shadow, dataset, t.metric, bruteforce.WithCompression(t.compression))
	if err != nil {
		return nil, err
	}
	t.logger.Debug("vec: built index", "shadow", t.shadow, "dataset", dataset,
		"metric", t.metric.String(), "docs", built.Len(), "elapsed", time.Since(started))
	// a shadow write during the build invalidated the entry; serve this
	// snapshot once but neither persist nor cache it
	if entry.generation() != gen {
		t.logger.Debug("vec: discarding stale index", "shadow", t.shadow, "dataset", dataset)
		return built, nil
	}
	if err := PersistIndex(ctx, t.db, t.shadow, dataset, built); err != nil {
		t.logger.Warn("vec: persist index", "shadow", t.shadow, "dataset", dataset, "err", err)
	}
	entry.storeIfCurrent(built, gen)
	return built, nil
}

// rowids maps ids of dataset to shadow rowids.
func (t *Table) rowids(ctx context.Context, dataset string) (map[string]int64, error) {
	q := fmt.Sprintf("SELECT rowid, id FROM %s WHERE dataset_id = ?", t.shadow)
	rows, err := t.db.QueryContext(ctx, q, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var rid int64
		var id string
		if err := rows.Scan(&rid, &id); err != nil {
			return nil, err
		}
		out[id] = rid
	}
	return out, rows.Err()
}

func asFloat(v vtab.Value) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case []byte:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return 0, fmt.Errorf("vec: cannot parse score %q: %w", string(val), err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("vec: cannot parse score %q: %w", val, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("vec: unsupported score type %T", v)
	}
}

func asString(v vtab.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case nil:
		return "", fmt.Errorf("vec: dataset_id is nil")
	default:
		return "", fmt.Errorf("vec: unsupported dataset_id type %T", v)
	}
}

// sanitizeName converts a qualified name into a safe identifier for triggers.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ':
			return '_'
		}
		return r
	}, name)
}

// quoteLiteral returns SQL string literal with single quotes escaped for safe embedding.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
