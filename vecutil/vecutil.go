package vecutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/sparsevec/vec"
	"github.com/viant/sparsevec/vector"
)

// EmbedFunc converts free-form text into a sparse embedding.
//
// Implementations can call any featurizer (token counts, TF-IDF, learned
// sparse encoders, etc.) as long as they return a *vector.SparseVector. The
// core packages remain embedding-agnostic and only depend on the vectors and
// their encoded BLOB representation.
type EmbedFunc func(ctx context.Context, text string) (*vector.SparseVector, error)

// ShadowTableName derives the default shadow table name for a given vec
// virtual table. It mirrors the naming convention used by the vec module,
// which prefixes the table name with _vec_.
//
// For example:
//
//	ShadowTableName("vec_basic") == "_vec_vec_basic".
//
// Schema/database qualification (e.g. main.) is handled by SQLite; this helper
// only returns the bare table name.
func ShadowTableName(virtualTable string) string {
	return "_vec_" + virtualTable
}

// UpsertShadowDocument inserts or updates a document row in a vec shadow
// table, computing the embedding from content using the provided EmbedFunc.
//
// The shadow table follows the schema created by vec.EnsureShadow, keyed by
// (dataset_id, id). Table names are interpolated into SQL; callers should
// ensure that shadowTable is trusted and not derived from untrusted input.
func UpsertShadowDocument(
	ctx context.Context,
	db vec.Execer,
	shadowTable string,
	embed EmbedFunc,
	datasetID, id, content, meta string,
) error {
	if db == nil {
		return fmt.Errorf("vecutil: db is nil")
	}
	if embed == nil {
		return fmt.Errorf("vecutil: EmbedFunc is nil")
	}
	v, err := embed(ctx, content)
	if err != nil {
		return err
	}
	return upsertEmbedding(ctx, db, shadowTable, datasetID, id, content, meta, v)
}

func upsertEmbedding(ctx context.Context, db vec.Execer, shadowTable, datasetID, id, content, meta string, v *vector.SparseVector) error {
	blob, err := vector.EncodeEmbedding(v)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`
INSERT INTO %s(dataset_id, id, content, meta, embedding)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(dataset_id, id) DO UPDATE SET
  content = excluded.content,
  meta = excluded.meta,
  embedding = excluded.embedding`, shadowTable)
	_, err = db.ExecContext(ctx, stmt, datasetID, id, content, meta, blob)
	return err
}

// MatchText executes a MATCH query against a vec virtual table by first
// converting the free-form query text into an embedding via EmbedFunc.
//
// column is the visible id column declared in USING vec(column). It returns
// the ids in the order returned by the underlying index. When limit <= 0, all
// matches are returned; otherwise a SQL LIMIT is applied.
func MatchText(
	ctx context.Context,
	db *sql.DB,
	virtualTable, column, datasetID string,
	embed EmbedFunc,
	query string,
	limit int,
) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("vecutil: db is nil")
	}
	if embed == nil {
		return nil, fmt.Errorf("vecutil: EmbedFunc is nil")
	}
	q, err := embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return matchIDs(ctx, db, virtualTable, column, datasetID, q, limit)
}

func matchIDs(ctx context.Context, db *sql.DB, virtualTable, column, datasetID string, query *vector.SparseVector, limit int) ([]string, error) {
	blob, err := vector.EncodeEmbedding(query)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("SELECT %s FROM %s WHERE dataset_id = ? AND %s MATCH ?", column, virtualTable, column)
	var rows *sql.Rows
	if limit > 0 {
		rows, err = db.QueryContext(ctx, base+" LIMIT ?", datasetID, blob, limit)
	} else {
		rows, err = db.QueryContext(ctx, base, datasetID, blob)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
