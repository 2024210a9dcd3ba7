package vecutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/viant/sparsevec/vec"
	"github.com/viant/sparsevec/vector"
)

// Index provides a higher-level, Pinecone-style API on top of a vec virtual
// table and its shadow table. It remains embedding-agnostic by requiring an
// EmbedFunc supplied by the caller.
type Index struct {
	DB          *sql.DB
	VirtualName string
	Column      string
	ShadowName  string
	DatasetID   string
	Embed       EmbedFunc

	logger      *slog.Logger
	concurrency int
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets the logger used for upsert and query events.
func WithLogger(logger *slog.Logger) IndexOption {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithConcurrency bounds the number of documents embedded in parallel.
func WithConcurrency(n int) IndexOption {
	return func(ix *Index) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithColumn sets the visible id column declared in USING vec(column);
// defaults to doc_id.
func WithColumn(column string) IndexOption {
	return func(ix *Index) {
		if column != "" {
			ix.Column = column
		}
	}
}

// NewIndex constructs an Index for a given vec virtual table name.
//
// The qualified shadow table name is derived using vec.ShadowName. The caller
// is responsible for having created the virtual table; the shadow table is
// created on first upsert.
func NewIndex(db *sql.DB, virtualTable string, datasetID string, embed EmbedFunc, opts ...IndexOption) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("vecutil: db is nil")
	}
	if embed == nil {
		return nil, fmt.Errorf("vecutil: EmbedFunc is nil")
	}
	ix := &Index{
		DB:          db,
		VirtualName: virtualTable,
		Column:      "doc_id",
		ShadowName:  vec.ShadowName(virtualTable),
		DatasetID:   datasetID,
		Embed:       embed,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Document represents a logical document stored in the vec shadow table.
// Metadata is modeled as a raw JSON (or other encoding) string for maximum
// flexibility.
type Document struct {
	ID      string
	Content string
	Meta    string
}

// Match represents a single similarity search hit.
type Match struct {
	ID      string
	Score   float64
	Content string
	Meta    string
}

// UpsertDocumentsText upserts the provided documents into the shadow table,
// computing embeddings from Content using the Index's EmbedFunc.
//
// Embeddings are computed concurrently; the writes then happen in a single
// transaction, so either every document is stored or none is.
func (ix *Index) UpsertDocumentsText(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	embeddings := make([]*vector.SparseVector, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, d := range docs {
		g.Go(func() error {
			v, err := ix.Embed(gctx, d.Content)
			if err != nil {
				return fmt.Errorf("vecutil: embed %q: %w", d.ID, err)
			}
			embeddings[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := vec.EnsureShadow(ctx, ix.DB, ix.ShadowName); err != nil {
		return err
	}
	tx, err := ix.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for i, d := range docs {
		if err := upsertEmbedding(ctx, tx, ix.ShadowName, ix.DatasetID, d.ID, d.Content, d.Meta, embeddings[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ix.logger.Debug("vecutil: upserted documents", "table", ix.VirtualName, "dataset", ix.DatasetID, "count", len(docs))
	return nil
}

// DeleteDocuments removes documents with the given ids from the shadow table.
// Triggers installed by the vec module will invalidate any persisted index
// entries, causing them to be rebuilt on the next MATCH query.
func (ix *Index) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if ix.DB == nil {
		return fmt.Errorf("vecutil: DB is nil on Index")
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE dataset_id = ? AND id = ?", ix.ShadowName)
	for _, id := range ids {
		if _, err := ix.DB.ExecContext(ctx, stmt, ix.DatasetID, id); err != nil {
			return err
		}
	}
	ix.logger.Debug("vecutil: deleted documents", "table", ix.VirtualName, "dataset", ix.DatasetID, "count", len(ids))
	return nil
}

// QueryText performs a similarity search using the provided query text. It
// uses the vec virtual table for kNN ordering and then computes cosine
// similarity scores in Go for each match; entries with an undefined cosine
// (zero-length embeddings) score 0.
//
// When k <= 0, all matches returned by the underlying index are included.
func (ix *Index) QueryText(ctx context.Context, query string, k int) ([]Match, error) {
	if ix.DB == nil {
		return nil, fmt.Errorf("vecutil: DB is nil on Index")
	}
	if ix.Embed == nil {
		return nil, fmt.Errorf("vecutil: EmbedFunc is nil on Index")
	}

	qVec, err := ix.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	ids, err := matchIDs(ctx, ix.DB, ix.VirtualName, ix.Column, ix.DatasetID, qVec, k)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stmt := fmt.Sprintf("SELECT content, meta, embedding FROM %s WHERE dataset_id = ? AND id = ?", ix.ShadowName)
	out := make([]Match, 0, len(ids))
	for _, id := range ids {
		var content, meta sql.NullString
		var embBlob []byte
		if err := ix.DB.QueryRowContext(ctx, stmt, ix.DatasetID, id).Scan(&content, &meta, &embBlob); err != nil {
			return nil, err
		}
		embVec, err := vector.DecodeEmbedding(embBlob)
		if err != nil {
			return nil, err
		}
		score, err := qVec.CosineSimilarity(embVec)
		if err != nil && !errors.Is(err, vector.ErrUndefinedSimilarity) {
			return nil, err
		}
		out = append(out, Match{ID: id, Score: score, Content: content.String, Meta: meta.String})
	}
	ix.logger.Debug("vecutil: query", "table", ix.VirtualName, "dataset", ix.DatasetID, "k", k, "hits", len(out))
	return out, nil
}
