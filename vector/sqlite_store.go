package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
)

// SQLiteStore implements Store on top of a SQLite database. Embeddings are
// persisted as sparse BLOBs; SimilaritySearch is an exact linear scan over
// every stored embedding.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// StoreOption configures a SQLiteStore.
type StoreOption func(*SQLiteStore)

// WithLogger sets the logger used for store events.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSQLiteStore creates a new SQLite-backed Store. It ensures the docs
// schema exists in the provided database.
func NewSQLiteStore(db *sql.DB, opts ...StoreOption) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("vector: db is nil")
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddDocuments upserts documents into the docs table in a single transaction.
// Document.ID must be non-empty.
func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO docs(id, content, meta, embedding) VALUES(?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  content = excluded.content,
  meta = excluded.meta,
  embedding = excluded.embedding`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("vector: Document.ID must be set in AddDocuments")
		}
		emb, err := EncodeEmbedding(d.Embedding)
		if err != nil {
			return nil, fmt.Errorf("vector: encode %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Content, d.Metadata, emb); err != nil {
			return nil, err
		}
		ids = append(ids, d.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "documents added", "count", len(ids))
	return ids, nil
}

// Get loads a document by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		d    Document
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, content, meta, embedding FROM docs WHERE id = ?`, id).
		Scan(&d.ID, &d.Content, &d.Metadata, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if d.Embedding, err = DecodeEmbedding(blob); err != nil {
		return nil, fmt.Errorf("vector: decode %s: %w", id, err)
	}
	return &d, nil
}

// SimilaritySearch scans all stored embeddings and returns up to k documents
// ordered by increasing Euclidean distance to query. Ties keep insertion
// order. A nil query is the zero vector.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query *SparseVector, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if query == nil {
		query = New()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, meta, embedding FROM docs ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		doc   Document
		dist2 float64
	}
	var all []scored
	for rows.Next() {
		var (
			d    Document
			blob []byte
		)
		if err := rows.Scan(&d.ID, &d.Content, &d.Metadata, &blob); err != nil {
			return nil, err
		}
		if d.Embedding, err = DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("vector: decode %s: %w", d.ID, err)
		}
		all = append(all, scored{doc: d, dist2: query.SquareOfDistance(d.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(a, b int) bool { return all[a].dist2 < all[b].dist2 })
	if k > len(all) {
		k = len(all)
	}
	out := make([]Match, k)
	for i := 0; i < k; i++ {
		out[i] = Match{Document: all[i].doc, Distance: math.Sqrt(all[i].dist2)}
	}
	s.logger.DebugContext(ctx, "similarity search", "scanned", len(all), "k", k)
	return out, nil
}

// Remove deletes a document by ID from the docs table.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("vector: Remove called with empty id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.DebugContext(ctx, "remove of unknown document", "id", id)
	}
	return nil
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
