package vector

import (
	"context"
	"database/sql"
)

const docsSchema = `
CREATE TABLE IF NOT EXISTS docs (
    id TEXT PRIMARY KEY,
    content TEXT,
    meta TEXT,
    embedding BLOB
);
`

// EnsureSchema creates the base documents table in the provided database if it
// does not already exist. Embeddings are stored as EncodeEmbedding BLOBs.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, docsSchema)
	return err
}
