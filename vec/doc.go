// Package vec implements a SQLite virtual table for sparse vector search
// with MATCH semantics. Each virtual table has a per-table shadow table that
// stores dataset ids, ids, content, metadata, and encoded sparse embeddings.
// A brute-force index blob is persisted per dataset in the shared
// vector_storage table, and an in-memory cache accelerates queries.
//
// Features:
//   - WHERE dataset_id = ? AND value MATCH ? using an encoded embedding BLOB
//     or a text vector ("1:0.5,7:2", JSON object, base64 BLOB)
//   - metric=cosine|l2|dot|jaccard and compression=zstd|lz4|none options
//   - Auto-created shadow tables and triggers
//   - Index persistence in vector_storage and cache invalidation on writes
package vec
