// Package vector implements sparse numeric vectors and the storage helpers
// used by this project. It includes:
//   - SparseVector: map-backed vector with in-place and pure arithmetic,
//     cached sum/length metrics, cosine and Jaccard similarity, and
//     linear-scan nearest-neighbor lookup
//   - Vector and Operations interfaces describing the operation surface
//   - Document model, Store interface and SQLiteStore
//   - Embedding encoding (BLOB) and text parsing
package vector
