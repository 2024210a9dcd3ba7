// Package index defines a minimal abstraction for sparse vector indexes that
// can be built from embeddings, queried for kNN, and serialized for
// persistence. Implementations in this module include a brute-force baseline.
package index
