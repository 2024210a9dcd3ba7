// Package bruteforce provides a simple sparse vector index that answers kNN
// queries by scanning all vectors and scoring them with the configured
// metric. It supports a compact, compressed binary format for persistence in
// the vector_storage table.
package bruteforce
