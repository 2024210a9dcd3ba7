package vector

import "errors"

var (
	// ErrDivisionByZero is returned by Divide and DivideSelf when the divisor is 0.
	ErrDivisionByZero = errors.New("vector: division by zero")

	// ErrUndefinedSimilarity is returned by CosineSimilarity when either
	// operand has zero length.
	ErrUndefinedSimilarity = errors.New("vector: cosine similarity undefined for zero-length vector")

	// ErrEmptyCandidateSet is returned by Nearest when no candidates are given.
	ErrEmptyCandidateSet = errors.New("vector: empty candidate set")

	// ErrNotFound is returned by Store lookups for unknown document ids.
	ErrNotFound = errors.New("vector: document not found")
)
