package vector

import (
	"context"
)

// Dimension is the index of a sparse vector component.
type Dimension = uint32

// Vector is the read-only view every operand exposes. Dimensions that are
// not reported by Range hold 0.
type Vector interface {
	// Get returns the value stored at dim, or 0 when absent.
	Get(dim Dimension) float64

	// Len returns the number of stored (nonzero) components.
	Len() int

	// Range calls fn for every stored component until fn returns false.
	// Iteration order is unspecified.
	Range(fn func(dim Dimension, value float64) bool)
}

// Operations captures the full operation set of a vector representation V.
// Operands are accepted as Vector so that representations can be mixed;
// pure operations return a new V that does not alias either operand.
type Operations[V Vector] interface {
	Vector

	Plus(other Vector) V
	PlusSelf(other Vector)
	Minus(other Vector) V
	MinusSelf(other Vector)
	Multiply(factor float64) V
	MultiplySelf(factor float64)
	Divide(divisor float64) (V, error)
	DivideSelf(divisor float64) error

	Sum(updateCache bool) float64
	SquareOfLength(updateCache bool) float64
	SquaredMagnitude() float64
	Length(updateCache bool) float64
	Magnitude() float64
	DotProduct(other Vector) float64
	SquareOfDistance(other Vector) float64
	Distance(other Vector) float64

	CosineSimilarity(other Vector) (float64, error)
	JaccardSimilarity(other Vector) float64
	Nearest(candidates []Vector) (int, error)
}

var _ Operations[*SparseVector] = (*SparseVector)(nil)

// Document represents a logical document stored in the vector store.
type Document struct {
	// ID is the logical identifier of the document.
	ID string

	// Content holds the main text/body of the document.
	Content string

	// Metadata is an opaque payload associated with the document, usually JSON.
	Metadata string

	// Embedding is the sparse vector representation of the document.
	Embedding *SparseVector
}

// Match is a single SimilaritySearch hit.
type Match struct {
	Document
	// Distance is the Euclidean distance between the query and the embedding.
	Distance float64
}

// Store defines the application-level sparse vector store API.
type Store interface {
	// AddDocuments inserts documents into the store and returns their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Get loads a single document, returning ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Document, error)

	// SimilaritySearch returns up to k documents ordered by increasing
	// distance to query.
	SimilaritySearch(ctx context.Context, query *SparseVector, k int) ([]Match, error)

	// Remove deletes the document with the given ID.
	Remove(ctx context.Context, id string) error
}
