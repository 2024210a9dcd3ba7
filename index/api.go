package index

import (
	"fmt"
	"strings"

	"github.com/viant/sparsevec/vector"
)

// Index defines a sparse vector index with basic lifecycle methods.
// It enables building from (id, embedding) pairs, kNN queries, and
// binary serialization for persistence.
type Index interface {
	// Build constructs the index from the given ids and vectors.
	// ids and vectors must have the same length; a nil vector is the zero vector.
	Build(ids []string, vectors []*vector.SparseVector) error

	// Query runs a kNN search against the index with the provided query vector
	// and returns up to k matches as parallel slices of ids and scores, ordered
	// best first. k <= 0 returns every scored entry.
	Query(query *vector.SparseVector, k int) (ids []string, scores []float64, err error)

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary reconstructs the index from a serialized byte slice.
	UnmarshalBinary(data []byte) error
}

// Metric selects how an index scores candidates against a query.
type Metric uint8

const (
	// MetricCosine scores by cosine similarity, higher is closer.
	MetricCosine Metric = iota
	// MetricL2 scores by Euclidean distance, lower is closer.
	MetricL2
	// MetricDot scores by dot product, higher is closer.
	MetricDot
	// MetricJaccard scores by Jaccard similarity of dimension sets, higher is closer.
	MetricJaccard
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricL2:
		return "l2"
	case MetricDot:
		return "dot"
	case MetricJaccard:
		return "jaccard"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Ascending reports whether lower scores rank first.
func (m Metric) Ascending() bool { return m == MetricL2 }

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool { return m <= MetricJaccard }

// ParseMetric maps a metric name (case-insensitive) to a Metric.
// An empty name selects MetricCosine.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cosine", "cos":
		return MetricCosine, nil
	case "l2", "euclidean":
		return MetricL2, nil
	case "dot", "ip":
		return MetricDot, nil
	case "jaccard":
		return MetricJaccard, nil
	default:
		return 0, fmt.Errorf("index: unsupported metric %q", name)
	}
}
