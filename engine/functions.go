package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/viant/sparsevec/vector"
	sqlite "modernc.org/sqlite"
)

// RegisterVectorFunctions registers the sparse_* scalar functions with the
// driver so they are available on new connections opened after this call:
//
//	sparse_dot(a, b)      dot product
//	sparse_l2(a, b)       Euclidean distance
//	sparse_cosine(a, b)   cosine similarity (error for zero-length operands)
//	sparse_jaccard(a, b)  Jaccard similarity of the dimension sets
//	sparse_sum(a)         sum of component values
//	sparse_norm(a)        Euclidean length
//
// Arguments are EncodeEmbedding BLOBs or text accepted by vector.ParseText.
// A NULL argument yields NULL. Existing open connections will not see new
// functions.
func RegisterVectorFunctions(_ *sql.DB) error {
	// Idempotent registration; driver rejects duplicates but we ignore errors silently here.
	_ = sqlite.RegisterDeterministicScalarFunction("sparse_dot", 2, binary("sparse_dot", func(a, b *vector.SparseVector) (driver.Value, error) {
		return a.DotProduct(b), nil
	}))
	_ = sqlite.RegisterDeterministicScalarFunction("sparse_l2", 2, binary("sparse_l2", func(a, b *vector.SparseVector) (driver.Value, error) {
		return a.Distance(b), nil
	}))
	_ = sqlite.RegisterDeterministicScalarFunction("sparse_cosine", 2, binary("sparse_cosine", func(a, b *vector.SparseVector) (driver.Value, error) {
		sim, err := a.CosineSimilarity(b)
		if err != nil {
			return nil, err
		}
		return sim, nil
	}))
	_ = sqlite.RegisterDeterministicScalarFunction("sparse_jaccard", 2, binary("sparse_jaccard", func(a, b *vector.SparseVector) (driver.Value, error) {
		return a.JaccardSimilarity(b), nil
	}))
	_ = sqlite.RegisterDeterministicScalarFunction("sparse_sum", 1, unary("sparse_sum", func(a *vector.SparseVector) driver.Value {
		return a.Sum(false)
	}))
	_ = sqlite.RegisterDeterministicScalarFunction("sparse_norm", 1, unary("sparse_norm", func(a *vector.SparseVector) driver.Value {
		return a.Magnitude()
	}))
	return nil
}

type scalarFunc = func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)

func binary(name string, fn func(a, b *vector.SparseVector) (driver.Value, error)) scalarFunc {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asSparse(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		b, err := asSparse(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if a == nil || b == nil {
			return nil, nil
		}
		return fn(a, b)
	}
}

func unary(name string, fn func(a *vector.SparseVector) driver.Value) scalarFunc {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
		}
		a, err := asSparse(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if a == nil {
			return nil, nil
		}
		return fn(a), nil
	}
}

func asSparse(arg driver.Value) (*vector.SparseVector, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeEmbedding(v)
	case string:
		return vector.ParseText(v)
	default:
		return nil, fmt.Errorf("unsupported argument type %T for sparse vector; want BLOB or TEXT", arg)
	}
}
