package vecutil

import (
	"context"
	"fmt"
	"sync"

	tokenizer "github.com/samber/go-gpt-3-encoder"
	"github.com/viant/sparsevec/vector"
)

var (
	encoder     *tokenizer.Encoder
	encoderErr  error
	encoderOnce sync.Once
	encoderLock sync.Mutex
)

// TokenCounts is an EmbedFunc producing a bag-of-tokens vector: each GPT-3
// BPE token id is a dimension and its value is the number of occurrences in
// text. Empty text yields the zero vector.
func TokenCounts(ctx context.Context, text string) (*vector.SparseVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := encode(text)
	if err != nil {
		return nil, err
	}
	v := vector.New()
	for _, id := range ids {
		d := vector.Dimension(id)
		v.Set(d, v.Get(d)+1)
	}
	return v, nil
}

// NormalizedTokenCounts is TokenCounts scaled to unit length, so dot
// products between its outputs equal cosine similarity.
func NormalizedTokenCounts(ctx context.Context, text string) (*vector.SparseVector, error) {
	v, err := TokenCounts(ctx, text)
	if err != nil {
		return nil, err
	}
	if n := v.Magnitude(); n > 0 {
		if err := v.DivideSelf(n); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// encode serializes access to the shared encoder, which caches BPE merges
// internally.
func encode(text string) ([]int, error) {
	encoderOnce.Do(func() { encoder, encoderErr = tokenizer.NewEncoder() })
	if encoderErr != nil {
		return nil, fmt.Errorf("vecutil: tokenizer: %w", encoderErr)
	}
	if text == "" {
		return nil, nil
	}
	encoderLock.Lock()
	defer encoderLock.Unlock()
	ids, err := encoder.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("vecutil: tokenize: %w", err)
	}
	return ids, nil
}
