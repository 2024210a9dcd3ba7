package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *SparseVector
		expected float64
	}{
		{"Identical", FromMap(map[Dimension]float64{1: 3, 5: 4}), FromMap(map[Dimension]float64{1: 3, 5: 4}), 1},
		{"Scaled", FromMap(map[Dimension]float64{1: 1, 2: 1}), FromMap(map[Dimension]float64{1: 10, 2: 10}), 1},
		{"Orthogonal", FromMap(map[Dimension]float64{1: 1}), FromMap(map[Dimension]float64{2: 1}), 0},
		{"Opposite", FromMap(map[Dimension]float64{1: 1, 2: -2}), FromMap(map[Dimension]float64{1: -1, 2: 2}), -1},
		{"Partial", FromMap(map[Dimension]float64{1: 1, 2: 1}), FromMap(map[Dimension]float64{1: 1}), 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.CosineSimilarity(tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCosineSimilarity_Self(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 0.1, 2: 0.7, 300: 1e-3, 9: 12345})
	got, err := a.CosineSimilarity(a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)
	assert.LessOrEqual(t, got, 1.0)
}

func TestCosineSimilarity_Undefined(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 1})

	for name, pair := range map[string][2]Vector{
		"ZeroOther":    {a, New()},
		"ZeroReceiver": {New(), a},
		"BothZero":     {New(), New()},
		"NilOther":     {a, nil},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := pair[0].(*SparseVector).CosineSimilarity(pair[1])
			assert.ErrorIs(t, err, ErrUndefinedSimilarity)
			assert.False(t, math.IsNaN(got))
			assert.False(t, math.IsInf(got, 0))
		})
	}
}

func TestCosineSimilarity_ExtremeMagnitudes(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *SparseVector
		expected float64
	}{
		{"LargeSelf", FromMap(map[Dimension]float64{1: 1e200}), nil, 1},
		{"LargePair", FromMap(map[Dimension]float64{1: 1e200}), FromMap(map[Dimension]float64{1: 2e200}), 1},
		{"LargeOpposite", FromMap(map[Dimension]float64{1: 1e200}), FromMap(map[Dimension]float64{1: -3e200}), -1},
		{"LargePartial", FromMap(map[Dimension]float64{1: 1e200, 2: 1e200}), FromMap(map[Dimension]float64{1: 1e200}), 1 / math.Sqrt2},
		{"TinySelf", FromMap(map[Dimension]float64{4: 1e-200, 7: 3e-200}), nil, 1},
		{"SubnormalNorms", FromMap(map[Dimension]float64{1: 1e-160, 2: 1e-160}), FromMap(map[Dimension]float64{1: 1e-160}), 1 / math.Sqrt2},
		{"MixedScale", FromMap(map[Dimension]float64{1: 1e300}), FromMap(map[Dimension]float64{1: 1e-300}), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.b
			if b == nil {
				b = tt.a
			}
			got, err := tt.a.CosineSimilarity(b)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCosineSimilarity_NonFiniteComponent(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 1})
	b := New()
	b.Set(1, math.Inf(1))

	got, err := a.CosineSimilarity(b)
	assert.ErrorIs(t, err, ErrUndefinedSimilarity)
	assert.False(t, math.IsNaN(got))
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *SparseVector
		expected float64
	}{
		{"Same", FromMap(map[Dimension]float64{1: 1, 2: 1}), FromMap(map[Dimension]float64{1: 1, 2: 1}), 1},
		{"MagnitudeIgnored", FromMap(map[Dimension]float64{1: 1, 2: 1}), FromMap(map[Dimension]float64{1: -9, 2: 0.01}), 1},
		{"Disjoint", FromMap(map[Dimension]float64{1: 1}), FromMap(map[Dimension]float64{2: 1}), 0},
		{"Half", FromMap(map[Dimension]float64{1: 1, 2: 1, 3: 1}), FromMap(map[Dimension]float64{2: 1, 3: 1, 4: 1}), 0.5},
		{"OneEmpty", FromMap(map[Dimension]float64{1: 1}), New(), 0},
		{"BothEmpty", New(), New(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.JaccardSimilarity(tt.b)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, tt.b.JaccardSimilarity(tt.a))
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}

	t.Run("NilOther", func(t *testing.T) {
		assert.Equal(t, 0.0, FromMap(map[Dimension]float64{1: 1}).JaccardSimilarity(nil))
		assert.Equal(t, 1.0, New().JaccardSimilarity(nil))
	})

	t.Run("CancelledDimensionIsAbsent", func(t *testing.T) {
		a := FromMap(map[Dimension]float64{1: 1, 2: 1})
		b := a.Plus(FromMap(map[Dimension]float64{2: -1}))
		assert.Equal(t, 0.5, a.JaccardSimilarity(b))
	})
}

func TestNearest(t *testing.T) {
	t.Run("Scenario", func(t *testing.T) {
		v0 := FromMap(map[Dimension]float64{1: 1.0})
		v1 := FromMap(map[Dimension]float64{1: 5.0})
		v2 := FromMap(map[Dimension]float64{1: 1.1})
		q := FromMap(map[Dimension]float64{1: 1.0})

		idx, err := q.Nearest([]Vector{v0, v1, v2})
		require.NoError(t, err)
		assert.Equal(t, 0, idx)

		idx, err = Nearest(q, []*SparseVector{v1, v2, v0})
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
	})

	t.Run("TieGoesToFirst", func(t *testing.T) {
		q := FromMap(map[Dimension]float64{1: 0})
		a := FromMap(map[Dimension]float64{1: 1})
		b := FromMap(map[Dimension]float64{1: -1})
		c := FromMap(map[Dimension]float64{2: 1})

		idx, err := q.Nearest([]Vector{FromMap(map[Dimension]float64{1: 3}), a, b, c})
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	})

	t.Run("SparseCandidates", func(t *testing.T) {
		q := FromMap(map[Dimension]float64{1: 1, 2: 1})
		far := FromMap(map[Dimension]float64{3: 2})
		near := FromMap(map[Dimension]float64{2: 1})

		idx, err := q.Nearest([]Vector{far, near})
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	})

	t.Run("NilCandidateIsZeroVector", func(t *testing.T) {
		q := FromMap(map[Dimension]float64{1: 0.1})
		idx, err := q.Nearest([]Vector{FromMap(map[Dimension]float64{1: 5}), nil})
		require.NoError(t, err)
		assert.Equal(t, 1, idx)

		idx, err = Nearest(q, []*SparseVector{FromMap(map[Dimension]float64{1: 5}), nil})
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	})

	t.Run("Empty", func(t *testing.T) {
		q := FromMap(map[Dimension]float64{1: 1})
		idx, err := q.Nearest(nil)
		assert.ErrorIs(t, err, ErrEmptyCandidateSet)
		assert.Equal(t, -1, idx)

		_, err = Nearest(q, []*SparseVector{})
		assert.ErrorIs(t, err, ErrEmptyCandidateSet)
	})
}
