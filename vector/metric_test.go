package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetric_Values(t *testing.T) {
	tests := []struct {
		name   string
		v      *SparseVector
		sum    float64
		sqLen  float64
		length float64
	}{
		{"Empty", New(), 0, 0, 0},
		{"Single", FromMap(map[Dimension]float64{7: -2}), -2, 4, 2},
		{"ThreeFour", FromMap(map[Dimension]float64{1: 3, 1000: 4}), 7, 25, 5},
		{"Mixed", FromMap(map[Dimension]float64{1: 1, 2: -1, 3: 2}), 2, 6, math.Sqrt(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.sum, tt.v.Sum(false), 1e-12)
			assert.InDelta(t, tt.sqLen, tt.v.SquareOfLength(false), 1e-12)
			assert.InDelta(t, tt.sqLen, tt.v.SquaredMagnitude(), 1e-12)
			assert.InDelta(t, tt.length, tt.v.Length(true), 1e-12)
			assert.InDelta(t, tt.length, tt.v.Magnitude(), 1e-12)
		})
	}
}

func TestMetric_CacheDiscipline(t *testing.T) {
	v := FromMap(map[Dimension]float64{1: 1, 2: 2})
	require.Nil(t, v.sum)
	require.Nil(t, v.sqLen)

	// updateCache=false still fills an empty cache
	assert.Equal(t, 3.0, v.Sum(false))
	require.NotNil(t, v.sum)
	assert.Equal(t, 5.0, v.SquareOfLength(false))
	require.NotNil(t, v.sqLen)

	// a valid cache is served as-is when updateCache=false; poke the
	// entries behind the cache's back to observe that
	v.entries[1] = 10
	assert.Equal(t, 3.0, v.Sum(false))
	assert.Equal(t, 5.0, v.SquareOfLength(false))

	// updateCache=true forces recomputation and refreshes the cache
	assert.Equal(t, 12.0, v.Sum(true))
	assert.Equal(t, 12.0, v.Sum(false))
	assert.Equal(t, 104.0, v.SquareOfLength(true))
	assert.Equal(t, math.Sqrt(104), v.Length(false))
}

func TestMetric_MutationInvalidatesCache(t *testing.T) {
	mutations := []struct {
		name string
		fn   func(v *SparseVector)
	}{
		{"Set", func(v *SparseVector) { v.Set(9, 3) }},
		{"Remove", func(v *SparseVector) { v.Remove(1) }},
		{"PlusSelf", func(v *SparseVector) { v.PlusSelf(FromMap(map[Dimension]float64{1: 1, 5: 5})) }},
		{"MinusSelf", func(v *SparseVector) { v.MinusSelf(FromMap(map[Dimension]float64{2: 2})) }},
		{"MultiplySelf", func(v *SparseVector) { v.MultiplySelf(-3) }},
		{"MultiplySelfZero", func(v *SparseVector) { v.MultiplySelf(0) }},
		{"DivideSelf", func(v *SparseVector) { _ = v.DivideSelf(4) }},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			v := FromMap(map[Dimension]float64{1: 1, 2: 2, 3: -4})
			v.Sum(false)
			v.SquareOfLength(false)

			m.fn(v)

			var wantSum, wantSq float64
			for _, val := range v.entries {
				wantSum += val
				wantSq += val * val
			}
			assert.Equal(t, wantSum, v.Sum(false), "stale sum after %s", m.name)
			assert.Equal(t, wantSq, v.SquareOfLength(false), "stale squared length after %s", m.name)
		})
	}
}

func TestMetric_CachedSquareOfLength(t *testing.T) {
	v := FromMap(map[Dimension]float64{1: 3, 2: 4})
	_, ok := v.CachedSquareOfLength()
	assert.False(t, ok)

	v.SquaredMagnitude()
	got, ok := v.CachedSquareOfLength()
	require.True(t, ok)
	assert.Equal(t, 25.0, got)

	v.Set(3, 1)
	_, ok = v.CachedSquareOfLength()
	assert.False(t, ok, "mutation drops the cache")

	var nilVec *SparseVector
	_, ok = nilVec.CachedSquareOfLength()
	assert.False(t, ok)
}

func TestMetric_DotProduct(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 1, 2: 2, 3: 3})
	b := FromMap(map[Dimension]float64{3: 4, 10: 100})

	assert.Equal(t, 12.0, a.DotProduct(b))
	assert.Equal(t, 12.0, b.DotProduct(a))
	assert.Equal(t, 14.0, a.DotProduct(a))
	assert.Equal(t, 0.0, a.DotProduct(New()))
	assert.Equal(t, 0.0, a.DotProduct(nil))
}

func TestMetric_Distance(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 1, 2: 2})
	b := FromMap(map[Dimension]float64{2: -1, 3: 4})

	// (1-0)^2 + (2+1)^2 + (0-4)^2 = 1 + 9 + 16
	assert.Equal(t, 26.0, a.SquareOfDistance(b))
	assert.Equal(t, a.Minus(b).SquareOfLength(false), a.SquareOfDistance(b))
	assert.InDelta(t, math.Sqrt(26), a.Distance(b), 1e-12)
	assert.Equal(t, a.Distance(b), b.Distance(a), "distance is symmetric")
	assert.Equal(t, 0.0, a.Distance(a))

	t.Run("NilIsZeroVector", func(t *testing.T) {
		assert.Equal(t, a.SquareOfLength(false), a.SquareOfDistance(nil))
		assert.Equal(t, a.Magnitude(), a.Distance(nil))

		var typed *SparseVector
		assert.Equal(t, 5.0, a.SquareOfDistance(typed))
	})
}

func TestMetric_OperandCacheIsReadOnly(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 1})
	b := FromMap(map[Dimension]float64{1: 2, 2: 2})

	_, err := a.CosineSimilarity(b)
	require.NoError(t, err)
	a.Distance(b)
	a.DotProduct(b)

	assert.Nil(t, b.sum, "operand cache must not be written")
	assert.Nil(t, b.sqLen, "operand cache must not be written")
	assert.NotNil(t, a.sqLen, "receiver cache refreshes")
}
