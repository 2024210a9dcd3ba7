package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic_SparseUnion(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 2.0, 3: 4.0})
	b := FromMap(map[Dimension]float64{2: 5.0, 3: 1.0})

	sum := a.Plus(b)
	assert.True(t, sum.Equal(FromMap(map[Dimension]float64{1: 2.0, 2: 5.0, 3: 5.0})), "got %v", sum)
	assert.Equal(t, 4.0, a.DotProduct(b))

	// operands are untouched
	assert.Equal(t, "{1:2, 3:4}", a.String())
	assert.Equal(t, "{2:5, 3:1}", b.String())
}

func TestArithmetic_Properties(t *testing.T) {
	cases := []struct {
		name string
		a, b *SparseVector
	}{
		{"Disjoint", FromMap(map[Dimension]float64{1: 1}), FromMap(map[Dimension]float64{2: 2})},
		{"Overlap", FromMap(map[Dimension]float64{1: 1.5, 2: -3}), FromMap(map[Dimension]float64{2: 3, 9: 0.25})},
		{"Empty", New(), FromMap(map[Dimension]float64{5: 7})},
		{"BothEmpty", New(), New()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.a.Plus(tc.b).Equal(tc.b.Plus(tc.a)), "plus is commutative")

			inverse := tc.a.Plus(tc.a.Multiply(-1))
			assert.Equal(t, 0, inverse.Len(), "a + (-a) is the zero vector")
			assert.Equal(t, 0.0, inverse.Sum(false))
			assert.Equal(t, 0.0, inverse.Magnitude())

			inPlace := tc.a.Clone()
			inPlace.PlusSelf(tc.b)
			assert.True(t, inPlace.Equal(tc.a.Plus(tc.b)), "PlusSelf matches Plus")

			inPlace = tc.a.Clone()
			inPlace.MinusSelf(tc.b)
			assert.True(t, inPlace.Equal(tc.a.Minus(tc.b)), "MinusSelf matches Minus")

			assert.True(t, tc.a.Minus(tc.b).Equal(tc.b.Minus(tc.a).Multiply(-1)), "minus is anti-commutative")
		})
	}
}

func TestArithmetic_MinusOrder(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 5})
	b := FromMap(map[Dimension]float64{1: 2, 2: 1})
	assert.Equal(t, "{1:3, 2:-1}", a.Minus(b).String())
	assert.Equal(t, "{1:-3, 2:1}", b.Minus(a).String())
}

func TestArithmetic_ZeroPruning(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 2, 2: 3})
	b := FromMap(map[Dimension]float64{1: -2})

	got := a.Plus(b)
	assert.Equal(t, []Dimension{2}, got.Dimensions(), "exact-zero results are dropped")

	a.PlusSelf(b)
	assert.Equal(t, []Dimension{2}, a.Dimensions())
}

func TestArithmetic_Aliasing(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 2, 2: -1})
	a.PlusSelf(a)
	assert.Equal(t, "{1:4, 2:-2}", a.String())

	a.MinusSelf(a)
	assert.Equal(t, 0, a.Len())

	b := FromMap(map[Dimension]float64{1: 1})
	c := b.Plus(b)
	assert.Equal(t, "{1:2}", c.String())
	assert.Equal(t, "{1:1}", b.String())
}

func TestArithmetic_NilOperand(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 2})
	assert.True(t, a.Plus(nil).Equal(a))
	assert.True(t, a.Minus(nil).Equal(a))

	var typed *SparseVector
	a.PlusSelf(typed)
	assert.Equal(t, "{1:2}", a.String())
}

func TestArithmetic_Multiply(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 2, 4: -0.5})

	assert.Equal(t, "{1:6, 4:-1.5}", a.Multiply(3).String())
	assert.Equal(t, 0, a.Multiply(0).Len(), "factor 0 yields the zero vector")
	assert.Equal(t, "{1:2, 4:-0.5}", a.String())

	a.MultiplySelf(-2)
	assert.Equal(t, "{1:-4, 4:1}", a.String())
	a.MultiplySelf(0)
	assert.Equal(t, 0, a.Len())
}

func TestArithmetic_Divide(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 3, 2: -6})

	q, err := a.Divide(3)
	require.NoError(t, err)
	assert.Equal(t, "{1:1, 2:-2}", q.String())

	require.NoError(t, a.DivideSelf(-3))
	assert.Equal(t, "{1:-1, 2:2}", a.String())
}

func TestArithmetic_DivisionGuard(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 3, 2: 4})
	require.Equal(t, 5.0, a.Magnitude())

	q, err := a.Divide(0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.Nil(t, q)

	err = a.DivideSelf(0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	// receiver and its caches are untouched, no Inf/NaN leaks into metrics
	assert.Equal(t, "{1:3, 2:4}", a.String())
	assert.Equal(t, 5.0, a.Magnitude())
	assert.Equal(t, 7.0, a.Sum(true))
}

func TestArithmetic_PureResultDoesNotAlias(t *testing.T) {
	a := FromMap(map[Dimension]float64{1: 1})
	b := FromMap(map[Dimension]float64{2: 2})

	for _, out := range []*SparseVector{a.Plus(b), a.Minus(b), a.Multiply(1)} {
		out.Set(1, 100)
		out.Set(2, 100)
	}
	q, err := a.Divide(1)
	require.NoError(t, err)
	q.Set(1, 100)

	assert.Equal(t, "{1:1}", a.String())
	assert.Equal(t, "{2:2}", b.String())
}
