package vector

import "math"

// Sum returns the sum of all component values.
//
// When updateCache is false a valid cached value is returned as-is;
// otherwise the sum is recomputed. A recomputed value is always written back
// to the cache, so updateCache=false still fills an empty cache.
func (v *SparseVector) Sum(updateCache bool) float64 {
	if !updateCache && v.sum != nil {
		return *v.sum
	}
	var s float64
	for _, val := range v.entries {
		s += val
	}
	v.sum = &s
	return s
}

// SquareOfLength returns the sum of squares of all component values, with
// the same cache discipline as Sum.
func (v *SparseVector) SquareOfLength(updateCache bool) float64 {
	if !updateCache && v.sqLen != nil {
		return *v.sqLen
	}
	s := sumOfSquares(v)
	v.sqLen = &s
	return s
}

// CachedSquareOfLength returns the cached sum of squares, if one is valid.
func (v *SparseVector) CachedSquareOfLength() (float64, bool) {
	if v == nil || v.sqLen == nil {
		return 0, false
	}
	return *v.sqLen, true
}

// SquaredMagnitude is SquareOfLength(false).
func (v *SparseVector) SquaredMagnitude() float64 { return v.SquareOfLength(false) }

// Length returns the Euclidean norm. Only the squared length is cached.
func (v *SparseVector) Length(updateCache bool) float64 {
	return math.Sqrt(v.SquareOfLength(updateCache))
}

// Magnitude is Length(false).
func (v *SparseVector) Magnitude() float64 { return v.Length(false) }

// DotProduct returns the scalar product of v and other. Only dimensions
// present in both contribute, so the smaller operand is iterated.
func (v *SparseVector) DotProduct(other Vector) float64 {
	if isNil(other) {
		return 0
	}
	small, large := Vector(v), other
	if other.Len() < v.Len() {
		small, large = other, v
	}
	var s float64
	small.Range(func(d Dimension, val float64) bool {
		s += val * large.Get(d)
		return true
	})
	return s
}

// SquareOfDistance returns the squared Euclidean distance between v and
// other. A nil other is the zero vector, so the result is v's squared length.
func (v *SparseVector) SquareOfDistance(other Vector) float64 {
	if isNil(other) {
		return v.SquareOfLength(false)
	}
	if o, ok := other.(*SparseVector); ok && o == v {
		return 0
	}
	var s float64
	for d, val := range v.entries {
		diff := val - other.Get(d)
		s += diff * diff
	}
	other.Range(func(d Dimension, val float64) bool {
		if _, ok := v.entries[d]; !ok {
			s += val * val
		}
		return true
	})
	return s
}

// Distance returns the Euclidean distance between v and other.
func (v *SparseVector) Distance(other Vector) float64 {
	return math.Sqrt(v.SquareOfDistance(other))
}

// squaredLengthOf reads other's squared length without writing its cache.
func squaredLengthOf(other Vector) float64 {
	if isNil(other) {
		return 0
	}
	if o, ok := other.(*SparseVector); ok && o.sqLen != nil {
		return *o.sqLen
	}
	return sumOfSquares(other)
}

func sumOfSquares(v Vector) float64 {
	var s float64
	v.Range(func(_ Dimension, val float64) bool {
		s += val * val
		return true
	})
	return s
}
