package vector

import "math"

// CosineSimilarity returns dot(v, other) / (|v| * |other|), clamped to [-1, 1].
// It returns ErrUndefinedSimilarity when either vector has zero length; a
// nil other counts as the zero vector. When the plain computation overflows
// or underflows, both vectors are rescaled by their largest absolute
// component and the ratio is recomputed.
func (v *SparseVector) CosineSimilarity(other Vector) (float64, error) {
	vsq := v.SquaredMagnitude()
	var osq float64
	if o, ok := other.(*SparseVector); ok && o == v {
		osq = vsq
	} else {
		osq = squaredLengthOf(other)
	}
	// subnormal or infinite squared lengths have lost precision
	if inNormalRange(vsq) && inNormalRange(osq) {
		if cos := v.DotProduct(other) / (math.Sqrt(vsq) * math.Sqrt(osq)); !math.IsNaN(cos) && !math.IsInf(cos, 0) {
			return max(-1, min(1, cos)), nil
		}
	}
	return scaledCosine(v, other)
}

const smallestNormal = 0x1p-1022

func inNormalRange(f float64) bool {
	return f >= smallestNormal && f <= math.MaxFloat64
}

func scaledCosine(v *SparseVector, other Vector) (float64, error) {
	if isNil(other) {
		return 0, ErrUndefinedSimilarity
	}
	vs, ws := maxAbs(v), maxAbs(other)
	if vs == 0 || ws == 0 || math.IsInf(vs, 0) || math.IsInf(ws, 0) || math.IsNaN(vs) || math.IsNaN(ws) {
		return 0, ErrUndefinedSimilarity
	}
	var dot, vv, oo float64
	v.Range(func(_ Dimension, x float64) bool {
		x /= vs
		vv += x * x
		return true
	})
	other.Range(func(d Dimension, y float64) bool {
		y /= ws
		oo += y * y
		dot += y * (v.Get(d) / vs)
		return true
	})
	cos := dot / (math.Sqrt(vv) * math.Sqrt(oo))
	if math.IsNaN(cos) || math.IsInf(cos, 0) {
		return 0, ErrUndefinedSimilarity
	}
	return max(-1, min(1, cos)), nil
}

func maxAbs(v Vector) float64 {
	var m float64
	v.Range(func(_ Dimension, x float64) bool {
		if a := math.Abs(x); a > m || math.IsNaN(a) {
			m = a
		}
		return true
	})
	return m
}

// JaccardSimilarity returns |A ∩ B| / |A ∪ B| over the present dimensions of
// both vectors, ignoring magnitudes. Two empty vectors are identical and
// score 1.
func (v *SparseVector) JaccardSimilarity(other Vector) float64 {
	a := v.DimensionSet()
	b := dimensionSet(other)
	union := a.OrCardinality(b)
	if union == 0 {
		return 1
	}
	return float64(a.AndCardinality(b)) / float64(union)
}

// Nearest returns the index of the candidate closest to v by squared
// distance. Ties resolve to the first index; nil candidates are treated as
// the zero vector.
func (v *SparseVector) Nearest(candidates []Vector) (int, error) {
	if len(candidates) == 0 {
		return -1, ErrEmptyCandidateSet
	}
	best, bestDist := 0, math.Inf(1)
	for i, c := range candidates {
		d := v.SquareOfDistance(c)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// Nearest is the slice-of-concrete-vectors form of SparseVector.Nearest.
func Nearest(query *SparseVector, candidates []*SparseVector) (int, error) {
	vs := make([]Vector, len(candidates))
	for i, c := range candidates {
		if c != nil {
			vs[i] = c
		}
	}
	return query.Nearest(vs)
}
