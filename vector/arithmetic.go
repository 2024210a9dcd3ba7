package vector

// Plus returns v + other. Dimensions present in only one operand pass
// through; dimensions whose sum is exactly 0 are dropped.
func (v *SparseVector) Plus(other Vector) *SparseVector {
	out := v.Clone()
	out.PlusSelf(other)
	return out
}

// PlusSelf adds other into v.
func (v *SparseVector) PlusSelf(other Vector) {
	v.combine(other, 1)
}

// Minus returns v - other.
func (v *SparseVector) Minus(other Vector) *SparseVector {
	out := v.Clone()
	out.MinusSelf(other)
	return out
}

// MinusSelf subtracts other from v.
func (v *SparseVector) MinusSelf(other Vector) {
	v.combine(other, -1)
}

// Multiply returns v scaled by factor. A factor of 0 yields the zero vector.
func (v *SparseVector) Multiply(factor float64) *SparseVector {
	out := v.Clone()
	out.MultiplySelf(factor)
	return out
}

// MultiplySelf scales v by factor.
func (v *SparseVector) MultiplySelf(factor float64) {
	v.invalidate()
	if factor == 0 {
		clear(v.entries)
		return
	}
	for d, val := range v.entries {
		// underflow can still produce an exact zero
		v.put(d, val*factor)
	}
}

// Divide returns v scaled by 1/divisor, or ErrDivisionByZero.
func (v *SparseVector) Divide(divisor float64) (*SparseVector, error) {
	if divisor == 0 {
		return nil, ErrDivisionByZero
	}
	out := v.Clone()
	out.scale(divisor)
	return out, nil
}

// DivideSelf scales v by 1/divisor. On ErrDivisionByZero v is left untouched.
func (v *SparseVector) DivideSelf(divisor float64) error {
	if divisor == 0 {
		return ErrDivisionByZero
	}
	v.scale(divisor)
	return nil
}

func (v *SparseVector) scale(divisor float64) {
	v.invalidate()
	for d, val := range v.entries {
		v.put(d, val/divisor)
	}
}

// combine adds sign*other into v. other may alias v.
func (v *SparseVector) combine(other Vector, sign float64) {
	v.invalidate()
	if isNil(other) {
		return
	}
	if o, ok := other.(*SparseVector); ok && o == v {
		if sign < 0 {
			clear(v.entries)
			return
		}
		for d, val := range v.entries {
			v.put(d, val+val)
		}
		return
	}
	other.Range(func(d Dimension, val float64) bool {
		v.put(d, v.Get(d)+sign*val)
		return true
	})
}
