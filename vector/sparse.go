package vector

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// SparseVector is a map-backed vector over an unbounded set of dimensions.
// Only nonzero components are stored. The zero value is an empty (zero)
// vector ready to use.
//
// A SparseVector is not safe for concurrent mutation. Using the same vector
// as a read-only operand from several goroutines is safe as long as nothing
// mutates it and its metrics are not queried as a receiver concurrently.
type SparseVector struct {
	entries map[Dimension]float64

	// nil means the cached value is invalid.
	sum   *float64
	sqLen *float64
}

// New returns an empty sparse vector.
func New() *SparseVector {
	return &SparseVector{entries: make(map[Dimension]float64)}
}

// FromMap builds a vector from a dimension→value map. Zero values are skipped
// and the map is copied.
func FromMap(m map[Dimension]float64) *SparseVector {
	v := &SparseVector{entries: make(map[Dimension]float64, len(m))}
	for d, val := range m {
		if val != 0 {
			v.entries[d] = val
		}
	}
	return v
}

// FromPairs builds a vector from parallel dimension and value slices. Later
// duplicates overwrite earlier ones.
func FromPairs(dims []Dimension, values []float64) (*SparseVector, error) {
	if len(dims) != len(values) {
		return nil, fmt.Errorf("vector: dims and values length mismatch: %d != %d", len(dims), len(values))
	}
	v := &SparseVector{entries: make(map[Dimension]float64, len(dims))}
	for i, d := range dims {
		v.Set(d, values[i])
	}
	return v, nil
}

// Get returns the value at dim, or 0 when dim is absent.
func (v *SparseVector) Get(dim Dimension) float64 {
	if v == nil {
		return 0
	}
	return v.entries[dim]
}

// Set stores value at dim. Setting 0 removes the dimension.
func (v *SparseVector) Set(dim Dimension, value float64) {
	v.invalidate()
	v.put(dim, value)
}

// Remove deletes dim.
func (v *SparseVector) Remove(dim Dimension) {
	v.invalidate()
	delete(v.entries, dim)
}

// Len returns the number of stored components.
func (v *SparseVector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.entries)
}

// Range calls fn for every stored component until fn returns false.
func (v *SparseVector) Range(fn func(dim Dimension, value float64) bool) {
	if v == nil {
		return
	}
	for d, val := range v.entries {
		if !fn(d, val) {
			return
		}
	}
}

// Dimensions returns the present dimensions in ascending order.
func (v *SparseVector) Dimensions() []Dimension {
	if v == nil || len(v.entries) == 0 {
		return nil
	}
	dims := make([]Dimension, 0, len(v.entries))
	for d := range v.entries {
		dims = append(dims, d)
	}
	slices.Sort(dims)
	return dims
}

// DimensionSet returns the present dimensions as a bitmap.
func (v *SparseVector) DimensionSet() *roaring.Bitmap {
	return dimensionSet(v)
}

// Clone returns an independent copy, including valid caches.
func (v *SparseVector) Clone() *SparseVector {
	if v == nil {
		return New()
	}
	out := &SparseVector{entries: make(map[Dimension]float64, len(v.entries))}
	for d, val := range v.entries {
		out.entries[d] = val
	}
	if v.sum != nil {
		s := *v.sum
		out.sum = &s
	}
	if v.sqLen != nil {
		s := *v.sqLen
		out.sqLen = &s
	}
	return out
}

// Equal reports whether both vectors hold exactly the same components.
func (v *SparseVector) Equal(other Vector) bool {
	if isNil(other) {
		return v.Len() == 0
	}
	if v.Len() != other.Len() {
		return false
	}
	equal := true
	v.Range(func(d Dimension, val float64) bool {
		if other.Get(d) != val {
			equal = false
		}
		return equal
	})
	return equal
}

// String renders the vector as {dim:value, ...} in ascending dimension order.
func (v *SparseVector) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, d := range v.Dimensions() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatUint(uint64(d), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(v.entries[d], 'g', -1, 64))
	}
	sb.WriteByte('}')
	return sb.String()
}

// put writes value without touching the caches; zero removes.
func (v *SparseVector) put(dim Dimension, value float64) {
	if v.entries == nil {
		v.entries = make(map[Dimension]float64)
	}
	if value == 0 {
		delete(v.entries, dim)
		return
	}
	v.entries[dim] = value
}

func (v *SparseVector) invalidate() {
	v.sum = nil
	v.sqLen = nil
}

// isNil reports whether other is absent, including a typed nil *SparseVector.
func isNil(other Vector) bool {
	if other == nil {
		return true
	}
	sv, ok := other.(*SparseVector)
	return ok && sv == nil
}

func dimensionSet(v Vector) *roaring.Bitmap {
	bm := roaring.New()
	if isNil(v) {
		return bm
	}
	v.Range(func(d Dimension, val float64) bool {
		if val != 0 {
			bm.Add(d)
		}
		return true
	})
	return bm
}
