package vector

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	sparseMagic     = "SPV1"
	sparseHeaderLen = len(sparseMagic) + 4
	sparseEntryLen  = 4 + 8
)

// EncodeEmbedding encodes a sparse vector into a BLOB suitable for storage in
// SQLite: the "SPV1" magic, a little-endian uint32 entry count, then one
// (uint32 dimension, float64 value) pair per entry in ascending dimension
// order. A nil vector encodes as an empty (zero-count) blob.
func EncodeEmbedding(v *SparseVector) ([]byte, error) {
	dims := v.Dimensions()
	b := make([]byte, sparseHeaderLen+len(dims)*sparseEntryLen)
	copy(b, sparseMagic)
	binary.LittleEndian.PutUint32(b[len(sparseMagic):], uint32(len(dims)))
	off := sparseHeaderLen
	for _, d := range dims {
		val := v.entries[d]
		if !isFinite(val) {
			return nil, fmt.Errorf("vector: cannot encode non-finite value %v at dimension %d", val, d)
		}
		binary.LittleEndian.PutUint32(b[off:], d)
		binary.LittleEndian.PutUint64(b[off+4:], math.Float64bits(val))
		off += sparseEntryLen
	}
	return b, nil
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding. An empty BLOB
// decodes to an empty vector.
func DecodeEmbedding(b []byte) (*SparseVector, error) {
	if len(b) == 0 {
		return New(), nil
	}
	if len(b) < sparseHeaderLen || string(b[:len(sparseMagic)]) != sparseMagic {
		return nil, fmt.Errorf("vector: invalid sparse embedding blob (len=%d)", len(b))
	}
	n := int(binary.LittleEndian.Uint32(b[len(sparseMagic):]))
	if want := sparseHeaderLen + n*sparseEntryLen; len(b) != want {
		return nil, fmt.Errorf("vector: sparse embedding blob length %d, want %d for %d entries", len(b), want, n)
	}
	v := &SparseVector{entries: make(map[Dimension]float64, n)}
	seen := make(map[Dimension]struct{}, n)
	off := sparseHeaderLen
	for i := 0; i < n; i++ {
		d := binary.LittleEndian.Uint32(b[off:])
		val := math.Float64frombits(binary.LittleEndian.Uint64(b[off+4:]))
		off += sparseEntryLen
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("vector: duplicate dimension %d in sparse embedding blob", d)
		}
		seen[d] = struct{}{}
		if !isFinite(val) {
			return nil, fmt.Errorf("vector: non-finite value %v at dimension %d in sparse embedding blob", val, d)
		}
		v.put(d, val)
	}
	return v, nil
}

// ParseText parses a textual sparse vector. Accepted forms are a JSON object
// ({"1": 2.5, "3": 4}), a comma separated pair list (1:2.5, 3:4), or the
// standard base64 encoding of an EncodeEmbedding BLOB. The empty pair list
// "{}" is the zero vector.
func ParseText(raw string) (*SparseVector, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("vector: empty sparse vector text")
	}
	if strings.HasPrefix(s, "{") {
		var m map[string]float64
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return fromStringMap(m)
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}"))
		if s == "" {
			return New(), nil
		}
	}
	if strings.Contains(s, ":") {
		return parsePairs(s)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		if v, err := DecodeEmbedding(b); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("vector: sparse vector text must be a JSON object, dim:value list or base64 BLOB: %q", raw)
}

// FormatText renders v in the dim:value list form accepted by ParseText.
func FormatText(v *SparseVector) string {
	parts := make([]string, 0, v.Len())
	for _, d := range v.Dimensions() {
		parts = append(parts, strconv.FormatUint(uint64(d), 10)+":"+strconv.FormatFloat(v.entries[d], 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

func fromStringMap(m map[string]float64) (*SparseVector, error) {
	v := &SparseVector{entries: make(map[Dimension]float64, len(m))}
	seen := make(map[Dimension]string, len(m))
	for k, val := range m {
		d, err := parseDimension(k)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d]; dup {
			return nil, fmt.Errorf("vector: keys %q and %q both name dimension %d", prev, k, d)
		}
		seen[d] = k
		if !isFinite(val) {
			return nil, fmt.Errorf("vector: non-finite value %v at dimension %d", val, d)
		}
		v.put(d, val)
	}
	return v, nil
}

func parsePairs(s string) (*SparseVector, error) {
	v := New()
	seen := make(map[Dimension]struct{})
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, val, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("vector: invalid pair %q, want dim:value", p)
		}
		d, err := parseDimension(strings.Trim(strings.TrimSpace(k), `"`))
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("vector: invalid value in pair %q: %w", p, err)
		}
		if !isFinite(f) {
			return nil, fmt.Errorf("vector: non-finite value in pair %q", p)
		}
		if _, dup := seen[d]; dup {
			return nil, fmt.Errorf("vector: duplicate dimension %d in pair list", d)
		}
		seen[d] = struct{}{}
		v.put(d, f)
	}
	return v, nil
}

func parseDimension(s string) (Dimension, error) {
	d, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("vector: invalid dimension %q: %w", s, err)
	}
	return Dimension(d), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
