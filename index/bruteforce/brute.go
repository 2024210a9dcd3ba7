package bruteforce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/vector"
)

var _ index.Index = (*Index)(nil)

// Index is a brute-force sparse vector index. The zero value scores by cosine
// similarity and persists zstd-compressed.
type Index struct {
	metric      index.Metric
	compression Compression
	ids         []string
	vecs        []*vector.SparseVector
}

// Option configures an Index.
type Option func(*Index)

// WithCompression selects the payload compression used by MarshalBinary.
func WithCompression(c Compression) Option {
	return func(i *Index) { i.compression = c }
}

// New creates an empty index scoring with metric.
func New(metric index.Metric, opts ...Option) *Index {
	i := &Index{metric: metric}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Metric returns the scoring metric.
func (i *Index) Metric() index.Metric { return i.metric }

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Build loads ids and vectors. Vectors are cloned so later caller mutations
// do not leak into the index; a nil vector is stored as the zero vector.
func (i *Index) Build(ids []string, vectors []*vector.SparseVector) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if !i.metric.Valid() {
		return fmt.Errorf("bruteforce: unsupported metric %v", i.metric)
	}
	seen := make(map[string]struct{}, len(ids))
	vecs := make([]*vector.SparseVector, len(vectors))
	for j, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("bruteforce: duplicate id %q", id)
		}
		seen[id] = struct{}{}
		if vectors[j] == nil {
			vecs[j] = vector.New()
		} else {
			vecs[j] = vectors[j].Clone()
		}
		// queries only read operand caches, so fill them before sharing
		vecs[j].SquaredMagnitude()
	}
	i.ids = append([]string(nil), ids...)
	i.vecs = vecs
	return nil
}

// Query returns top-k ids with their scores, best first. Ties keep build order.
// For cosine, zero-length entries are skipped and a zero-length query fails
// with vector.ErrUndefinedSimilarity.
func (i *Index) Query(query *vector.SparseVector, k int) ([]string, []float64, error) {
	if len(i.vecs) == 0 {
		return nil, nil, nil
	}
	if query == nil {
		query = vector.New()
	}
	if i.metric == index.MetricCosine && query.Magnitude() == 0 {
		return nil, nil, vector.ErrUndefinedSimilarity
	}
	type scored struct {
		idx   int
		score float64
	}
	scoreds := make([]scored, 0, len(i.vecs))
	for j, v := range i.vecs {
		var s float64
		switch i.metric {
		case index.MetricCosine:
			sim, err := query.CosineSimilarity(v)
			if err != nil {
				continue
			}
			s = sim
		case index.MetricL2:
			s = query.Distance(v)
		case index.MetricDot:
			s = query.DotProduct(v)
		case index.MetricJaccard:
			s = query.JaccardSimilarity(v)
		}
		scoreds = append(scoreds, scored{idx: j, score: s})
	}
	asc := i.metric.Ascending()
	sort.SliceStable(scoreds, func(a, b int) bool {
		if asc {
			return scoreds[a].score < scoreds[b].score
		}
		return scoreds[a].score > scoreds[b].score
	})
	if k <= 0 || k > len(scoreds) {
		k = len(scoreds)
	}
	outIDs := make([]string, k)
	outScores := make([]float64, k)
	for n := 0; n < k; n++ {
		outIDs[n] = i.ids[scoreds[n].idx]
		outScores[n] = scoreds[n].score
	}
	return outIDs, outScores, nil
}

// Nearest returns the id of the entry closest to query by Euclidean distance,
// regardless of the index metric.
func (i *Index) Nearest(query *vector.SparseVector) (string, error) {
	idx, err := vector.Nearest(query, i.vecs)
	if err != nil {
		return "", err
	}
	return i.ids[idx], nil
}

const (
	magic     = "SPBF"
	headerLen = len(magic) + 2 + 4
)

// MarshalBinary stores: magic "SPBF", metric(uint8), compression(uint8),
// raw payload length(uint32), then the possibly compressed payload:
// n(uint32) and for each item idLen(uint32), id bytes, blobLen(uint32),
// vector.EncodeEmbedding blob.
func (i *Index) MarshalBinary() ([]byte, error) {
	size := 4
	blobs := make([][]byte, len(i.vecs))
	for idx, v := range i.vecs {
		b, err := vector.EncodeEmbedding(v)
		if err != nil {
			return nil, fmt.Errorf("bruteforce: encode %q: %w", i.ids[idx], err)
		}
		blobs[idx] = b
		size += 8 + len(i.ids[idx]) + len(b)
	}
	payload := make([]byte, 0, size)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(i.ids)))
	for idx, id := range i.ids {
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(id)))
		payload = append(payload, id...)
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(blobs[idx])))
		payload = append(payload, blobs[idx]...)
	}

	compression := i.compression
	body, err := compress(payload, compression)
	if err != nil {
		return nil, err
	}
	if body == nil {
		compression, body = CompressionNone, payload
	}

	out := make([]byte, 0, headerLen+len(body))
	out = append(out, magic...)
	out = append(out, byte(i.metric), byte(compression))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, body...), nil
}

// UnmarshalBinary restores the index, including its metric and compression, from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerLen || string(data[:len(magic)]) != magic {
		return errors.New("bruteforce: invalid data")
	}
	metric := index.Metric(data[4])
	if !metric.Valid() {
		return fmt.Errorf("bruteforce: invalid metric %d", data[4])
	}
	compression := Compression(data[5])
	rawLen := int(binary.LittleEndian.Uint32(data[6:10]))
	payload, err := decompress(data[headerLen:], compression, rawLen)
	if err != nil {
		return err
	}

	off := 0
	getU32 := func() (int, error) {
		if off+4 > len(payload) {
			return 0, errors.New("bruteforce: truncated")
		}
		v := binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4
		return int(v), nil
	}
	n, err := getU32()
	if err != nil {
		return err
	}
	ids := make([]string, 0, min(n, len(payload)/8))
	vecs := make([]*vector.SparseVector, 0, cap(ids))
	for idx := 0; idx < n; idx++ {
		idLen, err := getU32()
		if err != nil {
			return err
		}
		if off+idLen > len(payload) {
			return errors.New("bruteforce: truncated id")
		}
		id := string(payload[off : off+idLen])
		off += idLen
		blobLen, err := getU32()
		if err != nil {
			return err
		}
		if off+blobLen > len(payload) {
			return errors.New("bruteforce: truncated vec")
		}
		v, err := vector.DecodeEmbedding(payload[off : off+blobLen])
		if err != nil {
			return fmt.Errorf("bruteforce: decode %q: %w", id, err)
		}
		off += blobLen
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	if off != len(payload) {
		return fmt.Errorf("bruteforce: %d trailing bytes", len(payload)-off)
	}
	i.metric, i.compression = metric, compression
	return i.Build(ids, vecs)
}
