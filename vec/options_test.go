package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idxapi "github.com/viant/sparsevec/index"
	"github.com/viant/sparsevec/index/bruteforce"
	"github.com/viant/sparsevec/vector"
)

func TestParseTableOptions(t *testing.T) {
	opts, err := parseTableOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, idxapi.MetricCosine, opts.metric)
	assert.Equal(t, bruteforce.CompressionZSTD, opts.compression)

	opts, err = parseTableOptions([]string{" metric = 'l2' ", "compression=lz4", "ignored", "unknown=1"})
	require.NoError(t, err)
	assert.Equal(t, idxapi.MetricL2, opts.metric)
	assert.Equal(t, bruteforce.CompressionLZ4, opts.compression)

	_, err = parseTableOptions([]string{"metric=hamming"})
	assert.Error(t, err)
	_, err = parseTableOptions([]string{"compression=gzip"})
	assert.Error(t, err)
}

func TestDeclaredOptions(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		ok     bool
		metric idxapi.Metric
	}{
		{"Default", `CREATE VIRTUAL TABLE docs USING vec(doc_id)`, true, idxapi.MetricCosine},
		{"Metric", `CREATE VIRTUAL TABLE docs USING vec(doc_id, metric=l2)`, true, idxapi.MetricL2},
		{"Spaced", "create virtual table if not exists \"docs\"\n  using vec ( metric = 'jaccard' , compression=none )", true, idxapi.MetricJaccard},
		{"OtherModule", `CREATE VIRTUAL TABLE docs USING fts5(body)`, false, 0},
		{"PlainTable", `CREATE TABLE docs(id TEXT, vec BLOB)`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, ok, err := declaredOptions(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.metric, opts.metric)
			}
		})
	}

	_, ok, err := declaredOptions(`CREATE VIRTUAL TABLE docs USING vec(metric=hamming)`)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestShadowNames(t *testing.T) {
	assert.Equal(t, "main._vec_docs", ShadowName("docs"))
	assert.Equal(t, "_vec_docs", qualifiedShadow("", "docs"))
	assert.Equal(t, "docs", tableNameFromShadow("main._vec_docs"))
	assert.Equal(t, "docs", tableNameFromShadow("_vec_docs"))
	assert.Equal(t, "", tableNameFromShadow("docs"))
	assert.Equal(t, "trg_vec_main__vec_my_docs", sanitizeName("trg_vec_main._vec_my-docs"))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}

func TestInvalidateCache(t *testing.T) {
	idx := bruteforce.New(idxapi.MetricCosine)
	key := func(table, dataset string) indexKey { return indexKey{dbPath: "/tmp/a.db", table: table, dataset: dataset} }
	for _, k := range []indexKey{key("inv_docs", "ds1"), key("inv_docs", "ds2"), key("inv_other", "ds1")} {
		e := sharedCache.entry(k)
		require.True(t, e.storeIfCurrent(idx, e.generation()))
	}

	assert.Equal(t, 1, InvalidateCache("main._vec_inv_docs", "ds1"))
	assert.Nil(t, sharedCache.entry(key("inv_docs", "ds1")).load())
	assert.NotNil(t, sharedCache.entry(key("inv_docs", "ds2")).load())

	assert.Equal(t, 2, InvalidateCache("main._vec_inv_docs", ""))
	assert.Nil(t, sharedCache.entry(key("inv_docs", "ds2")).load())
	assert.NotNil(t, sharedCache.entry(key("inv_other", "ds1")).load())

	n, err := invalidateFunc(nil, []any{"main._vec_inv_other", "ds1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCacheEntry_InvalidateDuringBuild(t *testing.T) {
	key := indexKey{dbPath: "/tmp/stale.db", table: "stale_docs", dataset: "ds"}
	e := sharedCache.entry(key)

	_, _, gen, build := e.claim()
	require.True(t, build)
	assert.Equal(t, 1, InvalidateCache("main._vec_stale_docs", "ds"))

	assert.False(t, e.storeIfCurrent(bruteforce.New(idxapi.MetricCosine), gen), "build from before the invalidation")
	assert.Nil(t, e.load())
	e.release()

	_, _, gen, build = e.claim()
	require.True(t, build, "next caller rebuilds")
	assert.True(t, e.storeIfCurrent(bruteforce.New(idxapi.MetricCosine), gen))
	assert.NotNil(t, e.load())
	e.release()
}

func TestDecodeMatchArg(t *testing.T) {
	want := vector.FromMap(map[vector.Dimension]float64{1: 0.5, 9: 2})
	blob, err := vector.EncodeEmbedding(want)
	require.NoError(t, err)

	for name, arg := range map[string]any{
		"Blob":  blob,
		"Pairs": "1:0.5, 9:2",
		"JSON":  `{"9": 2, "1": 0.5}`,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := decodeMatchArg(arg)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %v", got)
		})
	}

	_, err = decodeMatchArg(int64(3))
	assert.Error(t, err)
	_, err = decodeMatchArg("not a vector")
	assert.Error(t, err)
}

func TestCacheEntry_Claim(t *testing.T) {
	e := &cacheEntry{}
	idx, wait, gen, build := e.claim()
	require.True(t, build)
	assert.Nil(t, idx)
	assert.Nil(t, wait)

	_, wait, _, build = e.claim()
	assert.False(t, build, "one builder at a time")
	require.NotNil(t, wait)

	require.True(t, e.storeIfCurrent(bruteforce.New(idxapi.MetricL2), gen))
	e.release()
	<-wait

	idx, wait, _, build = e.claim()
	assert.NotNil(t, idx)
	assert.Nil(t, wait)
	assert.False(t, build)
}
