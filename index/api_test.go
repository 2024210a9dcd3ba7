package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
	}{
		{"", MetricCosine},
		{"Cosine", MetricCosine},
		{" l2 ", MetricL2},
		{"euclidean", MetricL2},
		{"dot", MetricDot},
		{"JACCARD", MetricJaccard},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.True(t, got.Valid())
	}

	_, err := ParseMetric("hamming")
	assert.Error(t, err)
}

func TestMetric_String(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricL2, MetricDot, MetricJaccard} {
		back, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
	assert.Equal(t, "unknown(9)", Metric(9).String())
	assert.False(t, Metric(9).Valid())
	assert.True(t, MetricL2.Ascending())
	assert.False(t, MetricCosine.Ascending())
}
