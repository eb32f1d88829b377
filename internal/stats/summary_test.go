package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	values := []float64{4, 1, 3, 2, 10}

	s := Summarize(values)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 20.0, s.Sum)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 10.0, s.Max)
	assert.Equal(t, 4.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.InDelta(t, 7.6, s.P90, 1e-9)
	assert.InDelta(t, 3.1623, s.StdDev, 1e-4)

	assert.Equal(t, []float64{4, 1, 3, 2, 10}, values)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
	assert.Equal(t, 0.0, Mean(nil))
}

func TestQuantileClampsAndInterpolates(t *testing.T) {
	values := []float64{10, 20}
	assert.Equal(t, 10.0, Quantile(values, -1))
	assert.Equal(t, 20.0, Quantile(values, 2))
	assert.Equal(t, 15.0, Quantile(values, 0.5))
}
