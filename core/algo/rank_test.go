package algo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankerPercentRank(t *testing.T) {
	r := NewRanker([]float64{10, 20, 20, 30, 40})

	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"minimum", 10, 0},
		{"tied values share a rank", 20, 0.25},
		{"middle", 30, 0.75},
		{"maximum", 40, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.Rank(tt.v), 1e-9)
		})
	}
}

func TestRankerMonotonic(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	r := NewRanker(values)
	for _, a := range values {
		for _, b := range values {
			if a > b {
				assert.GreaterOrEqual(t, r.Rank(a), r.Rank(b))
			}
		}
	}
}

func TestRankerDegenerate(t *testing.T) {
	assert.Zero(t, NewRanker(nil).Rank(42))
	assert.Zero(t, NewRanker([]float64{7}).Rank(7))
	assert.Zero(t, NewRanker([]float64{7}).Score(7))
	assert.Equal(t, 100.0, NewRanker([]float64{7}).InverseScore(7))
}

func TestRankerNaNRanksLast(t *testing.T) {
	r := NewRanker([]float64{1, 2, math.NaN()})
	assert.InDelta(t, 1.0, r.Rank(math.NaN()), 1e-9)
	assert.InDelta(t, 0.0, r.InverseScore(math.NaN()), 1e-9)
}

func TestRankerScoreBounds(t *testing.T) {
	values := []float64{0, 0, 1, 2, 100, 1e9}
	r := NewRanker(values)
	for _, v := range values {
		s := r.Score(v)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}

func TestQuantileCont(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"odd median", []float64{1, 2, 3}, 0.5, 2},
		{"even median interpolates", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p80", []float64{0, 10, 20, 30, 40, 50}, 0.8, 40},
		{"p75 interpolates", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"single element", []float64{9}, 0.8, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := QuantileCont(tt.values, tt.q)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestQuantileContEmpty(t *testing.T) {
	_, ok := QuantileCont(nil, 0.5)
	assert.False(t, ok)
}

func TestQuantileContDoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, _ = QuantileCont(values, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(2))
	assert.Equal(t, 0.5, Clamp01(0.5))
}
