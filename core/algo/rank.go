package algo

import (
	"math"
	"sort"
)

// Ranker computes percentile ranks over a fixed population with the same
// semantics as the SQL percent_rank window function:
//
//	rank(v) = (count of values strictly less than v) / (n - 1)
//
// Tied values share a rank. For populations of size 0 or 1 the rank is 0;
// a singleton has nothing to be ranked against, so it gets the bottom rank
// rather than a crash (convention pinned here because SQL engines disagree).
type Ranker struct {
	sorted []float64
}

// NewRanker copies and sorts the population. NaN values are treated as
// positive infinity, matching NULLS LAST ordering.
func NewRanker(values []float64) *Ranker {
	sorted := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = math.Inf(1)
		}
		sorted[i] = v
	}
	sort.Float64s(sorted)
	return &Ranker{sorted: sorted}
}

// Rank returns the percentile rank of v in [0, 1].
func (r *Ranker) Rank(v float64) float64 {
	n := len(r.sorted)
	if n <= 1 {
		return 0
	}
	if math.IsNaN(v) {
		v = math.Inf(1)
	}
	less := sort.SearchFloat64s(r.sorted, v)
	return float64(less) / float64(n-1)
}

// Score returns the ascending percentile rank scaled to [0, 100]:
// higher raw value, higher score.
func (r *Ranker) Score(v float64) float64 {
	return 100 * r.Rank(v)
}

// InverseScore returns the descending percentile rank scaled to [0, 100]:
// lower raw value, higher score.
func (r *Ranker) InverseScore(v float64) float64 {
	return 100 * (1 - r.Rank(v))
}

// QuantileCont returns the continuous (linearly interpolated) q-quantile of
// values, matching SQL quantile_cont. The input is not modified. Returns
// (0, false) for an empty population.
func QuantileCont(values []float64, q float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n == 1 {
		return sorted[0], true
	}
	q = Clamp01(q)
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], true
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), true
}

// Median returns the continuous median, or 0 for an empty population.
func Median(values []float64) float64 {
	m, _ := QuantileCont(values, 0.5)
	return m
}
