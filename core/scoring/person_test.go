package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

func TestScorePersonsBounds(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), cleanAgg("b", 50), cleanAgg("c", 60), farmingAgg("f", 200),
	}
	out := ScorePersons(pas, testWindow())
	require.Len(t, out, 4)
	for _, ps := range out {
		assert.GreaterOrEqual(t, ps.ScoreTotal, 0.0)
		assert.LessOrEqual(t, ps.ScoreTotal, 100.0)
		for _, sub := range []float64{
			ps.ScoreActive, ps.ScoreLinesTotal, ps.ScoreLinesP50, ps.ScoreLinesPerCommit,
			ps.ScoreRepoDiversity, ps.ScoreMessageQuality, ps.ScoreIntegrity,
			ps.ScoreAfterHours, ps.ScoreConcentration,
		} {
			assert.GreaterOrEqual(t, sub, 0.0)
			assert.LessOrEqual(t, sub, 100.0)
		}
	}
}

func TestScorePersonsSaturationGate(t *testing.T) {
	// Identical output volume, but one person squeezed it into too few
	// commits for a 2-month window (12 required).
	starved := cleanAgg("starved", 4)
	starved.TotalChangedLines = 3200
	starved.TotalWeightedChangedLines = 3200 * 1.8
	full := cleanAgg("full", 40)
	full.TotalChangedLines = 3200
	full.TotalWeightedChangedLines = 3200 * 1.8

	filler1 := cleanAgg("filler1", 30)
	filler1.TotalWeightedChangedLines = 100
	filler2 := cleanAgg("filler2", 30)
	filler2.TotalWeightedChangedLines = 200

	out := ScorePersons([]schema.PersonAggregate{starved, full, filler1, filler2}, testWindow())
	byID := make(map[string]PersonScore)
	for _, ps := range out {
		byID[ps.Agg.PersonID] = ps
	}
	// Both tie on the lines rank, so only the gate separates them.
	assert.Equal(t, byID["starved"].ScoreLinesTotal, byID["full"].ScoreLinesTotal)
	assert.Less(t, byID["starved"].ScoreTotal, byID["full"].ScoreTotal)
}

func TestScorePersonsGateFactors(t *testing.T) {
	// With a 2-month window the saturation floor is 12 commits.
	w := testWindow()
	require.Equal(t, int64(12), w.MinCommits())

	pas := []schema.PersonAggregate{
		cleanAgg("a", 6), cleanAgg("b", 40), cleanAgg("c", 50),
	}
	out := ScorePersons(pas, w)
	byID := make(map[string]PersonScore)
	for _, ps := range out {
		byID[ps.Agg.PersonID] = ps
	}
	// a: gate 0.5 + 0.3*(6/12) = 0.65; bonus 0.05*min(repoDiv, 70).
	a := byID["a"]
	wantA := a.ScoreLinesTotal*0.65 + 0.05*minF(a.ScoreRepoDiversity, 70)
	assert.InDelta(t, wantA, a.ScoreTotal, 0.01)
	// b: gate 0.8 + 0.2*1 = 1.0 (40 >= 20).
	b := byID["b"]
	wantB := b.ScoreLinesTotal*1.0 + 0.05*minF(b.ScoreRepoDiversity, 70)
	assert.InDelta(t, wantB, b.ScoreTotal, 0.01)
}

func TestScorePersonsIntegrityInvertsSuspicion(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), cleanAgg("b", 50), cleanAgg("c", 60), farmingAgg("f", 200),
	}
	out := ScorePersons(pas, testWindow())
	byID := make(map[string]PersonScore)
	for _, ps := range out {
		byID[ps.Agg.PersonID] = ps
	}
	assert.Greater(t, byID["f"].SuspiciousScore, byID["a"].SuspiciousScore)
	assert.Less(t, byID["f"].ScoreIntegrity, byID["a"].ScoreIntegrity)
}

func TestScorePersonsSorted(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), cleanAgg("b", 50), farmingAgg("f", 200),
	}
	out := ScorePersons(pas, testWindow())
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].ScoreTotal, out[i].ScoreTotal)
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
