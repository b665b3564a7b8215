package scoring

import (
	"math"
	"sort"

	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/schema"
)

// PersonScore is one row of the employee activity ranking: the aggregate,
// the composite total and the display-only sub-scores.
type PersonScore struct {
	Agg schema.PersonAggregate

	SuspiciousScore float64

	ScoreTotal float64

	ScoreActive         float64
	ScoreLinesTotal     float64
	ScoreLinesP50       float64
	ScoreLinesPerCommit float64
	ScoreRepoDiversity  float64
	ScoreMessageQuality float64
	ScoreIntegrity      float64
	ScoreAfterHours     float64
	ScoreConcentration  float64
}

// ScorePersons computes the composite activity score for every person.
// The total is driven by weighted output volume, gated by commit saturation
// so a handful of giant commits cannot buy a top rank, plus a small capped
// multi-repo bonus. Suspicion feeds only the integrity sub-score.
// Rows come back sorted by total, then changed lines, then count, then name.
func ScorePersons(pas []schema.PersonAggregate, w schema.Window) []PersonScore {
	n := len(pas)
	suspicious := EmployeeSuspicion(pas)

	active := make([]float64, n)
	linesTotal := make([]float64, n)
	linesP50 := make([]float64, n)
	linesPerCommit := make([]float64, n)
	repoDiv := make([]float64, n)
	concentration := make([]float64, n)
	msgQuality := make([]float64, n)
	afterHours := make([]float64, n)
	for i := range pas {
		pa := &pas[i]
		active[i] = float64(pa.CommitCount)
		linesTotal[i] = math.Log1p(pa.TotalWeightedChangedLines)
		linesP50[i] = math.Log1p(pa.MedianWeightedChangedLines)
		linesPerCommit[i] = math.Log1p(pa.WeightedChangedLinesPerCommit)
		repoDiv[i] = float64(pa.RepoCount)
		concentration[i] = pa.Top1RepoShare
		msgQuality[i] = nilRanksLast(pa.MessageUniqueRatio)
		afterHours[i] = pa.AfterHoursRatio
	}
	rActive := algo.NewRanker(active)
	rLinesTotal := algo.NewRanker(linesTotal)
	rLinesP50 := algo.NewRanker(linesP50)
	rLinesPerCommit := algo.NewRanker(linesPerCommit)
	rRepoDiv := algo.NewRanker(repoDiv)
	rConcentration := algo.NewRanker(concentration)
	rMsgQuality := algo.NewRanker(msgQuality)
	rAfterHours := algo.NewRanker(afterHours)
	rSuspicious := algo.NewRanker(suspicious)

	minCommits := float64(w.MinCommits())
	out := make([]PersonScore, 0, n)
	for i := range pas {
		pa := pas[i]
		ps := PersonScore{Agg: pa, SuspiciousScore: suspicious[i]}

		ps.ScoreActive = algo.Round2(rActive.Score(float64(pa.CommitCount)))
		ps.ScoreLinesTotal = algo.Round2(rLinesTotal.Score(math.Log1p(pa.TotalWeightedChangedLines)))
		ps.ScoreLinesP50 = algo.Round2(rLinesP50.Score(math.Log1p(pa.MedianWeightedChangedLines)))
		ps.ScoreLinesPerCommit = algo.Round2(rLinesPerCommit.Score(math.Log1p(pa.WeightedChangedLinesPerCommit)))
		ps.ScoreRepoDiversity = algo.Round2(rRepoDiv.Score(float64(pa.RepoCount)))
		ps.ScoreConcentration = algo.Round2(rConcentration.InverseScore(pa.Top1RepoShare))
		ps.ScoreMessageQuality = algo.Round2(rMsgQuality.Score(nilRanksLast(pa.MessageUniqueRatio)))
		ps.ScoreAfterHours = algo.Round2(rAfterHours.Score(pa.AfterHoursRatio))
		ps.ScoreIntegrity = algo.Round2(rSuspicious.InverseScore(suspicious[i]))

		var gate float64
		if float64(pa.CommitCount) < minCommits {
			gate = 0.5 + 0.3*(float64(pa.CommitCount)/minCommits)
		} else {
			gate = 0.8 + 0.2*math.Min(1, float64(pa.CommitCount)/20)
		}
		total := ps.ScoreLinesTotal*gate + 0.05*math.Min(ps.ScoreRepoDiversity, 70)
		ps.ScoreTotal = algo.Round2(math.Min(100, total))

		out = append(out, ps)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.ScoreTotal != b.ScoreTotal {
			return a.ScoreTotal > b.ScoreTotal
		}
		if a.Agg.TotalChangedLines != b.Agg.TotalChangedLines {
			return a.Agg.TotalChangedLines > b.Agg.TotalChangedLines
		}
		if a.Agg.CommitCount != b.Agg.CommitCount {
			return a.Agg.CommitCount > b.Agg.CommitCount
		}
		return a.Agg.FullName < b.Agg.FullName
	})
	return out
}
