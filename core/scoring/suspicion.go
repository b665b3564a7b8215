// Package scoring turns per-person window aggregates into suspicion scores,
// composite activity scores and team rollups. All scores are percentile
// ranks over the scored population, so they are relative by construction.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/schema"
)

// missingInterCommitSeconds stands in for an unknown inter-commit median so
// the person ranks at the slow (favorable) end.
const missingInterCommitSeconds = 999999999

// popRanks holds the population rankers every suspicion variant draws from.
type popRanks struct {
	tiny        *algo.Ranker // p2_tiny
	small       *algo.Ranker // p10_small
	zero        *algo.Ranker // p0_zero
	burst       *algo.Ranker // max_commits_10m
	interCommit *algo.Ranker // median_inter_commit_seconds
	balance     *algo.Ranker // p_balance_high
	msgUnique   *algo.Ranker // message_unique_ratio
	singleRepo  *algo.Ranker // top1_repo_share
	offHours    *algo.Ranker // after_hours_ratio
	intensity   *algo.Ranker // changed_lines_per_commit
	prod        *algo.Ranker // total_changed_lines
	repo        *algo.Ranker // repo_count
}

func rankPopulation(pas []schema.PersonAggregate) *popRanks {
	n := len(pas)
	tiny := make([]float64, n)
	small := make([]float64, n)
	zero := make([]float64, n)
	burst := make([]float64, n)
	inter := make([]float64, n)
	balance := make([]float64, n)
	msgUnique := make([]float64, n)
	singleRepo := make([]float64, n)
	offHours := make([]float64, n)
	intensity := make([]float64, n)
	prod := make([]float64, n)
	repo := make([]float64, n)
	for i := range pas {
		pa := &pas[i]
		tiny[i] = pa.P2Tiny
		small[i] = pa.P10Small
		zero[i] = pa.P0Zero
		burst[i] = float64(pa.MaxCommits10m)
		inter[i] = coalesce(pa.MedianInterCommitSeconds, missingInterCommitSeconds)
		balance[i] = pa.PBalanceHigh
		msgUnique[i] = nilRanksLast(pa.MessageUniqueRatio)
		singleRepo[i] = pa.Top1RepoShare
		offHours[i] = pa.AfterHoursRatio
		intensity[i] = pa.ChangedLinesPerCommit
		prod[i] = float64(pa.TotalChangedLines)
		repo[i] = float64(pa.RepoCount)
	}
	return &popRanks{
		tiny:        algo.NewRanker(tiny),
		small:       algo.NewRanker(small),
		zero:        algo.NewRanker(zero),
		burst:       algo.NewRanker(burst),
		interCommit: algo.NewRanker(inter),
		balance:     algo.NewRanker(balance),
		msgUnique:   algo.NewRanker(msgUnique),
		singleRepo:  algo.NewRanker(singleRepo),
		offHours:    algo.NewRanker(offHours),
		intensity:   algo.NewRanker(intensity),
		prod:        algo.NewRanker(prod),
		repo:        algo.NewRanker(repo),
	}
}

// EmployeeSuspicion computes the inner anti-gaming score used by the
// employee activity ranking. No gates: the composite engine folds the result
// into an integrity sub-score instead of punishing the total.
// Returned scores are index-aligned with the input and rounded to 2 places.
func EmployeeSuspicion(pas []schema.PersonAggregate) []float64 {
	r := rankPopulation(pas)
	out := make([]float64, len(pas))
	for i := range pas {
		pa := &pas[i]
		out[i] = algo.Round2(
			0.25*r.tiny.Score(pa.P2Tiny) +
				0.12*r.zero.Score(pa.P0Zero) +
				0.18*r.burst.Score(float64(pa.MaxCommits10m)) +
				0.14*r.balance.Score(pa.PBalanceHigh) +
				0.10*r.msgUnique.InverseScore(nilRanksLast(pa.MessageUniqueRatio)) +
				0.13*r.singleRepo.Score(pa.Top1RepoShare) +
				0.08*r.intensity.InverseScore(pa.ChangedLinesPerCommit))
	}
	return out
}

// TeamSuspicion computes the per-developer anti-gaming score used by the
// manager rollup. Ranks are global across all teams so small teams are not
// compared only against themselves. A developer counts as suspicious at
// SuspiciousScoreThreshold and above.
func TeamSuspicion(pas []schema.PersonAggregate) []float64 {
	r := rankPopulation(pas)
	out := make([]float64, len(pas))
	for i := range pas {
		pa := &pas[i]
		base := 0.22*r.tiny.Score(pa.P2Tiny) +
			0.12*r.zero.Score(pa.P0Zero) +
			0.18*r.burst.Score(float64(pa.MaxCommits10m)) +
			0.14*r.balance.Score(pa.PBalanceHigh) +
			0.10*r.msgUnique.InverseScore(nilRanksLast(pa.MessageUniqueRatio)) +
			0.10*r.singleRepo.Score(pa.Top1RepoShare) +
			0.06*r.offHours.Score(pa.AfterHoursRatio) +
			0.08*r.intensity.InverseScore(pa.ChangedLinesPerCommit)
		switch {
		case pa.CommitCount < schema.LowSampleCommitCount:
			base *= 0.5
		case r.prod.Rank(float64(pa.TotalChangedLines)) >= schema.ProtectedRankThreshold ||
			r.intensity.Rank(pa.ChangedLinesPerCommit) >= schema.ProtectedRankThreshold:
			base *= 0.6
		}
		out[i] = base
	}
	return out
}

// AntiFraudRow is one scored row of the anti-fraud report, aggregate plus
// component scores, gated total and heuristic tags.
type AntiFraudRow struct {
	Agg schema.PersonAggregate

	UnderSaturated bool

	ScoreTotal    float64
	ScoreTotalRaw float64

	ScoreTiny         float64
	ScoreSmall        float64
	ScoreZero         float64
	ScoreBurst        float64
	ScoreInterCommit  float64
	ScoreBalance      float64
	ScoreMessage      float64
	ScoreSingleRepo   float64
	ScoreLowIntensity float64

	Tags string
}

// AntiFraud scores every person against the population and tags the
// heuristic patterns. Rows come back sorted by gated score, then commit
// count, then total changed lines, then name.
func AntiFraud(pas []schema.PersonAggregate, w schema.Window) []AntiFraudRow {
	r := rankPopulation(pas)
	t := antiFraudThresholds(pas)

	out := make([]AntiFraudRow, 0, len(pas))
	for i := range pas {
		pa := pas[i]
		row := AntiFraudRow{Agg: pa}

		row.ScoreTiny = r.tiny.Score(pa.P2Tiny)
		row.ScoreSmall = r.small.Score(pa.P10Small)
		row.ScoreZero = r.zero.Score(pa.P0Zero)
		row.ScoreBurst = r.burst.Score(float64(pa.MaxCommits10m))
		row.ScoreInterCommit = r.interCommit.InverseScore(coalesce(pa.MedianInterCommitSeconds, missingInterCommitSeconds))
		row.ScoreBalance = r.balance.Score(pa.PBalanceHigh)
		row.ScoreMessage = r.msgUnique.InverseScore(nilRanksLast(pa.MessageUniqueRatio))
		row.ScoreSingleRepo = r.singleRepo.Score(pa.Top1RepoShare)
		if pa.Top1RepoIsCore {
			// Topping out on a crowded repo is normal maintenance work.
			row.ScoreSingleRepo *= 0.6
		}
		row.ScoreLowIntensity = r.intensity.InverseScore(pa.ChangedLinesPerCommit)

		total := 0.18*row.ScoreTiny +
			0.06*row.ScoreSmall +
			0.10*row.ScoreZero +
			0.12*row.ScoreBurst +
			0.06*row.ScoreInterCommit +
			0.14*row.ScoreBalance +
			0.10*row.ScoreMessage +
			0.10*row.ScoreSingleRepo +
			0.14*row.ScoreLowIntensity
		row.ScoreTotalRaw = algo.Round2(total)

		protected := r.prod.Rank(float64(pa.TotalChangedLines)) >= schema.ProtectedRankThreshold ||
			r.intensity.Rank(pa.ChangedLinesPerCommit) >= schema.ProtectedRankThreshold ||
			r.repo.Rank(float64(pa.RepoCount)) >= schema.ProtectedRankThreshold ||
			r.msgUnique.Rank(nilRanksLast(pa.MessageUniqueRatio)) >= schema.ProtectedRankThreshold
		switch {
		case pa.CommitCount < schema.LowSampleCommitCount:
			total *= 0.5
		case protected:
			total *= 0.6
		}
		row.ScoreTotal = algo.Round2(total)

		row.UnderSaturated = schema.IsDevRole(pa.Role) && pa.CommitCount < w.MinCommits()
		row.Tags = antiFraudTags(&pa, t, protected, row.UnderSaturated)
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.ScoreTotal != b.ScoreTotal {
			return a.ScoreTotal > b.ScoreTotal
		}
		if a.Agg.CommitCount != b.Agg.CommitCount {
			return a.Agg.CommitCount > b.Agg.CommitCount
		}
		if a.Agg.TotalChangedLines != b.Agg.TotalChangedLines {
			return a.Agg.TotalChangedLines > b.Agg.TotalChangedLines
		}
		return a.Agg.FullName < b.Agg.FullName
	})
	return out
}

// thresholds are population quantiles driving the tag heuristics.
type thresholds struct {
	p0P80        float64
	p2P80        float64
	burstP80     float64
	balanceP80   float64
	repoShareP80 float64
	msgUniqueP15 float64
	hasMsgP15    bool
}

func antiFraudThresholds(pas []schema.PersonAggregate) thresholds {
	n := len(pas)
	p0 := make([]float64, 0, n)
	p2 := make([]float64, 0, n)
	burst := make([]float64, 0, n)
	balance := make([]float64, 0, n)
	share := make([]float64, 0, n)
	var msgUnique []float64
	for i := range pas {
		pa := &pas[i]
		p0 = append(p0, pa.P0Zero)
		p2 = append(p2, pa.P2Tiny)
		burst = append(burst, float64(pa.MaxCommits10m))
		balance = append(balance, pa.PBalanceHigh)
		share = append(share, pa.Top1RepoShare)
		if pa.MessageUniqueRatio != nil {
			msgUnique = append(msgUnique, *pa.MessageUniqueRatio)
		}
	}
	var t thresholds
	t.p0P80, _ = algo.QuantileCont(p0, 0.8)
	t.p2P80, _ = algo.QuantileCont(p2, 0.8)
	t.burstP80, _ = algo.QuantileCont(burst, 0.8)
	t.balanceP80, _ = algo.QuantileCont(balance, 0.8)
	t.repoShareP80, _ = algo.QuantileCont(share, 0.8)
	t.msgUniqueP15, t.hasMsgP15 = algo.QuantileCont(msgUnique, 0.15)
	return t
}

func antiFraudTags(pa *schema.PersonAggregate, t thresholds, protected, underSaturated bool) string {
	var tags []string
	if pa.P0Zero >= t.p0P80 {
		tags = append(tags, "zero_change_ratio_high")
	}
	if pa.P2Tiny >= t.p2P80 {
		tags = append(tags, "tiny_commit_ratio_high")
	}
	if float64(pa.MaxCommits10m) >= t.burstP80 {
		tags = append(tags, "burst_commits")
	}
	if pa.CommitCount >= schema.LowSampleCommitCount && pa.PBalanceHigh >= t.balanceP80 {
		tags = append(tags, "add_del_flip")
	}
	if !pa.Top1RepoIsCore && pa.Top1RepoShare >= t.repoShareP80 {
		tags = append(tags, "single_repo_grind")
	}
	if underSaturated {
		tags = append(tags, "under_saturated")
	}
	if pa.MsgTotal >= 20 && pa.MessageUniqueRatio != nil && t.hasMsgP15 &&
		*pa.MessageUniqueRatio <= math.Min(t.msgUniqueP15, 0.20) &&
		pa.Top1MessageShare != nil && *pa.Top1MessageShare >= 0.40 &&
		(pa.GenericMessageRatio >= 0.30 || pa.ShortMessageRatio >= 0.30) {
		tags = append(tags, "template_messages")
	}
	if protected {
		tags = append(tags, "protected_high_output")
	}
	if pa.CommitCount < schema.LowSampleCommitCount {
		tags = append(tags, "low_sample_size")
	}
	return strings.Join(tags, ";")
}

func coalesce(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// nilRanksLast maps a missing ratio to positive infinity, matching
// NULLS LAST ordering in rank windows.
func nilRanksLast(p *float64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return *p
}
