package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

// cleanAgg is a person with healthy-looking metrics.
func cleanAgg(id string, commits int64) schema.PersonAggregate {
	mu := 0.95
	return schema.PersonAggregate{
		PersonID:              id,
		FullName:              id,
		Role:                  "数据开发",
		CommitCount:                   commits,
		RepoCount:                     4,
		TotalChangedLines:             commits * 80,
		TotalWeightedChangedLines:     float64(commits*80) * 1.8,
		ChangedLinesPerCommit:         80,
		WeightedChangedLinesPerCommit: 144,
		MedianChangedLines:            80,
		MedianWeightedChangedLines:    144,
		P0Zero:                0.01,
		P2Tiny:                0.02,
		P10Small:              0.10,
		PBalanceHigh:          0.01,
		AfterHoursRatio:       0.10,
		Top1RepoShare:         0.40,
		MaxCommits10m:         2,
		MsgTotal:              commits,
		MessageUniqueRatio:    &mu,
	}
}

// farmingAgg is a person whose metrics scream commit farming.
func farmingAgg(id string, commits int64) schema.PersonAggregate {
	mu := 0.05
	top1 := 0.9
	inter := 30.0
	return schema.PersonAggregate{
		PersonID:                 id,
		FullName:                 id,
		Role:                     "数据开发",
		CommitCount:                   commits,
		RepoCount:                     1,
		TotalChangedLines:             commits * 2,
		TotalWeightedChangedLines:     float64(commits*2) * 1.8,
		ChangedLinesPerCommit:         2,
		WeightedChangedLinesPerCommit: 3.6,
		MedianChangedLines:            2,
		MedianWeightedChangedLines:    3.6,
		P0Zero:                   0.5,
		P2Tiny:                   0.9,
		P10Small:                 0.95,
		PBalanceHigh:             0.4,
		AfterHoursRatio:          0.7,
		Top1RepoShare:            0.99,
		MaxCommits10m:            15,
		MsgTotal:                 commits,
		MsgUnique:                2,
		MsgTop1Cnt:               commits - 1,
		MessageUniqueRatio:       &mu,
		Top1MessageShare:         &top1,
		GenericMessageRatio:      0.8,
		ShortMessageRatio:        0.9,
		MedianInterCommitSeconds: &inter,
	}
}

func testWindow() schema.Window {
	return schema.NewWindow(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 2)
}

func TestEmployeeSuspicionOrdersFarmerAboveClean(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40),
		cleanAgg("b", 50),
		cleanAgg("c", 60),
		farmingAgg("f", 200),
	}
	scores := EmployeeSuspicion(pas)
	require.Len(t, scores, 4)
	for i := 0; i < 3; i++ {
		assert.Less(t, scores[i], scores[3], "clean %s should score below the farmer", pas[i].PersonID)
	}
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}

func TestEmployeeSuspicionUniformPopulation(t *testing.T) {
	pas := []schema.PersonAggregate{cleanAgg("a", 40), cleanAgg("b", 40), cleanAgg("c", 40)}
	scores := EmployeeSuspicion(pas)
	// Ascending components all tie at rank 0; the two inverted components
	// (template, low intensity) tie at 100, leaving their weights.
	for _, s := range scores {
		assert.InDelta(t, 18.0, s, 1e-9)
	}
}

func TestAntiFraudLowSampleHalvesScore(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40),
		cleanAgg("b", 50),
		farmingAgg("f-low", 10),
	}
	rows := AntiFraud(pas, testWindow())
	byID := antiFraudByID(rows)

	low := byID["f-low"]
	assert.InDelta(t, low.ScoreTotalRaw*0.5, low.ScoreTotal, 0.02)
	assert.Contains(t, low.Tags, "low_sample_size")
}

func TestAntiFraudProtectionDiscount(t *testing.T) {
	// The farmer is also the most prolific by total lines, which triggers
	// the high-output protection.
	farmer := farmingAgg("f", 500)
	farmer.TotalChangedLines = 100000
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), cleanAgg("b", 50), cleanAgg("c", 60), cleanAgg("d", 70), farmer,
	}
	rows := AntiFraud(pas, testWindow())
	byID := antiFraudByID(rows)

	f := byID["f"]
	assert.InDelta(t, f.ScoreTotalRaw*0.6, f.ScoreTotal, 0.02)
	assert.Contains(t, f.Tags, "protected_high_output")
}

func TestAntiFraudTags(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), cleanAgg("b", 50), cleanAgg("c", 60), cleanAgg("d", 70),
		farmingAgg("f", 40),
	}
	rows := AntiFraud(pas, testWindow())
	byID := antiFraudByID(rows)

	f := byID["f"]
	for _, tag := range []string{
		"zero_change_ratio_high",
		"tiny_commit_ratio_high",
		"burst_commits",
		"add_del_flip",
		"single_repo_grind",
		"template_messages",
	} {
		assert.Contains(t, strings.Split(f.Tags, ";"), tag)
	}
	assert.NotContains(t, f.Tags, "low_sample_size")

	a := byID["a"]
	assert.NotContains(t, a.Tags, "zero_change_ratio_high")
	assert.NotContains(t, a.Tags, "template_messages")
}

func TestAntiFraudUnderSaturatedTag(t *testing.T) {
	// Window of 2 months requires 12 commits from dev roles.
	small := cleanAgg("small", 5)
	pas := []schema.PersonAggregate{small, cleanAgg("b", 50), cleanAgg("c", 60)}
	rows := AntiFraud(pas, testWindow())
	byID := antiFraudByID(rows)

	assert.True(t, byID["small"].UnderSaturated)
	assert.Contains(t, byID["small"].Tags, "under_saturated")
	assert.False(t, byID["b"].UnderSaturated)

	// Non-dev roles are never under-saturated.
	mgr := cleanAgg("mgr", 5)
	mgr.Role = "管理层"
	rows = AntiFraud([]schema.PersonAggregate{mgr, cleanAgg("b", 50)}, testWindow())
	assert.False(t, antiFraudByID(rows)["mgr"].UnderSaturated)
}

func TestAntiFraudSortedByScore(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), farmingAgg("f", 200), cleanAgg("b", 50),
	}
	rows := AntiFraud(pas, testWindow())
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].ScoreTotal, rows[i].ScoreTotal)
	}
	assert.Equal(t, "f", rows[0].Agg.PersonID)
}

func TestAntiFraudCoreRepoDiscountsSingleRepoTerm(t *testing.T) {
	onCore := farmingAgg("core", 40)
	onCore.Top1RepoIsCore = true
	offCore := farmingAgg("fringe", 40)
	pas := []schema.PersonAggregate{cleanAgg("a", 40), cleanAgg("b", 50), onCore, offCore}
	byID := antiFraudByID(AntiFraud(pas, testWindow()))

	assert.InDelta(t, byID["fringe"].ScoreSingleRepo*0.6, byID["core"].ScoreSingleRepo, 0.02)
	assert.NotContains(t, byID["core"].Tags, "single_repo_grind")
	assert.Contains(t, byID["fringe"].Tags, "single_repo_grind")
}

func TestTeamSuspicionGates(t *testing.T) {
	pas := []schema.PersonAggregate{
		cleanAgg("a", 40), cleanAgg("b", 50), cleanAgg("c", 60),
		farmingAgg("f", 40),
		farmingAgg("f-low", 10),
	}
	scores := TeamSuspicion(pas)
	byID := make(map[string]float64, len(pas))
	for i := range pas {
		byID[pas[i].PersonID] = scores[i]
	}
	// Same pathological profile, but the low-sample person is halved
	// relative to the full-sample one.
	assert.Less(t, byID["f-low"], byID["f"])
	assert.Greater(t, byID["f"], byID["a"])
}

func antiFraudByID(rows []AntiFraudRow) map[string]AntiFraudRow {
	m := make(map[string]AntiFraudRow, len(rows))
	for _, r := range rows {
		m[r.Agg.PersonID] = r
	}
	return m
}
