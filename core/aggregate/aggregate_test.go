package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

func testResolver(keys ...string) *identity.Resolver {
	employees := make([]schema.Employee, 0, len(keys))
	for _, key := range keys {
		e := schema.Employee{PersonID: "E" + key}
		e.MemberKey = key
		e.FullName = "Dev " + key
		e.EmployeeID = "E" + key
		e.Role = "数据开发"
		employees = append(employees, e)
	}
	return identity.NewResolver(employees)
}

func fact(repoID, memberKey string, at time.Time, adds, dels int64, msg string) schema.CommitFact {
	return schema.CommitFact{
		RepoID:       repoID,
		SHA:          memberKey + at.Format("150405") + repoID,
		MemberKey:    memberKey,
		CommittedAt:  at,
		CommitMonth:  at.Format("2006-01"),
		Additions:    adds,
		Deletions:    dels,
		ChangedLines: adds + dels,
		Message:      msg,
	}
}

func TestPersonsBasicCounts(t *testing.T) {
	res := testResolver("zhang.san")
	base := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC) // Tuesday 11:00 in UTC+8
	facts := []schema.CommitFact{
		fact("r1", "zhang.san", base, 100, 20, "feat: add parser"),
		fact("r1", "zhang.san", base.Add(2*time.Hour), 10, 0, "feat: extend parser"),
		fact("r2", "zhang.san", base.Add(4*time.Hour), 0, 0, "fix"),
	}

	out := Persons(facts, res)
	require.Len(t, out, 1)
	pa := out[0]

	assert.Equal(t, "Ezhang.san", pa.PersonID)
	assert.Equal(t, int64(3), pa.CommitCount)
	assert.Equal(t, int64(2), pa.RepoCount)
	assert.Equal(t, int64(130), pa.TotalChangedLines)
	// 数据开发 carries change weight 1.8.
	assert.InDelta(t, 234.0, pa.TotalWeightedChangedLines, 1e-9)
	assert.InDelta(t, 130.0/3, pa.ChangedLinesPerCommit, 1e-9)
	assert.InDelta(t, 10.0, pa.MedianChangedLines, 1e-9)
	assert.InDelta(t, 18.0, pa.MedianWeightedChangedLines, 1e-9)

	assert.InDelta(t, 1.0/3, pa.P0Zero, 1e-9)
	assert.InDelta(t, 1.0/3, pa.P2Tiny, 1e-9)
	assert.InDelta(t, 2.0/3, pa.P10Small, 1e-9)

	assert.Equal(t, "r1", pa.Top1RepoID)
	assert.InDelta(t, 2.0/3, pa.Top1RepoShare, 1e-9)
}

func TestPersonsSkipsUnresolvedAuthors(t *testing.T) {
	res := testResolver("zhang.san")
	at := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	out := Persons([]schema.CommitFact{
		fact("r1", "outsider", at, 5, 5, "x"),
	}, res)
	assert.Empty(t, out)
}

func TestPersonsAfterHours(t *testing.T) {
	res := testResolver("zhang.san")
	facts := []schema.CommitFact{
		// Tuesday 11:00 Asia/Shanghai: working hours.
		fact("r1", "zhang.san", time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC), 1, 1, "a"),
		// Tuesday 23:00 Asia/Shanghai: after hours.
		fact("r1", "zhang.san", time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC), 1, 1, "b"),
		// Saturday noon Asia/Shanghai: after hours.
		fact("r1", "zhang.san", time.Date(2025, 3, 8, 4, 0, 0, 0, time.UTC), 1, 1, "c"),
	}
	out := Persons(facts, res)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].AfterHoursCommitCount)
	assert.InDelta(t, 2.0/3, out[0].AfterHoursRatio, 1e-9)
}

func TestPersonsBurstBuckets(t *testing.T) {
	res := testResolver("zhang.san")
	base := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	facts := []schema.CommitFact{
		fact("r1", "zhang.san", base, 1, 0, "a"),
		fact("r1", "zhang.san", base.Add(time.Minute), 1, 0, "b"),
		fact("r1", "zhang.san", base.Add(2*time.Minute), 1, 0, "c"),
		fact("r1", "zhang.san", base.Add(30*time.Minute), 1, 0, "d"),
	}
	out := Persons(facts, res)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].MaxCommits10m)
	assert.Equal(t, int64(4), out[0].MaxCommits1h)
}

func TestPersonsBalanceHigh(t *testing.T) {
	res := testResolver("zhang.san")
	at := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	facts := []schema.CommitFact{
		// 60 added, 55 deleted: big and symmetric.
		fact("r1", "zhang.san", at, 60, 55, "a"),
		// Symmetric but too small to matter.
		fact("r1", "zhang.san", at.Add(time.Hour), 10, 10, "b"),
		// Big but one-sided.
		fact("r1", "zhang.san", at.Add(2*time.Hour), 200, 0, "c"),
	}
	out := Persons(facts, res)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0/3, out[0].PBalanceHigh, 1e-9)
}

func TestPersonsMessageStats(t *testing.T) {
	res := testResolver("zhang.san")
	at := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	facts := []schema.CommitFact{
		fact("r1", "zhang.san", at, 1, 0, "Fix:  login   bug"),
		fact("r1", "zhang.san", at.Add(time.Hour), 1, 0, "fix: login bug"),
		fact("r1", "zhang.san", at.Add(2*time.Hour), 1, 0, "wip"),
		fact("r1", "zhang.san", at.Add(3*time.Hour), 1, 0, "implement retry with backoff"),
	}
	out := Persons(facts, res)
	require.Len(t, out, 1)
	pa := out[0]

	assert.Equal(t, int64(4), pa.MsgTotal)
	// The first two normalize to the same string.
	assert.Equal(t, int64(3), pa.MsgUnique)
	assert.Equal(t, int64(2), pa.MsgTop1Cnt)
	require.NotNil(t, pa.MessageUniqueRatio)
	assert.InDelta(t, 0.75, *pa.MessageUniqueRatio, 1e-9)
	require.NotNil(t, pa.Top1MessageShare)
	assert.InDelta(t, 0.5, *pa.Top1MessageShare, 1e-9)
	// "wip" is the only message of 8 runes or fewer.
	assert.InDelta(t, 0.25, pa.ShortMessageRatio, 1e-9)
	// "fix: ..." twice plus bare "wip".
	assert.InDelta(t, 0.75, pa.GenericMessageRatio, 1e-9)
}

func TestPersonsInterCommitMedian(t *testing.T) {
	res := testResolver("zhang.san")
	base := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	facts := []schema.CommitFact{
		fact("r1", "zhang.san", base, 1, 0, "a"),
		fact("r1", "zhang.san", base.Add(100*time.Second), 1, 0, "b"),
		fact("r1", "zhang.san", base.Add(400*time.Second), 1, 0, "c"),
	}
	out := Persons(facts, res)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].MedianInterCommitSeconds)
	assert.InDelta(t, 200.0, *out[0].MedianInterCommitSeconds, 1e-9)
}

func TestPersonsSingleCommitNils(t *testing.T) {
	res := testResolver("zhang.san")
	at := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)
	out := Persons([]schema.CommitFact{fact("r1", "zhang.san", at, 1, 0, "")}, res)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].MedianInterCommitSeconds)
	assert.Nil(t, out[0].MessageUniqueRatio)
	assert.Nil(t, out[0].Top1MessageShare)
	assert.Zero(t, out[0].MsgTotal)
}

func TestPersonsCoreRepoDetection(t *testing.T) {
	keys := []string{"a.a", "b.b", "c.c", "d.d", "e.e"}
	res := testResolver(keys...)
	at := time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC)

	var facts []schema.CommitFact
	// r-big has five contributors; r-solo has one.
	for i, key := range keys {
		facts = append(facts, fact("r-big", key, at.Add(time.Duration(i)*time.Hour), 10, 0, "work"))
	}
	facts = append(facts, fact("r-solo", "a.a", at.Add(30*time.Hour), 10, 0, "solo"))
	facts = append(facts, fact("r-solo", "a.a", at.Add(31*time.Hour), 10, 0, "solo2"))

	out := Persons(facts, res)
	require.Len(t, out, 5)

	byPerson := make(map[string]schema.PersonAggregate)
	for _, pa := range out {
		byPerson[pa.PersonID] = pa
	}
	// a.a commits mostly to the small repo.
	aa := byPerson["Ea.a"]
	assert.Equal(t, "r-solo", aa.Top1RepoID)
	assert.False(t, aa.Top1RepoIsCore)
	// Everyone else tops out on the crowded repo.
	bb := byPerson["Eb.b"]
	assert.Equal(t, "r-big", bb.Top1RepoID)
	assert.True(t, bb.Top1RepoIsCore)
}

func TestNormalizeMessage(t *testing.T) {
	assert.Equal(t, "fix: login bug", NormalizeMessage("  Fix:\tLogin   BUG \n"))
	assert.Equal(t, "", NormalizeMessage("   \n\t "))
}

func TestIsGenericMessage(t *testing.T) {
	assert.True(t, IsGenericMessage("fix: something"))
	assert.True(t, IsGenericMessage("wip"))
	assert.True(t, IsGenericMessage("merge"))
	assert.False(t, IsGenericMessage("fixed the race"))
	assert.False(t, IsGenericMessage("add retry"))
}
