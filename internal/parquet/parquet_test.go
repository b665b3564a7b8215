package parquet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/core/scoring"
	"github.com/clifelab/devpulse/schema"
)

func TestWriteCommitFactsPartitionsByMonth(t *testing.T) {
	base := t.TempDir()
	facts := []schema.CommitFact{
		{
			RepoID:       "clife/alpha",
			SHA:          "a1",
			MemberKey:    "wang.wei",
			CommittedAt:  time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
			CommitMonth:  "2025-07",
			Additions:    10,
			Deletions:    2,
			ChangedLines: 12,
			Message:      "fix login",
		},
		{
			RepoID:       "clife/alpha",
			SHA:          "b2",
			MemberKey:    "wang.wei",
			CommittedAt:  time.Date(2025, 8, 3, 9, 0, 0, 0, time.UTC),
			CommitMonth:  "2025-08",
			ChangedLines: 5,
			IsMerge:      true,
			Title:        "Merge branch 'dev'",
		},
	}
	require.NoError(t, WriteCommitFacts(facts, base))

	july := filepath.Join(base, "commit_month=2025-07", "facts.parquet")
	august := filepath.Join(base, "commit_month=2025-08", "facts.parquet")
	require.FileExists(t, july)
	require.FileExists(t, august)

	rows, err := parquet.ReadFile[CommitFactRow](july)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0].SHA)
	assert.Equal(t, int64(12), rows[0].ChangedLines)
	assert.Equal(t, "fix login", rows[0].Message)

	rows, err = parquet.ReadFile[CommitFactRow](august)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsMerge)
	// Title-only backends still export a usable message column.
	assert.Equal(t, "Merge branch 'dev'", rows[0].Message)
}

func TestWriteCommitFactsLeavesOtherPartitionsAlone(t *testing.T) {
	base := t.TempDir()
	old := []schema.CommitFact{{RepoID: "r", SHA: "a1", CommitMonth: "2025-06"}}
	require.NoError(t, WriteCommitFacts(old, base))

	fresh := []schema.CommitFact{{RepoID: "r", SHA: "b2", CommitMonth: "2025-07"}}
	require.NoError(t, WriteCommitFacts(fresh, base))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestWritePersonScoresRoundtrip(t *testing.T) {
	ratio := 0.85
	scores := []scoring.PersonScore{
		{
			Agg: schema.PersonAggregate{
				EmployeeID:           "e1001",
				FullName:             "王伟",
				DepartmentLevel2Name: "平台研发部",
				CommitCount:          42,
				RepoCount:            3,
				TotalChangedLines:    1500,
				MessageUniqueRatio:   &ratio,
			},
			SuspiciousScore: 12.5,
			ScoreTotal:      88.2,
		},
		{
			Agg: schema.PersonAggregate{EmployeeID: "e1002", FullName: "李娜"},
		},
	}

	out := filepath.Join(t.TempDir(), "scores", "person_scores.parquet")
	require.NoError(t, WritePersonScores(scores, out))

	rows, err := parquet.ReadFile[PersonScoreRow](out)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "e1001", rows[0].EmployeeID)
	assert.Equal(t, int64(42), rows[0].CommitCount)
	require.NotNil(t, rows[0].MessageUniqueRatio)
	assert.InDelta(t, 0.85, *rows[0].MessageUniqueRatio, 1e-9)
	assert.InDelta(t, 88.2, rows[0].ScoreTotal, 1e-9)

	assert.Equal(t, "e1002", rows[1].EmployeeID)
	assert.Nil(t, rows[1].MessageUniqueRatio)
}
