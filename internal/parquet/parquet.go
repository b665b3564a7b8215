// Package parquet materializes warehouse tables as Parquet files using
// github.com/parquet-go/parquet-go, so the commit facts and score tables can
// be queried by columnar engines without touching the SQL lake.
package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/clifelab/devpulse/core/scoring"
	"github.com/clifelab/devpulse/schema"
)

// CommitFactRow is one canonical commit fact. Files are partitioned by
// commit_month, hive-style, so engines can prune by month.
type CommitFactRow struct {
	RepoID         string    `parquet:"repo_id,snappy"`
	SHA            string    `parquet:"sha,snappy"`
	MemberKey      string    `parquet:"member_key,snappy"`
	AuthorUsername string    `parquet:"author_username,snappy"`
	AuthorEmail    string    `parquet:"author_email,snappy"`
	CommittedAt    time.Time `parquet:"committed_at,snappy"`
	CommitMonth    string    `parquet:"commit_month,snappy"`
	Additions      int64     `parquet:"additions,snappy"`
	Deletions      int64     `parquet:"deletions,snappy"`
	ChangedLines   int64     `parquet:"changed_lines,snappy"`
	IsMerge        bool      `parquet:"is_merge,snappy"`
	Message        string    `parquet:"message,snappy"`
}

// PersonScoreRow is one row of the employee activity ranking, flattened for
// export. Nullable ratios stay pointers so a missing ratio does not export
// as zero.
type PersonScoreRow struct {
	EmployeeID           string `parquet:"employee_id,snappy"`
	FullName             string `parquet:"full_name,snappy"`
	DepartmentLevel2Name string `parquet:"department_level2_name,snappy"`
	DepartmentLevel3Name string `parquet:"department_level3_name,snappy"`
	Role                 string `parquet:"role,snappy"`
	LineManager          string `parquet:"line_manager,snappy"`

	CommitCount               int64   `parquet:"commit_cnt,snappy"`
	RepoCount                 int64   `parquet:"repo_cnt,snappy"`
	TotalChangedLines         int64   `parquet:"changed_lines,snappy"`
	TotalWeightedChangedLines float64 `parquet:"weighted_changed_lines,snappy"`
	AfterHoursRatio           float64 `parquet:"after_hours_ratio,snappy"`

	MessageUniqueRatio *float64 `parquet:"message_unique_ratio,optional,snappy"`

	SuspiciousScore float64 `parquet:"suspicious_score,snappy"`
	ScoreTotal      float64 `parquet:"score_total,snappy"`
	ScoreActive     float64 `parquet:"score_active,snappy"`
	ScoreLinesTotal float64 `parquet:"score_lines_total,snappy"`
	ScoreIntegrity  float64 `parquet:"score_integrity,snappy"`
}

// ConvertCommitFacts converts schema.CommitFact records for Parquet export.
func ConvertCommitFacts(facts []schema.CommitFact) []CommitFactRow {
	rows := make([]CommitFactRow, len(facts))
	for i, f := range facts {
		rows[i] = CommitFactRow{
			RepoID:         f.RepoID,
			SHA:            f.SHA,
			MemberKey:      f.MemberKey,
			AuthorUsername: f.AuthorUsername,
			AuthorEmail:    f.AuthorEmail,
			CommittedAt:    f.CommittedAt.UTC(),
			CommitMonth:    f.CommitMonth,
			Additions:      f.Additions,
			Deletions:      f.Deletions,
			ChangedLines:   f.ChangedLines,
			IsMerge:        f.IsMerge,
			Message:        f.MessageOrTitle(),
		}
	}
	return rows
}

// ConvertPersonScores converts scoring results for Parquet export.
func ConvertPersonScores(scores []scoring.PersonScore) []PersonScoreRow {
	rows := make([]PersonScoreRow, len(scores))
	for i, ps := range scores {
		rows[i] = PersonScoreRow{
			EmployeeID:                ps.Agg.EmployeeID,
			FullName:                  ps.Agg.FullName,
			DepartmentLevel2Name:      ps.Agg.DepartmentLevel2Name,
			DepartmentLevel3Name:      ps.Agg.DepartmentLevel3Name,
			Role:                      ps.Agg.Role,
			LineManager:               ps.Agg.LineManager,
			CommitCount:               ps.Agg.CommitCount,
			RepoCount:                 ps.Agg.RepoCount,
			TotalChangedLines:         ps.Agg.TotalChangedLines,
			TotalWeightedChangedLines: ps.Agg.TotalWeightedChangedLines,
			AfterHoursRatio:           ps.Agg.AfterHoursRatio,
			MessageUniqueRatio:        ps.Agg.MessageUniqueRatio,
			SuspiciousScore:           ps.SuspiciousScore,
			ScoreTotal:                ps.ScoreTotal,
			ScoreActive:               ps.ScoreActive,
			ScoreLinesTotal:           ps.ScoreLinesTotal,
			ScoreIntegrity:            ps.ScoreIntegrity,
		}
	}
	return rows
}

// WriteCommitFacts writes commit facts under baseDir, one file per
// commit_month partition:
//
//	<baseDir>/commit_month=2025-07/facts.parquet
//
// Existing partition files are overwritten; months absent from the input are
// left alone, so incremental runs only rewrite the months they touched.
func WriteCommitFacts(facts []schema.CommitFact, baseDir string) error {
	byMonth := make(map[string][]CommitFactRow)
	for _, row := range ConvertCommitFacts(facts) {
		byMonth[row.CommitMonth] = append(byMonth[row.CommitMonth], row)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	for _, m := range months {
		dir := filepath.Join(baseDir, "commit_month="+m)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create partition directory: %w", err)
		}
		if err := writeRows(byMonth[m], filepath.Join(dir, "facts.parquet")); err != nil {
			return fmt.Errorf("partition %s: %w", m, err)
		}
	}
	return nil
}

// WritePersonScores writes the score table to a single Parquet file.
func WritePersonScores(scores []scoring.PersonScore, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeRows(ConvertPersonScores(scores), outputPath)
}

// writeRows writes a slice of records to a Parquet file, inferring the
// schema from the struct tags.
func writeRows[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
