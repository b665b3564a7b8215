package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clifelab/devpulse/core/report"
)

// scoreCmd groups the scoring and rollup reports.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Activity, anomaly and rollup scores over the analysis window.",
	Long: `Score reports rank people and groups by development activity.

The composite activity score rewards sustained, multi-repo output; the
suspicion score flags commit-farming patterns like duplicated messages,
bursts and padding. Rollups re-aggregate the person scores per repo,
department, line manager and project.

Examples:
  # The employee ranking, top 50 rows
  devpulse score active-employee-score --top 50

  # Who looks like they are gaming the numbers
  devpulse score suspicious-committers

  # Per-manager team health, exported for a spreadsheet
  devpulse score line-manager-dev-activity --output csv --out-file teams.csv`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var (
	activeEmployeeScoreCmd = newReportCmd("active-employee-score",
		"Rank employees by composite development activity score.",
		(*report.Builder).ActiveEmployeeScore)

	suspiciousCommittersCmd = newReportCmd("suspicious-committers",
		"Rank committers by anomaly score, with the triggering tags.",
		(*report.Builder).SuspiciousCommitters)

	lineManagerActivityCmd = newReportCmd("line-manager-dev-activity",
		"Team activity and score rollup per line manager.",
		(*report.Builder).LineManagerDevActivity)

	projectActivityCmd = newReportCmd("project-activity",
		"Roster-versus-activity rollup per project.",
		(*report.Builder).ProjectActivity)

	repoScoreCmd = newReportCmd("repo-score",
		"Average person score per repo, with score band and bucket.",
		(*report.Builder).RepoScores)

	departmentScoreCmd = newReportCmd("department-score",
		"Average person score per level-2 department.",
		(*report.Builder).DepartmentScores)

	managerScoreCmd = newReportCmd("manager-score",
		"Average person score per line manager.",
		(*report.Builder).ManagerScores)

	scoreDistributionCmd = newReportCmd("score-distribution",
		"Repo and department counts per fixed score band.",
		(*report.Builder).ScoreDistribution)
)
