package cmd

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/clifelab/devpulse/core/aggregate"
	"github.com/clifelab/devpulse/core/facts"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/core/scoring"
	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/internal/parquet"
)

// exportCmd materializes the commit facts and the person score table as
// Parquet under the data directory.
var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"model"},
	Short:   "Write commit facts and person scores as Parquet files.",
	Long: `Materialize the analysis window as Parquet for columnar engines:

  <data-dir>/parquet/commit_facts/commit_month=YYYY-MM/facts.parquet
  <data-dir>/parquet/person_scores.parquet

Fact partitions are rewritten month by month; months outside the window are
left untouched.`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		in, err := internal.LoadReportInputs(store, cfg, time.Now())
		if err != nil {
			return err
		}

		factsDir := filepath.Join(cfg.DataDir, "parquet", "commit_facts")
		if err := parquet.WriteCommitFacts(in.Facts, factsDir); err != nil {
			return err
		}

		res := identity.NewResolver(in.Roster.Employees)
		pas := aggregate.Persons(facts.NonMerge(in.Facts), res)
		scores := scoring.ScorePersons(pas, in.Window)
		scorePath := filepath.Join(cfg.DataDir, "parquet", "person_scores.parquet")
		if err := parquet.WritePersonScores(scores, scorePath); err != nil {
			return err
		}

		internal.LogInfo("parquet export finished",
			"facts", len(in.Facts), "facts_dir", factsDir,
			"scores", len(scores), "scores_file", scorePath)
		return nil
	},
}
