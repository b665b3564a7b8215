package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/internal/backfill"
	"github.com/clifelab/devpulse/internal/cnbapi"
	"github.com/clifelab/devpulse/internal/ingest"
	"github.com/clifelab/devpulse/schema"
)

// ingestCmd pulls the repo, member and commit dimensions for one group.
var ingestCmd = &cobra.Command{
	Use:   "ingest <group>",
	Short: "Pull repos, members and commits for a group into the warehouse.",
	Long: `Fetch every repo under the group, then its members, top contributors and
commits, and land them in the warehouse. Commit listings are incremental:
each repo keeps a watermark and re-fetches a small overlap so late-arriving
commits are not missed. Per-repo failures are counted, not fatal.

Examples:
  # Nightly incremental pass
  devpulse ingest clife

  # Wider overlap after an outage
  devpulse ingest clife --overlap-days 14`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		runner := &ingest.Runner{
			API:         cnbapi.New(cfg),
			Store:       store,
			Norm:        identity.NewNormalizer(cfg.CorpDomain),
			DataDir:     cfg.DataDir,
			OverlapDays: cfg.OverlapDays,
			Now:         time.Now,
		}
		sum, err := runner.Run(rootCtx, args[0])
		if err != nil {
			return err
		}
		internal.LogInfo("ingest finished",
			"repos", sum.Repos, "members", sum.Members,
			"contributors", sum.Contributors,
			"commits_fetched", sum.CommitsFetched,
			"commits_inserted", sum.CommitsInserted,
			"empty_repos", sum.EmptyRepos, "failed_repos", sum.FailedRepos)
		return nil
	},
}

// backfillCmd fills in per-commit diff stats after an ingest pass.
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute diff stats for commits that are missing them.",
	Long: `The commit listing API carries no additions/deletions, so each commit needs
one base...head comparison. Backfill selects window commits without stats and
fetches the comparisons with a bounded worker pool. Failed comparisons are
retried on the next pass.

Examples:
  # Backfill the analysis window
  devpulse backfill

  # Bound a catch-up pass
  devpulse backfill --max-commits 2000

  # Recompute everything in the window
  devpulse backfill --force`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		w := schema.NewWindow(time.Now(), cfg.Months)
		stats, err := backfill.Run(rootCtx, cnbapi.New(cfg), store, backfill.Options{
			Since:      w.Since,
			MaxCommits: viper.GetInt("max-commits"),
			Workers:    cfg.Workers,
			Force:      viper.GetBool("force"),
			DryRun:     viper.GetBool("dry-run"),
		})
		if err != nil {
			return err
		}
		internal.LogInfo("backfill finished",
			"candidates", stats.Candidates, "selected", stats.Selected,
			"ok", stats.OK, "failed_http", stats.FailedHTTP,
			"failed_other", stats.FailedOther,
			"skipped_no_parent", stats.SkippedNoParent,
			"merge_commits", stats.MergeCommits, "written", stats.Written)
		return nil
	},
}
