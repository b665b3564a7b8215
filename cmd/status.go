package cmd

import (
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/schema"
)

// statusCmd summarizes what the warehouse currently holds.
var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show warehouse table sizes and the last ingest time.",
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		status, err := store.Status()
		if err != nil {
			return err
		}

		tables := make([]string, 0, len(status.TableSizes))
		for t := range status.TableSizes {
			tables = append(tables, t)
		}
		sort.Strings(tables)

		r := schema.NewReport("warehouse-status", "table", "rows")
		for _, t := range tables {
			r.Append(t, status.TableSizes[t])
		}
		if err := outWriter.Write(r, cfg); err != nil {
			return err
		}

		if status.LastIngestAt != nil {
			internal.LogInfo("last ingest", "backend", status.Backend, "at", *status.LastIngestAt)
		} else {
			internal.LogInfo("no ingest recorded yet", "backend", status.Backend)
		}
		return nil
	},
}

// migrateCmd runs versioned schema migrations against the warehouse.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run warehouse schema migrations.",
	Long: `Apply versioned schema migrations to the warehouse. By default migrates to
the latest version; --target-version pins a specific version, and 0 rolls
back to the initial state.`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		target := viper.GetInt("target-version")
		if err := lake.Migrate(cfg.DBBackend, cfg.DBConnect, target); err != nil {
			return err
		}
		internal.LogInfo("migrations applied", "backend", string(cfg.DBBackend))
		return nil
	},
}
