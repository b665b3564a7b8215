package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the inventory reports to the parent report command
	reportCmd.AddCommand(activeReposCmd)
	reportCmd.AddCommand(memberCommitsCmd)
	reportCmd.AddCommand(repoMemberCommitsCmd)
	reportCmd.AddCommand(activeMembersCmd)
	reportCmd.AddCommand(inactiveMembersCmd)
	reportCmd.AddCommand(externalCommittersCmd)
	reportCmd.AddCommand(missingFullnameAuthorsCmd)
	reportCmd.AddCommand(employeeCommitsCmd)
	reportCmd.AddCommand(repoEmployeeCommitsCmd)

	// Add the score reports to the parent score command
	scoreCmd.AddCommand(activeEmployeeScoreCmd)
	scoreCmd.AddCommand(suspiciousCommittersCmd)
	scoreCmd.AddCommand(lineManagerActivityCmd)
	scoreCmd.AddCommand(projectActivityCmd)
	scoreCmd.AddCommand(repoScoreCmd)
	scoreCmd.AddCommand(departmentScoreCmd)
	scoreCmd.AddCommand(managerScoreCmd)
	scoreCmd.AddCommand(scoreDistributionCmd)

	// Add the workbook subcommands to the parent roster command
	rosterCmd.AddCommand(rosterTemplateCmd)
	rosterCmd.AddCommand(rosterImportCmd)
	rosterCmd.AddCommand(rosterProjectsCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("backend", string(schema.SQLiteBackend), "Warehouse backend: sqlite or mysql or postgres")
	rootCmd.PersistentFlags().String("db-connect", "", "Database connection string; file path for sqlite, DSN for mysql/postgres")
	rootCmd.PersistentFlags().String("data-dir", internal.DefaultDataDir, "Directory for snapshots, the sqlite file and parquet output")
	rootCmd.PersistentFlags().String("api-base-url", "", "Source-hosting API base URL")
	rootCmd.PersistentFlags().String("api-token", "", "API token; prefer the DEVPULSE_API_TOKEN environment variable")
	rootCmd.PersistentFlags().String("auth-header", internal.DefaultAuthHeader, "Header name carrying the API token")
	rootCmd.PersistentFlags().String("auth-prefix", internal.DefaultAuthPrefix, "Prefix before the token value")
	rootCmd.PersistentFlags().String("corp-domain", "", "Corporate email domain for member-key derivation")
	rootCmd.PersistentFlags().IntP("months", "m", internal.DefaultMonths, "Analysis window in months")
	rootCmd.PersistentFlags().IntP("top", "t", 0, "Limit report rows (0 = unlimited)")
	rootCmd.PersistentFlags().Int("workers", internal.DefaultWorkers, "Number of concurrent backfill workers")
	rootCmd.PersistentFlags().Int("overlap-days", internal.DefaultOverlapDays, "Days re-fetched below the watermark on incremental ingest")
	rootCmd.PersistentFlags().StringP("output", "o", schema.TextOut, "Output format: text or csv")
	rootCmd.PersistentFlags().String("out-file", "", "Optional path to write csv output to")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		internal.FatalError("Error binding root flags", err)
	}

	// Bind all flags of backfillCmd to Viper
	backfillCmd.Flags().Int("max-commits", 0, "Cap comparisons per pass (0 = unlimited)")
	backfillCmd.Flags().Bool("force", false, "Recompute commits that already have stats")
	backfillCmd.Flags().Bool("dry-run", false, "Count candidates, fetch and write nothing")
	if err := viper.BindPFlags(backfillCmd.Flags()); err != nil {
		internal.FatalError("Error binding backfill flags", err)
	}

	// Bind the member-report flags to Viper
	activeMembersCmd.Flags().Bool("all-fields", false, "Include every enrichment column")
	if err := viper.BindPFlags(activeMembersCmd.Flags()); err != nil {
		internal.FatalError("Error binding active-members flags", err)
	}
	inactiveMembersCmd.Flags().Bool("all-fields", false, "Include every enrichment column")
	if err := viper.BindPFlags(inactiveMembersCmd.Flags()); err != nil {
		internal.FatalError("Error binding inactive-members flags", err)
	}

	// Bind all flags of the roster subcommands to Viper
	rosterTemplateCmd.Flags().Bool("blank", false, "Export headers and keys only, no current enrichment values")
	if err := viper.BindPFlags(rosterTemplateCmd.Flags()); err != nil {
		internal.FatalError("Error binding roster template flags", err)
	}
	rosterImportCmd.Flags().String("members", "", "Path to the member workbook CSV")
	rosterImportCmd.Flags().String("repos", "", "Path to the repo workbook CSV")
	rosterImportCmd.Flags().Bool("dry-run", false, "Validate and report, write nothing")
	if err := viper.BindPFlags(rosterImportCmd.Flags()); err != nil {
		internal.FatalError("Error binding roster import flags", err)
	}
	rosterProjectsCmd.Flags().String("projects", "", "Path to the project workbook CSV")
	rosterProjectsCmd.Flags().String("project-repos", "", "Path to the project repo bindings CSV")
	rosterProjectsCmd.Flags().String("project-members", "", "Path to the project member assignments CSV")
	rosterProjectsCmd.Flags().Bool("dry-run", false, "Validate and report, write nothing")
	if err := viper.BindPFlags(rosterProjectsCmd.Flags()); err != nil {
		internal.FatalError("Error binding project import flags", err)
	}

	// Bind all flags of migrateCmd to Viper
	migrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(migrateCmd.Flags()); err != nil {
		internal.FatalError("Error binding migrate flags", err)
	}
}
