// Package cmd defines the command-line interface for devpulse.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clifelab/devpulse/internal"
	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/internal/outwriter"
	"github.com/clifelab/devpulse/schema"
)

// All linker flags will be set by release infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg holds the validated, final configuration.
var cfg = &schema.Config{}

// input holds the raw, unvalidated configuration from all sources (file,
// env, flags). Viper unmarshals into this struct.
var input = &schema.ConfigRawInput{}

// outWriter renders every report, so text and csv behave the same across
// commands.
var outWriter = outwriter.New()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "devpulse",
	Short:              "Ingest source-hosting activity and score development work.",
	Long:               `Devpulse pulls commit and membership metadata from a source-hosting API into a local warehouse, resolves committers against the employee roster, and reports activity, anomaly and rollup scores.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".devpulse")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("DEVPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("backend", string(schema.SQLiteBackend))
	viper.SetDefault("db-connect", "")
	viper.SetDefault("data-dir", internal.DefaultDataDir)
	viper.SetDefault("months", internal.DefaultMonths)
	viper.SetDefault("top", 0)
	viper.SetDefault("workers", internal.DefaultWorkers)
	viper.SetDefault("overlap-days", internal.DefaultOverlapDays)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("out-file", "")
	viper.SetDefault("auth-header", internal.DefaultAuthHeader)
	viper.SetDefault("auth-prefix", internal.DefaultAuthPrefix)
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(cmd *cobra.Command, _ []string) error {
	// Several commands reuse flag names like dry-run; rebinding here makes
	// the invoking command's flags win over whichever command bound last.
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("unable to bind command flags: %w", err)
	}

	// Merge defaults, file, env and flags.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults, env and flags cover it.
	}

	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return internal.ProcessAndValidate(cfg, input)
}

// openStore opens the warehouse for the validated config.
func openStore() (*lake.Store, error) {
	return lake.Open(cfg.DBBackend, cfg.DBConnect)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
