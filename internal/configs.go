package internal

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clifelab/devpulse/schema"
)

// Default values for configuration.
const (
	DefaultMonths      = 3
	DefaultWorkers     = 4
	MaxWorkers         = 16
	DefaultOverlapDays = 3
	DefaultDataDir     = "data"
	DefaultAuthHeader  = "Authorization"
	DefaultAuthPrefix  = "Bearer"
)

// ProcessAndValidate parses and validates the raw viper-bound inputs and
// populates the final Config struct.
func ProcessAndValidate(cfg *schema.Config, input *schema.ConfigRawInput) error {
	backend := schema.DatabaseBackend(strings.ToLower(input.Backend))
	switch backend {
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		cfg.DBBackend = backend
	default:
		return fmt.Errorf("invalid backend '%s'. must be sqlite, mysql, postgres", input.Backend)
	}

	cfg.DataDir = input.DataDir
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	cfg.DBConnect = input.DBConnect
	if cfg.DBConnect == "" {
		if backend != schema.SQLiteBackend {
			return fmt.Errorf("db-connect is required for backend '%s'", backend)
		}
		cfg.DBConnect = filepath.Join(cfg.DataDir, "devpulse.db")
	}

	cfg.APIBaseURL = strings.TrimRight(input.APIBaseURL, "/")
	cfg.APIToken = input.APIToken
	cfg.APIAuthHeader = input.AuthHeader
	if cfg.APIAuthHeader == "" {
		cfg.APIAuthHeader = DefaultAuthHeader
	}
	cfg.APIAuthPrefix = input.AuthPrefix
	if cfg.APIAuthPrefix == "" {
		cfg.APIAuthPrefix = DefaultAuthPrefix
	}

	cfg.CorpDomain = strings.ToLower(strings.TrimSpace(input.CorpDomain))

	if input.Months <= 0 {
		return fmt.Errorf("months must be greater than 0 (received %d)", input.Months)
	}
	cfg.Months = input.Months

	if input.Top < 0 {
		return fmt.Errorf("top cannot be negative (received %d)", input.Top)
	}
	cfg.Top = input.Top

	cfg.Workers = input.Workers
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers > MaxWorkers {
		return fmt.Errorf("workers cannot exceed %d (received %d)", MaxWorkers, input.Workers)
	}

	if input.OverlapDays < 0 {
		return fmt.Errorf("overlap-days cannot be negative (received %d)", input.OverlapDays)
	}
	cfg.OverlapDays = input.OverlapDays

	cfg.Output = strings.ToLower(input.Output)
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	if cfg.Output != schema.TextOut && cfg.Output != schema.CSVOut {
		return fmt.Errorf("invalid output format '%s'. must be text, csv", input.Output)
	}
	cfg.OutFile = input.OutFile

	return nil
}
