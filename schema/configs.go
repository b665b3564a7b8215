package schema

// Config holds the validated runtime configuration. Fields that need
// parsing or validation are populated by internal.ProcessAndValidate from
// the raw viper-bound input.
type Config struct {
	DBBackend DatabaseBackend // warehouse backend
	DBConnect string          // file path (sqlite) or DSN (mysql/postgres)
	DataDir   string          // root for bronze snapshots and parquet output

	APIBaseURL    string // hosting API base URL
	APIToken      string // token for the auth header
	APIAuthHeader string // header name carrying the token
	APIAuthPrefix string // prefix before the token value, e.g. "Bearer"

	CorpDomain string // corporate email domain for member-key derivation

	Months      int    // analysis window in months
	Top         int    // row limit for reports; 0 means unlimited
	Workers     int    // backfill concurrency
	OverlapDays int    // incremental ingest re-fetch overlap
	Output      string // text or csv
	OutFile     string // csv destination; empty writes to stdout
}

// ConfigRawInput holds the raw values from flags, env and config file.
// Viper unmarshals into this struct; validation produces the final Config.
type ConfigRawInput struct {
	Backend     string `mapstructure:"backend"`
	DBConnect   string `mapstructure:"db-connect"`
	DataDir     string `mapstructure:"data-dir"`
	APIBaseURL  string `mapstructure:"api-base-url"`
	APIToken    string `mapstructure:"api-token"`
	AuthHeader  string `mapstructure:"auth-header"`
	AuthPrefix  string `mapstructure:"auth-prefix"`
	CorpDomain  string `mapstructure:"corp-domain"`
	Months      int    `mapstructure:"months"`
	Top         int    `mapstructure:"top"`
	Workers     int    `mapstructure:"workers"`
	OverlapDays int    `mapstructure:"overlap-days"`
	Output      string `mapstructure:"output"`
	OutFile     string `mapstructure:"out-file"`
}
