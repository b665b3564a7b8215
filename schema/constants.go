package schema

// DatabaseBackend identifies the relational backend for the warehouse store.
type DatabaseBackend string

// Supported database backends.
const (
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgres"
)

// Output formats for reports.
const (
	TextOut = "text"
	CSVOut  = "csv"
)

// BusinessTimeZone is the timezone used for after-hours classification.
// Working hours are Mon-Fri 09:00-18:59 local time.
const BusinessTimeZone = "Asia/Shanghai"

// DummyKeyPrefix marks placeholder member keys created for HR rows that have
// no hosting account yet. Real keys always win over dummy keys when several
// keys collapse into one employee.
const DummyKeyPrefix = "dummy_"

// UnassignedLabel is the bucket for employees without a line manager and
// repos without a department.
const UnassignedLabel = "Unassigned"

// MonthlyCommitFloor is the per-month commit count below which a developer
// (or a team, per developer) counts as under-saturated.
const MonthlyCommitFloor = 6

// LowSampleCommitCount is the window commit count below which suspicion
// scores are halved; too little data to flag anyone with confidence.
const LowSampleCommitCount = 20

// ProtectedRankThreshold is the percentile (0-1) at or above which prolific
// or high-quality contributors get suspicion-score protection.
const ProtectedRankThreshold = 0.80

// SuspiciousScoreThreshold is the score at or above which a developer counts
// as suspicious in team rollups.
const SuspiciousScoreThreshold = 70.0
