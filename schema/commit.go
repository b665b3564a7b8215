package schema

import (
	"encoding/json"
	"time"
)

// RawCommit is one commit record as ingested from the hosting API, with the
// identity and timestamp columns already lifted out of the payload. The raw
// payload is kept for message extraction, which differs per report.
type RawCommit struct {
	RepoID         string
	SHA            string
	AuthorUserID   string
	AuthorUsername string
	AuthorEmail    string
	CommittedAt    *time.Time // nil when the payload had no parseable timestamp
	Additions      int64
	Deletions      int64
	Raw            json.RawMessage
}

// CommitStat is the diff-stat enrichment for one commit, computed lazily by
// the backfill worker from a base...head comparison. Keyed by (RepoID, SHA).
type CommitStat struct {
	RepoID    string
	SHA       string
	BaseSHA   string
	Additions int64
	Deletions int64
	IsMerge   bool
}

// ChangedLines returns additions plus deletions.
func (s CommitStat) ChangedLines() int64 { return s.Additions + s.Deletions }

// CommitFact is one canonical, fully-resolved commit row. Derived from
// RawCommit joined with CommitStat; recomputable at any time, never edited.
type CommitFact struct {
	RepoID         string
	SHA            string
	MemberKey      string
	AuthorUsername string
	AuthorEmail    string
	CommittedAt    time.Time
	CommitMonth    string // YYYY-MM, UTC
	Additions      int64
	Deletions      int64
	ChangedLines   int64
	IsMerge        bool
	Message        string
	Title          string // commit.title, a message fallback on title-only backends
}

// CommitKey identifies one commit across tables and caches.
type CommitKey struct {
	RepoID string
	SHA    string
}

// Key returns the (repo, sha) key of a fact.
func (f CommitFact) Key() CommitKey { return CommitKey{RepoID: f.RepoID, SHA: f.SHA} }

// MessageOrTitle returns the message, falling back to the title. The
// anti-fraud heuristics use this so title-only backends still get message
// quality signals.
func (f CommitFact) MessageOrTitle() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Title
}

// Repo is one repository dimension row.
type Repo struct {
	RepoID               string
	RepoName             string
	DepartmentLevel2Name string
	DepartmentLevel3Name string
	Raw                  json.RawMessage
}

// RepoEnrichment assigns a repo to a department. Imported from the roster
// workbook; the hosting API knows nothing about org structure.
type RepoEnrichment struct {
	RepoID               string
	DepartmentLevel2ID   string
	DepartmentLevel2Name string
	DepartmentLevel3ID   string
	DepartmentLevel3Name string
}

// TopContributor is one row of a repo's most-active-users listing. Kept as
// an ingest-side cross-check of the commit aggregation, not a pipeline input.
type TopContributor struct {
	RepoID        string
	UserID        string
	Username      string
	Contributions int64
	Raw           json.RawMessage
}

// Member is one hosting-account dimension row for a repo.
type Member struct {
	RepoID    string
	MemberKey string
	UserID    string
	Username  string
	Email     string
	FullName  string
	Raw       json.RawMessage
}
