// Package ingest pulls dimensions and commits from the hosting API into the
// warehouse: bronze snapshots of every payload, typed silver rows behind
// them, and a per-repo watermark for incremental commit fetches.
package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/clifelab/devpulse/core/facts"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

// ParseRepo lifts the stable fields out of a repo payload. The slug path is
// the preferred id: it is what every other API route takes as a parameter.
func ParseRepo(raw json.RawMessage) schema.Repo {
	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)

	path := firstString(obj, "path", "full_path", "pathWithNamespace", "path_with_namespace")
	id := path
	if id == "" {
		id = firstString(obj, "id", "repoId")
	}
	if id == "" {
		id = firstString(obj, "name")
	}
	name := firstString(obj, "name", "repoName")
	if name == "" {
		name = id
	}
	return schema.Repo{RepoID: id, RepoName: name, Raw: raw}
}

// ParseMember lifts a membership payload into a member row. The member key
// comes from the shared normalizer so commits and members collapse to the
// same identity.
func ParseMember(repoID string, raw json.RawMessage, norm *identity.Normalizer) schema.Member {
	env := facts.ParseEnvelope(raw)
	userID, username, email := env.MemberIdentity()

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	fullName := firstString(obj, "nickname", "full_name", "fullName", "display_name")

	return schema.Member{
		RepoID:    repoID,
		MemberKey: norm.MemberKey(username, email, userID),
		UserID:    userID,
		Username:  username,
		Email:     email,
		FullName:  fullName,
		Raw:       raw,
	}
}

// ParseCommit lifts a commit payload into a raw commit row. Unparseable
// timestamps stay nil; the fact builder drops and counts those.
func ParseCommit(repoID string, raw json.RawMessage) schema.RawCommit {
	env := facts.ParseEnvelope(raw)
	userID, username, email := env.AuthorIdentity()
	additions, deletions := env.DiffStats()

	c := schema.RawCommit{
		RepoID:         repoID,
		SHA:            env.SHA(),
		AuthorUserID:   userID,
		AuthorUsername: username,
		AuthorEmail:    email,
		Additions:      additions,
		Deletions:      deletions,
		Raw:            raw,
	}
	if s, ok := env.CommittedAt(); ok {
		if t, parsed := facts.ParseTimeLoose(s); parsed {
			utc := t.UTC()
			c.CommittedAt = &utc
		}
	}
	return c
}

// ParseTopContributor lifts a top-activity payload into a contributor row.
func ParseTopContributor(repoID string, raw json.RawMessage) schema.TopContributor {
	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)

	user := obj
	if nested, ok := obj["user"].(map[string]any); ok {
		user = nested
	}
	return schema.TopContributor{
		RepoID:        repoID,
		UserID:        firstString(user, "id", "userId", "uid"),
		Username:      firstString(user, "username", "name", "login"),
		Contributions: firstInt(obj, "contributions", "count", "commit_count"),
		Raw:           raw,
	}
}

// latestCommittedAt returns the newest timestamp in a batch of raw commits.
func latestCommittedAt(commits []schema.RawCommit) (time.Time, bool) {
	var latest time.Time
	found := false
	for i := range commits {
		if at := commits[i].CommittedAt; at != nil && at.After(latest) {
			latest = *at
			found = true
		}
	}
	return latest, found
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func firstInt(obj map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			return int64(v)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
