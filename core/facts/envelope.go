// Package facts turns raw hosting-API commit payloads into canonical commit
// facts: one typed row per commit with a resolved identity, a changed-line
// count, a merge flag and a YYYY-MM partition month.
package facts

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Envelope is a defensively-decoded commit payload. Hosting backends
// disagree on field names and nesting, so every accessor walks a fixed
// fallback chain instead of trusting one shape.
type Envelope struct {
	obj map[string]any
}

// ParseEnvelope decodes a raw payload. A payload that is not a JSON object
// yields an empty envelope; accessors then return zero values.
func ParseEnvelope(raw json.RawMessage) Envelope {
	var obj map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &obj)
	}
	return Envelope{obj: obj}
}

// SHA returns the commit hash from sha|id|commitId.
func (e Envelope) SHA() string {
	for _, k := range []string{"sha", "id", "commitId"} {
		if s := e.str(k); s != "" {
			return s
		}
	}
	return ""
}

// AuthorIdentity returns (userID, username, email) with the author block
// preferred, then the nested commit.author, then commit.committer for the
// email, then the flat authorName field.
func (e Envelope) AuthorIdentity() (userID, username, email string) {
	if author, ok := e.obj["author"].(map[string]any); ok {
		userID = firstStr(author, "id", "userId", "uid")
		username = firstStr(author, "username", "name", "login")
		email = firstStr(author, "email")
	}
	if username == "" {
		username = e.nestedStr("commit", "author", "name")
	}
	if email == "" {
		email = e.nestedStr("commit", "author", "email")
	}
	if email == "" {
		email = e.nestedStr("commit", "committer", "email")
	}
	if username == "" {
		username = e.str("authorName")
	}
	return userID, username, email
}

// CommittedAt returns the first parseable timestamp among the flat fields,
// the nested commit.committer/commit.author dates and the top-level
// committer/author dates, normalized to UTC. ok is false when none parse.
func (e Envelope) CommittedAt() (s string, ok bool) {
	var candidates []any
	for _, k := range []string{"committed_at", "committedAt", "committedAtUtc", "createdAt", "created_at", "date", "timestamp"} {
		if v, found := e.obj[k]; found {
			candidates = append(candidates, v)
		}
	}
	for _, path := range [][]string{
		{"commit", "committer", "date"},
		{"commit", "author", "date"},
		{"committer", "date"},
		{"author", "date"},
	} {
		candidates = append(candidates, e.nested(path...))
	}
	for _, v := range candidates {
		if t, parsed := ParseTimeLoose(v); parsed {
			return t.UTC().Format("2006-01-02T15:04:05Z07:00"), true
		}
	}
	return "", false
}

// DiffStats returns additions and deletions, preferring the nested stats
// block over the flat fields. Missing values default to 0.
func (e Envelope) DiffStats() (additions, deletions int64) {
	if stats, ok := e.obj["stats"].(map[string]any); ok {
		additions = toInt64(stats["additions"])
		deletions = toInt64(stats["deletions"])
	}
	if additions == 0 {
		additions = toInt64(e.obj["additions"])
	}
	if deletions == 0 {
		deletions = toInt64(e.obj["deletions"])
	}
	return additions, deletions
}

// Parents returns the parent SHAs, read from parents[].sha|id or plain
// string entries. A commit with more than one parent is a merge.
func (e Envelope) Parents() []string {
	arr, ok := e.obj["parents"].([]any)
	if !ok {
		return nil
	}
	var parents []string
	for _, p := range arr {
		switch v := p.(type) {
		case string:
			if v != "" {
				parents = append(parents, v)
			}
		case map[string]any:
			if sha := firstStr(v, "sha", "id"); sha != "" {
				parents = append(parents, sha)
			}
		}
	}
	return parents
}

// IsMerge reports whether the payload has more than one parent. Unparseable
// payloads count as non-merge: hiding a contribution is worse than counting
// an integration commit once.
func (e Envelope) IsMerge() bool { return len(e.Parents()) > 1 }

// BaseSHA returns the first parent, the base of a diff comparison.
func (e Envelope) BaseSHA() string {
	if parents := e.Parents(); len(parents) > 0 {
		return parents[0]
	}
	return ""
}

// Message returns the commit message from commit.message, then the flat
// message field. With title set, commit.title is a further fallback, which
// the anti-fraud report uses to catch backends that only carry titles.
func (e Envelope) Message(withTitle bool) string {
	if m := e.nestedStr("commit", "message"); m != "" {
		return m
	}
	if m := e.str("message"); m != "" {
		return m
	}
	if withTitle {
		if m := e.nestedStr("commit", "title"); m != "" {
			return m
		}
	}
	return ""
}

// MemberIdentity returns (userID, username, email) for a membership record,
// which nests the account under user on some backends.
func (e Envelope) MemberIdentity() (userID, username, email string) {
	user := e.obj
	if nested, ok := e.obj["user"].(map[string]any); ok {
		user = nested
	}
	userID = firstStr(user, "id", "userId", "uid")
	username = firstStr(user, "username", "name", "login")
	email = firstStr(user, "email")
	if email == "" {
		email = e.str("email")
	}
	return userID, username, email
}

func (e Envelope) str(key string) string {
	return asStr(e.obj[key])
}

func (e Envelope) nested(keys ...string) any {
	var cur any = e.obj
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

func (e Envelope) nestedStr(keys ...string) string {
	return asStr(e.nested(keys...))
}

func firstStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asStr(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func asStr(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		// JSON numbers used as ids.
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
