package facts

import (
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

// Builder joins raw commits with their diff-stat enrichment and produces
// canonical commit facts. Pure: same inputs, same facts.
type Builder struct {
	norm *identity.Normalizer
}

// NewBuilder creates a fact builder using the given identity normalizer.
func NewBuilder(norm *identity.Normalizer) *Builder {
	return &Builder{norm: norm}
}

// Result is the outcome of one build pass.
type Result struct {
	Facts []schema.CommitFact

	// DroppedNoTimestamp counts commits skipped because no timestamp could
	// be parsed; they cannot be placed in any window.
	DroppedNoTimestamp int
}

// Build produces one fact per raw commit. Diff stats win over the counters
// on the raw commit; commits without a parseable timestamp are dropped and
// counted, never fatal.
func (b *Builder) Build(commits []schema.RawCommit, stats map[schema.CommitKey]schema.CommitStat) Result {
	res := Result{Facts: make([]schema.CommitFact, 0, len(commits))}
	for i := range commits {
		fact, ok := b.buildOne(&commits[i], stats)
		if !ok {
			res.DroppedNoTimestamp++
			continue
		}
		res.Facts = append(res.Facts, fact)
	}
	return res
}

func (b *Builder) buildOne(rc *schema.RawCommit, stats map[schema.CommitKey]schema.CommitStat) (schema.CommitFact, bool) {
	env := ParseEnvelope(rc.Raw)

	committedAt := rc.CommittedAt
	if committedAt == nil {
		if s, ok := env.CommittedAt(); ok {
			if t, parsed := ParseTimeLoose(s); parsed {
				utc := t.UTC()
				committedAt = &utc
			}
		}
	}
	if committedAt == nil {
		return schema.CommitFact{}, false
	}

	userID, username, email := rc.AuthorUserID, rc.AuthorUsername, rc.AuthorEmail
	if userID == "" && username == "" && email == "" {
		userID, username, email = env.AuthorIdentity()
	}
	// A corporate email is the most stable identity; its derived key also
	// replaces whatever display name the hosting backend reported.
	if b.norm.IsCorpEmail(email) {
		username = b.norm.MemberKey("", email, "")
	}

	additions, deletions := rc.Additions, rc.Deletions
	isMerge := env.IsMerge()
	if stat, ok := stats[schema.CommitKey{RepoID: rc.RepoID, SHA: rc.SHA}]; ok {
		additions, deletions = stat.Additions, stat.Deletions
		isMerge = stat.IsMerge
	}

	at := committedAt.UTC()
	return schema.CommitFact{
		RepoID:         rc.RepoID,
		SHA:            rc.SHA,
		MemberKey:      b.norm.MemberKey(username, email, userID),
		AuthorUsername: username,
		AuthorEmail:    email,
		CommittedAt:    at,
		CommitMonth:    at.Format("2006-01"),
		Additions:      additions,
		Deletions:      deletions,
		ChangedLines:   additions + deletions,
		IsMerge:        isMerge,
		Message:        env.Message(false),
		Title:          env.nestedStr("commit", "title"),
	}, true
}

// FilterWindow returns the facts inside the window, partition month checked
// first so a columnar reader can prune before the row filter.
func FilterWindow(all []schema.CommitFact, w schema.Window) []schema.CommitFact {
	out := make([]schema.CommitFact, 0, len(all))
	for i := range all {
		if w.Contains(all[i].CommitMonth, all[i].CommittedAt) {
			out = append(out, all[i])
		}
	}
	return out
}

// NonMerge filters out merge commits; they are integration work and would
// double-count authored lines.
func NonMerge(all []schema.CommitFact) []schema.CommitFact {
	out := make([]schema.CommitFact, 0, len(all))
	for i := range all {
		if !all[i].IsMerge {
			out = append(out, all[i])
		}
	}
	return out
}
