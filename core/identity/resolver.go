package identity

import (
	"strings"

	"github.com/clifelab/devpulse/schema"
)

// Resolver maps a commit's author identity onto the employee roster with a
// fixed three-tier fallback chain: member_key equality first, then email,
// then username (both case-insensitive). Later tiers are consulted only when
// the earlier ones miss. Every aggregator and report shares one Resolver so
// numbers agree across commands.
type Resolver struct {
	byMemberKey map[string]*schema.Employee
	byEmail     map[string]*schema.Employee
	byUsername  map[string]*schema.Employee
}

// NewResolver indexes the roster. When two employees claim the same email or
// username, the one with the lexicographically smaller member key wins, which
// keeps resolution stable across runs.
func NewResolver(employees []schema.Employee) *Resolver {
	r := &Resolver{
		byMemberKey: make(map[string]*schema.Employee, len(employees)),
		byEmail:     make(map[string]*schema.Employee),
		byUsername:  make(map[string]*schema.Employee),
	}
	for i := range employees {
		e := &employees[i]
		if e.MemberKey != "" {
			if prev, ok := r.byMemberKey[e.MemberKey]; !ok || e.MemberKey < prev.MemberKey {
				r.byMemberKey[e.MemberKey] = e
			}
		}
		if email := strings.ToLower(strings.TrimSpace(e.Email)); email != "" {
			if prev, ok := r.byEmail[email]; !ok || e.MemberKey < prev.MemberKey {
				r.byEmail[email] = e
			}
		}
		if user := strings.ToLower(strings.TrimSpace(e.Username)); user != "" {
			if prev, ok := r.byUsername[user]; !ok || e.MemberKey < prev.MemberKey {
				r.byUsername[user] = e
			}
		}
	}
	return r
}

// Resolve returns the employee owning the commit identity, or nil on miss.
func (r *Resolver) Resolve(memberKey, email, username string) *schema.Employee {
	if memberKey != "" {
		if e, ok := r.byMemberKey[memberKey]; ok {
			return e
		}
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		if e, ok := r.byEmail[email]; ok {
			return e
		}
	}
	if username = strings.ToLower(strings.TrimSpace(username)); username != "" {
		if e, ok := r.byUsername[username]; ok {
			return e
		}
	}
	return nil
}

// ResolveFact is a convenience wrapper over Resolve for commit facts.
func (r *Resolver) ResolveFact(f *schema.CommitFact) *schema.Employee {
	return r.Resolve(f.MemberKey, f.AuthorEmail, f.AuthorUsername)
}

// KeyIndex resolves commit identities to member keys across the full member
// dimension, for member-level reports that include non-employees. Same
// fallback chain as Resolver; ties pick the smallest member key.
type KeyIndex struct {
	keys       map[string]struct{}
	byEmail    map[string]string
	byUsername map[string]string
}

// NewKeyIndex indexes the member dimension.
func NewKeyIndex(members []schema.Member) *KeyIndex {
	k := &KeyIndex{
		keys:       make(map[string]struct{}, len(members)),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
	for i := range members {
		m := &members[i]
		if m.MemberKey == "" {
			continue
		}
		k.keys[m.MemberKey] = struct{}{}
		if email := strings.ToLower(strings.TrimSpace(m.Email)); email != "" {
			if prev, ok := k.byEmail[email]; !ok || m.MemberKey < prev {
				k.byEmail[email] = m.MemberKey
			}
		}
		if user := strings.ToLower(strings.TrimSpace(m.Username)); user != "" {
			if prev, ok := k.byUsername[user]; !ok || m.MemberKey < prev {
				k.byUsername[user] = m.MemberKey
			}
		}
	}
	return k
}

// Resolve returns the canonical member key for a commit identity, or ""
// when no tier matches.
func (k *KeyIndex) Resolve(memberKey, email, username string) string {
	if memberKey != "" {
		if _, ok := k.keys[memberKey]; ok {
			return memberKey
		}
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		if mk, ok := k.byEmail[email]; ok {
			return mk
		}
	}
	if username = strings.ToLower(strings.TrimSpace(username)); username != "" {
		if mk, ok := k.byUsername[username]; ok {
			return mk
		}
	}
	return ""
}
