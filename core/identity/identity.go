// Package identity derives canonical member keys and person ids from the
// noisy identity fragments carried by commit and membership records, and
// resolves commit authors back to people with one fixed fallback chain.
package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalizer derives member keys for one corporate email domain.
// All methods are pure; the same input always yields the same key.
type Normalizer struct {
	domain    string
	corpEmail *regexp.Regexp
	plainKey  *regexp.Regexp
	digits    *regexp.Regexp
}

// NewNormalizer compiles the derivation rules for a corporate domain such
// as "clife.cn".
func NewNormalizer(domain string) *Normalizer {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return &Normalizer{
		domain:    domain,
		corpEmail: regexp.MustCompile(`^([a-z0-9]+\.[a-z0-9]+|[0-9]+)@` + regexp.QuoteMeta(domain) + `$`),
		plainKey:  regexp.MustCompile(`^([a-z0-9]+\.[a-z0-9]+|[0-9]+|partner-[0-9]+)$`),
		digits:    regexp.MustCompile(`^[0-9]+$`),
	}
}

// MemberKey maps raw identity fragments to the canonical member key:
//
//   - corporate firstname.lastname email: the local part, lowercased
//   - corporate numeric email (contractors): "partner-" + digits
//   - a username already shaped like a key: the username, lowercased
//   - otherwise the first non-empty of username, email, user id, lowercased
func (n *Normalizer) MemberKey(username, email, userID string) string {
	if local, ok := n.corpLocalPart(email); ok {
		if n.digits.MatchString(local) {
			return "partner-" + local
		}
		return local
	}
	if u := strings.ToLower(strings.TrimSpace(username)); u != "" && n.plainKey.MatchString(u) {
		return u
	}
	for _, v := range []string{username, email, userID} {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			return v
		}
	}
	return ""
}

// corpLocalPart returns the local part of a corporate email, lowercased.
func (n *Normalizer) corpLocalPart(email string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(email))
	m := n.corpEmail.FindStringSubmatch(e)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsCorpEmail reports whether the email matches the corporate pattern.
func (n *Normalizer) IsCorpEmail(email string) bool {
	_, ok := n.corpLocalPart(email)
	return ok
}

// OneID returns the cross-identity person id: the HR employee id when known,
// else a stable synthetic id from the hosting user id or the member key.
func OneID(employeeID, userID, memberKey string) string {
	if id := strings.TrimSpace(employeeID); id != "" {
		return id
	}
	if id := strings.TrimSpace(userID); id != "" {
		return fmt.Sprintf("uid:%s", id)
	}
	return fmt.Sprintf("mk:%s", memberKey)
}
