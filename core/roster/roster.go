// Package roster turns HR enrichment rows into the employee roster: one
// annotated row per hosting identity plus one canonical row per person, so
// a person with several accounts is never counted twice.
package roster

import (
	"sort"
	"strings"

	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

// Roster is the resolved employee universe for one warehouse snapshot.
type Roster struct {
	// All holds every enrichment row with OneID and PersonID filled in,
	// including rows that do not qualify as employees.
	All []schema.Employee

	// Employees are the rows with both a full name and an employee id,
	// directly or propagated from a sibling identity of the same person.
	Employees []schema.Employee

	// People holds one canonical row per person, picked from Employees.
	People []schema.Employee
}

// Build resolves enrichment rows against the member dimension and the
// imported identity bindings. The member dimension supplies hosting user ids
// so identities without an employee id still group under a stable one_id;
// bindings fill in employee ids the enrichment rows themselves lack.
func Build(rows []schema.EnrichmentRow, members []schema.Member, identities []schema.Identity) Roster {
	userIDs := userIDByMemberKey(members)
	bound := bindingIndex(identities)

	all := make([]schema.Employee, 0, len(rows))
	hostKeys := make([]string, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.EmployeeID) == "" {
			row.EmployeeID = bound.employeeID(&row)
		}
		all = append(all, schema.Employee{EnrichmentRow: row})
		// The propagation key is the hosting account only. Keying on the
		// employee id would put the id-carrying row in its own group and
		// its uid-sharing siblings would never see the id.
		hostKeys = append(hostKeys, identity.OneID("", userIDs[row.MemberKey], row.MemberKey))
	}

	// An employee id known on any identity of a person covers all of them.
	idAny := make(map[string]string)
	for i := range all {
		id := strings.TrimSpace(all[i].EmployeeID)
		if id != "" && id > idAny[hostKeys[i]] {
			idAny[hostKeys[i]] = id
		}
	}
	for i := range all {
		if strings.TrimSpace(all[i].EmployeeID) == "" {
			all[i].EmployeeID = idAny[hostKeys[i]]
		}
		all[i].OneID = identity.OneID(all[i].EmployeeID, userIDs[all[i].MemberKey], all[i].MemberKey)
		if id := strings.TrimSpace(all[i].EmployeeID); id != "" {
			all[i].PersonID = id
		} else {
			all[i].PersonID = all[i].MemberKey
		}
	}

	var employees []schema.Employee
	for i := range all {
		if strings.TrimSpace(all[i].FullName) != "" && strings.TrimSpace(all[i].EmployeeID) != "" {
			employees = append(employees, all[i])
		}
	}

	return Roster{All: all, Employees: employees, People: canonical(employees)}
}

// canonical keeps one row per person. Placeholder keys prefixed dummy_ are
// only used when a person has no real hosting identity; among real keys the
// lexicographically smallest wins, which keeps the pick stable across runs.
func canonical(employees []schema.Employee) []schema.Employee {
	best := make(map[string]schema.Employee)
	for _, e := range employees {
		prev, ok := best[e.OneID]
		if !ok || betterKey(e.MemberKey, prev.MemberKey) {
			best[e.OneID] = e
		}
	}
	people := make([]schema.Employee, 0, len(best))
	for _, e := range best {
		people = append(people, e)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].PersonID < people[j].PersonID })
	return people
}

func betterKey(candidate, current string) bool {
	cDummy := strings.HasPrefix(candidate, schema.DummyKeyPrefix)
	pDummy := strings.HasPrefix(current, schema.DummyKeyPrefix)
	if cDummy != pDummy {
		return !cDummy
	}
	return candidate < current
}

// bindings indexes imported identity bindings per kind, values lowercased.
type bindings map[string]map[string]string

func bindingIndex(identities []schema.Identity) bindings {
	out := make(bindings)
	for _, id := range identities {
		v := strings.ToLower(strings.TrimSpace(id.Value))
		eid := strings.TrimSpace(id.EmployeeID)
		if v == "" || eid == "" {
			continue
		}
		m, ok := out[id.Kind]
		if !ok {
			m = make(map[string]string)
			out[id.Kind] = m
		}
		if prev, ok := m[v]; !ok || eid < prev {
			m[v] = eid
		}
	}
	return out
}

// employeeID looks a row's username, then email, up in the bindings.
func (b bindings) employeeID(row *schema.EnrichmentRow) string {
	if u := strings.ToLower(strings.TrimSpace(row.Username)); u != "" {
		if id, ok := b[schema.IdentityKindUsername][u]; ok {
			return id
		}
	}
	if m := strings.ToLower(strings.TrimSpace(row.Email)); m != "" {
		if id, ok := b[schema.IdentityKindEmail][m]; ok {
			return id
		}
	}
	return ""
}

// userIDByMemberKey collapses the per-repo member rows to one hosting user
// id per member key, smallest id on conflict.
func userIDByMemberKey(members []schema.Member) map[string]string {
	out := make(map[string]string, len(members))
	for i := range members {
		m := &members[i]
		if m.MemberKey == "" || strings.TrimSpace(m.UserID) == "" {
			continue
		}
		uid := strings.TrimSpace(m.UserID)
		if prev, ok := out[m.MemberKey]; !ok || uid < prev {
			out[m.MemberKey] = uid
		}
	}
	return out
}
