// Package report assembles the analytics outputs into stable tabular
// contracts. Every function returns a schema.Report whose column names and
// order are fixed; the output sinks (terminal, CSV, parquet, MCP) render
// them without knowing what the numbers mean.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/clifelab/devpulse/core/aggregate"
	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/core/facts"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/core/roster"
	"github.com/clifelab/devpulse/schema"
)

// Inputs is everything a report can draw from: the window facts (merge
// commits included; reports that need them filtered do so themselves), the
// dimensions and the roster.
type Inputs struct {
	Repos   []schema.Repo
	Members []schema.Member
	Roster  roster.Roster
	Facts   []schema.CommitFact

	Projects     []schema.Project
	ProjectRoles []schema.ProjectPersonRole
	ProjectRepos []schema.ProjectRepo

	Window     schema.Window
	Now        time.Time
	CorpDomain string

	// Top caps the row count per report; 0 means unlimited.
	Top int
}

// Builder computes reports from one shared set of inputs. The identity
// indexes are built once so every report resolves committers the same way.
type Builder struct {
	in   Inputs
	res  *identity.Resolver
	keys *identity.KeyIndex

	memberByKey map[string]*schema.Member
	repoByID    map[string]*schema.Repo
}

// New indexes the inputs.
func New(in Inputs) *Builder {
	b := &Builder{
		in:          in,
		res:         identity.NewResolver(in.Roster.Employees),
		keys:        identity.NewKeyIndex(in.Members),
		memberByKey: make(map[string]*schema.Member),
		repoByID:    make(map[string]*schema.Repo, len(in.Repos)),
	}
	// Several repos can list the same member; merge so a row with a name
	// beats one without.
	for i := range in.Members {
		m := &in.Members[i]
		if m.MemberKey == "" {
			continue
		}
		prev, ok := b.memberByKey[m.MemberKey]
		if !ok {
			cp := *m
			b.memberByKey[m.MemberKey] = &cp
			continue
		}
		if prev.Username == "" {
			prev.Username = m.Username
		}
		if prev.Email == "" {
			prev.Email = m.Email
		}
		if prev.FullName == "" {
			prev.FullName = m.FullName
		}
	}
	for i := range in.Repos {
		b.repoByID[in.Repos[i].RepoID] = &in.Repos[i]
	}
	return b
}

// nonMergeAggregates computes the person aggregates every score report is
// built on: window facts without merges, resolved against the roster.
func (b *Builder) nonMergeAggregates() []schema.PersonAggregate {
	return aggregate.Persons(facts.NonMerge(b.in.Facts), b.res)
}

// limit truncates the report to the configured row cap.
func (b *Builder) limit(r *schema.Report) *schema.Report {
	if b.in.Top > 0 && len(r.Rows) > b.in.Top {
		r.Rows = r.Rows[:b.in.Top]
	}
	return r
}

func (b *Builder) repoName(repoID string) string {
	if r, ok := b.repoByID[repoID]; ok && r.RepoName != "" {
		return r.RepoName
	}
	return repoID
}

func orUnassigned(label string) string {
	if strings.TrimSpace(label) == "" {
		return schema.UnassignedLabel
	}
	return label
}

// memberDisplay is the preferred human handle for a roster identity:
// username, else email, else the member key.
func memberDisplay(e *schema.Employee) string {
	if u := strings.TrimSpace(e.Username); u != "" {
		return u
	}
	if m := strings.TrimSpace(e.Email); m != "" {
		return m
	}
	return e.MemberKey
}

func f64OrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolFlag(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func round2(v float64) float64 {
	return algo.Round2(v)
}

func round2OrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return algo.Round2(*p)
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}

func round4OrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return round4(*p)
}

// ActiveRepos ranks repos by window commits from their own valid members.
// Drive-by commits from accounts that are not members of the repo are not
// counted; the report answers "which repos does each team actually work in".
func (b *Builder) ActiveRepos() *schema.Report {
	type memberSet struct {
		keys      map[string]struct{}
		emails    map[string]struct{}
		usernames map[string]struct{}
	}
	byRepo := make(map[string]*memberSet)
	for i := range b.in.Members {
		m := &b.in.Members[i]
		set, ok := byRepo[m.RepoID]
		if !ok {
			set = &memberSet{
				keys:      make(map[string]struct{}),
				emails:    make(map[string]struct{}),
				usernames: make(map[string]struct{}),
			}
			byRepo[m.RepoID] = set
		}
		if m.MemberKey != "" {
			set.keys[m.MemberKey] = struct{}{}
		}
		if e := strings.ToLower(strings.TrimSpace(m.Email)); e != "" {
			set.emails[e] = struct{}{}
		}
		if u := strings.ToLower(strings.TrimSpace(m.Username)); u != "" {
			set.usernames[u] = struct{}{}
		}
	}
	matches := func(f *schema.CommitFact, set *memberSet) bool {
		if _, ok := set.keys[f.MemberKey]; ok {
			return true
		}
		if u := strings.ToLower(strings.TrimSpace(f.AuthorUsername)); u != "" {
			if _, ok := set.usernames[u]; ok {
				return true
			}
		}
		if e := strings.ToLower(strings.TrimSpace(f.AuthorEmail)); e != "" {
			if _, ok := set.emails[e]; ok {
				return true
			}
		}
		return false
	}

	type acc struct {
		commits int64
		changed int64
	}
	counts := make(map[string]*acc)
	for i := range b.in.Facts {
		f := &b.in.Facts[i]
		set, ok := byRepo[f.RepoID]
		if !ok || !matches(f, set) {
			continue
		}
		a, ok := counts[f.RepoID]
		if !ok {
			a = &acc{}
			counts[f.RepoID] = a
		}
		a.commits++
		a.changed += f.ChangedLines
	}

	r := schema.NewReport("active-repos",
		"repo_id", "repo_name",
		"department_level2_name", "department_level3_name",
		"commit_count", "changed_lines")
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, c := counts[ids[i]], counts[ids[j]]
		if a.commits != c.commits {
			return a.commits > c.commits
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		var dept2, dept3 string
		if repo, ok := b.repoByID[id]; ok {
			dept2, dept3 = repo.DepartmentLevel2Name, repo.DepartmentLevel3Name
		}
		r.Append(id, b.repoName(id),
			orUnassigned(dept2), orUnassigned(dept3),
			counts[id].commits, counts[id].changed)
	}
	return b.limit(r)
}

// EmployeeCommits counts window commits per resolved employee.
func (b *Builder) EmployeeCommits() *schema.Report {
	counts := make(map[string]*employeeAcc)
	for i := range b.in.Facts {
		e := b.res.ResolveFact(&b.in.Facts[i])
		if e == nil {
			continue
		}
		a, ok := counts[e.PersonID]
		if !ok {
			a = &employeeAcc{e: e}
			counts[e.PersonID] = a
		}
		a.commits++
		a.changed += b.in.Facts[i].ChangedLines
	}

	r := schema.NewReport("employee-commits",
		"full_name", "employee_id",
		"department_level2_name", "department_level3_name",
		"role", "commit_count", "changed_lines")
	for _, a := range sortedByCommits(counts) {
		r.Append(a.e.FullName, a.e.EmployeeID,
			orUnassigned(a.e.DepartmentLevel2Name), orUnassigned(a.e.DepartmentLevel3Name),
			a.e.Role, a.commits, a.changed)
	}
	return b.limit(r)
}

// RepoEmployeeCommits counts window commits per (repo, resolved employee).
func (b *Builder) RepoEmployeeCommits() *schema.Report {
	type cell struct {
		repoID string
		e      *schema.Employee
	}
	type acc struct {
		c       cell
		commits int64
		changed int64
	}
	counts := make(map[cell]*acc)
	for i := range b.in.Facts {
		f := &b.in.Facts[i]
		e := b.res.ResolveFact(f)
		if e == nil {
			continue
		}
		k := cell{repoID: f.RepoID, e: e}
		a, ok := counts[k]
		if !ok {
			a = &acc{c: k}
			counts[k] = a
		}
		a.commits++
		a.changed += f.ChangedLines
	}

	rows := make([]*acc, 0, len(counts))
	for _, a := range counts {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].commits != rows[j].commits {
			return rows[i].commits > rows[j].commits
		}
		if rows[i].c.repoID != rows[j].c.repoID {
			return rows[i].c.repoID < rows[j].c.repoID
		}
		return rows[i].c.e.PersonID < rows[j].c.e.PersonID
	})

	r := schema.NewReport("repo-employee-commits",
		"repo", "repo_department_level2_name", "repo_department_level3_name",
		"full_name", "employee_id",
		"department_level2_name", "department_level3_name",
		"role", "commit_count", "changed_lines")
	for _, a := range rows {
		var dept2, dept3 string
		if repo, ok := b.repoByID[a.c.repoID]; ok {
			dept2, dept3 = repo.DepartmentLevel2Name, repo.DepartmentLevel3Name
		}
		r.Append(b.repoName(a.c.repoID),
			orUnassigned(dept2), orUnassigned(dept3),
			a.c.e.FullName, a.c.e.EmployeeID,
			orUnassigned(a.c.e.DepartmentLevel2Name), orUnassigned(a.c.e.DepartmentLevel3Name),
			a.c.e.Role, a.commits, a.changed)
	}
	return b.limit(r)
}

type employeeAcc struct {
	e       *schema.Employee
	commits int64
	changed int64
}

func sortedByCommits(counts map[string]*employeeAcc) []*employeeAcc {
	rows := make([]*employeeAcc, 0, len(counts))
	for _, a := range counts {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].commits != rows[j].commits {
			return rows[i].commits > rows[j].commits
		}
		return rows[i].e.PersonID < rows[j].e.PersonID
	})
	return rows
}
