package report

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/clifelab/devpulse/schema"
)

// memberRollup is one member-key accumulator shared by the member-commit
// reports.
type memberRollup struct {
	memberKey string
	commits   int64
	changed   int64
	lastEmail string
	lastAt    time.Time
	repos     map[string]struct{}
}

func (m *memberRollup) add(f *schema.CommitFact, memberEmail string) {
	m.commits++
	m.changed += f.ChangedLines
	if m.repos != nil {
		m.repos[f.RepoID] = struct{}{}
	}
	email := strings.TrimSpace(f.AuthorEmail)
	if email == "" {
		email = strings.TrimSpace(memberEmail)
	}
	if email != "" && f.CommittedAt.After(m.lastAt) {
		m.lastEmail = email
		m.lastAt = f.CommittedAt
	}
}

// memberIdentity resolves the display columns for a member key: the member
// dimension first, the employee roster as fallback for the name and the
// departments.
func (b *Builder) memberIdentity(memberKey string, f *schema.CommitFact) (member, fullName, dept2, dept3, email string) {
	member = memberKey
	var m *schema.Member
	if mm, ok := b.memberByKey[memberKey]; ok {
		m = mm
		if m.Username != "" {
			member = m.Username
		} else if f != nil && f.AuthorUsername != "" {
			member = f.AuthorUsername
		}
		fullName = m.FullName
		email = m.Email
	} else if f != nil && f.AuthorUsername != "" {
		member = f.AuthorUsername
	}
	var e *schema.Employee
	if f != nil {
		e = b.res.Resolve(f.MemberKey, f.AuthorEmail, f.AuthorUsername)
	} else {
		var memberEmail, memberUser string
		if m != nil {
			memberEmail, memberUser = m.Email, m.Username
		}
		e = b.res.Resolve(memberKey, memberEmail, memberUser)
	}
	if e != nil {
		if fullName == "" {
			fullName = e.FullName
		}
		dept2, dept3 = e.DepartmentLevel2Name, e.DepartmentLevel3Name
	}
	return member, fullName, orUnassigned(dept2), orUnassigned(dept3), email
}

// MemberCommits counts window commits per member key across all repos.
// Names missing from the member dimension fall back to the roster.
func (b *Builder) MemberCommits() *schema.Report {
	counts := make(map[string]*memberRollup)
	sample := make(map[string]*schema.CommitFact)
	for i := range b.in.Facts {
		f := &b.in.Facts[i]
		if f.MemberKey == "" {
			continue
		}
		a, ok := counts[f.MemberKey]
		if !ok {
			a = &memberRollup{memberKey: f.MemberKey}
			counts[f.MemberKey] = a
			sample[f.MemberKey] = f
		}
		var memberEmail string
		if m, ok := b.memberByKey[f.MemberKey]; ok {
			memberEmail = m.Email
		}
		a.add(f, memberEmail)
	}

	r := schema.NewReport("member-commits",
		"full_name", "member", "member_key", "author_email",
		"department_level2_name", "department_level3_name",
		"commit_count", "changed_lines")
	for _, a := range sortedMemberRollups(counts) {
		member, fullName, dept2, dept3, _ := b.memberIdentity(a.memberKey, sample[a.memberKey])
		r.Append(fullName, member, a.memberKey, a.lastEmail, dept2, dept3, a.commits, a.changed)
	}
	return b.limit(r)
}

// RepoMemberCommits counts window commits per (repo, member key).
func (b *Builder) RepoMemberCommits() *schema.Report {
	type cell struct{ repoID, memberKey string }
	counts := make(map[cell]*memberRollup)
	sample := make(map[cell]*schema.CommitFact)
	for i := range b.in.Facts {
		f := &b.in.Facts[i]
		if f.MemberKey == "" {
			continue
		}
		k := cell{repoID: f.RepoID, memberKey: f.MemberKey}
		a, ok := counts[k]
		if !ok {
			a = &memberRollup{memberKey: f.MemberKey}
			counts[k] = a
			sample[k] = f
		}
		var memberEmail string
		if m, ok := b.memberByKey[f.MemberKey]; ok {
			memberEmail = m.Email
		}
		a.add(f, memberEmail)
	}

	cells := make([]cell, 0, len(counts))
	for k := range counts {
		cells = append(cells, k)
	}
	sort.Slice(cells, func(i, j int) bool {
		a, c := counts[cells[i]], counts[cells[j]]
		if a.commits != c.commits {
			return a.commits > c.commits
		}
		if cells[i].repoID != cells[j].repoID {
			return cells[i].repoID < cells[j].repoID
		}
		return cells[i].memberKey < cells[j].memberKey
	})

	r := schema.NewReport("repo-member-commits",
		"repo", "repo_department_level2_name", "repo_department_level3_name",
		"full_name", "member", "member_key", "author_email",
		"member_department_level2_name", "member_department_level3_name",
		"commit_count", "changed_lines")
	for _, k := range cells {
		a := counts[k]
		var rdept2, rdept3 string
		if repo, ok := b.repoByID[k.repoID]; ok {
			rdept2, rdept3 = repo.DepartmentLevel2Name, repo.DepartmentLevel3Name
		}
		member, fullName, dept2, dept3, _ := b.memberIdentity(k.memberKey, sample[k])
		r.Append(b.repoName(k.repoID),
			orUnassigned(rdept2), orUnassigned(rdept3),
			fullName, member, k.memberKey, a.lastEmail,
			dept2, dept3, a.commits, a.changed)
	}
	return b.limit(r)
}

func sortedMemberRollups(counts map[string]*memberRollup) []*memberRollup {
	rows := make([]*memberRollup, 0, len(counts))
	for _, a := range counts {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].commits != rows[j].commits {
			return rows[i].commits > rows[j].commits
		}
		return rows[i].memberKey < rows[j].memberKey
	})
	return rows
}

// MissingFullnameAuthors lists member keys that committed in the window but
// have no full name anywhere in the member dimension. These are the rows the
// roster import still needs to cover.
func (b *Builder) MissingFullnameAuthors() *schema.Report {
	counts := make(map[string]*memberRollup)
	for i := range b.in.Facts {
		f := &b.in.Facts[i]
		key := b.keys.Resolve(f.MemberKey, f.AuthorEmail, f.AuthorUsername)
		if key == "" {
			continue
		}
		m, ok := b.memberByKey[key]
		if !ok || strings.TrimSpace(m.FullName) != "" {
			continue
		}
		a, ok := counts[key]
		if !ok {
			a = &memberRollup{memberKey: key, repos: make(map[string]struct{})}
			counts[key] = a
		}
		a.add(f, m.Email)
	}

	r := schema.NewReport("missing-fullname-authors",
		"member_key", "username", "email", "commit_count", "repo_count")
	for _, a := range sortedMemberRollups(counts) {
		m := b.memberByKey[a.memberKey]
		r.Append(a.memberKey, m.Username, m.Email, a.commits, int64(len(a.repos)))
	}
	return b.limit(r)
}

// ExternalCommitters lists commit authors whose email cannot be mapped to
// any employee. Grouped per lowercased email with their main repo, so the
// roster owner can chase down vendors and stale accounts.
func (b *Builder) ExternalCommitters() *schema.Report {
	corpEmailRe := regexp.MustCompile(
		`^(?:[a-z0-9]+\.[a-z0-9]+|[0-9]+)@` + regexp.QuoteMeta(strings.ToLower(b.in.CorpDomain)) + `$`)

	type repoAcc struct {
		commits int64
		changed int64
		lastAt  time.Time
	}
	type authorAcc struct {
		emailL  string
		email   string
		emailAt time.Time
		commits int64
		changed int64
		repos   map[string]*repoAcc
		firstAt time.Time
		lastAt  time.Time
	}
	authors := make(map[string]*authorAcc)
	for i := range b.in.Facts {
		f := &b.in.Facts[i]
		email := strings.TrimSpace(f.AuthorEmail)
		if email == "" {
			continue
		}
		if b.res.Resolve("", email, "") != nil {
			continue
		}
		emailL := strings.ToLower(email)
		a, ok := authors[emailL]
		if !ok {
			a = &authorAcc{emailL: emailL, repos: make(map[string]*repoAcc), firstAt: f.CommittedAt}
			authors[emailL] = a
		}
		a.commits++
		a.changed += f.ChangedLines
		if f.CommittedAt.After(a.emailAt) {
			a.email = email
			a.emailAt = f.CommittedAt
		}
		if f.CommittedAt.Before(a.firstAt) {
			a.firstAt = f.CommittedAt
		}
		if f.CommittedAt.After(a.lastAt) {
			a.lastAt = f.CommittedAt
		}
		ra, ok := a.repos[f.RepoID]
		if !ok {
			ra = &repoAcc{}
			a.repos[f.RepoID] = ra
		}
		ra.commits++
		ra.changed += f.ChangedLines
		if f.CommittedAt.After(ra.lastAt) {
			ra.lastAt = f.CommittedAt
		}
	}

	mainRepo := func(a *authorAcc) string {
		var best string
		var bestAcc *repoAcc
		for id, ra := range a.repos {
			switch {
			case bestAcc == nil,
				ra.commits > bestAcc.commits,
				ra.commits == bestAcc.commits && ra.changed > bestAcc.changed,
				ra.commits == bestAcc.commits && ra.changed == bestAcc.changed && ra.lastAt.After(bestAcc.lastAt),
				ra.commits == bestAcc.commits && ra.changed == bestAcc.changed && ra.lastAt.Equal(bestAcc.lastAt) && id < best:
				best, bestAcc = id, ra
			}
		}
		return best
	}

	rows := make([]*authorAcc, 0, len(authors))
	for _, a := range authors {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].commits != rows[j].commits {
			return rows[i].commits > rows[j].commits
		}
		return rows[i].emailL < rows[j].emailL
	})

	r := schema.NewReport("external-committers",
		"author_email_l", "author_email", "is_corp_email",
		"commit_count", "repo_count", "changed_lines",
		"first_committed_at", "last_committed_at",
		"main_repo_id", "main_repo_name",
		"main_repo_department_level2_name", "main_repo_department_level3_name")
	for _, a := range rows {
		repoID := mainRepo(a)
		var dept2, dept3, name string
		if repo, ok := b.repoByID[repoID]; ok {
			name, dept2, dept3 = repo.RepoName, repo.DepartmentLevel2Name, repo.DepartmentLevel3Name
		}
		r.Append(a.emailL, a.email, boolFlag(corpEmailRe.MatchString(a.emailL)),
			a.commits, int64(len(a.repos)), a.changed,
			a.firstAt.UTC().Format(time.RFC3339), a.lastAt.UTC().Format(time.RFC3339),
			repoID, name,
			orUnassigned(dept2), orUnassigned(dept3))
	}
	return b.limit(r)
}

// activePersonIDs resolves the window facts against the roster and returns
// the set of person ids with at least one commit, plus per-identity commit
// counts for the attribute pick in ActiveMembers.
func (b *Builder) activePersonIDs() (map[string]struct{}, map[*schema.Employee]int64) {
	active := make(map[string]struct{})
	perIdentity := make(map[*schema.Employee]int64)
	for i := range b.in.Facts {
		e := b.res.ResolveFact(&b.in.Facts[i])
		if e == nil {
			continue
		}
		active[e.PersonID] = struct{}{}
		perIdentity[e]++
	}
	return active, perIdentity
}

var memberAllColumns = []string{
	"member", "employee_id", "full_name",
	"department_level1_name",
	"department_level2_id", "department_level2_name",
	"department_level3_id", "department_level3_name",
	"role", "employee_type", "position", "in_date", "gender",
	"age", "years_of_service", "job_sequence", "job_rank",
	"line_manager", "education_level", "college", "major",
	"commit_count",
}

var memberShortColumns = []string{
	"member", "full_name", "department_level2_name", "department_level3_name", "commit_count",
}

func appendMemberRow(r *schema.Report, e *schema.Employee, commits int64, allFields bool) {
	if !allFields {
		r.Append(memberDisplay(e), e.FullName, e.DepartmentLevel2Name, e.DepartmentLevel3Name, commits)
		return
	}
	r.Append(memberDisplay(e), e.EmployeeID, e.FullName,
		e.DepartmentLevel1Name,
		e.DepartmentLevel2ID, e.DepartmentLevel2Name,
		e.DepartmentLevel3ID, e.DepartmentLevel3Name,
		e.Role, e.EmployeeType, e.Position, e.InDate, e.Gender,
		e.Age, e.YearsOfService, e.JobSequence, e.JobRank,
		e.LineManager, e.EducationLevel, e.College, e.Major,
		commits)
}

// ActiveMembers lists roster people with window commits, one row per person
// with the attributes of their busiest identity.
func (b *Builder) ActiveMembers(allFields bool) *schema.Report {
	_, perIdentity := b.activePersonIDs()

	type personAcc struct {
		best    *schema.Employee
		bestCnt int64
		total   int64
	}
	persons := make(map[string]*personAcc)
	for e, cnt := range perIdentity {
		a, ok := persons[e.PersonID]
		if !ok {
			a = &personAcc{}
			persons[e.PersonID] = a
		}
		a.total += cnt
		if a.best == nil || cnt > a.bestCnt {
			a.best, a.bestCnt = e, cnt
		}
	}

	ids := make([]string, 0, len(persons))
	for id := range persons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, c := persons[ids[i]], persons[ids[j]]
		if a.total != c.total {
			return a.total > c.total
		}
		return ids[i] < ids[j]
	})

	cols := memberShortColumns
	if allFields {
		cols = memberAllColumns
	}
	r := schema.NewReport("active-members", cols...)
	for _, id := range ids {
		a := persons[id]
		appendMemberRow(r, a.best, a.total, allFields)
	}
	return b.limit(r)
}

// InactiveMembers lists roster people with zero window commits.
func (b *Builder) InactiveMembers(allFields bool) *schema.Report {
	active, _ := b.activePersonIDs()

	people := make([]*schema.Employee, 0)
	for i := range b.in.Roster.People {
		e := &b.in.Roster.People[i]
		if _, ok := active[e.PersonID]; ok {
			continue
		}
		people = append(people, e)
	}
	sort.Slice(people, func(i, j int) bool {
		a, c := people[i], people[j]
		if a.DepartmentLevel2Name != c.DepartmentLevel2Name {
			return a.DepartmentLevel2Name < c.DepartmentLevel2Name
		}
		if a.DepartmentLevel3Name != c.DepartmentLevel3Name {
			return a.DepartmentLevel3Name < c.DepartmentLevel3Name
		}
		if a.FullName != c.FullName {
			return a.FullName < c.FullName
		}
		return memberDisplay(a) < memberDisplay(c)
	})

	cols := memberShortColumns
	if allFields {
		cols = memberAllColumns
	}
	r := schema.NewReport("inactive-members", cols...)
	for _, e := range people {
		appendMemberRow(r, e, 0, allFields)
	}
	return b.limit(r)
}
