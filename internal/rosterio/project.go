package rosterio

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clifelab/devpulse/schema"
)

// ProjectExisting is the warehouse state a project import merges into.
// Enrichment resolves full names to employee ids for rows that arrive
// without one.
type ProjectExisting struct {
	Projects   []schema.Project
	Roles      []schema.ProjectPersonRole
	Repos      []schema.ProjectRepo
	Enrichment []schema.EnrichmentRow
}

// ProjectResult is the full replacement state staged by a clean project
// import.
type ProjectResult struct {
	Projects []schema.Project
	Roles    []schema.ProjectPersonRole
	Repos    []schema.ProjectRepo
	Stats    Stats
}

// ImportProjects validates and stages the three project workbook files:
// the project dimension, the repo bridge and the member bridge. Any of the
// readers may be nil. Like Import, row problems become issues and reject the
// batch as a whole.
func ImportProjects(projectCSV, repoCSV, memberCSV io.Reader, existing ProjectExisting) (ProjectResult, []ImportIssue, error) {
	im := newProjectImporter(existing)

	if projectCSV != nil {
		recs, err := readRecords(projectCSV, "project", "project_name")
		if err != nil {
			return ProjectResult{}, nil, err
		}
		im.stageProjects(recs)
	}
	if repoCSV != nil {
		recs, err := readRecords(repoCSV, "project_repo", "repo_id", "start_at")
		if err != nil {
			return ProjectResult{}, nil, err
		}
		im.stageRepoBridge(recs)
	}
	if memberCSV != nil {
		recs, err := readRecords(memberCSV, "project_member", "start_at")
		if err != nil {
			return ProjectResult{}, nil, err
		}
		im.stageMemberBridge(recs)
	}
	im.checkOverlaps()

	if len(im.issues) > 0 {
		return ProjectResult{Stats: im.stats}, im.issues, nil
	}
	return im.result(), nil, nil
}

type projectImporter struct {
	issues []ImportIssue
	stats  Stats

	projects map[string]schema.Project
	roles    map[string]schema.ProjectPersonRole
	repos    map[string]schema.ProjectRepo

	// staged bridge rows from this file, checked for range overlaps before
	// merging.
	stagedRoles []schema.ProjectPersonRole
	stagedRepos []schema.ProjectRepo

	nameToID     map[string]string // in-import project name -> id
	existingName map[string]string // warehouse project name -> id
	nameToEID    map[string][]string
}

func newProjectImporter(existing ProjectExisting) *projectImporter {
	im := &projectImporter{
		projects:     make(map[string]schema.Project, len(existing.Projects)),
		roles:        make(map[string]schema.ProjectPersonRole, len(existing.Roles)),
		repos:        make(map[string]schema.ProjectRepo, len(existing.Repos)),
		nameToID:     make(map[string]string),
		existingName: make(map[string]string),
		nameToEID:    make(map[string][]string),
	}
	for _, p := range existing.Projects {
		im.projects[p.ProjectID] = p
		if name := strings.TrimSpace(p.ProjectName); name != "" {
			im.existingName[name] = p.ProjectID
		}
	}
	for _, r := range existing.Roles {
		im.roles[roleKey(r)] = r
	}
	for _, r := range existing.Repos {
		im.repos[repoKey(r)] = r
	}
	for _, e := range existing.Enrichment {
		name := strings.TrimSpace(e.FullName)
		eid := strings.TrimSpace(e.EmployeeID)
		if name == "" || eid == "" {
			continue
		}
		ids := im.nameToEID[name]
		found := false
		for _, v := range ids {
			if v == eid {
				found = true
				break
			}
		}
		if !found {
			im.nameToEID[name] = append(ids, eid)
		}
	}
	return im
}

func roleKey(r schema.ProjectPersonRole) string {
	return strings.Join([]string{r.ProjectID, r.EmployeeID, normKey(r.ProjectRole), r.StartAt}, "\x1f")
}

func repoKey(r schema.ProjectRepo) string {
	return strings.Join([]string{r.ProjectID, r.RepoID, r.StartAt}, "\x1f")
}

func (im *projectImporter) stageProjects(recs []record) {
	for _, rec := range recs {
		name := rec.get("project_name")
		if name == "" {
			im.issue("project", rec.row, "", "project_name", "missing project_name")
			continue
		}
		id := normID(rec.get("project_id"))
		if id == "" {
			id = stableID("p", name)
		}
		im.nameToID[name] = id

		p, ok := im.projects[id]
		if !ok {
			p = schema.Project{ProjectID: id}
		}
		p.ProjectName = name
		setIfPresent(&p.ProjectType, rec.get("project_type"))
		setIfPresent(&p.Status, rec.get("status"))
		im.projects[id] = p
		im.stats.Projects++
	}
}

func (im *projectImporter) stageRepoBridge(recs []record) {
	for _, rec := range recs {
		repoID := rec.get("repo_id")
		pid := im.resolveProjectID("project_repo", rec, repoID)
		if pid == "" {
			continue
		}
		if repoID == "" {
			im.issue("project_repo", rec.row, pid, "repo_id", "missing repo_id")
			continue
		}
		startAt, endAt, ok := im.dateRange("project_repo", rec, pid+":"+repoID)
		if !ok {
			continue
		}
		im.stagedRepos = append(im.stagedRepos, schema.ProjectRepo{
			ProjectID: pid, RepoID: repoID, StartAt: startAt, EndAt: endAt,
		})
		im.stats.ProjectRepoRows++
	}
}

func (im *projectImporter) stageMemberBridge(recs []record) {
	for _, rec := range recs {
		eid := rec.get("employee_id")
		pid := im.resolveProjectID("project_member", rec, eid)
		if pid == "" {
			continue
		}
		eid = im.resolveEmployeeID(rec, pid, eid)
		if eid == "" {
			continue
		}
		role := rec.get("project_role")
		if role == "" {
			role = "member"
		}
		startAt, endAt, ok := im.dateRange("project_member", rec, pid+":"+eid)
		if !ok {
			continue
		}
		allocation := 1.0
		if raw := rec.get("allocation"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				im.issue("project_member", rec.row, pid+":"+eid, "allocation", fmt.Sprintf("invalid float %q", raw))
				continue
			}
			allocation = v
		}
		if allocation <= 0 || allocation > 1 {
			im.issue("project_member", rec.row, pid+":"+eid, "allocation", "allocation must be in (0, 1]")
			continue
		}
		im.stagedRoles = append(im.stagedRoles, schema.ProjectPersonRole{
			ProjectID: pid, EmployeeID: eid, ProjectRole: role,
			Allocation: allocation, StartAt: startAt, EndAt: endAt,
		})
		im.stats.ProjectMemberRows++
	}
}

// resolveProjectID maps a bridge row to a project id: an explicit id wins,
// then the project name via this import, then via the warehouse, then a
// stable id minted from the name.
func (im *projectImporter) resolveProjectID(location string, rec record, key string) string {
	if id := normID(rec.get("project_id")); id != "" {
		return id
	}
	name := rec.get("project_name")
	if name == "" {
		im.issue(location, rec.row, key, "project_id", "missing project_id/project_name")
		return ""
	}
	if id, ok := im.nameToID[name]; ok {
		return id
	}
	if id, ok := im.existingName[name]; ok {
		return id
	}
	return stableID("p", name)
}

// resolveEmployeeID accepts an explicit employee id, or looks one up by full
// name when the roster knows exactly one match.
func (im *projectImporter) resolveEmployeeID(rec record, pid, eid string) string {
	if eid != "" {
		return eid
	}
	name := rec.get("full_name")
	if name == "" {
		im.issue("project_member", rec.row, pid, "employee_id", "missing employee_id/full_name")
		return ""
	}
	ids := im.nameToEID[name]
	switch len(ids) {
	case 0:
		im.issue("project_member", rec.row, pid+":"+name, "employee_id", "full_name not found")
		return ""
	case 1:
		return ids[0]
	default:
		sort.Strings(ids)
		im.issue("project_member", rec.row, pid+":"+name, "employee_id",
			fmt.Sprintf("full_name is ambiguous (employee_id candidates: %s)", strings.Join(ids, ", ")))
		return ""
	}
}

func (im *projectImporter) dateRange(location string, rec record, key string) (startAt, endAt string, ok bool) {
	startAt, err := parseDate(rec.get("start_at"))
	if err != nil {
		im.issue(location, rec.row, key, "date", fmt.Sprintf("invalid start_at %q", rec.get("start_at")))
		return "", "", false
	}
	if startAt == "" {
		im.issue(location, rec.row, key, "date", "missing start_at")
		return "", "", false
	}
	endAt, err = parseDate(rec.get("end_at"))
	if err != nil {
		im.issue(location, rec.row, key, "date", fmt.Sprintf("invalid end_at %q", rec.get("end_at")))
		return "", "", false
	}
	if endAt != "" && endAt < startAt {
		im.issue(location, rec.row, key, "date", "end_at < start_at")
		return "", "", false
	}
	return startAt, endAt, true
}

// checkOverlaps rejects staged bridge rows whose date ranges overlap within
// the same key: (project, repo) on the repo bridge, (project, employee,
// role) on the member bridge. Overlapping assignments would double-count
// activity.
func (im *projectImporter) checkOverlaps() {
	repoRanges := make(map[string][]schema.ProjectRepo)
	for _, r := range im.stagedRepos {
		k := r.ProjectID + "\x1f" + r.RepoID
		repoRanges[k] = append(repoRanges[k], r)
	}
	for _, ranges := range repoRanges {
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].StartAt < ranges[j].StartAt })
		for i := 1; i < len(ranges); i++ {
			a, b := ranges[i-1], ranges[i]
			if rangesOverlap(a.StartAt, a.EndAt, b.StartAt, b.EndAt) {
				im.issue("project_repo", 0, a.ProjectID+":"+a.RepoID, "date",
					"overlapping ranges within (project_id, repo_id)")
				return
			}
		}
	}

	roleRanges := make(map[string][]schema.ProjectPersonRole)
	for _, r := range im.stagedRoles {
		k := strings.Join([]string{r.ProjectID, r.EmployeeID, normKey(r.ProjectRole)}, "\x1f")
		roleRanges[k] = append(roleRanges[k], r)
	}
	for _, ranges := range roleRanges {
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].StartAt < ranges[j].StartAt })
		for i := 1; i < len(ranges); i++ {
			a, b := ranges[i-1], ranges[i]
			if rangesOverlap(a.StartAt, a.EndAt, b.StartAt, b.EndAt) {
				im.issue("project_member", 0,
					strings.Join([]string{a.ProjectID, a.EmployeeID, a.ProjectRole}, ":"), "date",
					"overlapping ranges within (project_id, employee_id, project_role)")
				return
			}
		}
	}
}

// rangesOverlap treats a blank end as open-ended. Dates are ISO strings, so
// string comparison is date comparison.
func rangesOverlap(aStart, aEnd, bStart, bEnd string) bool {
	if aEnd != "" && aEnd < bStart {
		return false
	}
	if bEnd != "" && bEnd < aStart {
		return false
	}
	return true
}

func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

func (im *projectImporter) result() ProjectResult {
	for _, r := range im.stagedRepos {
		im.repos[repoKey(r)] = r
	}
	for _, r := range im.stagedRoles {
		im.roles[roleKey(r)] = r
	}

	res := ProjectResult{Stats: im.stats}
	for _, p := range im.projects {
		res.Projects = append(res.Projects, p)
	}
	sort.Slice(res.Projects, func(i, j int) bool { return res.Projects[i].ProjectID < res.Projects[j].ProjectID })
	for _, r := range im.roles {
		res.Roles = append(res.Roles, r)
	}
	sort.Slice(res.Roles, func(i, j int) bool { return roleKey(res.Roles[i]) < roleKey(res.Roles[j]) })
	for _, r := range im.repos {
		res.Repos = append(res.Repos, r)
	}
	sort.Slice(res.Repos, func(i, j int) bool { return repoKey(res.Repos[i]) < repoKey(res.Repos[j]) })
	return res
}

func (im *projectImporter) issue(location string, row int, key, field, message string) {
	im.issues = append(im.issues, ImportIssue{
		Location: location, Row: row, Key: key, Field: field, Message: message,
	})
}
