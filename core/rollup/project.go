package rollup

import (
	"sort"
	"strconv"
	"time"

	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

// ProjectActivity is one project rollup row: roster size versus observed
// commit activity in the project's repos, plus core-role coverage.
type ProjectActivity struct {
	ProjectID   string
	ProjectName string
	ProjectType string
	Status      string

	DevHeadcount int64
	DevFTESum    float64
	ActiveDev    int64
	InactiveDev  int64

	ActivePct      *float64
	ActiveFraction string

	WeightedCommitsTotal      float64
	WeightedChangedLinesTotal float64
	CommitsPerFTE             *float64
	Top1SharePct              *float64

	RepoCount int64

	CoreRoleCoverageCnt int64
	CoreRolesPresent    string
}

// coreRoles are the project roles whose presence is tracked, in display
// order.
var coreRoles = []string{"PO", "TO", "SM", "TL"}

// ProjectActivityInput bundles the dimension and bridge data the project
// rollup reads alongside the window facts.
type ProjectActivityInput struct {
	Projects    []schema.Project
	PersonRoles []schema.ProjectPersonRole
	ProjectRepo []schema.ProjectRepo
	Employees   []schema.Employee
	Facts       []schema.CommitFact
}

// Projects computes the activity rollup for every project. Assignments and
// repo bindings count when their date range is live for the window; commit
// activity is weighted by the committer's role change weight.
func Projects(in ProjectActivityInput, w schema.Window, now time.Time) []ProjectActivity {
	today := now.UTC().Format("2006-01-02")
	since := w.Since.Format("2006-01-02")

	devIDs := make(map[string]struct{})
	for i := range in.Employees {
		e := &in.Employees[i]
		if schema.IsDevRole(e.Role) && e.EmployeeID != "" {
			devIDs[e.EmployeeID] = struct{}{}
		}
	}
	res := identity.NewResolver(in.Employees)

	// Roster: dev headcount and FTE per project, max allocation per person.
	type allocKey struct{ projectID, employeeID string }
	alloc := make(map[allocKey]float64)
	for _, pr := range in.PersonRoles {
		if !pr.ActiveIn(today, since) {
			continue
		}
		if _, dev := devIDs[pr.EmployeeID]; !dev {
			continue
		}
		a := pr.Allocation
		if a <= 0 {
			a = 1.0
		}
		k := allocKey{pr.ProjectID, pr.EmployeeID}
		if a > alloc[k] {
			alloc[k] = a
		}
	}
	headcount := make(map[string]int64)
	fteSum := make(map[string]float64)
	for k, a := range alloc {
		headcount[k.projectID]++
		fteSum[k.projectID] += a
	}

	// Repo bindings live in the window.
	repoProjects := make(map[string][]string)
	repoCount := make(map[string]int64)
	seenRepo := make(map[allocKey]struct{})
	for _, pb := range in.ProjectRepo {
		if !pb.ActiveIn(today, since) {
			continue
		}
		k := allocKey{pb.ProjectID, pb.RepoID}
		if _, dup := seenRepo[k]; dup {
			continue
		}
		seenRepo[k] = struct{}{}
		repoProjects[pb.RepoID] = append(repoProjects[pb.RepoID], pb.ProjectID)
		repoCount[pb.ProjectID]++
	}

	// Commit activity per project and employee.
	type cellKey struct{ projectID, employeeID string }
	commits := make(map[cellKey]float64)
	lines := make(map[cellKey]float64)
	for i := range in.Facts {
		f := &in.Facts[i]
		projects, bound := repoProjects[f.RepoID]
		if !bound {
			continue
		}
		e := res.ResolveFact(f)
		if e == nil || e.EmployeeID == "" {
			continue
		}
		weight := schema.RoleChangeWeight(e.Role)
		for _, projectID := range projects {
			k := cellKey{projectID, e.EmployeeID}
			commits[k] += weight
			lines[k] += weight * float64(f.ChangedLines)
		}
	}
	commitsTotal := make(map[string]float64)
	linesTotal := make(map[string]float64)
	top1Commits := make(map[string]float64)
	activeDev := make(map[string]int64)
	for k, v := range commits {
		commitsTotal[k.projectID] += v
		linesTotal[k.projectID] += lines[k]
		activeDev[k.projectID]++
		if v > top1Commits[k.projectID] {
			top1Commits[k.projectID] = v
		}
	}

	// Core-role coverage over all live assignments, dev or not.
	coverage := make(map[string]map[string]bool)
	for _, pr := range in.PersonRoles {
		if !pr.ActiveIn(today, since) {
			continue
		}
		role := normalizeProjectRole(pr.ProjectRole)
		for _, core := range coreRoles {
			if role == core {
				set, ok := coverage[pr.ProjectID]
				if !ok {
					set = make(map[string]bool)
					coverage[pr.ProjectID] = set
				}
				set[core] = true
			}
		}
	}

	out := make([]ProjectActivity, 0, len(in.Projects))
	for _, p := range in.Projects {
		row := ProjectActivity{
			ProjectID:   p.ProjectID,
			ProjectName: p.ProjectName,
			ProjectType: p.ProjectType,
			Status:      p.Status,

			DevHeadcount: headcount[p.ProjectID],
			DevFTESum:    fteSum[p.ProjectID],
			ActiveDev:    activeDev[p.ProjectID],

			WeightedCommitsTotal:      commitsTotal[p.ProjectID],
			WeightedChangedLinesTotal: linesTotal[p.ProjectID],
			RepoCount:                 repoCount[p.ProjectID],
		}
		row.InactiveDev = row.DevHeadcount - row.ActiveDev
		row.ActiveFraction = intFraction(row.ActiveDev, row.DevHeadcount)
		if row.DevHeadcount > 0 {
			row.ActivePct = ptr(algo.Round2(100 * float64(row.ActiveDev) / float64(row.DevHeadcount)))
		}
		if row.DevFTESum > 0 {
			row.CommitsPerFTE = ptr(round3(row.WeightedCommitsTotal / row.DevFTESum))
		}
		if row.WeightedCommitsTotal > 0 {
			row.Top1SharePct = ptr(algo.Round2(100 * top1Commits[p.ProjectID] / row.WeightedCommitsTotal))
		}
		var present []byte
		for _, core := range coreRoles {
			if coverage[p.ProjectID][core] {
				row.CoreRoleCoverageCnt++
				if len(present) > 0 {
					present = append(present, ',')
				}
				present = append(present, core...)
			}
		}
		row.CoreRolesPresent = string(present)
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		ap, bp := pctOrNeg(a.ActivePct), pctOrNeg(b.ActivePct)
		if ap != bp {
			return ap > bp
		}
		if a.WeightedCommitsTotal != b.WeightedCommitsTotal {
			return a.WeightedCommitsTotal > b.WeightedCommitsTotal
		}
		if a.DevHeadcount != b.DevHeadcount {
			return a.DevHeadcount > b.DevHeadcount
		}
		return a.ProjectID < b.ProjectID
	})
	return out
}

func normalizeProjectRole(role string) string {
	out := make([]byte, 0, len(role))
	for i := 0; i < len(role); i++ {
		c := role[i]
		if c == ' ' || c == '\t' {
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func intFraction(num, den int64) string {
	return strconv.FormatInt(num, 10) + "/" + strconv.FormatInt(den, 10)
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

func pctOrNeg(p *float64) float64 {
	if p == nil {
		return -1
	}
	return *p
}

func ptr(v float64) *float64 { return &v }
