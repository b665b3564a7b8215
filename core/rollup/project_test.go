package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

func projectEmployee(memberKey, employeeID, role string) schema.Employee {
	return schema.Employee{
		PersonID: employeeID,
		EnrichmentRow: schema.EnrichmentRow{
			MemberKey:  memberKey,
			EmployeeID: employeeID,
			FullName:   "Emp " + employeeID,
			Role:       role,
		},
	}
}

func projectFact(repoID, memberKey string, at time.Time, changed int64) schema.CommitFact {
	return schema.CommitFact{
		RepoID:       repoID,
		SHA:          memberKey + at.Format("20060102150405"),
		MemberKey:    memberKey,
		CommittedAt:  at,
		CommitMonth:  at.Format("2006-01"),
		Additions:    changed,
		ChangedLines: changed,
	}
}

func TestProjectsRollup(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	w := schema.NewWindow(now, 2)

	employees := []schema.Employee{
		projectEmployee("a.a", "E1", "数据开发"),
		projectEmployee("b.b", "E2", "数据开发"),
		projectEmployee("c.c", "E3", "产品经理"), // not a dev role
	}
	in := ProjectActivityInput{
		Projects: []schema.Project{
			{ProjectID: "P1", ProjectName: "结算平台", ProjectType: "产品", Status: "进行中"},
			{ProjectID: "P2", ProjectName: "空项目", ProjectType: "内部", Status: "进行中"},
		},
		PersonRoles: []schema.ProjectPersonRole{
			// Same dev twice; headcount counts once, FTE takes the max.
			{ProjectID: "P1", EmployeeID: "E1", ProjectRole: "po", Allocation: 0.5, StartAt: "2025-01-01"},
			{ProjectID: "P1", EmployeeID: "E1", ProjectRole: "dev", Allocation: 0.3, StartAt: "2025-01-01"},
			// Blank allocation defaults to 1.
			{ProjectID: "P1", EmployeeID: "E2", ProjectRole: "dev", StartAt: "2025-01-01"},
			// Non-dev assignment still counts for role coverage.
			{ProjectID: "P1", EmployeeID: "E3", ProjectRole: " tl ", Allocation: 1, StartAt: "2025-01-01"},
			// Ended before the window opened.
			{ProjectID: "P1", EmployeeID: "E2", ProjectRole: "sm", StartAt: "2024-01-01", EndAt: "2024-06-30"},
			// Starts in the future.
			{ProjectID: "P2", EmployeeID: "E1", ProjectRole: "dev", StartAt: "2025-12-01"},
		},
		ProjectRepo: []schema.ProjectRepo{
			{ProjectID: "P1", RepoID: "r1", StartAt: "2025-01-01"},
			{ProjectID: "P1", RepoID: "r1", StartAt: "2025-01-01"}, // duplicate binding
			{ProjectID: "P1", RepoID: "r2", StartAt: "2024-01-01", EndAt: "2024-06-30"},
		},
		Employees: employees,
		Facts: []schema.CommitFact{
			projectFact("r1", "a.a", now.Add(-24*time.Hour), 100),
			projectFact("r1", "a.a", now.Add(-25*time.Hour), 100),
			projectFact("r1", "a.a", now.Add(-26*time.Hour), 100),
			projectFact("r2", "b.b", now.Add(-24*time.Hour), 100), // repo no longer bound
			projectFact("r1", "nobody", now.Add(-24*time.Hour), 100),
		},
	}

	out := Projects(in, w, now)
	require.Len(t, out, 2)
	// P1 has a pct, P2 does not; nil sorts last.
	p1, p2 := out[0], out[1]
	require.Equal(t, "P1", p1.ProjectID)
	require.Equal(t, "P2", p2.ProjectID)

	assert.Equal(t, int64(2), p1.DevHeadcount)
	assert.InDelta(t, 1.5, p1.DevFTESum, 1e-9)
	assert.Equal(t, int64(1), p1.ActiveDev)
	assert.Equal(t, int64(1), p1.InactiveDev)
	assert.Equal(t, "1/2", p1.ActiveFraction)
	require.NotNil(t, p1.ActivePct)
	assert.InDelta(t, 50.0, *p1.ActivePct, 1e-9)

	// Three commits at the 数据开发 weight of 1.8.
	assert.InDelta(t, 5.4, p1.WeightedCommitsTotal, 1e-9)
	assert.InDelta(t, 540.0, p1.WeightedChangedLinesTotal, 1e-9)
	require.NotNil(t, p1.CommitsPerFTE)
	assert.InDelta(t, 3.6, *p1.CommitsPerFTE, 1e-9)
	require.NotNil(t, p1.Top1SharePct)
	assert.InDelta(t, 100.0, *p1.Top1SharePct, 1e-9)

	assert.Equal(t, int64(1), p1.RepoCount)
	assert.Equal(t, int64(2), p1.CoreRoleCoverageCnt)
	assert.Equal(t, "PO,TL", p1.CoreRolesPresent)

	assert.Equal(t, int64(0), p2.DevHeadcount)
	assert.Nil(t, p2.ActivePct)
	assert.Nil(t, p2.CommitsPerFTE)
	assert.Nil(t, p2.Top1SharePct)
	assert.Equal(t, "0/0", p2.ActiveFraction)
	assert.Empty(t, p2.CoreRolesPresent)
}

func TestProjectsSortOrder(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	w := schema.NewWindow(now, 2)

	in := ProjectActivityInput{
		Projects: []schema.Project{
			{ProjectID: "P1"}, {ProjectID: "P2"}, {ProjectID: "P3"},
		},
		PersonRoles: []schema.ProjectPersonRole{
			{ProjectID: "P1", EmployeeID: "E1", ProjectRole: "dev", StartAt: "2025-01-01"},
			{ProjectID: "P2", EmployeeID: "E2", ProjectRole: "dev", StartAt: "2025-01-01"},
			{ProjectID: "P3", EmployeeID: "E3", ProjectRole: "dev", StartAt: "2025-01-01"},
		},
		ProjectRepo: []schema.ProjectRepo{
			{ProjectID: "P1", RepoID: "r1", StartAt: "2025-01-01"},
			{ProjectID: "P2", RepoID: "r2", StartAt: "2025-01-01"},
		},
		Employees: []schema.Employee{
			projectEmployee("a.a", "E1", "数据开发"),
			projectEmployee("b.b", "E2", "数据开发"),
			projectEmployee("c.c", "E3", "数据开发"),
		},
		Facts: []schema.CommitFact{
			projectFact("r1", "a.a", now.Add(-24*time.Hour), 10),
			projectFact("r2", "b.b", now.Add(-24*time.Hour), 10),
			projectFact("r2", "b.b", now.Add(-25*time.Hour), 10),
		},
	}

	out := Projects(in, w, now)
	require.Len(t, out, 3)
	// P1 and P2 tie at 100% active; P2 wins on weighted commits. P3 has
	// no activity and sorts last.
	assert.Equal(t, "P2", out[0].ProjectID)
	assert.Equal(t, "P1", out[1].ProjectID)
	assert.Equal(t, "P3", out[2].ProjectID)
}
