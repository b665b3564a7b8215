package rosterio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

func TestImportProjectsStages(t *testing.T) {
	projectCSV := strings.NewReader(strings.Join([]string{
		"project_id,project_name,project_type,status",
		",结算平台,内部,进行中",
		"billing-v2,计费二期,,",
	}, "\n"))
	repoCSV := strings.NewReader(strings.Join([]string{
		"project_id,project_name,repo_id,start_at,end_at",
		",结算平台,clife/settle-core,2025-01-01,",
		"billing-v2,,clife/billing,2025-03-01,2025-06-30",
	}, "\n"))
	memberCSV := strings.NewReader(strings.Join([]string{
		"project_name,employee_id,project_role,allocation,start_at",
		"结算平台,E1,PO,0.5,2025-01-01",
		"结算平台,E2,,,2025-02-01",
	}, "\n"))

	res, issues, err := ImportProjects(projectCSV, repoCSV, memberCSV, ProjectExisting{})
	require.NoError(t, err)
	require.Empty(t, issues)

	require.Len(t, res.Projects, 2)
	assert.Equal(t, "billing-v2", res.Projects[0].ProjectID)
	derived := res.Projects[1].ProjectID
	assert.True(t, strings.HasPrefix(derived, "p_")) // minted from the name

	require.Len(t, res.Repos, 2)
	assert.Equal(t, derived, res.Repos[1].ProjectID) // bridge resolved by name
	assert.Equal(t, "", res.Repos[1].EndAt)

	require.Len(t, res.Roles, 2)
	assert.Equal(t, "PO", res.Roles[0].ProjectRole)
	assert.Equal(t, 0.5, res.Roles[0].Allocation)
	assert.Equal(t, "member", res.Roles[1].ProjectRole) // defaults
	assert.Equal(t, 1.0, res.Roles[1].Allocation)

	assert.Equal(t, 2, res.Stats.Projects)
	assert.Equal(t, 2, res.Stats.ProjectRepoRows)
	assert.Equal(t, 2, res.Stats.ProjectMemberRows)
}

func TestImportProjectsResolvesFullName(t *testing.T) {
	existing := ProjectExisting{
		Enrichment: []schema.EnrichmentRow{
			{MemberKey: "a.a", FullName: "张三", EmployeeID: "E1"},
			{MemberKey: "b.b", FullName: "重名", EmployeeID: "E2"},
			{MemberKey: "c.c", FullName: "重名", EmployeeID: "E3"},
		},
	}
	memberCSV := strings.NewReader(strings.Join([]string{
		"project_id,full_name,start_at",
		"p1,张三,2025-01-01",
		"p1,重名,2025-01-01",
		"p1,查无此人,2025-01-01",
	}, "\n"))

	res, issues, err := ImportProjects(nil, nil, memberCSV, existing)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0].Message, "ambiguous")
	assert.Contains(t, issues[1].Message, "not found")
	assert.Empty(t, res.Roles)
}

func TestImportProjectsRejectsOverlap(t *testing.T) {
	memberCSV := strings.NewReader(strings.Join([]string{
		"project_id,employee_id,project_role,start_at,end_at",
		"p1,E1,member,2025-01-01,2025-06-30",
		"p1,E1,member,2025-06-01,",
	}, "\n"))

	_, issues, err := ImportProjects(nil, nil, memberCSV, ProjectExisting{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "project_member", issues[0].Location)
	assert.Contains(t, issues[0].Message, "overlapping")

	// Same person, different role: not an overlap.
	memberCSV = strings.NewReader(strings.Join([]string{
		"project_id,employee_id,project_role,start_at,end_at",
		"p1,E1,member,2025-01-01,2025-06-30",
		"p1,E1,PO,2025-06-01,",
	}, "\n"))
	res, issues, err := ImportProjects(nil, nil, memberCSV, ProjectExisting{})
	require.NoError(t, err)
	require.Empty(t, issues)
	assert.Len(t, res.Roles, 2)
}

func TestImportProjectsDateValidation(t *testing.T) {
	repoCSV := strings.NewReader(strings.Join([]string{
		"project_id,repo_id,start_at,end_at",
		"p1,clife/a,2025-06-01,2025-01-01",
		"p1,clife/b,not-a-date,",
		"p1,clife/c,,",
	}, "\n"))

	_, issues, err := ImportProjects(nil, repoCSV, nil, ProjectExisting{})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Contains(t, issues[0].Message, "end_at < start_at")
	assert.Contains(t, issues[1].Message, "invalid start_at")
	assert.Contains(t, issues[2].Message, "missing start_at")
}

func TestImportProjectsAllocationBounds(t *testing.T) {
	memberCSV := strings.NewReader(strings.Join([]string{
		"project_id,employee_id,allocation,start_at",
		"p1,E1,1.5,2025-01-01",
		"p1,E2,0,2025-01-01",
	}, "\n"))

	_, issues, err := ImportProjects(nil, nil, memberCSV, ProjectExisting{})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	for _, is := range issues {
		assert.Equal(t, "allocation", is.Field)
	}
}

func TestImportProjectsMergesExisting(t *testing.T) {
	existing := ProjectExisting{
		Projects: []schema.Project{{ProjectID: "p1", ProjectName: "结算平台", Status: "进行中"}},
		Roles: []schema.ProjectPersonRole{
			{ProjectID: "p1", EmployeeID: "E1", ProjectRole: "member", Allocation: 1, StartAt: "2024-01-01", EndAt: "2024-12-31"},
		},
	}
	projectCSV := strings.NewReader(strings.Join([]string{
		"project_id,project_name,status",
		"p1,结算平台,已结项",
	}, "\n"))
	memberCSV := strings.NewReader(strings.Join([]string{
		"project_name,employee_id,start_at",
		"结算平台,E2,2025-01-01",
	}, "\n"))

	res, issues, err := ImportProjects(projectCSV, nil, memberCSV, existing)
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, res.Projects, 1)
	assert.Equal(t, "已结项", res.Projects[0].Status)
	require.Len(t, res.Roles, 2) // old assignment carried over
}
