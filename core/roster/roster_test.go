package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

func row(memberKey, fullName, employeeID string) schema.EnrichmentRow {
	return schema.EnrichmentRow{MemberKey: memberKey, FullName: fullName, EmployeeID: employeeID}
}

func TestBuildEmployeeFilter(t *testing.T) {
	r := Build([]schema.EnrichmentRow{
		row("zhang.san", "张三", "E100"),
		row("nameless", "", "E200"),
		row("idless", "无工号", ""),
	}, nil, nil)

	assert.Len(t, r.All, 3)
	require.Len(t, r.Employees, 1)
	assert.Equal(t, "zhang.san", r.Employees[0].MemberKey)
	assert.Equal(t, "E100", r.Employees[0].PersonID)
}

func TestBuildPersonIDFallsBackToMemberKey(t *testing.T) {
	r := Build([]schema.EnrichmentRow{row("idless", "无工号", "")}, nil, nil)
	require.Len(t, r.All, 1)
	assert.Equal(t, "idless", r.All[0].PersonID)
	assert.Equal(t, "mk:idless", r.All[0].OneID)
}

func TestBuildOneIDUsesUserID(t *testing.T) {
	members := []schema.Member{
		{RepoID: "r1", MemberKey: "idless", UserID: "42"},
		{RepoID: "r2", MemberKey: "idless", UserID: "42"},
	}
	r := Build([]schema.EnrichmentRow{row("idless", "无工号", "")}, members, nil)
	require.Len(t, r.All, 1)
	assert.Equal(t, "uid:42", r.All[0].OneID)
}

func TestBuildEmployeeIDPropagatesAcrossIdentities(t *testing.T) {
	rows := []schema.EnrichmentRow{
		row("zhang.san", "张三", "E100"),
		row("partner-801495", "张三", ""),
	}
	// Both identities share the hosting account, so they group under one id.
	members := []schema.Member{
		{RepoID: "r1", MemberKey: "zhang.san", UserID: "7"},
		{RepoID: "r1", MemberKey: "partner-801495", UserID: "7"},
	}
	r := Build(rows, members, nil)

	for i := range r.All {
		assert.Equal(t, "E100", r.All[i].EmployeeID, r.All[i].MemberKey)
		assert.Equal(t, "E100", r.All[i].PersonID)
	}
	assert.Len(t, r.Employees, 2)
	require.Len(t, r.People, 1)
}

func TestBuildBindingFillsEmployeeID(t *testing.T) {
	rows := []schema.EnrichmentRow{
		{MemberKey: "li.si", Username: "Li.Si", FullName: "李四"},
		{MemberKey: "wang.wu", Email: "wang.wu@corp.cn", FullName: "王五"},
	}
	ids := []schema.Identity{
		{Kind: schema.IdentityKindUsername, Value: "li.si", EmployeeID: "E300"},
		{Kind: schema.IdentityKindEmail, Value: "wang.wu@corp.cn", EmployeeID: "E400"},
	}
	r := Build(rows, nil, ids)

	require.Len(t, r.Employees, 2)
	assert.Equal(t, "E300", r.All[0].EmployeeID)
	assert.Equal(t, "E400", r.All[1].EmployeeID)
	assert.Equal(t, "E300", r.All[0].PersonID)
}

func TestBuildBindingNeverOverridesEmployeeID(t *testing.T) {
	rows := []schema.EnrichmentRow{
		{MemberKey: "li.si", Username: "li.si", FullName: "李四", EmployeeID: "E300"},
	}
	ids := []schema.Identity{
		{Kind: schema.IdentityKindUsername, Value: "li.si", EmployeeID: "E999"},
	}
	r := Build(rows, nil, ids)
	require.Len(t, r.All, 1)
	assert.Equal(t, "E300", r.All[0].EmployeeID)
}

func TestCanonicalPrefersRealKeyOverDummy(t *testing.T) {
	rows := []schema.EnrichmentRow{
		row("dummy_aaa", "张三", "E100"),
		row("zhang.san", "张三", "E100"),
	}
	r := Build(rows, nil, nil)
	require.Len(t, r.People, 1)
	assert.Equal(t, "zhang.san", r.People[0].MemberKey)
}

func TestCanonicalTieBreaksLexicographically(t *testing.T) {
	rows := []schema.EnrichmentRow{
		row("zhang.san2", "张三", "E100"),
		row("zhang.san", "张三", "E100"),
	}
	r := Build(rows, nil, nil)
	require.Len(t, r.People, 1)
	assert.Equal(t, "zhang.san", r.People[0].MemberKey)
}

func TestPeopleSortedByPersonID(t *testing.T) {
	rows := []schema.EnrichmentRow{
		row("b.dev", "乙", "E200"),
		row("a.dev", "甲", "E100"),
	}
	r := Build(rows, nil, nil)
	require.Len(t, r.People, 2)
	assert.Equal(t, "E100", r.People[0].PersonID)
	assert.Equal(t, "E200", r.People[1].PersonID)
}
