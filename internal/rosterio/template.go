package rosterio

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/clifelab/devpulse/schema"
)

// memberTemplateHeader is the fixed column order of the member workbook.
// Imports match columns by name, but exporting in one stable order keeps
// diffs between template generations readable.
var memberTemplateHeader = []string{
	"member_key",
	"username",
	"email",
	"full_name",
	"department_level2_id",
	"department_level2_name",
	"department_level3_id",
	"department_level3_name",
	"role",
	"employee_id",
	"employee_type",
	"department_level1_name",
	"position",
	"in_date",
	"gender",
	"age",
	"years_of_service",
	"job_sequence",
	"job_rank",
	"line_manager",
	"education_level",
	"college",
	"major",
	"role_options",
}

var repoTemplateHeader = []string{
	"repo_id",
	"repo_name",
	"department_level2_id",
	"department_level2_name",
	"department_level3_id",
	"department_level3_name",
}

// roleOptionsCell is the candidate list users paste into a spreadsheet data
// validation rule. CSV itself cannot carry a dropdown.
func roleOptionsCell() string {
	return strings.Join(schema.RoleOptions, " | ")
}

// WriteMemberTemplate exports the member workbook: one row per member key
// seen in the warehouse, pre-filled from the current enrichment unless blank
// is set.
func WriteMemberTemplate(w io.Writer, members []schema.Member, existing []schema.EnrichmentRow, blank bool) error {
	byKey := make(map[string]schema.Member)
	for _, m := range members {
		if m.MemberKey == "" {
			continue
		}
		prev, ok := byKey[m.MemberKey]
		if !ok {
			byKey[m.MemberKey] = m
			continue
		}
		// Per-repo rows can disagree on optional fields; keep the first
		// non-empty value of each.
		if prev.Username == "" {
			prev.Username = m.Username
		}
		if prev.Email == "" {
			prev.Email = m.Email
		}
		byKey[m.MemberKey] = prev
	}

	enrich := make(map[string]schema.EnrichmentRow, len(existing))
	for _, r := range existing {
		enrich[r.MemberKey] = r
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	if err := cw.Write(memberTemplateHeader); err != nil {
		return err
	}
	options := roleOptionsCell()
	for _, key := range keys {
		m := byKey[key]
		var e schema.EnrichmentRow
		if !blank {
			e = enrich[key]
		}
		row := []string{
			key,
			m.Username,
			m.Email,
			e.FullName,
			e.DepartmentLevel2ID,
			e.DepartmentLevel2Name,
			e.DepartmentLevel3ID,
			e.DepartmentLevel3Name,
			e.Role,
			e.EmployeeID,
			e.EmployeeType,
			e.DepartmentLevel1Name,
			e.Position,
			e.InDate,
			e.Gender,
			formatInt(e.Age),
			formatFloat(e.YearsOfService),
			e.JobSequence,
			e.JobRank,
			e.LineManager,
			e.EducationLevel,
			e.College,
			e.Major,
			options,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRepoTemplate exports the repo workbook with the current department
// assignments, unless blank is set.
func WriteRepoTemplate(w io.Writer, repos []schema.Repo, existing []schema.RepoEnrichment, blank bool) error {
	enrich := make(map[string]schema.RepoEnrichment, len(existing))
	for _, r := range existing {
		enrich[r.RepoID] = r
	}

	sorted := make([]schema.Repo, len(repos))
	copy(sorted, repos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RepoID < sorted[j].RepoID })

	cw := csv.NewWriter(w)
	if err := cw.Write(repoTemplateHeader); err != nil {
		return err
	}
	for _, r := range sorted {
		var e schema.RepoEnrichment
		if !blank {
			e = enrich[r.RepoID]
		}
		row := []string{
			r.RepoID,
			r.RepoName,
			e.DepartmentLevel2ID,
			e.DepartmentLevel2Name,
			e.DepartmentLevel3ID,
			e.DepartmentLevel3Name,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Unset numerics export as blank cells, not zeros, so a re-import does not
// turn "unknown" into 0.
func formatInt(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(int64(v), 10)
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
