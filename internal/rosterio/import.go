package rosterio

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/clifelab/devpulse/schema"
)

// Existing is the warehouse state an import merges into and validates
// against.
type Existing struct {
	Enrichment     []schema.EnrichmentRow
	RepoEnrichment []schema.RepoEnrichment
}

// Result is the full replacement state staged by a clean import: the merged
// enrichment rows, the identity bindings derived from them, and the repo
// department assignments. Rows that the workbook did not touch carry over
// unchanged, so writing the result replaces the tables without losing
// anything.
type Result struct {
	Rows       []schema.EnrichmentRow
	Identities []schema.Identity
	RepoRows   []schema.RepoEnrichment
	Stats      Stats
}

// Import validates and stages a member and/or repo workbook. Row-level
// problems come back as issues and reject the whole batch; only structural
// problems (unreadable file, missing required column) are errors. Blank
// cells preserve the existing value of the field, so a round-tripped
// template with untouched cells is a no-op.
func Import(memberCSV, repoCSV io.Reader, existing Existing) (Result, []ImportIssue, error) {
	im := newImporter(existing)

	if memberCSV != nil {
		recs, err := readRecords(memberCSV, "member", "member_key")
		if err != nil {
			return Result{}, nil, err
		}
		im.stageMembers(recs)
	}
	if repoCSV != nil {
		recs, err := readRecords(repoCSV, "repo", "repo_id")
		if err != nil {
			return Result{}, nil, err
		}
		im.stageRepos(recs)
	}
	im.bindIdentities()

	if len(im.issues) > 0 {
		return Result{Stats: im.stats}, im.issues, nil
	}
	return im.result(), nil, nil
}

type importer struct {
	issues []ImportIssue
	stats  Stats

	rows  map[string]schema.EnrichmentRow
	repos map[string]schema.RepoEnrichment
	ids   []schema.Identity

	// Department name to id maps. "existing" holds what the warehouse
	// already knows; "seen" holds what this import minted, to catch the
	// same name arriving with two different ids in one file.
	dept2Existing map[string]string
	dept3Existing map[string]string
	dept2Seen     map[string]string
	dept3Seen     map[string]string
}

func newImporter(existing Existing) *importer {
	im := &importer{
		rows:          make(map[string]schema.EnrichmentRow, len(existing.Enrichment)),
		repos:         make(map[string]schema.RepoEnrichment, len(existing.RepoEnrichment)),
		dept2Existing: make(map[string]string),
		dept3Existing: make(map[string]string),
		dept2Seen:     make(map[string]string),
		dept3Seen:     make(map[string]string),
	}
	for _, r := range existing.Enrichment {
		im.rows[r.MemberKey] = r
		im.learnDepts(r.DepartmentLevel2ID, r.DepartmentLevel2Name,
			r.DepartmentLevel3ID, r.DepartmentLevel3Name)
	}
	for _, r := range existing.RepoEnrichment {
		im.repos[r.RepoID] = r
		im.learnDepts(r.DepartmentLevel2ID, r.DepartmentLevel2Name,
			r.DepartmentLevel3ID, r.DepartmentLevel3Name)
	}
	return im
}

func (im *importer) learnDepts(d2id, d2name, d3id, d3name string) {
	if d2id != "" && d2name != "" {
		im.dept2Existing[normKey(d2name)] = d2id
	}
	if d2id != "" && d3id != "" && d3name != "" {
		im.dept3Existing[dept3Key(d2id, d3name)] = d3id
	}
}

func dept3Key(d2id, name string) string {
	return d2id + "\x1f" + normKey(name)
}

func (im *importer) stageMembers(recs []record) {
	for _, rec := range recs {
		rawKey := rec.get("member_key")
		if rawKey == "" {
			// HR exports often arrive with the key column not yet
			// filled; dropping those rows beats aborting the import.
			im.stats.SkippedNoMemberKey++
			continue
		}
		key := normKey(rawKey)
		if strings.HasPrefix(key, schema.DummyKeyPrefix) {
			im.stats.DummyMemberKeys++
		}

		row, ok := im.rows[key]
		if !ok {
			row = schema.EnrichmentRow{MemberKey: key}
		}
		setIfPresent(&row.Username, rec.get("username"))
		setIfPresent(&row.Email, rec.get("email"))
		setIfPresent(&row.FullName, rec.get("full_name"))
		setIfPresent(&row.EmployeeID, rec.get("employee_id"))
		setIfPresent(&row.EmployeeType, rec.get("employee_type"))
		setIfPresent(&row.Position, rec.get("position"))
		setIfPresent(&row.InDate, rec.get("in_date"))
		setIfPresent(&row.Gender, rec.get("gender"))
		setIfPresent(&row.JobSequence, rec.get("job_sequence"))
		setIfPresent(&row.JobRank, rec.get("job_rank"))
		setIfPresent(&row.LineManager, rec.get("line_manager"))
		setIfPresent(&row.EducationLevel, rec.get("education_level"))
		setIfPresent(&row.College, rec.get("college"))
		setIfPresent(&row.Major, rec.get("major"))
		setIfPresent(&row.DepartmentLevel1Name, rec.get("department_level1_name"))

		if raw := rec.get("role"); raw != "" {
			if canonical := schema.CanonicalRole(raw); canonical != "" {
				row.Role = canonical
			} else {
				im.issue("member", rec.row, key, "role",
					fmt.Sprintf("invalid role %q (allowed: %s)", raw, strings.Join(schema.RoleOptions, ", ")))
			}
		}
		if raw := rec.get("age"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err != nil {
				im.issue("member", rec.row, key, "age", fmt.Sprintf("invalid int %q", raw))
			} else {
				row.Age = float64(int64(v))
			}
		}
		if raw := rec.get("years_of_service"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err != nil {
				im.issue("member", rec.row, key, "years_of_service", fmt.Sprintf("invalid float %q", raw))
			} else {
				row.YearsOfService = v
			}
		}

		d2id, d2name, d3id, d3name := im.stageDepts("member", rec, key)
		if d2id != "" {
			row.DepartmentLevel2ID = d2id
		}
		if d2name != "" {
			row.DepartmentLevel2Name = d2name
		}
		if d3id != "" {
			row.DepartmentLevel3ID = d3id
		}
		if d3name != "" {
			row.DepartmentLevel3Name = d3name
		}

		im.rows[key] = row
		im.stats.MemberRows++
	}
}

func (im *importer) stageRepos(recs []record) {
	for _, rec := range recs {
		repoID := rec.get("repo_id")
		if repoID == "" {
			im.issue("repo", rec.row, "", "repo_id", "missing repo_id")
			continue
		}

		row, ok := im.repos[repoID]
		if !ok {
			row = schema.RepoEnrichment{RepoID: repoID}
		}
		d2id, d2name, d3id, d3name := im.stageDepts("repo", rec, repoID)
		if d2id != "" {
			row.DepartmentLevel2ID = d2id
		}
		if d2name != "" {
			row.DepartmentLevel2Name = d2name
		}
		if d3id != "" {
			row.DepartmentLevel3ID = d3id
		}
		if d3name != "" {
			row.DepartmentLevel3Name = d3name
		}

		im.repos[repoID] = row
		im.stats.RepoRows++
	}
}

// stageDepts resolves the four department cells of one row to stable ids,
// minting sha1-derived ids for names the warehouse has not seen. A name that
// already exists under a different id, in the warehouse or earlier in the
// same file, is an issue.
func (im *importer) stageDepts(location string, rec record, key string) (d2id, d2name, d3id, d3name string) {
	d2id = rec.get("department_level2_id")
	d2name = rec.get("department_level2_name")
	d3id = rec.get("department_level3_id")
	d3name = rec.get("department_level3_name")
	if d2id == "" && d2name == "" && d3id == "" && d3name == "" {
		return "", "", "", ""
	}

	if d2id == "" {
		if d2name == "" {
			im.issue(location, rec.row, key, "department_level2", "missing department level2")
			return "", "", "", ""
		}
		if existing, ok := im.dept2Existing[normKey(d2name)]; ok {
			d2id = existing
		} else {
			d2id = stableID("d2", d2name)
		}
	}
	if d2name != "" {
		norm := normKey(d2name)
		switch {
		case im.dept2Existing[norm] != "" && im.dept2Existing[norm] != d2id:
			im.issue(location, rec.row, key, "department_level2",
				fmt.Sprintf("department_level2_name %q already exists with id=%s", d2name, im.dept2Existing[norm]))
		case im.dept2Seen[norm] != "" && im.dept2Seen[norm] != d2id:
			im.issue(location, rec.row, key, "department_level2",
				fmt.Sprintf("duplicate department_level2_name %q in import (ids: %s vs %s)", d2name, im.dept2Seen[norm], d2id))
		default:
			if im.dept2Seen[norm] == "" && im.dept2Existing[norm] == "" {
				im.stats.DepartmentsLevel2++
			}
			im.dept2Seen[norm] = d2id
		}
	}

	if d3id == "" && d3name == "" {
		return d2id, d2name, "", ""
	}
	if d3id == "" {
		if existing, ok := im.dept3Existing[dept3Key(d2id, d3name)]; ok {
			d3id = existing
		} else {
			d3id = stableID("d3", d2id, d3name)
		}
	}
	if d3name != "" {
		k3 := dept3Key(d2id, d3name)
		switch {
		case im.dept3Existing[k3] != "" && im.dept3Existing[k3] != d3id:
			im.issue(location, rec.row, key, "department_level3",
				fmt.Sprintf("department_level3_name %q already exists under %s with id=%s", d3name, d2id, im.dept3Existing[k3]))
		case im.dept3Seen[k3] != "" && im.dept3Seen[k3] != d3id:
			im.issue(location, rec.row, key, "department_level3",
				fmt.Sprintf("duplicate department_level3_name %q under %s in import (ids: %s vs %s)", d3name, d2id, im.dept3Seen[k3], d3id))
		default:
			if im.dept3Seen[k3] == "" && im.dept3Existing[k3] == "" {
				im.stats.DepartmentsLevel3++
			}
			im.dept3Seen[k3] = d3id
		}
	}
	return d2id, d2name, d3id, d3name
}

// bindIdentities derives the identity table from the merged rows: every
// email and username of a row with an employee id binds to that id. One
// normalized value binding to two different employee ids is an issue.
func (im *importer) bindIdentities() {
	seen := make(map[string]string)

	keys := make([]string, 0, len(im.rows))
	for k := range im.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		row := im.rows[key]
		eid := strings.TrimSpace(row.EmployeeID)
		if eid == "" {
			continue
		}
		for _, id := range []schema.Identity{
			{Kind: schema.IdentityKindEmail, Value: normKey(row.Email), EmployeeID: eid},
			{Kind: schema.IdentityKindUsername, Value: normKey(row.Username), EmployeeID: eid},
		} {
			if id.Value == "" {
				continue
			}
			mapKey := id.Kind + "\x1f" + id.Value
			if prev, ok := seen[mapKey]; ok {
				if prev != eid {
					im.issue("identity", 0, id.Value, id.Kind,
						fmt.Sprintf("bound to multiple employee ids (%s vs %s)", prev, eid))
				}
				continue
			}
			seen[mapKey] = eid
			im.ids = append(im.ids, id)
		}
	}
	im.stats.IdentityBindings = len(im.ids)
}

func (im *importer) result() Result {
	res := Result{
		Rows:       make([]schema.EnrichmentRow, 0, len(im.rows)),
		Identities: im.ids,
		RepoRows:   make([]schema.RepoEnrichment, 0, len(im.repos)),
		Stats:      im.stats,
	}
	for _, r := range im.rows {
		res.Rows = append(res.Rows, r)
	}
	sort.Slice(res.Rows, func(i, j int) bool { return res.Rows[i].MemberKey < res.Rows[j].MemberKey })
	for _, r := range im.repos {
		res.RepoRows = append(res.RepoRows, r)
	}
	sort.Slice(res.RepoRows, func(i, j int) bool { return res.RepoRows[i].RepoID < res.RepoRows[j].RepoID })
	return res
}

func (im *importer) issue(location string, row int, key, field, message string) {
	im.issues = append(im.issues, ImportIssue{
		Location: location, Row: row, Key: key, Field: field, Message: message,
	})
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
