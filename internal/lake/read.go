package lake

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/clifelab/devpulse/schema"
)

// Repos loads the repo dimension with its department assignment joined in.
func (s *Store) Repos() ([]schema.Repo, error) {
	rows, err := s.db.Query(`SELECT r.repo_id, r.repo_name,
		COALESCE(e.department_level2_name, ''), COALESCE(e.department_level3_name, ''),
		COALESCE(r.raw, '')
		FROM ` + reposTable + ` r
		LEFT JOIN ` + repoEnrichTable + ` e ON e.repo_id = r.repo_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Repo
	for rows.Next() {
		var r schema.Repo
		var raw string
		if err := rows.Scan(&r.RepoID, &r.RepoName,
			&r.DepartmentLevel2Name, &r.DepartmentLevel3Name, &raw); err != nil {
			return nil, err
		}
		r.Raw = json.RawMessage(raw)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Members loads the member dimension across all repos.
func (s *Store) Members() ([]schema.Member, error) {
	rows, err := s.db.Query(`SELECT repo_id, member_key,
		COALESCE(user_id, ''), COALESCE(username, ''), COALESCE(email, ''),
		COALESCE(full_name, ''), COALESCE(raw, '') FROM ` + membersTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Member
	for rows.Next() {
		var m schema.Member
		var raw string
		if err := rows.Scan(&m.RepoID, &m.MemberKey, &m.UserID,
			&m.Username, &m.Email, &m.FullName, &raw); err != nil {
			return nil, err
		}
		m.Raw = json.RawMessage(raw)
		out = append(out, m)
	}
	return out, rows.Err()
}

// TopContributors loads the top-activity listings across all repos.
func (s *Store) TopContributors() ([]schema.TopContributor, error) {
	rows, err := s.db.Query(`SELECT repo_id, COALESCE(user_id, ''), username,
		contributions, COALESCE(raw, '') FROM ` + contributorsTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.TopContributor
	for rows.Next() {
		var c schema.TopContributor
		var raw string
		if err := rows.Scan(&c.RepoID, &c.UserID, &c.Username, &c.Contributions, &raw); err != nil {
			return nil, err
		}
		c.Raw = json.RawMessage(raw)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Commits loads every raw commit with committed_at at or after since. Rows
// without a parseable timestamp are excluded; they can never land in a window.
func (s *Store) Commits(since time.Time) ([]schema.RawCommit, error) {
	rows, err := s.db.Query(s.rebind(`SELECT repo_id, sha,
		COALESCE(author_user_id, ''), COALESCE(author_username, ''),
		COALESCE(author_email, ''), committed_at, additions, deletions,
		COALESCE(raw, '')
		FROM `+commitsTable+` WHERE committed_at >= ?`), formatTime(since))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.RawCommit
	for rows.Next() {
		var c schema.RawCommit
		var committedAt sql.NullString
		var raw string
		if err := rows.Scan(&c.RepoID, &c.SHA, &c.AuthorUserID,
			&c.AuthorUsername, &c.AuthorEmail, &committedAt,
			&c.Additions, &c.Deletions, &raw); err != nil {
			return nil, err
		}
		if committedAt.Valid {
			t, err := parseTime(committedAt.String)
			if err != nil {
				return nil, err
			}
			c.CommittedAt = &t
		}
		c.Raw = json.RawMessage(raw)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CommitStats loads all diff stats keyed by (repo, sha).
func (s *Store) CommitStats() (map[schema.CommitKey]schema.CommitStat, error) {
	rows, err := s.db.Query(`SELECT repo_id, sha, COALESCE(base_sha, ''),
		additions, deletions, is_merge FROM ` + commitStatsTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[schema.CommitKey]schema.CommitStat)
	for rows.Next() {
		var st schema.CommitStat
		var merge int
		if err := rows.Scan(&st.RepoID, &st.SHA, &st.BaseSHA,
			&st.Additions, &st.Deletions, &merge); err != nil {
			return nil, err
		}
		st.IsMerge = merge != 0
		out[schema.CommitKey{RepoID: st.RepoID, SHA: st.SHA}] = st
	}
	return out, rows.Err()
}

// Enrichment loads the imported roster rows.
func (s *Store) Enrichment() ([]schema.EnrichmentRow, error) {
	rows, err := s.db.Query(`SELECT member_key,
		COALESCE(username, ''), COALESCE(email, ''), COALESCE(full_name, ''),
		COALESCE(employee_id, ''), COALESCE(role, ''), COALESCE(employee_type, ''),
		COALESCE(position, ''), COALESCE(in_date, ''), COALESCE(gender, ''),
		COALESCE(age, 0), COALESCE(years_of_service, 0),
		COALESCE(job_sequence, ''), COALESCE(job_rank, ''), COALESCE(line_manager, ''),
		COALESCE(education_level, ''), COALESCE(college, ''), COALESCE(major, ''),
		COALESCE(department_level1_name, ''), COALESCE(department_level2_id, ''),
		COALESCE(department_level2_name, ''), COALESCE(department_level3_id, ''),
		COALESCE(department_level3_name, '')
		FROM ` + enrichmentTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.EnrichmentRow
	for rows.Next() {
		var r schema.EnrichmentRow
		if err := rows.Scan(&r.MemberKey, &r.Username, &r.Email, &r.FullName,
			&r.EmployeeID, &r.Role, &r.EmployeeType, &r.Position, &r.InDate,
			&r.Gender, &r.Age, &r.YearsOfService, &r.JobSequence, &r.JobRank,
			&r.LineManager, &r.EducationLevel, &r.College, &r.Major,
			&r.DepartmentLevel1Name, &r.DepartmentLevel2ID, &r.DepartmentLevel2Name,
			&r.DepartmentLevel3ID, &r.DepartmentLevel3Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RepoEnrichment loads the repo department assignments.
func (s *Store) RepoEnrichment() ([]schema.RepoEnrichment, error) {
	rows, err := s.db.Query(`SELECT repo_id,
		COALESCE(department_level2_id, ''), COALESCE(department_level2_name, ''),
		COALESCE(department_level3_id, ''), COALESCE(department_level3_name, '')
		FROM ` + repoEnrichTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.RepoEnrichment
	for rows.Next() {
		var r schema.RepoEnrichment
		if err := rows.Scan(&r.RepoID, &r.DepartmentLevel2ID, &r.DepartmentLevel2Name,
			&r.DepartmentLevel3ID, &r.DepartmentLevel3Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Identities loads the normalized identity bindings.
func (s *Store) Identities() ([]schema.Identity, error) {
	rows, err := s.db.Query(`SELECT kind, value, employee_id FROM ` + identitiesTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Identity
	for rows.Next() {
		var id schema.Identity
		if err := rows.Scan(&id.Kind, &id.Value, &id.EmployeeID); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Projects loads the project dimension.
func (s *Store) Projects() ([]schema.Project, error) {
	rows, err := s.db.Query(`SELECT project_id, project_name,
		COALESCE(project_type, ''), COALESCE(status, '') FROM ` + projectsTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.Project
	for rows.Next() {
		var p schema.Project
		if err := rows.Scan(&p.ProjectID, &p.ProjectName, &p.ProjectType, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectRoles loads the project assignments.
func (s *Store) ProjectRoles() ([]schema.ProjectPersonRole, error) {
	rows, err := s.db.Query(`SELECT project_id, employee_id, project_role,
		allocation, start_at, COALESCE(end_at, '') FROM ` + projectRolesTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.ProjectPersonRole
	for rows.Next() {
		var r schema.ProjectPersonRole
		if err := rows.Scan(&r.ProjectID, &r.EmployeeID, &r.ProjectRole,
			&r.Allocation, &r.StartAt, &r.EndAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProjectRepos loads the project repo bindings.
func (s *Store) ProjectRepos() ([]schema.ProjectRepo, error) {
	rows, err := s.db.Query(`SELECT project_id, repo_id, start_at,
		COALESCE(end_at, '') FROM ` + projectReposTable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.ProjectRepo
	for rows.Next() {
		var b schema.ProjectRepo
		if err := rows.Scan(&b.ProjectID, &b.RepoID, &b.StartAt, &b.EndAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Status reports row counts per warehouse table and the newest watermark.
func (s *Store) Status() (schema.WarehouseStatus, error) {
	status := schema.WarehouseStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	tables := []string{
		reposTable, membersTable, contributorsTable, commitsTable, commitStatsTable,
		watermarkTable, enrichmentTable, repoEnrichTable, identitiesTable,
		projectsTable, projectRolesTable, projectReposTable,
	}
	for _, table := range tables {
		var n int64
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			return status, err
		}
		status.TableSizes[table] = n
	}

	var last sql.NullString
	err := s.db.QueryRow(`SELECT MAX(updated_at) FROM ` + watermarkTable).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return status, err
	}
	if last.Valid {
		t, err := parseTime(last.String)
		if err != nil {
			return status, err
		}
		status.LastIngestAt = &t
	}
	return status, nil
}
