package lake

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/clifelab/devpulse/schema"
)

// ReplaceRepos swaps the repo dimension for the given rows in one
// transaction.
func (s *Store) ReplaceRepos(repos []schema.Repo) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ` + reposTable); err != nil {
			return err
		}
		q := s.rebind(`INSERT INTO ` + reposTable + `
			(repo_id, repo_name, raw)
			VALUES (?, ?, ?)`)
		for i := range repos {
			r := &repos[i]
			if _, err := tx.Exec(q, r.RepoID, r.RepoName, string(r.Raw)); err != nil {
				return fmt.Errorf("repo %s: %w", r.RepoID, err)
			}
		}
		return nil
	})
}

// ReplaceMembers swaps the member rows of one repo.
func (s *Store) ReplaceMembers(repoID string, members []schema.Member) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(s.rebind(`DELETE FROM `+membersTable+` WHERE repo_id = ?`), repoID); err != nil {
			return err
		}
		q := s.rebind(`INSERT INTO ` + membersTable + `
			(repo_id, member_key, user_id, username, email, full_name, raw)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		for i := range members {
			m := &members[i]
			if m.MemberKey == "" {
				continue
			}
			if _, err := tx.Exec(q, repoID, m.MemberKey, m.UserID,
				m.Username, m.Email, m.FullName, string(m.Raw)); err != nil {
				return fmt.Errorf("member %s/%s: %w", repoID, m.MemberKey, err)
			}
		}
		return nil
	})
}

// ReplaceTopContributors swaps the top-activity listing of one repo.
func (s *Store) ReplaceTopContributors(repoID string, rows []schema.TopContributor) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(s.rebind(`DELETE FROM `+contributorsTable+` WHERE repo_id = ?`), repoID); err != nil {
			return err
		}
		q := s.rebind(`INSERT INTO ` + contributorsTable + `
			(repo_id, user_id, username, contributions, raw)
			VALUES (?, ?, ?, ?, ?)`)
		seen := make(map[string]struct{}, len(rows))
		for i := range rows {
			r := &rows[i]
			if r.Username == "" {
				continue
			}
			if _, ok := seen[r.Username]; ok {
				continue
			}
			seen[r.Username] = struct{}{}
			if _, err := tx.Exec(q, repoID, r.UserID, r.Username,
				r.Contributions, string(r.Raw)); err != nil {
				return fmt.Errorf("contributor %s/%s: %w", repoID, r.Username, err)
			}
		}
		return nil
	})
}

// InsertCommits appends new commits for a repo, skipping shas already in the
// warehouse. The overlap re-fetch around the watermark makes duplicates
// routine, not an error. Returns the number of rows actually written.
func (s *Store) InsertCommits(repoID string, commits []schema.RawCommit) (int, error) {
	existing, err := s.commitSHAs(repoID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = s.inTx(func(tx *sql.Tx) error {
		q := s.rebind(`INSERT INTO ` + commitsTable + `
			(repo_id, sha, author_user_id, author_username, author_email,
			 committed_at, additions, deletions, raw)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		for i := range commits {
			c := &commits[i]
			if _, ok := existing[c.SHA]; ok {
				continue
			}
			existing[c.SHA] = struct{}{}
			var committedAt any
			if c.CommittedAt != nil {
				committedAt = formatTime(*c.CommittedAt)
			}
			if _, err := tx.Exec(q, repoID, c.SHA, c.AuthorUserID,
				c.AuthorUsername, c.AuthorEmail, committedAt,
				c.Additions, c.Deletions, string(c.Raw)); err != nil {
				return fmt.Errorf("commit %s/%s: %w", repoID, c.SHA, err)
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}

func (s *Store) commitSHAs(repoID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(s.rebind(`SELECT sha FROM `+commitsTable+` WHERE repo_id = ?`), repoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	shas := make(map[string]struct{})
	for rows.Next() {
		var sha string
		if err := rows.Scan(&sha); err != nil {
			return nil, err
		}
		shas[sha] = struct{}{}
	}
	return shas, rows.Err()
}

// UpsertCommitStats writes diff stats, replacing earlier rows for the same
// (repo, sha).
func (s *Store) UpsertCommitStats(stats []schema.CommitStat) error {
	return s.inTx(func(tx *sql.Tx) error {
		del := s.rebind(`DELETE FROM ` + commitStatsTable + ` WHERE repo_id = ? AND sha = ?`)
		ins := s.rebind(`INSERT INTO ` + commitStatsTable + `
			(repo_id, sha, base_sha, additions, deletions, is_merge)
			VALUES (?, ?, ?, ?, ?, ?)`)
		for i := range stats {
			st := &stats[i]
			if _, err := tx.Exec(del, st.RepoID, st.SHA); err != nil {
				return err
			}
			merge := 0
			if st.IsMerge {
				merge = 1
			}
			if _, err := tx.Exec(ins, st.RepoID, st.SHA, st.BaseSHA,
				st.Additions, st.Deletions, merge); err != nil {
				return fmt.Errorf("stat %s/%s: %w", st.RepoID, st.SHA, err)
			}
		}
		return nil
	})
}

// Watermark returns the newest committed_at ever ingested for a repo, or the
// zero time when the repo has none.
func (s *Store) Watermark(repoID string) (time.Time, error) {
	var v string
	err := s.db.QueryRow(
		s.rebind(`SELECT last_committed_at FROM `+watermarkTable+` WHERE repo_id = ?`),
		repoID).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(v)
}

// SetWatermark advances a repo watermark. Callers only do this after the
// commits behind it were written, so a crash re-fetches rather than skips.
func (s *Store) SetWatermark(repoID string, lastCommittedAt, now time.Time) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(s.rebind(`DELETE FROM `+watermarkTable+` WHERE repo_id = ?`), repoID); err != nil {
			return err
		}
		_, err := tx.Exec(s.rebind(`INSERT INTO `+watermarkTable+
			` (repo_id, last_committed_at, updated_at) VALUES (?, ?, ?)`),
			repoID, formatTime(lastCommittedAt), formatTime(now))
		return err
	})
}

// ReplaceRoster swaps the enrichment rows and the identity bindings together.
// Imports are all-or-nothing; a failed row leaves the previous roster intact.
func (s *Store) ReplaceRoster(rows []schema.EnrichmentRow, identities []schema.Identity) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ` + enrichmentTable); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM ` + identitiesTable); err != nil {
			return err
		}
		q := s.rebind(`INSERT INTO ` + enrichmentTable + `
			(member_key, username, email, full_name, employee_id, role,
			 employee_type, position, in_date, gender, age, years_of_service,
			 job_sequence, job_rank, line_manager, education_level, college, major,
			 department_level1_name, department_level2_id, department_level2_name,
			 department_level3_id, department_level3_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		for i := range rows {
			r := &rows[i]
			if _, err := tx.Exec(q, r.MemberKey, r.Username, r.Email, r.FullName,
				r.EmployeeID, r.Role, r.EmployeeType, r.Position, r.InDate,
				r.Gender, r.Age, r.YearsOfService, r.JobSequence, r.JobRank,
				r.LineManager, r.EducationLevel, r.College, r.Major,
				r.DepartmentLevel1Name, r.DepartmentLevel2ID, r.DepartmentLevel2Name,
				r.DepartmentLevel3ID, r.DepartmentLevel3Name); err != nil {
				return fmt.Errorf("enrichment %s: %w", r.MemberKey, err)
			}
		}
		iq := s.rebind(`INSERT INTO ` + identitiesTable + ` (kind, value, employee_id) VALUES (?, ?, ?)`)
		for _, id := range identities {
			if _, err := tx.Exec(iq, id.Kind, id.Value, id.EmployeeID); err != nil {
				return fmt.Errorf("identity %s:%s: %w", id.Kind, id.Value, err)
			}
		}
		return nil
	})
}

// ReplaceRepoEnrichment swaps the repo department assignments.
func (s *Store) ReplaceRepoEnrichment(rows []schema.RepoEnrichment) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ` + repoEnrichTable); err != nil {
			return err
		}
		q := s.rebind(`INSERT INTO ` + repoEnrichTable + `
			(repo_id, department_level2_id, department_level2_name,
			 department_level3_id, department_level3_name)
			VALUES (?, ?, ?, ?, ?)`)
		for i := range rows {
			r := &rows[i]
			if _, err := tx.Exec(q, r.RepoID,
				r.DepartmentLevel2ID, r.DepartmentLevel2Name,
				r.DepartmentLevel3ID, r.DepartmentLevel3Name); err != nil {
				return fmt.Errorf("repo enrichment %s: %w", r.RepoID, err)
			}
		}
		return nil
	})
}

// ReplaceProjects swaps the project dimension, assignments and repo bindings
// together.
func (s *Store) ReplaceProjects(projects []schema.Project, roles []schema.ProjectPersonRole, repos []schema.ProjectRepo) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, table := range []string{projectsTable, projectRolesTable, projectReposTable} {
			if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
				return err
			}
		}
		pq := s.rebind(`INSERT INTO ` + projectsTable +
			` (project_id, project_name, project_type, status) VALUES (?, ?, ?, ?)`)
		for _, p := range projects {
			if _, err := tx.Exec(pq, p.ProjectID, p.ProjectName, p.ProjectType, p.Status); err != nil {
				return fmt.Errorf("project %s: %w", p.ProjectID, err)
			}
		}
		rq := s.rebind(`INSERT INTO ` + projectRolesTable + `
			(project_id, employee_id, project_role, allocation, start_at, end_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		for _, r := range roles {
			if _, err := tx.Exec(rq, r.ProjectID, r.EmployeeID, r.ProjectRole,
				r.Allocation, r.StartAt, r.EndAt); err != nil {
				return fmt.Errorf("project role %s/%s: %w", r.ProjectID, r.EmployeeID, err)
			}
		}
		bq := s.rebind(`INSERT INTO ` + projectReposTable +
			` (project_id, repo_id, start_at, end_at) VALUES (?, ?, ?, ?)`)
		for _, b := range repos {
			if _, err := tx.Exec(bq, b.ProjectID, b.RepoID, b.StartAt, b.EndAt); err != nil {
				return fmt.Errorf("project repo %s/%s: %w", b.ProjectID, b.RepoID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
