package report

import (
	"github.com/clifelab/devpulse/core/facts"
	"github.com/clifelab/devpulse/core/rollup"
	"github.com/clifelab/devpulse/core/scoring"
	"github.com/clifelab/devpulse/schema"
)

// ActiveEmployeeScore is the composite activity ranking over everyone who
// committed in the window.
func (b *Builder) ActiveEmployeeScore() *schema.Report {
	ps := scoring.ScorePersons(b.nonMergeAggregates(), b.in.Window)

	r := schema.NewReport("active-employee-score",
		"employee_id", "person_id", "full_name",
		"department_level2_name", "department_level3_name",
		"role", "line_manager",
		"commit_count", "repo_count",
		"total_changed_lines", "total_weighted_changed_lines",
		"changed_lines_per_commit", "weighted_changed_lines_per_commit",
		"median_changed_lines", "median_weighted_changed_lines",
		"after_hours_ratio", "message_unique_ratio", "top1_repo_share",
		"score_total",
		"score_active", "score_lines_total", "score_lines_p50",
		"score_lines_per_commit", "score_repo_diversity",
		"score_message_quality", "score_integrity",
		"score_after_hours", "score_concentration",
		"suspicious_score")
	for i := range ps {
		p := &ps[i]
		a := &p.Agg
		r.Append(a.EmployeeID, a.PersonID, a.FullName,
			orUnassigned(a.DepartmentLevel2Name), orUnassigned(a.DepartmentLevel3Name),
			a.Role, a.LineManager,
			a.CommitCount, a.RepoCount,
			a.TotalChangedLines, round2(a.TotalWeightedChangedLines),
			round2(a.ChangedLinesPerCommit), round2(a.WeightedChangedLinesPerCommit),
			a.MedianChangedLines, round2(a.MedianWeightedChangedLines),
			round4(a.AfterHoursRatio), round4OrNil(a.MessageUniqueRatio), round4(a.Top1RepoShare),
			p.ScoreTotal,
			round2(p.ScoreActive), round2(p.ScoreLinesTotal), round2(p.ScoreLinesP50),
			round2(p.ScoreLinesPerCommit), round2(p.ScoreRepoDiversity),
			round2(p.ScoreMessageQuality), round2(p.ScoreIntegrity),
			round2(p.ScoreAfterHours), round2(p.ScoreConcentration),
			p.SuspiciousScore)
	}
	return b.limit(r)
}

// SuspiciousCommitters is the anti-fraud ranking: who looks like they are
// farming commit counts, and why.
func (b *Builder) SuspiciousCommitters() *schema.Report {
	rows := scoring.AntiFraud(b.nonMergeAggregates(), b.in.Window)

	r := schema.NewReport("suspicious-committers",
		"employee_id", "person_id", "full_name",
		"department_level2_name", "department_level3_name",
		"role", "line_manager",
		"commit_count", "under_saturated_flag", "repo_count",
		"total_changed_lines", "changed_lines_per_commit", "median_changed_lines",
		"p0_zero", "p2_tiny", "p10_small", "p_balance_high",
		"off_hours_ratio", "top1_repo_share",
		"message_unique_ratio", "top1_message_share",
		"short_message_ratio", "generic_message_ratio",
		"max_commits_10m", "max_commits_1h", "median_inter_commit_seconds",
		"score_total", "score_total_raw",
		"score_tiny", "score_small", "score_zero", "score_burst",
		"score_inter_commit", "score_balance", "score_message",
		"score_single_repo", "score_low_intensity",
		"tags")
	for i := range rows {
		row := &rows[i]
		a := &row.Agg
		r.Append(a.EmployeeID, a.PersonID, a.FullName,
			orUnassigned(a.DepartmentLevel2Name), orUnassigned(a.DepartmentLevel3Name),
			a.Role, a.LineManager,
			a.CommitCount, boolFlag(row.UnderSaturated), a.RepoCount,
			a.TotalChangedLines, round2(a.ChangedLinesPerCommit), a.MedianChangedLines,
			round4(a.P0Zero), round4(a.P2Tiny), round4(a.P10Small), round4(a.PBalanceHigh),
			round4(a.AfterHoursRatio), round4(a.Top1RepoShare),
			round4OrNil(a.MessageUniqueRatio), round4OrNil(a.Top1MessageShare),
			round4(a.ShortMessageRatio), round4(a.GenericMessageRatio),
			a.MaxCommits10m, a.MaxCommits1h, f64OrNil(a.MedianInterCommitSeconds),
			round2(row.ScoreTotal), round2(row.ScoreTotalRaw),
			round2(row.ScoreTiny), round2(row.ScoreSmall), round2(row.ScoreZero), round2(row.ScoreBurst),
			round2(row.ScoreInterCommit), round2(row.ScoreBalance), round2(row.ScoreMessage),
			round2(row.ScoreSingleRepo), round2(row.ScoreLowIntensity),
			row.Tags)
	}
	return b.limit(r)
}

// LineManagerDevActivity is the per-manager team rollup and score.
func (b *Builder) LineManagerDevActivity() *schema.Report {
	devRows := make([]schema.Employee, 0, len(b.in.Roster.Employees))
	for _, e := range b.in.Roster.Employees {
		if schema.IsDevRole(e.Role) {
			devRows = append(devRows, e)
		}
	}
	teams := scoring.ScoreTeams(devRows, b.in.Facts, b.in.Window)

	r := schema.NewReport("line-manager-dev-activity",
		"line_manager",
		"dev_total", "dev_active", "dev_inactive",
		"active_pct", "active_fraction",
		"commits_total", "commits_active_avg", "commits_active_p50", "commits_active_max",
		"top1_commit_share_pct", "commits_per_dev",
		"after_hours_commits_total", "after_hours_commit_share_pct",
		"changed_lines_total", "changed_lines_total_weighted",
		"changed_lines_active_avg", "changed_lines_active_p50", "changed_lines_active_max",
		"changed_lines_per_dev", "changed_lines_per_dev_weighted",
		"department_level2_cnt", "dev_role_cnt", "years_of_service_avg",
		"suspicious_dev_cnt", "suspicious_dev_pct", "suspicious_score_avg",
		"score_integrity",
		"score_total", "score_total_base",
		"score_active", "score_commits_p50", "score_commits_per_dev",
		"score_concentration", "score_after_hours",
		"score_lines_p50", "score_lines_per_dev", "score_lines_total",
		"score_role_cover", "score_dept_focus",
		"tags")
	for i := range teams {
		t := &teams[i]
		r.Append(t.LineManager,
			t.DevTotal, t.DevActive, t.DevInactive,
			round2(t.ActivePct), t.ActiveFraction,
			t.CommitsTotal, round2OrNil(t.CommitsActiveAvg), f64OrNil(t.CommitsActiveP50), t.CommitsActiveMax,
			round2OrNil(t.Top1CommitSharePct), round2(t.CommitsPerDev),
			t.AfterHoursCommitsTotal, round2OrNil(t.AfterHoursCommitSharePct),
			t.ChangedLinesTotal, round2(t.ChangedLinesTotalWeighted),
			round2OrNil(t.ChangedLinesActiveAvg), f64OrNil(t.ChangedLinesActiveP50), t.ChangedLinesActiveMax,
			round2(t.ChangedLinesPerDev), round2(t.ChangedLinesPerDevWeighted),
			t.DepartmentLevel2Cnt, t.DevRoleCnt, round2OrNil(t.YearsOfServiceAvg),
			t.SuspiciousDevCnt, round2(t.SuspiciousDevPct), round2(t.SuspiciousScoreAvg),
			round2(t.ScoreIntegrity),
			round2(t.ScoreTotal), round2(t.ScoreTotalBase),
			round2(t.ScoreActive), round2(t.ScoreCommitsP50), round2(t.ScoreCommitsPerDev),
			round2(t.ScoreConcentration), round2(t.ScoreAfterHours),
			round2(t.ScoreLinesP50), round2(t.ScoreLinesPerDev), round2(t.ScoreLinesTotal),
			round2(t.ScoreRoleCover), round2(t.ScoreDeptFocus),
			t.Tags)
	}
	return b.limit(r)
}

// ProjectActivity is the per-project roster-versus-activity rollup.
func (b *Builder) ProjectActivity() *schema.Report {
	rows := rollup.Projects(rollup.ProjectActivityInput{
		Projects:    b.in.Projects,
		PersonRoles: b.in.ProjectRoles,
		ProjectRepo: b.in.ProjectRepos,
		Employees:   b.in.Roster.Employees,
		Facts:       b.in.Facts,
	}, b.in.Window, b.in.Now)

	r := schema.NewReport("project-activity",
		"project_id", "project_name", "project_type", "status",
		"dev_headcount", "dev_fte_sum",
		"active_dev", "inactive_dev",
		"active_pct", "active_fraction",
		"weighted_commits_total", "weighted_changed_lines_total",
		"commits_per_fte", "top1_share_pct",
		"repo_count", "core_role_coverage_cnt", "core_roles_present")
	for i := range rows {
		p := &rows[i]
		r.Append(p.ProjectID, p.ProjectName, p.ProjectType, p.Status,
			p.DevHeadcount, round2(p.DevFTESum),
			p.ActiveDev, p.InactiveDev,
			f64OrNil(p.ActivePct), p.ActiveFraction,
			round2(p.WeightedCommitsTotal), round2(p.WeightedChangedLinesTotal),
			f64OrNil(p.CommitsPerFTE), f64OrNil(p.Top1SharePct),
			p.RepoCount, p.CoreRoleCoverageCnt, p.CoreRolesPresent)
	}
	return b.limit(r)
}

// RepoScores re-aggregates the composite person scores per repo, with the
// fixed distribution band each repo lands in.
func (b *Builder) RepoScores() *schema.Report {
	ps := scoring.ScorePersons(b.nonMergeAggregates(), b.in.Window)
	names := make(map[string]string, len(b.in.Repos))
	for i := range b.in.Repos {
		names[b.in.Repos[i].RepoID] = b.in.Repos[i].RepoName
	}
	groups := rollup.ByRepo(ps, facts.NonMerge(b.in.Facts), b.res, names)
	return b.limit(groupReport("repo-score", "repo", groups))
}

// DepartmentScores re-aggregates the composite person scores per level-2
// department.
func (b *Builder) DepartmentScores() *schema.Report {
	ps := scoring.ScorePersons(b.nonMergeAggregates(), b.in.Window)
	return b.limit(groupReport("department-score", "department_level2_name", rollup.ByDepartment(ps)))
}

// ManagerScores re-aggregates the composite person scores per line manager.
func (b *Builder) ManagerScores() *schema.Report {
	ps := scoring.ScorePersons(b.nonMergeAggregates(), b.in.Window)
	return b.limit(groupReport("manager-score", "line_manager", rollup.ByManager(ps)))
}

// ScoreDistribution counts repos and departments per fixed score band, for
// the at-a-glance health view.
func (b *Builder) ScoreDistribution() *schema.Report {
	ps := scoring.ScorePersons(b.nonMergeAggregates(), b.in.Window)
	names := make(map[string]string, len(b.in.Repos))
	for i := range b.in.Repos {
		names[b.in.Repos[i].RepoID] = b.in.Repos[i].RepoName
	}
	repoCounts := rollup.BandCounts(rollup.ByRepo(ps, facts.NonMerge(b.in.Facts), b.res, names))
	deptCounts := rollup.BandCounts(rollup.ByDepartment(ps))

	r := schema.NewReport("score-distribution", "band", "repo_cnt", "department_cnt")
	for i, label := range rollup.BandLabels {
		r.Append(label, repoCounts[i], deptCounts[i])
	}
	return r
}

// groupReport renders rollup groups with one fixed column set, percentile
// bucket included. Groups arrive ordered best first.
func groupReport(name, keyColumn string, groups []rollup.Group) *schema.Report {
	buckets := rollup.Buckets(len(groups))

	r := schema.NewReport(name,
		keyColumn, "people_cnt", "commit_cnt",
		"score_avg", "score_weighted_avg", "score_rank",
		"band", "bucket")
	for i := range groups {
		g := &groups[i]
		r.Append(g.Key, g.PeopleCount, g.CommitCount,
			g.ScoreAvg, g.ScoreWeightedAvg, g.ScoreRank,
			g.Band, rollup.BucketLabels[buckets[i]])
	}
	return r
}
