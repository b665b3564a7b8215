package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/clifelab/devpulse/core/aggregate"
	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

// TeamScore is one line-manager rollup row: team size and activity shape,
// output volume, anti-gaming stats and the composite team score.
type TeamScore struct {
	LineManager string

	DevTotal    int64
	DevActive   int64
	DevInactive int64

	ActivePct      float64
	ActiveFraction string

	CommitsTotal     int64
	CommitsActiveAvg *float64
	CommitsActiveP50 *float64
	CommitsActiveMax int64

	Top1CommitSharePct *float64
	CommitsPerDev      float64

	AfterHoursCommitsTotal   int64
	AfterHoursCommitSharePct *float64

	ChangedLinesTotal          int64
	ChangedLinesTotalWeighted  float64
	ChangedLinesActiveAvg      *float64
	ChangedLinesActiveP50      *float64
	ChangedLinesActiveMax      int64
	ChangedLinesPerDev         float64
	ChangedLinesPerDevWeighted float64

	DepartmentLevel2Cnt int64
	DevRoleCnt          int64
	YearsOfServiceAvg   *float64

	SuspiciousDevCnt   int64
	SuspiciousDevPct   float64
	SuspiciousScoreAvg float64

	ScoreIntegrity float64
	ScoreTotal     float64
	ScoreTotalBase float64

	ScoreActive        float64
	ScoreCommitsP50    float64
	ScoreCommitsPerDev float64
	ScoreConcentration float64
	ScoreAfterHours    float64
	ScoreLinesP50      float64
	ScoreLinesPerDev   float64
	ScoreLinesTotal    float64
	ScoreRoleCover     float64
	ScoreDeptFocus     float64

	Tags string

	// Ranking intermediates, not report columns.
	repoCount                     int64
	changedLinesActiveP50Weighted *float64
}

// devPerson is one deduplicated dev-role person under one manager.
type devPerson struct {
	manager          string
	personID         string
	memberKey        string
	dept2            string
	role             string
	yearsOfService   float64
	yearsKnown       bool
	yearsSampleCount int64
}

// personStats are the commit totals of one person, merge commits included;
// the team view counts integration work too.
type personStats struct {
	commits            int64
	afterHoursCommits  int64
	changedLines       int64
	changedLinesWeight float64
}

// ManagerOf normalizes the line manager label, bucketing blanks under
// UnassignedLabel.
func ManagerOf(lineManager string) string {
	if m := strings.TrimSpace(lineManager); m != "" {
		return m
	}
	return schema.UnassignedLabel
}

// ScoreTeams rolls dev-role roster rows and window facts up per line
// manager. facts must cover the window including merge commits; team
// suspicion internally re-aggregates without merges. Rows come back sorted
// by team score, then team size, then manager name.
func ScoreTeams(devRows []schema.Employee, facts []schema.CommitFact, w schema.Window) []TeamScore {
	people := dedupDevPeople(devRows)
	res := identity.NewResolver(devRows)

	stats := make(map[string]*personStats)
	managerRepos := make(map[string]map[string]struct{})
	for i := range facts {
		e := res.ResolveFact(&facts[i])
		if e == nil {
			continue
		}
		ps, ok := stats[e.PersonID]
		if !ok {
			ps = &personStats{}
			stats[e.PersonID] = ps
		}
		ps.commits++
		if aggregate.IsAfterHours(facts[i].CommittedAt) {
			ps.afterHoursCommits++
		}
		ps.changedLines += facts[i].ChangedLines
		ps.changedLinesWeight += float64(facts[i].ChangedLines) * schema.RoleChangeWeight(e.Role)

		m := ManagerOf(e.LineManager)
		set, ok := managerRepos[m]
		if !ok {
			set = make(map[string]struct{})
			managerRepos[m] = set
		}
		set[facts[i].RepoID] = struct{}{}
	}

	teams := rollupManagers(people, stats, managerRepos)
	attachSuspicion(teams, facts, res)
	scoreManagers(teams, w)

	sort.Slice(teams, func(i, j int) bool {
		a, b := teams[i], teams[j]
		if a.ScoreTotal != b.ScoreTotal {
			return a.ScoreTotal > b.ScoreTotal
		}
		if a.DevTotal != b.DevTotal {
			return a.DevTotal > b.DevTotal
		}
		return a.LineManager < b.LineManager
	})
	out := make([]TeamScore, 0, len(teams))
	for _, t := range teams {
		out = append(out, *t)
	}
	return out
}

// dedupDevPeople collapses roster rows into one person per (manager,
// person_id), preferring rows with a real hosting key over dummy
// placeholders. Years of service averages across the person's rows.
func dedupDevPeople(devRows []schema.Employee) []devPerson {
	byKey := make(map[string]*devPerson)
	var order []string
	for i := range devRows {
		e := &devRows[i]
		m := ManagerOf(e.LineManager)
		key := m + "\x00" + e.PersonID
		p, ok := byKey[key]
		if !ok {
			p = &devPerson{manager: m, personID: e.PersonID, memberKey: e.MemberKey, dept2: e.DepartmentLevel2Name, role: e.Role}
			byKey[key] = p
			order = append(order, key)
		} else if betterDevKey(e.MemberKey, p.memberKey) {
			p.memberKey = e.MemberKey
			p.dept2 = e.DepartmentLevel2Name
			p.role = e.Role
		}
		if e.YearsOfService > 0 {
			p.yearsOfService += e.YearsOfService
			p.yearsSampleCount++
			p.yearsKnown = true
		}
	}
	out := make([]devPerson, 0, len(byKey))
	for _, key := range order {
		p := byKey[key]
		if p.yearsSampleCount > 0 {
			p.yearsOfService /= float64(p.yearsSampleCount)
		}
		out = append(out, *p)
	}
	return out
}

func betterDevKey(candidate, current string) bool {
	cDummy := strings.HasPrefix(candidate, schema.DummyKeyPrefix)
	pDummy := strings.HasPrefix(current, schema.DummyKeyPrefix)
	if cDummy != pDummy {
		return !cDummy
	}
	return candidate < current
}

func rollupManagers(people []devPerson, stats map[string]*personStats, managerRepos map[string]map[string]struct{}) []*TeamScore {
	type bucket struct {
		team          *TeamScore
		activeCommits []float64
		activeLines   []float64
		activeLinesW  []float64
		dept2         map[string]struct{}
		roles         map[string]struct{}
		yearsSum      float64
		yearsCnt      int64
	}
	buckets := make(map[string]*bucket)
	for _, p := range people {
		b, ok := buckets[p.manager]
		if !ok {
			b = &bucket{
				team:  &TeamScore{LineManager: p.manager},
				dept2: make(map[string]struct{}),
				roles: make(map[string]struct{}),
			}
			buckets[p.manager] = b
		}
		t := b.team
		t.DevTotal++
		if p.dept2 != "" {
			b.dept2[p.dept2] = struct{}{}
		}
		if p.role != "" {
			b.roles[p.role] = struct{}{}
		}
		if p.yearsKnown {
			b.yearsSum += p.yearsOfService
			b.yearsCnt++
		}

		ps := stats[p.personID]
		if ps == nil || ps.commits == 0 {
			t.DevInactive++
			continue
		}
		t.DevActive++
		t.CommitsTotal += ps.commits
		t.AfterHoursCommitsTotal += ps.afterHoursCommits
		t.ChangedLinesTotal += ps.changedLines
		t.ChangedLinesTotalWeighted += ps.changedLinesWeight
		if ps.commits > t.CommitsActiveMax {
			t.CommitsActiveMax = ps.commits
		}
		if ps.changedLines > t.ChangedLinesActiveMax {
			t.ChangedLinesActiveMax = ps.changedLines
		}
		b.activeCommits = append(b.activeCommits, float64(ps.commits))
		b.activeLines = append(b.activeLines, float64(ps.changedLines))
		b.activeLinesW = append(b.activeLinesW, ps.changedLinesWeight)
	}

	teams := make([]*TeamScore, 0, len(buckets))
	for _, b := range buckets {
		t := b.team
		devTotal := float64(t.DevTotal)
		t.ActivePct = algo.Round2(100 * float64(t.DevActive) / devTotal)
		t.ActiveFraction = fmt.Sprintf("%d/%d", t.DevActive, t.DevTotal)
		t.CommitsPerDev = float64(t.CommitsTotal) / devTotal
		t.ChangedLinesPerDev = float64(t.ChangedLinesTotal) / devTotal
		t.ChangedLinesPerDevWeighted = t.ChangedLinesTotalWeighted / devTotal
		t.DepartmentLevel2Cnt = int64(len(b.dept2))
		t.DevRoleCnt = int64(len(b.roles))
		if b.yearsCnt > 0 {
			t.YearsOfServiceAvg = ptr(b.yearsSum / float64(b.yearsCnt))
		}
		if len(b.activeCommits) > 0 {
			t.CommitsActiveAvg = ptr(mean(b.activeCommits))
			if p50, ok := algo.QuantileCont(b.activeCommits, 0.5); ok {
				t.CommitsActiveP50 = ptr(p50)
			}
			t.ChangedLinesActiveAvg = ptr(mean(b.activeLines))
			if p50, ok := algo.QuantileCont(b.activeLines, 0.5); ok {
				t.ChangedLinesActiveP50 = ptr(p50)
			}
			if p50w, ok := algo.QuantileCont(b.activeLinesW, 0.5); ok {
				t.changedLinesActiveP50Weighted = ptr(p50w)
			}
		}
		if t.CommitsTotal > 0 {
			t.Top1CommitSharePct = ptr(algo.Round2(100 * float64(t.CommitsActiveMax) / float64(t.CommitsTotal)))
			t.AfterHoursCommitSharePct = ptr(algo.Round2(100 * float64(t.AfterHoursCommitsTotal) / float64(t.CommitsTotal)))
		}
		teams = append(teams, t)
	}
	for _, t := range teams {
		if set, ok := managerRepos[t.LineManager]; ok {
			t.repoCount = int64(len(set))
		}
	}
	return teams
}

// attachSuspicion re-aggregates the non-merge facts per person and rolls the
// team-variant suspicion score up to each manager.
func attachSuspicion(teams []*TeamScore, facts []schema.CommitFact, res *identity.Resolver) {
	nonMerge := make([]schema.CommitFact, 0, len(facts))
	for i := range facts {
		if !facts[i].IsMerge {
			nonMerge = append(nonMerge, facts[i])
		}
	}
	pas := aggregate.Persons(nonMerge, res)
	scores := TeamSuspicion(pas)

	cnt := make(map[string]int64)
	sum := make(map[string]float64)
	num := make(map[string]int64)
	for i := range pas {
		m := ManagerOf(pas[i].LineManager)
		if scores[i] >= schema.SuspiciousScoreThreshold {
			cnt[m]++
		}
		sum[m] += scores[i]
		num[m]++
	}
	for _, t := range teams {
		t.SuspiciousDevCnt = cnt[t.LineManager]
		if t.DevTotal > 0 {
			t.SuspiciousDevPct = algo.Round2(100 * float64(t.SuspiciousDevCnt) / float64(t.DevTotal))
		}
		if n := num[t.LineManager]; n > 0 {
			t.SuspiciousScoreAvg = algo.Round2(sum[t.LineManager] / float64(n))
		}
	}
}

func scoreManagers(teams []*TeamScore, w schema.Window) {
	n := len(teams)
	activePct := make([]float64, n)
	commitsP50 := make([]float64, n)
	commitsPerDev := make([]float64, n)
	top1Share := make([]float64, n)
	afterHoursShare := make([]float64, n)
	linesPerDev := make([]float64, n)
	linesP50 := make([]float64, n)
	linesTotal := make([]float64, n)
	roleCover := make([]float64, n)
	deptFocus := make([]float64, n)
	repoCounts := make([]float64, n)
	susShare := make([]float64, n)
	susAvg := make([]float64, n)
	for i, t := range teams {
		activePct[i] = t.ActivePct
		commitsP50[i] = nilRanksLast(t.CommitsActiveP50)
		commitsPerDev[i] = math.Log1p(t.CommitsPerDev)
		top1Share[i] = nilRanksLast(t.Top1CommitSharePct)
		afterHoursShare[i] = nilRanksLast(t.AfterHoursCommitSharePct)
		linesPerDev[i] = math.Log1p(t.ChangedLinesTotalWeighted / float64(t.DevTotal))
		linesP50[i] = math.Log1p(weightedP50(t))
		linesTotal[i] = math.Log1p(t.ChangedLinesTotalWeighted)
		roleCover[i] = float64(t.DevRoleCnt)
		deptFocus[i] = float64(t.DepartmentLevel2Cnt)
		repoCounts[i] = float64(t.repoCount)
		susShare[i] = float64(t.SuspiciousDevCnt) / float64(t.DevTotal)
		susAvg[i] = t.SuspiciousScoreAvg
	}
	rActive := algo.NewRanker(activePct)
	rCommitsP50 := algo.NewRanker(commitsP50)
	rCommitsPerDev := algo.NewRanker(commitsPerDev)
	rTop1 := algo.NewRanker(top1Share)
	rAfterHours := algo.NewRanker(afterHoursShare)
	rLinesPerDev := algo.NewRanker(linesPerDev)
	rLinesP50 := algo.NewRanker(linesP50)
	rLinesTotal := algo.NewRanker(linesTotal)
	rRoleCover := algo.NewRanker(roleCover)
	rDeptFocus := algo.NewRanker(deptFocus)
	rRepo := algo.NewRanker(repoCounts)
	rSusShare := algo.NewRanker(susShare)
	rSusAvg := algo.NewRanker(susAvg)

	activeP25, _ := algo.QuantileCont(activePct, 0.25)
	p50P25, hasP50P25 := quantileNonNil(teams, 0.25, func(t *TeamScore) *float64 { return t.CommitsActiveP50 })
	top1P75, hasTop1P75 := quantileNonNil(teams, 0.75, func(t *TeamScore) *float64 { return t.Top1CommitSharePct })

	minPerDev := float64(w.MinCommits())
	for i, t := range teams {
		t.ScoreActive = algo.Round2(rActive.Score(activePct[i]))
		t.ScoreCommitsP50 = algo.Round2(rCommitsP50.Score(commitsP50[i]))
		t.ScoreCommitsPerDev = algo.Round2(rCommitsPerDev.Score(commitsPerDev[i]))
		t.ScoreConcentration = algo.Round2(rTop1.InverseScore(top1Share[i]))
		t.ScoreAfterHours = algo.Round2(rAfterHours.Score(afterHoursShare[i]))
		t.ScoreLinesPerDev = algo.Round2(rLinesPerDev.Score(linesPerDev[i]))
		t.ScoreLinesP50 = algo.Round2(rLinesP50.Score(linesP50[i]))
		t.ScoreLinesTotal = algo.Round2(rLinesTotal.Score(linesTotal[i]))
		t.ScoreRoleCover = algo.Round2(rRoleCover.Score(roleCover[i]))
		t.ScoreDeptFocus = algo.Round2(rDeptFocus.InverseScore(deptFocus[i]))

		t.ScoreIntegrity = algo.Round2(
			0.5*rSusShare.InverseScore(susShare[i]) + 0.5*rSusAvg.InverseScore(susAvg[i]))

		var gate float64
		if t.CommitsPerDev < minPerDev {
			gate = 0.5 + 0.3*(t.CommitsPerDev/minPerDev)
		} else {
			gate = 0.8 + 0.2*math.Min(1, t.CommitsPerDev/10)
		}
		bonus := 0.03 * math.Min(rRepo.Score(repoCounts[i]), 70)
		total := algo.Round2(math.Min(100, t.ScoreLinesTotal*gate+bonus))
		// Anti-gaming stays out of the headline score; heuristic false
		// positives must not reorder teams.
		t.ScoreTotal = total
		t.ScoreTotalBase = total

		var tags []string
		if t.ActivePct < activeP25 {
			tags = append(tags, "活跃风险")
		}
		if hasP50P25 && t.CommitsActiveP50 != nil && *t.CommitsActiveP50 < p50P25 {
			tags = append(tags, "强度不足")
		}
		if hasTop1P75 && t.Top1CommitSharePct != nil && *t.Top1CommitSharePct > top1P75 {
			tags = append(tags, "依赖单核")
		}
		if t.SuspiciousDevCnt >= 2 && 100*float64(t.SuspiciousDevCnt)/float64(t.DevTotal) >= 30 {
			tags = append(tags, "刷量风险")
		}
		t.Tags = strings.Join(tags, ";")
	}
}

func weightedP50(t *TeamScore) float64 {
	if t.changedLinesActiveP50Weighted != nil {
		return *t.changedLinesActiveP50Weighted
	}
	return 0
}

func quantileNonNil(teams []*TeamScore, q float64, pick func(*TeamScore) *float64) (float64, bool) {
	var values []float64
	for _, t := range teams {
		if v := pick(t); v != nil {
			values = append(values, *v)
		}
	}
	return algo.QuantileCont(values, q)
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func ptr(v float64) *float64 { return &v }
