// Package rollup re-aggregates person-level scores up to repo, department,
// manager and project granularity. No new scoring logic lives here, only
// averages, re-ranking, fixed score bands and percentile buckets.
package rollup

import (
	"sort"

	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/core/scoring"
	"github.com/clifelab/devpulse/schema"
)

// BandLabels are the fixed score distribution bands, best first.
var BandLabels = []string{">=90 分", "75-90 分", "60-75 分", "40-60 分", "<40 分"}

// Band maps a score onto its fixed band label.
func Band(score float64) string {
	switch {
	case score >= 90:
		return BandLabels[0]
	case score >= 75:
		return BandLabels[1]
	case score >= 60:
		return BandLabels[2]
	case score >= 40:
		return BandLabels[3]
	default:
		return BandLabels[4]
	}
}

// BucketLabels are the percentile distribution segments, best first.
var BucketLabels = []string{"前 5%", "5%-30%", "30%-70%", "后 30%"}

// Buckets splits n ranked positions into the four percentile segments and
// returns the segment index for each position (0 = best segment). Positions
// are 0-based ranks in descending score order.
func Buckets(n int) []int {
	bounds := [...]float64{0.05, 0.30, 0.70}
	out := make([]int, n)
	for i := range out {
		out[i] = 3
		for s, b := range bounds {
			if i < int(b*float64(n)) {
				out[i] = s
				break
			}
		}
	}
	return out
}

// Group is one rollup row: a dimension value with the averaged person score.
type Group struct {
	Key         string
	PeopleCount int64
	CommitCount int64

	// ScoreAvg is the simple mean of the members' totals; WeightedAvg
	// weights each member by commit count so drive-by contributors do not
	// dilute busy repos.
	ScoreAvg         float64
	ScoreWeightedAvg float64

	// ScoreRank re-ranks the group average against the other groups.
	ScoreRank float64

	Band string
}

type groupAcc struct {
	people    int64
	commits   int64
	scoreSum  float64
	weightSum float64
	wScoreSum float64
}

func (a *groupAcc) add(score float64, commits int64) {
	a.people++
	a.commits += commits
	a.scoreSum += score
	w := float64(commits)
	a.weightSum += w
	a.wScoreSum += w * score
}

// ByDepartment rolls person scores up per level-2 department.
func ByDepartment(ps []scoring.PersonScore) []Group {
	return byLabel(ps, func(p *scoring.PersonScore) string {
		return orUnassigned(p.Agg.DepartmentLevel2Name)
	})
}

// ByManager rolls person scores up per line manager.
func ByManager(ps []scoring.PersonScore) []Group {
	return byLabel(ps, func(p *scoring.PersonScore) string {
		return scoring.ManagerOf(p.Agg.LineManager)
	})
}

func byLabel(ps []scoring.PersonScore, label func(*scoring.PersonScore) string) []Group {
	buckets := make(map[string]*groupAcc)
	for i := range ps {
		key := label(&ps[i])
		a, ok := buckets[key]
		if !ok {
			a = &groupAcc{}
			buckets[key] = a
		}
		a.add(ps[i].ScoreTotal, ps[i].Agg.CommitCount)
	}
	return finishGroups(buckets)
}

// ByRepo rolls person scores up per repo. A person contributes to every
// repo they committed to inside the window, weighted by their commits
// there. repoNames maps repo ids to display names; unknown ids keep the id.
func ByRepo(ps []scoring.PersonScore, facts []schema.CommitFact, res *identity.Resolver, repoNames map[string]string) []Group {
	scoreByPerson := make(map[string]float64, len(ps))
	for i := range ps {
		scoreByPerson[ps[i].Agg.PersonID] = ps[i].ScoreTotal
	}

	perRepoPerson := make(map[string]map[string]int64)
	for i := range facts {
		e := res.ResolveFact(&facts[i])
		if e == nil {
			continue
		}
		if _, scored := scoreByPerson[e.PersonID]; !scored {
			continue
		}
		key := facts[i].RepoID
		if name, ok := repoNames[key]; ok && name != "" {
			key = name
		}
		byPerson, ok := perRepoPerson[key]
		if !ok {
			byPerson = make(map[string]int64)
			perRepoPerson[key] = byPerson
		}
		byPerson[e.PersonID]++
	}

	buckets := make(map[string]*groupAcc, len(perRepoPerson))
	for key, byPerson := range perRepoPerson {
		a := &groupAcc{}
		for personID, cnt := range byPerson {
			a.add(scoreByPerson[personID], cnt)
		}
		buckets[key] = a
	}
	return finishGroups(buckets)
}

func finishGroups(buckets map[string]*groupAcc) []Group {
	groups := make([]Group, 0, len(buckets))
	for key, a := range buckets {
		g := Group{Key: key, PeopleCount: a.people, CommitCount: a.commits}
		g.ScoreAvg = algo.Round2(a.scoreSum / float64(a.people))
		if a.weightSum > 0 {
			g.ScoreWeightedAvg = algo.Round2(a.wScoreSum / a.weightSum)
		}
		groups = append(groups, g)
	}
	rankGroups(groups)
	return groups
}

// rankGroups fills ScoreRank and Band, then orders by average descending.
func rankGroups(groups []Group) {
	avgs := make([]float64, len(groups))
	for i := range groups {
		avgs[i] = groups[i].ScoreAvg
	}
	r := algo.NewRanker(avgs)
	for i := range groups {
		groups[i].ScoreRank = algo.Round2(r.Score(groups[i].ScoreAvg))
		groups[i].Band = Band(groups[i].ScoreAvg)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ScoreAvg != groups[j].ScoreAvg {
			return groups[i].ScoreAvg > groups[j].ScoreAvg
		}
		return groups[i].Key < groups[j].Key
	})
}

// BandCounts counts groups per fixed band, in BandLabels order.
func BandCounts(groups []Group) []int64 {
	counts := make([]int64, len(BandLabels))
	index := make(map[string]int, len(BandLabels))
	for i, label := range BandLabels {
		index[label] = i
	}
	for _, g := range groups {
		counts[index[g.Band]]++
	}
	return counts
}

func orUnassigned(label string) string {
	if label == "" {
		return schema.UnassignedLabel
	}
	return label
}
