// Package aggregate computes the per-person window aggregates that feed the
// suspicion scorer and the composite score engine. Input is the canonical
// non-merge commit facts; output is one row per resolved person.
package aggregate

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/clifelab/devpulse/core/algo"
	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/schema"
)

// genericMessage matches the low-effort commit message openers.
var genericMessage = regexp.MustCompile(`^(fix|update|test|wip|tmp|merge|refactor)(:|$)`)

// wsRun collapses whitespace runs during message normalization.
var wsRun = regexp.MustCompile(`\s+`)

// shortMessageRunes is the normalized length at or under which a message
// counts as short.
const shortMessageRunes = 8

// NormalizeMessage lowercases a commit message and collapses all whitespace
// to single spaces, so trivial reformatting does not hide duplicates.
func NormalizeMessage(msg string) string {
	return strings.TrimSpace(wsRun.ReplaceAllString(strings.ToLower(msg), " "))
}

// IsGenericMessage reports whether a normalized message starts with one of
// the boilerplate openers, either bare or colon-prefixed.
func IsGenericMessage(normalized string) bool {
	return genericMessage.MatchString(normalized)
}

// businessLocation returns the business timezone, falling back to a fixed
// UTC+8 zone on hosts without tzdata.
func businessLocation() *time.Location {
	loc, err := time.LoadLocation(schema.BusinessTimeZone)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// IsAfterHours reports whether a commit landed outside Monday to Friday
// 09:00-18:59 in the business timezone.
func IsAfterHours(at time.Time) bool {
	return isAfterHours(at, businessLocation())
}

func isAfterHours(at time.Time, loc *time.Location) bool {
	local := at.In(loc)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return true
	}
	h := local.Hour()
	return h < 9 || h > 18
}

type personBucket struct {
	employee *schema.Employee
	facts    []schema.CommitFact
}

// Persons aggregates window facts per resolved person. Facts whose author
// does not resolve to any roster row are skipped; the caller filters the
// window and drops merge commits beforehand.
func Persons(facts []schema.CommitFact, res *identity.Resolver) []schema.PersonAggregate {
	buckets := make(map[string]*personBucket)
	for i := range facts {
		e := res.ResolveFact(&facts[i])
		if e == nil {
			continue
		}
		b, ok := buckets[e.PersonID]
		if !ok {
			b = &personBucket{employee: e}
			buckets[e.PersonID] = b
		}
		b.facts = append(b.facts, facts[i])
	}

	repoPersons, repoCommits := repoStats(facts, res)
	p75Persons := quantileInt64(repoPersons, 0.75)
	p75Commits := quantileInt64(repoCommits, 0.75)

	loc := businessLocation()
	out := make([]schema.PersonAggregate, 0, len(buckets))
	for _, b := range buckets {
		pa := aggregateOne(b, loc)
		pa.Top1RepoPersonCnt = repoPersons[pa.Top1RepoID]
		pa.Top1RepoCommitTotal = repoCommits[pa.Top1RepoID]
		pa.Top1RepoIsCore = pa.Top1RepoID != "" &&
			(float64(pa.Top1RepoPersonCnt) >= p75Persons || float64(pa.Top1RepoCommitTotal) >= p75Commits)
		out = append(out, pa)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out
}

func aggregateOne(b *personBucket, loc *time.Location) schema.PersonAggregate {
	e := b.employee
	pa := schema.PersonAggregate{
		PersonID:             e.PersonID,
		EmployeeID:           e.EmployeeID,
		FullName:             e.FullName,
		DepartmentLevel2Name: e.DepartmentLevel2Name,
		DepartmentLevel3Name: e.DepartmentLevel3Name,
		Role:                 e.Role,
		LineManager:          e.LineManager,
	}

	weight := schema.RoleChangeWeight(e.Role)
	n := int64(len(b.facts))
	pa.CommitCount = n
	if n == 0 {
		return pa
	}

	repoCnt := make(map[string]int64)
	changed := make([]float64, 0, n)
	var zero, tiny, small, balanced, afterHours int64
	var times []time.Time
	var bucket10m, bucket1h map[int64]int64
	bucket10m, bucket1h = make(map[int64]int64), make(map[int64]int64)

	msgCounts := make(map[string]int64)
	var msgTotal, shortMsgs, genericMsgs int64

	for i := range b.facts {
		f := &b.facts[i]
		repoCnt[f.RepoID]++
		pa.TotalChangedLines += f.ChangedLines
		changed = append(changed, float64(f.ChangedLines))

		switch {
		case f.ChangedLines == 0:
			zero++
			tiny++
			small++
		case f.ChangedLines <= 2:
			tiny++
			small++
		case f.ChangedLines <= 10:
			small++
		}
		if total := f.Additions + f.Deletions; f.ChangedLines >= 50 && total > 0 {
			balance := 1 - abs64(f.Additions-f.Deletions)/float64(total)
			if balance >= 0.9 {
				balanced++
			}
		}
		if isAfterHours(f.CommittedAt, loc) {
			afterHours++
		}

		epoch := f.CommittedAt.Unix()
		bucket10m[epoch/600]++
		bucket1h[epoch/3600]++
		times = append(times, f.CommittedAt)

		if msg := NormalizeMessage(f.MessageOrTitle()); msg != "" {
			msgTotal++
			msgCounts[msg]++
			if utf8.RuneCountInString(msg) <= shortMessageRunes {
				shortMsgs++
			}
			if IsGenericMessage(msg) {
				genericMsgs++
			}
		}
	}

	fn := float64(n)
	pa.RepoCount = int64(len(repoCnt))
	pa.TotalWeightedChangedLines = weight * float64(pa.TotalChangedLines)
	pa.ChangedLinesPerCommit = float64(pa.TotalChangedLines) / fn
	pa.WeightedChangedLinesPerCommit = pa.TotalWeightedChangedLines / fn
	if med, ok := algo.QuantileCont(changed, 0.5); ok {
		pa.MedianChangedLines = med
		pa.MedianWeightedChangedLines = weight * med
	}

	pa.AfterHoursCommitCount = afterHours
	pa.AfterHoursRatio = float64(afterHours) / fn
	pa.P0Zero = float64(zero) / fn
	pa.P2Tiny = float64(tiny) / fn
	pa.P10Small = float64(small) / fn
	pa.PBalanceHigh = float64(balanced) / fn

	pa.Top1RepoID, pa.Top1RepoShare = topRepo(repoCnt, fn)
	pa.MaxCommits10m = maxCount(bucket10m)
	pa.MaxCommits1h = maxCount(bucket1h)

	pa.MsgTotal = msgTotal
	pa.MsgUnique = int64(len(msgCounts))
	pa.MsgTop1Cnt = maxCount64(msgCounts)
	if msgTotal > 0 {
		fm := float64(msgTotal)
		pa.MessageUniqueRatio = ptr(float64(pa.MsgUnique) / fm)
		pa.Top1MessageShare = ptr(float64(pa.MsgTop1Cnt) / fm)
		pa.ShortMessageRatio = float64(shortMsgs) / fm
		pa.GenericMessageRatio = float64(genericMsgs) / fm
	}

	pa.MedianInterCommitSeconds = medianInterCommit(times)
	return pa
}

// topRepo picks the repo with the most commits, smallest id on ties.
func topRepo(repoCnt map[string]int64, total float64) (string, float64) {
	var topID string
	var topCnt int64
	for id, cnt := range repoCnt {
		if cnt > topCnt || (cnt == topCnt && (topID == "" || id < topID)) {
			topID, topCnt = id, cnt
		}
	}
	if topID == "" || total == 0 {
		return "", 0
	}
	return topID, float64(topCnt) / total
}

// medianInterCommit returns the median positive gap between consecutive
// commits, nil when no positive gap exists.
func medianInterCommit(times []time.Time) *float64 {
	if len(times) < 2 {
		return nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	var deltas []float64
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]).Seconds(); d > 0 {
			deltas = append(deltas, d)
		}
	}
	if med, ok := algo.QuantileCont(deltas, 0.5); ok {
		return ptr(med)
	}
	return nil
}

// repoStats counts, over every fact with a resolvable author, the distinct
// people and the commit total per repo. These feed the core-repo test.
func repoStats(facts []schema.CommitFact, res *identity.Resolver) (persons, commits map[string]int64) {
	people := make(map[string]map[string]struct{})
	commits = make(map[string]int64)
	for i := range facts {
		e := res.ResolveFact(&facts[i])
		if e == nil {
			continue
		}
		repoID := facts[i].RepoID
		commits[repoID]++
		set, ok := people[repoID]
		if !ok {
			set = make(map[string]struct{})
			people[repoID] = set
		}
		set[e.PersonID] = struct{}{}
	}
	persons = make(map[string]int64, len(people))
	for repoID, set := range people {
		persons[repoID] = int64(len(set))
	}
	return persons, commits
}

func quantileInt64(m map[string]int64, q float64) float64 {
	values := make([]float64, 0, len(m))
	for _, v := range m {
		values = append(values, float64(v))
	}
	v, ok := algo.QuantileCont(values, q)
	if !ok {
		return 0
	}
	return v
}

func maxCount(m map[int64]int64) int64 {
	var max int64
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func maxCount64(m map[string]int64) int64 {
	var max int64
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func abs64(v int64) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

func ptr(v float64) *float64 { return &v }
