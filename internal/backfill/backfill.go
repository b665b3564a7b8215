// Package backfill fills in per-commit diff stats. The commit listing API
// carries no additions/deletions, so each commit needs one base...head
// comparison, fetched by a bounded worker pool and flushed in batches.
package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/clifelab/devpulse/core/facts"
	"github.com/clifelab/devpulse/internal/cnbapi"
	"github.com/clifelab/devpulse/schema"
)

// flushSize is the number of computed stats buffered before an upsert.
const flushSize = 500

// API is the slice of the hosting client the backfill needs.
type API interface {
	Compare(ctx context.Context, repo, base, head string) (json.RawMessage, error)
}

// Store is the slice of the warehouse the backfill reads and writes.
type Store interface {
	Commits(since time.Time) ([]schema.RawCommit, error)
	CommitStats() (map[schema.CommitKey]schema.CommitStat, error)
	UpsertCommitStats(stats []schema.CommitStat) error
}

// Options bound one backfill pass.
type Options struct {
	Since      time.Time
	MaxCommits int  // cap on comparisons per pass; guards against runaway passes
	Workers    int
	Force      bool // recompute commits that already have stats
	DryRun     bool // count candidates, fetch and write nothing
}

// Stats reports what one pass did.
type Stats struct {
	Selected        int
	Candidates      int
	SkippedNoParent int
	OK              int
	FailedHTTP      int
	FailedOther     int
	MergeCommits    int
	Written         int
}

type candidate struct {
	repoID  string
	sha     string
	baseSHA string
	isMerge bool
}

// Run selects commits missing diff stats, compares each against its first
// parent and upserts the results. Failures are counted per commit, never
// fatal: a rate-limited comparison today backfills tomorrow.
func Run(ctx context.Context, api API, store Store, opts Options) (Stats, error) {
	var st Stats

	commits, err := store.Commits(opts.Since)
	if err != nil {
		return st, err
	}
	existing, err := store.CommitStats()
	if err != nil {
		return st, err
	}

	// Newest first, so a capped pass backfills what reports read next.
	dated := commits[:0]
	for i := range commits {
		if commits[i].CommittedAt != nil {
			dated = append(dated, commits[i])
		}
	}
	commits = dated
	sort.Slice(commits, func(i, j int) bool {
		return commits[i].CommittedAt.After(*commits[j].CommittedAt)
	})

	var candidates []candidate
	for i := range commits {
		c := &commits[i]
		if c.RepoID == "" || c.SHA == "" {
			continue
		}
		if !opts.Force {
			if _, ok := existing[schema.CommitKey{RepoID: c.RepoID, SHA: c.SHA}]; ok {
				continue
			}
		}
		if opts.MaxCommits > 0 && st.Selected >= opts.MaxCommits {
			break
		}
		st.Selected++
		env := facts.ParseEnvelope(c.Raw)
		base := env.BaseSHA()
		if base == "" {
			st.SkippedNoParent++
			continue
		}
		candidates = append(candidates, candidate{
			repoID:  c.RepoID,
			sha:     c.SHA,
			baseSHA: base,
			isMerge: env.IsMerge(),
		})
	}
	st.Candidates = len(candidates)
	if opts.DryRun || len(candidates) == 0 {
		return st, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan candidate)
	type outcome struct {
		stat schema.CommitStat
		err  error
	}
	results := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				resp, err := api.Compare(ctx, c.repoID, c.baseSHA, c.sha)
				if err != nil {
					results <- outcome{err: err}
					continue
				}
				additions, deletions := sumCompareStats(resp)
				results <- outcome{stat: schema.CommitStat{
					RepoID:    c.repoID,
					SHA:       c.sha,
					BaseSHA:   c.baseSHA,
					Additions: additions,
					Deletions: deletions,
					IsMerge:   c.isMerge,
				}}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range candidates {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	batch := make([]schema.CommitStat, 0, flushSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.UpsertCommitStats(batch); err != nil {
			return err
		}
		st.Written += len(batch)
		batch = batch[:0]
		return nil
	}

	for res := range results {
		switch {
		case res.err == nil:
			st.OK++
			if res.stat.IsMerge {
				st.MergeCommits++
			}
			batch = append(batch, res.stat)
			if len(batch) >= flushSize {
				if err := flush(); err != nil {
					// Workers are still sending on the unbuffered channel.
					// Stop the feed and drain so they can exit.
					cancel()
					for range results {
					}
					return st, err
				}
			}
		case isStatusError(res.err):
			st.FailedHTTP++
		default:
			st.FailedOther++
		}
	}
	if err := flush(); err != nil {
		return st, err
	}
	return st, ctx.Err()
}

// sumCompareStats totals additions and deletions over the file entries of a
// comparison payload, whichever key the backend uses for them.
func sumCompareStats(resp json.RawMessage) (additions, deletions int64) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(resp, &obj); err != nil {
		return 0, 0
	}
	for _, k := range []string{"files", "diffs", "changes"} {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var files []struct {
			Additions int64 `json:"additions"`
			Deletions int64 `json:"deletions"`
		}
		if err := json.Unmarshal(raw, &files); err != nil {
			continue
		}
		for _, f := range files {
			additions += f.Additions
			deletions += f.Deletions
		}
		return additions, deletions
	}
	return 0, 0
}

func isStatusError(err error) bool {
	var se *cnbapi.StatusError
	return errors.As(err, &se)
}
