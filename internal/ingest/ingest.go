package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/internal/cnbapi"
	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/schema"
)

// API is the slice of the hosting client ingestion needs.
type API interface {
	GroupSubRepos(ctx context.Context, group string) ([]json.RawMessage, error)
	ListMembers(ctx context.Context, repo string) ([]json.RawMessage, error)
	TopContributors(ctx context.Context, repo string) ([]json.RawMessage, error)
	ListCommits(ctx context.Context, repo string, since *time.Time) ([]json.RawMessage, error)
}

// Store is the slice of the warehouse ingestion writes to.
type Store interface {
	ReplaceRepos(repos []schema.Repo) error
	ReplaceMembers(repoID string, members []schema.Member) error
	ReplaceTopContributors(repoID string, rows []schema.TopContributor) error
	InsertCommits(repoID string, commits []schema.RawCommit) (int, error)
	Watermark(repoID string) (time.Time, error)
	SetWatermark(repoID string, lastCommittedAt, now time.Time) error
}

// errRepoEmpty marks a confirmed repo whose commit listing 404s: the repo
// exists but has no commit history to page.
var errRepoEmpty = errors.New("repo has no commits")

// Runner drives one ingest pass over a group.
type Runner struct {
	API         API
	Store       Store
	Norm        *identity.Normalizer
	DataDir     string
	OverlapDays int
	Now         func() time.Time
}

// Summary counts what one pass did.
type Summary struct {
	Repos           int
	Members         int
	Contributors    int
	CommitsFetched  int
	CommitsInserted int
	EmptyRepos      int
	FailedRepos     int
}

// Run ingests the group's repos, then members, top contributors and commits
// per repo. Per-repo failures are counted, not fatal: one broken repo must
// not stall the nightly pass. Watermarks only advance after their commits
// are durably written.
func (r *Runner) Run(ctx context.Context, group string) (Summary, error) {
	var sum Summary
	now := r.Now()

	repoPayloads, err := r.API.GroupSubRepos(ctx, group)
	if err != nil {
		return sum, fmt.Errorf("failed to list repos for %s: %w", group, err)
	}
	if err := lake.AppendSnapshot(r.DataDir, "repos", now, repoPayloads); err != nil {
		return sum, err
	}

	repos := make([]schema.Repo, 0, len(repoPayloads))
	for _, raw := range repoPayloads {
		repo := ParseRepo(raw)
		if repo.RepoID == "" {
			continue
		}
		repos = append(repos, repo)
	}
	if err := r.Store.ReplaceRepos(repos); err != nil {
		return sum, err
	}
	sum.Repos = len(repos)

	for i := range repos {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := r.ingestRepo(ctx, &repos[i], now, &sum); err != nil {
			if errors.Is(err, errRepoEmpty) {
				sum.EmptyRepos++
				continue
			}
			sum.FailedRepos++
		}
	}
	return sum, nil
}

func (r *Runner) ingestRepo(ctx context.Context, repo *schema.Repo, now time.Time, sum *Summary) error {
	memberPayloads, err := r.API.ListMembers(ctx, repo.RepoID)
	if err != nil {
		return err
	}
	if err := lake.AppendSnapshot(r.DataDir, "members", now, memberPayloads); err != nil {
		return err
	}
	members := make([]schema.Member, 0, len(memberPayloads))
	for _, raw := range memberPayloads {
		members = append(members, ParseMember(repo.RepoID, raw, r.Norm))
	}
	if err := r.Store.ReplaceMembers(repo.RepoID, members); err != nil {
		return err
	}
	sum.Members += len(members)

	contribPayloads, err := r.API.TopContributors(ctx, repo.RepoID)
	if err != nil && !cnbapi.IsNotFound(err) {
		return err
	}
	if len(contribPayloads) > 0 {
		if err := lake.AppendSnapshot(r.DataDir, "top_contributors", now, contribPayloads); err != nil {
			return err
		}
		rows := make([]schema.TopContributor, 0, len(contribPayloads))
		for _, raw := range contribPayloads {
			rows = append(rows, ParseTopContributor(repo.RepoID, raw))
		}
		if err := r.Store.ReplaceTopContributors(repo.RepoID, rows); err != nil {
			return err
		}
		sum.Contributors += len(rows)
	}

	return r.ingestCommits(ctx, repo.RepoID, now, sum)
}

// ingestCommits fetches commits since the watermark minus the overlap. The
// overlap re-fetch absorbs late-arriving commits with earlier author dates;
// the (repo, sha) dedup in the store makes it idempotent.
func (r *Runner) ingestCommits(ctx context.Context, repoID string, now time.Time, sum *Summary) error {
	var since *time.Time
	wm, err := r.Store.Watermark(repoID)
	if err != nil {
		return err
	}
	if !wm.IsZero() {
		s := wm.AddDate(0, 0, -r.OverlapDays)
		since = &s
	}

	payloads, err := r.API.ListCommits(ctx, repoID, since)
	if err != nil {
		if cnbapi.IsNotFound(err) {
			return errRepoEmpty
		}
		return err
	}
	if err := lake.AppendSnapshot(r.DataDir, "commits", now, payloads); err != nil {
		return err
	}

	commits := make([]schema.RawCommit, 0, len(payloads))
	for _, raw := range payloads {
		c := ParseCommit(repoID, raw)
		if c.SHA == "" {
			continue
		}
		commits = append(commits, c)
	}
	sum.CommitsFetched += len(commits)

	inserted, err := r.Store.InsertCommits(repoID, commits)
	if err != nil {
		return err
	}
	sum.CommitsInserted += inserted

	if latest, ok := latestCommittedAt(commits); ok && latest.After(wm) {
		return r.Store.SetWatermark(repoID, latest, now)
	}
	return nil
}
