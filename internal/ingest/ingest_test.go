package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/core/identity"
	"github.com/clifelab/devpulse/internal/cnbapi"
	"github.com/clifelab/devpulse/internal/lake"
	"github.com/clifelab/devpulse/schema"
)

type fakeAPI struct {
	commitsSince *time.Time
}

func (f *fakeAPI) GroupSubRepos(_ context.Context, _ string) ([]json.RawMessage, error) {
	return []json.RawMessage{
		json.RawMessage(`{"path":"clife/repo-one","name":"repo-one"}`),
		json.RawMessage(`{"path":"clife/empty","name":"empty"}`),
		json.RawMessage(`{"nothing":true}`),
	}, nil
}

func (f *fakeAPI) ListMembers(_ context.Context, repo string) ([]json.RawMessage, error) {
	if repo == "clife/empty" {
		return nil, nil
	}
	return []json.RawMessage{
		json.RawMessage(`{"user":{"id":11,"username":"a.a","email":"a.a@corp.cn"},"nickname":"张三"}`),
	}, nil
}

func (f *fakeAPI) TopContributors(_ context.Context, repo string) ([]json.RawMessage, error) {
	if repo == "clife/empty" {
		return nil, &cnbapi.StatusError{Code: http.StatusNotFound, Path: repo}
	}
	return []json.RawMessage{
		json.RawMessage(`{"user":{"username":"a.a"},"contributions":7}`),
	}, nil
}

func (f *fakeAPI) ListCommits(_ context.Context, repo string, since *time.Time) ([]json.RawMessage, error) {
	if repo == "clife/empty" {
		return nil, &cnbapi.StatusError{Code: http.StatusNotFound, Path: repo}
	}
	f.commitsSince = since
	return []json.RawMessage{
		json.RawMessage(`{"sha":"aaa","author":{"username":"a.a","email":"a.a@corp.cn"},"committed_at":"2025-07-10T08:00:00Z","parents":[{"sha":"zzz"}]}`),
		json.RawMessage(`{"sha":"bbb","author":{"username":"a.a"},"committed_at":"2025-07-12T09:30:00Z"}`),
		json.RawMessage(`{"no_sha":true}`),
	}, nil
}

// membersGoneAPI 404s the member listing of repo-one; a vanished repo is a
// failure, not an empty repo.
type membersGoneAPI struct {
	fakeAPI
}

func (f *membersGoneAPI) ListMembers(ctx context.Context, repo string) ([]json.RawMessage, error) {
	if repo == "clife/repo-one" {
		return nil, &cnbapi.StatusError{Code: http.StatusNotFound, Path: repo}
	}
	return f.fakeAPI.ListMembers(ctx, repo)
}

func testRunner(t *testing.T) (*Runner, *fakeAPI, *lake.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := lake.Open(schema.SQLiteBackend, filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	api := &fakeAPI{}
	return &Runner{
		API:         api,
		Store:       store,
		Norm:        identity.NewNormalizer("corp.cn"),
		DataDir:     dir,
		OverlapDays: 3,
		Now:         func() time.Time { return time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC) },
	}, api, store
}

func TestRunIngestsGroup(t *testing.T) {
	r, api, store := testRunner(t)

	sum, err := r.Run(context.Background(), "clife")
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Repos) // payload without a path is dropped
	assert.Equal(t, 1, sum.Members)
	assert.Equal(t, 1, sum.Contributors)
	assert.Equal(t, 2, sum.CommitsFetched)
	assert.Equal(t, 2, sum.CommitsInserted)
	assert.Equal(t, 1, sum.EmptyRepos)
	assert.Equal(t, 0, sum.FailedRepos)
	assert.Nil(t, api.commitsSince) // first pass fetches from the beginning

	members, err := store.Members()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "a.a", members[0].MemberKey)
	assert.Equal(t, "张三", members[0].FullName)

	wm, err := store.Watermark("clife/repo-one")
	require.NoError(t, err)
	assert.True(t, wm.Equal(time.Date(2025, 7, 12, 9, 30, 0, 0, time.UTC)))
}

func TestRunSecondPassIsIncremental(t *testing.T) {
	r, api, store := testRunner(t)

	_, err := r.Run(context.Background(), "clife")
	require.NoError(t, err)
	sum, err := r.Run(context.Background(), "clife")
	require.NoError(t, err)

	// Same commits again: fetched but deduped away.
	assert.Equal(t, 2, sum.CommitsFetched)
	assert.Equal(t, 0, sum.CommitsInserted)

	require.NotNil(t, api.commitsSince)
	want := time.Date(2025, 7, 12, 9, 30, 0, 0, time.UTC).AddDate(0, 0, -3)
	assert.True(t, api.commitsSince.Equal(want))

	commits, err := store.Commits(time.Time{})
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestMembersNotFoundCountsAsFailed(t *testing.T) {
	r, _, _ := testRunner(t)
	r.API = &membersGoneAPI{}

	sum, err := r.Run(context.Background(), "clife")
	require.NoError(t, err)

	// repo-one: members 404 -> failed. empty: commits 404 -> empty.
	assert.Equal(t, 1, sum.FailedRepos)
	assert.Equal(t, 1, sum.EmptyRepos)
}

type failingStore struct {
	*lake.Store
}

func (f *failingStore) InsertCommits(string, []schema.RawCommit) (int, error) {
	return 0, fmt.Errorf("disk full")
}

func TestWatermarkNotAdvancedOnFailedWrite(t *testing.T) {
	r, _, store := testRunner(t)
	r.Store = &failingStore{Store: store}

	sum, err := r.Run(context.Background(), "clife")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FailedRepos)

	wm, err := store.Watermark("clife/repo-one")
	require.NoError(t, err)
	assert.True(t, wm.IsZero())
}

func TestParseRepoFallbacks(t *testing.T) {
	r := ParseRepo(json.RawMessage(`{"id":42,"name":"legacy"}`))
	assert.Equal(t, "42", r.RepoID)
	assert.Equal(t, "legacy", r.RepoName)

	r = ParseRepo(json.RawMessage(`{"path":"g/r"}`))
	assert.Equal(t, "g/r", r.RepoID)
	assert.Equal(t, "g/r", r.RepoName)
}

func TestParseCommitLiftsFields(t *testing.T) {
	c := ParseCommit("r1", json.RawMessage(`{
		"sha":"abc",
		"commit":{"author":{"name":"a.a","email":"a.a@corp.cn","date":"2025-07-01T10:00:00Z"}},
		"stats":{"additions":5,"deletions":2}
	}`))
	assert.Equal(t, "abc", c.SHA)
	assert.Equal(t, "a.a@corp.cn", c.AuthorEmail)
	assert.Equal(t, int64(5), c.Additions)
	require.NotNil(t, c.CommittedAt)
	assert.Equal(t, 2025, c.CommittedAt.Year())
}
