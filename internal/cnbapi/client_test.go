package cnbapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

func testClient(srv *httptest.Server) *Client {
	return New(&schema.Config{
		APIBaseURL:    srv.URL,
		APIToken:      "tok",
		APIAuthHeader: "Authorization",
		APIAuthPrefix: "Bearer",
	})
}

func TestPagedListWalksPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		require.Equal(t, "100", r.URL.Query().Get("page_size"))

		n := pageSize
		if page == 2 {
			n = 3
		}
		items := make([]map[string]any, n)
		for i := range items {
			items[i] = map[string]any{"id": fmt.Sprintf("p%d-%d", page, i)}
		}
		// Second page comes back wrapped, like some deployments do.
		if page == 2 {
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
			return
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
	defer srv.Close()

	items, err := testClient(srv).GroupSubRepos(context.Background(), "clife")
	require.NoError(t, err)
	assert.Len(t, items, pageSize+3)
}

func TestListCommitsFallsBackOn404(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/clife/repo/-/git/commits" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "2025-07-01T00:00:00Z", r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]map[string]any{{"sha": "aaa"}})
	}))
	defer srv.Close()

	since := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	items, err := testClient(srv).ListCommits(context.Background(), "clife/repo", &since)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/clife/repo/-/commits", paths[len(paths)-1])
}

func TestListCommitsAll404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := testClient(srv).ListCommits(context.Background(), "clife/empty", nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv).ListMembers(context.Background(), "clife/repo")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestCompareKeepsDotsInPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clife/repo/-/git/compare/aaa...bbb", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"stats": map[string]any{"additions": 5}})
	}))
	defer srv.Close()

	raw, err := testClient(srv).Compare(context.Background(), "clife/repo", "aaa", "bbb")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "additions")
}

func TestUnwrapItems(t *testing.T) {
	items, err := unwrapItems(json.RawMessage(`{"data":[{"id":1}]}`))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = unwrapItems(json.RawMessage(`{"total":0}`))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = unwrapItems(json.RawMessage(`"nope"`))
	assert.Error(t, err)
}
