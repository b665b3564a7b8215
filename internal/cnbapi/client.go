// Package cnbapi is a thin client for the source-hosting REST API. It keeps
// payloads as raw JSON; the facts layer owns all field interpretation.
package cnbapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clifelab/devpulse/schema"
)

// pageSize is the page_size sent on every list request.
const pageSize = 100

// userAgent identifies the client to the API.
const userAgent = "devpulse/1.0"

// StatusError is a non-2xx API response.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned HTTP %d for %s", e.Code, e.Path)
}

// IsNotFound reports whether err is an HTTP 404 from the API. Empty repos
// surface as 404 on the commit routes; callers treat that as zero commits.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to one hosting API instance. The auth header and prefix are
// configurable because token types differ in how they are presented.
type Client struct {
	baseURL    string
	token      string
	authHeader string
	authPrefix string
	http       *http.Client
}

// New builds a client from the runtime configuration.
func New(cfg *schema.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		token:      cfg.APIToken,
		authHeader: cfg.APIAuthHeader,
		authPrefix: cfg.APIAuthPrefix,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// GroupSubRepos lists every repo visible under a group slug.
func (c *Client) GroupSubRepos(ctx context.Context, group string) ([]json.RawMessage, error) {
	return c.pagedList(ctx, "/"+escapeSlug(group)+"/-/repos", nil)
}

// TopContributors lists the most active users of a repo. The route is not
// paged.
func (c *Client) TopContributors(ctx context.Context, repo string) ([]json.RawMessage, error) {
	body, err := c.getJSON(ctx, "/"+escapeSlug(repo)+"/-/top-activity-users", nil)
	if err != nil {
		return nil, err
	}
	return unwrapItems(body)
}

// ListMembers lists the valid members of a repo.
func (c *Client) ListMembers(ctx context.Context, repo string) ([]json.RawMessage, error) {
	return c.pagedList(ctx, "/"+escapeSlug(repo)+"/-/list-members", nil)
}

// ListCommits lists commits for a repo, optionally restricted to commits at
// or after since. The commits route moved across API versions, so a 404
// falls through to the older paths before giving up.
func (c *Client) ListCommits(ctx context.Context, repo string, since *time.Time) ([]json.RawMessage, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	slug := escapeSlug(repo)
	paths := []string{
		"/" + slug + "/-/git/commits",
		"/" + slug + "/-/commits",
		"/" + slug + "/-/repository/commits",
		"/repos/" + slug + "/commits",
	}
	var lastErr error
	for _, path := range paths {
		items, err := c.pagedList(ctx, path, query)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// Compare returns the base...head comparison, the source of per-commit diff
// stats.
func (c *Client) Compare(ctx context.Context, repo, base, head string) (json.RawMessage, error) {
	path := "/" + escapeSlug(repo) + "/-/git/compare/" +
		url.PathEscape(base) + "..." + url.PathEscape(head)
	return c.getJSON(ctx, path, nil)
}

// pagedList walks page/page_size pagination until a short page.
func (c *Client) pagedList(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for page := 1; ; page++ {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))

		body, err := c.getJSON(ctx, path, q)
		if err != nil {
			return nil, err
		}
		items, err := unwrapItems(body)
		if err != nil {
			return nil, fmt.Errorf("unexpected paging response for %s: %w", path, err)
		}
		out = append(out, items...)
		if len(items) < pageSize {
			return out, nil
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	value := c.token
	if c.authPrefix != "" {
		value = c.authPrefix + " " + c.token
	}
	req.Header.Set(c.authHeader, value)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Path: path}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// unwrapItems accepts a bare JSON array or an object wrapping one under
// items, data or list.
func unwrapItems(body json.RawMessage) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errors.New("payload is neither array nor object")
	}
	for _, k := range []string{"items", "data", "list"} {
		raw, ok := obj[k]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, &arr); err == nil {
			return arr, nil
		}
	}
	return nil, nil
}

// escapeSlug escapes each path segment of a repo or group slug while keeping
// the slashes. Encoding them routes to 404 on some deployments.
func escapeSlug(slug string) string {
	parts := strings.Split(slug, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
