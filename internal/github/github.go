// Package github fetches repository metadata from the GitHub REST API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRepositoryNotFound marks a 404 on the repository lookup. Callers match
// it with errors.Is to distinguish a bad repo name from API failures.
var ErrRepositoryNotFound = errors.New("repository not found")

// Repository is the metadata bundle the analysis engine works from.
type Repository struct {
	Owner         string
	Name          string
	FullName      string
	Description   string
	Language      string
	Stars         int
	Forks         int
	Topics        []string
	Readme        string
	License       string
	Size          int
	DefaultBranch string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RateLimit is one rate-limit bucket from the /rate_limit endpoint.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimits holds the buckets the CLI reports.
type RateLimits struct {
	Core   RateLimit
	Search RateLimit
}

// SplitRepo validates and splits an "owner/name" reference.
func SplitRepo(ref string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(ref, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/name", ref)
	}
	return owner, name, nil
}

// Client talks to the GitHub REST API v3. A token is optional but
// unauthenticated requests are heavily rate limited.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode github response: %w", err)
	}
	return resp.StatusCode, nil
}

type repoResponse struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	Size        int    `json:"size"`
	Default     string `json:"default_branch"`
	License     *struct {
		Name string `json:"name"`
	} `json:"license"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository fetches metadata, README and topics for owner/name. README and
// topic failures are tolerated, a missing repository is not.
func (c *Client) Repository(ctx context.Context, owner, name string) (*Repository, error) {
	var rr repoResponse
	status, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, name), &rr)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%s/%s: %w", owner, name, ErrRepositoryNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("github API returned status %d for %s/%s", status, owner, name)
	}

	repo := &Repository{
		Owner:         owner,
		Name:          name,
		FullName:      rr.FullName,
		Description:   rr.Description,
		Language:      rr.Language,
		Stars:         rr.Stars,
		Forks:         rr.Forks,
		Size:          rr.Size,
		DefaultBranch: rr.Default,
		CreatedAt:     rr.CreatedAt,
		UpdatedAt:     rr.UpdatedAt,
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	if rr.License != nil {
		repo.License = rr.License.Name
	}
	repo.Readme = c.readme(ctx, owner, name)
	repo.Topics = c.topics(ctx, owner, name)
	return repo, nil
}

func (c *Client) readme(ctx context.Context, owner, name string) string {
	var body struct {
		Content string `json:"content"`
	}
	status, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/readme", owner, name), &body)
	if err != nil || status != http.StatusOK {
		return ""
	}
	// The API wraps base64 content at 60 columns.
	raw := strings.ReplaceAll(body.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func (c *Client) topics(ctx context.Context, owner, name string) []string {
	var body struct {
		Names []string `json:"names"`
	}
	status, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/topics", owner, name), &body)
	if err != nil || status != http.StatusOK {
		return nil
	}
	return body.Names
}

type rateLimitResponse struct {
	Resources map[string]struct {
		Limit     int   `json:"limit"`
		Remaining int   `json:"remaining"`
		Reset     int64 `json:"reset"`
	} `json:"resources"`
}

// RateLimits reports the core and search rate-limit buckets.
func (c *Client) RateLimits(ctx context.Context) (*RateLimits, error) {
	var body rateLimitResponse
	status, err := c.get(ctx, "/rate_limit", &body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("github API returned status %d for rate limit", status)
	}

	var out RateLimits
	if core, ok := body.Resources["core"]; ok {
		out.Core = RateLimit{Limit: core.Limit, Remaining: core.Remaining, Reset: time.Unix(core.Reset, 0)}
	}
	if search, ok := body.Resources["search"]; ok {
		out.Search = RateLimit{Limit: search.Limit, Remaining: search.Remaining, Reset: time.Unix(search.Reset, 0)}
	}
	return &out, nil
}
