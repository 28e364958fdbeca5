// Package research gathers public web context about a repository before
// analysis. Search runs against the DuckDuckGo HTML endpoint so no API key
// is needed.
package research

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"storygen/internal/github"
)

const (
	defaultSearchURL = "https://html.duckduckgo.com/html/"
	defaultFeedBase  = "https://github.com"
	browserUA        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Result is one piece of gathered context.
type Result struct {
	Title     string
	URL       string
	Snippet   string
	Context   string
	Relevance float64
}

type query struct {
	text     string
	context  string
	priority int
}

// Researcher runs web searches and feed lookups with a shared HTTP client.
type Researcher struct {
	client     *http.Client
	maxResults int
	delay      time.Duration

	// Overridable in tests.
	searchURL string
	feedBase  string
}

func New(maxResults int, timeout time.Duration) *Researcher {
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Researcher{
		client:     &http.Client{Timeout: timeout},
		maxResults: maxResults,
		delay:      time.Second,
		searchURL:  defaultSearchURL,
		feedBase:   defaultFeedBase,
	}
}

// RepositoryContext runs a batch of searches derived from the repository
// metadata. Failed queries are skipped; results are deduplicated by URL and
// sorted by relevance.
func (r *Researcher) RepositoryContext(ctx context.Context, repo *github.Repository) []Result {
	queries := buildQueries(repo)

	var results []Result
	for i, q := range queries {
		found, err := r.search(ctx, q.text)
		if err != nil {
			log.Printf("Search failed for %q: %v", q.text, err)
			continue
		}
		for _, res := range found {
			res.Context = q.context
			results = append(results, res)
		}
		if i < len(queries)-1 {
			select {
			case <-ctx.Done():
				return dedupeAndSort(results, r.maxResults)
			case <-time.After(r.delay):
			}
		}
	}
	return dedupeAndSort(results, r.maxResults)
}

func buildQueries(repo *github.Repository) []query {
	var queries []query
	if repo.Description != "" {
		queries = append(queries, query{
			text:     fmt.Sprintf("%q %s", repo.Name, repo.Description),
			context:  "repository_purpose",
			priority: 1,
		})
	}
	if repo.Language != "" {
		queries = append(queries, query{
			text:     repo.Language + " framework features benefits",
			context:  "technology_stack",
			priority: 2,
		})
	}
	topics := repo.Topics
	if len(topics) > 3 {
		topics = topics[:3]
	}
	for _, topic := range topics {
		queries = append(queries, query{
			text:     topic + " software development use cases",
			context:  "domain_knowledge",
			priority: 3,
		})
	}
	queries = append(queries, query{
		text:     repo.Name + " project analysis review",
		context:  "project_analysis",
		priority: 4,
	})

	sort.SliceStable(queries, func(i, j int) bool { return queries[i].priority < queries[j].priority })
	return queries
}

func (r *Researcher) search(ctx context.Context, q string) ([]Result, error) {
	u := r.searchURL + "?q=" + url.QueryEscape(q) + "&kl=us-en"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	return parseSearchResults(doc, r.maxResults), nil
}

func parseSearchResults(doc *goquery.Document, limit int) []Result {
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())

		results = append(results, Result{
			Title:     title,
			URL:       cleanRedirectURL(href),
			Snippet:   snippet,
			Relevance: relevanceScore(title, snippet),
		})
		return len(results) < limit
	})
	return results
}

// cleanRedirectURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func cleanRedirectURL(raw string) string {
	idx := strings.Index(raw, "uddg=")
	if idx < 0 {
		return raw
	}
	target := raw[idx+len("uddg="):]
	if amp := strings.Index(target, "&"); amp >= 0 {
		target = target[:amp]
	}
	decoded, err := url.QueryUnescape(target)
	if err != nil {
		return raw
	}
	return decoded
}

func relevanceScore(title, snippet string) float64 {
	score := 0.0

	titleLower := strings.ToLower(title)
	for _, word := range []string{"software", "development", "tool", "framework", "library"} {
		if strings.Contains(titleLower, word) {
			score += 0.3
			break
		}
	}

	snippetLower := strings.ToLower(snippet)
	for _, word := range []string{"features", "benefits", "use cases", "examples"} {
		if strings.Contains(snippetLower, word) {
			score += 0.2
			break
		}
	}

	if len(title) > 20 && len(snippet) > 50 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func dedupeAndSort(results []Result, limit int) []Result {
	seen := make(map[string]struct{})
	unique := results[:0]
	for _, res := range results {
		if _, dup := seen[res.URL]; dup {
			continue
		}
		seen[res.URL] = struct{}{}
		unique = append(unique, res)
	}

	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Relevance > unique[j].Relevance })
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

// Releases pulls recent entries from the repository's releases feed. Feed
// failures are not fatal, callers get nil.
func (r *Researcher) Releases(ctx context.Context, owner, name string) []Result {
	feedURL := fmt.Sprintf("%s/%s/%s/releases.atom", r.feedBase, owner, name)

	parser := gofeed.NewParser()
	parser.Client = r.client
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		log.Printf("Failed to parse releases feed for %s/%s: %v", owner, name, err)
		return nil
	}

	var results []Result
	for _, item := range feed.Items {
		if len(results) >= 3 {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		snippet := strings.TrimSpace(item.Content)
		if len(snippet) > 300 {
			snippet = truncate(snippet, 300)
		}
		results = append(results, Result{
			Title:     "Release: " + title,
			URL:       item.Link,
			Snippet:   snippet,
			Context:   "release_notes",
			Relevance: 0.4,
		})
	}
	return results
}

// PageText fetches a page and extracts its readable text. Short extractions
// are treated as boilerplate and dropped.
func (r *Researcher) PageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract page text: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < 100 {
		return "", nil
	}
	return text, nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
