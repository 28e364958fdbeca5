package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"storygen/internal/github"
)

const searchFixture = `
<html><body>
<div class="result">
  <a class="result__a" href="/l/?uddg=https%3A%2F%2Fexample.com%2Fwidgets">Widgets software framework</a>
  <a class="result__snippet">Key features and use cases of the widgets framework for production systems.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.org/other">Other page</a>
  <a class="result__snippet">short</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/widgets">Widgets software framework again</a>
  <a class="result__snippet">Key features and use cases, duplicate target.</a>
</div>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(searchFixture))
	if err != nil {
		t.Fatalf("failed to build document: %v", err)
	}

	results := parseSearchResults(doc, 5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].URL != "https://example.com/widgets" {
		t.Errorf("redirect URL not unwrapped: %q", results[0].URL)
	}
	if results[0].Title != "Widgets software framework" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].Relevance <= results[1].Relevance {
		t.Errorf("expected first result to score higher: %v vs %v", results[0].Relevance, results[1].Relevance)
	}
}

func TestParseSearchResultsLimit(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(searchFixture))
	results := parseSearchResults(doc, 1)
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestCleanRedirectURL(t *testing.T) {
	cases := map[string]string{
		"/l/?uddg=https%3A%2F%2Fexample.com%2Fa":            "https://example.com/a",
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fx.io&rut=1": "https://x.io",
		"https://plain.example.com/page":                    "https://plain.example.com/page",
	}
	for in, want := range cases {
		if got := cleanRedirectURL(in); got != want {
			t.Errorf("cleanRedirectURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelevanceScore(t *testing.T) {
	high := relevanceScore(
		"A software development framework for building tools",
		"Covers the features and benefits with plenty of worked examples for new users.",
	)
	low := relevanceScore("Blog", "hi")
	if high <= low {
		t.Errorf("expected keyword-rich result to score higher: %v vs %v", high, low)
	}
	if high > 1.0 {
		t.Errorf("score above 1.0: %v", high)
	}
}

func TestDedupeAndSort(t *testing.T) {
	in := []Result{
		{URL: "a", Relevance: 0.1},
		{URL: "b", Relevance: 0.9},
		{URL: "a", Relevance: 0.5},
		{URL: "c", Relevance: 0.5},
	}
	out := dedupeAndSort(in, 5)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique results, got %d", len(out))
	}
	if out[0].URL != "b" {
		t.Errorf("expected highest relevance first, got %q", out[0].URL)
	}

	out = dedupeAndSort(in, 2)
	if len(out) != 2 {
		t.Errorf("expected cap at 2, got %d", len(out))
	}
}

func TestBuildQueriesOrder(t *testing.T) {
	repo := &github.Repository{
		Name:        "widgets",
		Description: "Widget toolkit",
		Language:    "Go",
		Topics:      []string{"cli", "tooling", "automation", "extra"},
	}
	queries := buildQueries(repo)

	// description + language + 3 topics + general
	if len(queries) != 6 {
		t.Fatalf("expected 6 queries, got %d", len(queries))
	}
	if queries[0].context != "repository_purpose" {
		t.Errorf("first query context = %q", queries[0].context)
	}
	if queries[len(queries)-1].context != "project_analysis" {
		t.Errorf("last query context = %q", queries[len(queries)-1].context)
	}
}

func TestRepositoryContextOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, searchFixture)
	}))
	defer srv.Close()

	r := New(5, 5*time.Second)
	r.searchURL = srv.URL
	r.delay = 0

	results := r.RepositoryContext(context.Background(), &github.Repository{Name: "widgets"})
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for _, res := range results {
		if res.Context == "" {
			t.Errorf("result %q missing context tag", res.URL)
		}
	}
}

func TestReleases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/widgets/releases.atom" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release notes from widgets</title>
  <entry>
    <title>v1.2.0</title>
    <link href="https://example.com/releases/v1.2.0"/>
    <content type="html">Adds incremental output</content>
  </entry>
  <entry>
    <title>v1.1.0</title>
    <link href="https://example.com/releases/v1.1.0"/>
    <content type="html">Bug fixes</content>
  </entry>
</feed>`)
	}))
	defer srv.Close()

	r := New(5, 5*time.Second)
	r.feedBase = srv.URL

	results := r.Releases(context.Background(), "acme", "widgets")
	if len(results) != 2 {
		t.Fatalf("expected 2 release results, got %d", len(results))
	}
	if results[0].Title != "Release: v1.2.0" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].Context != "release_notes" {
		t.Errorf("context = %q", results[0].Context)
	}
}

func TestPageText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Doc</title></head><body><article><p>`+
			strings.Repeat("Readable sentence about the widgets framework. ", 10)+
			`</p></article></body></html>`)
	}))
	defer srv.Close()

	r := New(5, 5*time.Second)
	text, err := r.PageText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "widgets framework") {
		t.Errorf("extracted text missing content: %q", text)
	}
}
