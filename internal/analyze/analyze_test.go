package analyze

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"storygen/internal/github"
	"storygen/internal/llm"
	"storygen/internal/research"
)

type stubStream struct {
	events []*llm.Event
	err    error
	pos    int
}

func (s *stubStream) Next() (*llm.Event, error) {
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func (s *stubStream) Close() error { return nil }

type stubClient struct {
	stream  llm.Stream
	err     error
	queries int
}

func (c *stubClient) Query(ctx context.Context, prompt string, opts llm.Options) (llm.Stream, error) {
	c.queries++
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func textEvent(text string) *llm.Event {
	return &llm.Event{Type: "assistant", Blocks: []llm.Block{{Type: "text", Text: text}}}
}

func testRepo() *github.Repository {
	return &github.Repository{
		Owner:    "acme",
		Name:     "widgets",
		FullName: "acme/widgets",
		Language: "Go",
		Stars:    42,
	}
}

const storiesJSON = `{
	"user_stories": [
		{
			"title": "Export Reports",
			"description": "As a developer, I want to export reports, So that I can share results.",
			"acceptance_criteria": ["Report downloads as a file", "Format is selectable"],
			"priority": "High",
			"effort": "Small",
			"tags": ["api", "web"]
		},
		{
			"title": "Browse History",
			"description": "As a maintainer, I want to browse past runs, So that I can spot regressions.",
			"acceptance_criteria": ["Runs are listed newest first"],
			"priority": "Medium",
			"effort": "Medium",
			"tags": ["web"]
		}
	]
}`

func TestAnalyzeParsesStories(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{textEvent("Here are the stories: " + storiesJSON + " done")}}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 5)
	if len(result.Stories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(result.Stories))
	}

	first := result.Stories[0]
	if first.ID != 1 || first.Title != "Export Reports" {
		t.Errorf("unexpected first story: %+v", first)
	}
	if len(first.AcceptanceCriteria) != 2 {
		t.Errorf("expected 2 criteria, got %d", len(first.AcceptanceCriteria))
	}
	if result.Stories[1].ID != 2 {
		t.Errorf("expected sequential IDs, got %d", result.Stories[1].ID)
	}

	if len(result.KeyFeatures) != 2 || result.KeyFeatures[0] != "Export Reports" {
		t.Errorf("key features = %v", result.KeyFeatures)
	}
	if len(result.TargetUsers) != 2 || result.TargetUsers[0] != "developer" {
		t.Errorf("target users = %v", result.TargetUsers)
	}
	// "web" appears twice but is reported once
	if len(result.TechStack) != 2 {
		t.Errorf("tech stack = %v", result.TechStack)
	}
}

func TestAnalyzeCapsStories(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{textEvent(storiesJSON)}}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 1)
	if len(result.Stories) != 1 {
		t.Errorf("expected cap at 1, got %d", len(result.Stories))
	}
}

func TestAnalyzeZeroMaxStoriesSkipsAgent(t *testing.T) {
	client := &stubClient{}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 0)
	if len(result.Stories) != 0 {
		t.Errorf("expected no stories, got %d", len(result.Stories))
	}
	if client.queries != 0 {
		t.Errorf("expected no agent call, got %d", client.queries)
	}
}

func TestAnalyzeQueryErrorFallsBack(t *testing.T) {
	client := &stubClient{err: errors.New("agent unavailable")}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 3)
	if len(result.Stories) != 3 {
		t.Fatalf("expected 3 fallback stories, got %d", len(result.Stories))
	}
	if result.Stories[0].Title != "User Authentication" {
		t.Errorf("expected fallback catalog, got %q", result.Stories[0].Title)
	}
}

func TestAnalyzeStreamErrorDiscardsPartialResults(t *testing.T) {
	client := &stubClient{stream: &stubStream{
		events: []*llm.Event{textEvent(`{"user_stories": [{"title": "Partial Story"}]}`)},
		err:    errors.New("connection reset"),
	}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 5)
	for _, s := range result.Stories {
		if s.Title == "Partial Story" {
			t.Fatal("partial results should be discarded on stream failure")
		}
	}
	if len(result.Stories) != 5 {
		t.Errorf("expected full fallback catalog, got %d stories", len(result.Stories))
	}
}

func TestAnalyzeProseOnlyResponseFallsBack(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{
		textEvent("I looked at the repository but here is prose with no payload."),
	}}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 3)
	if len(result.Stories) != 3 {
		t.Fatalf("expected 3 fallback stories, got %d", len(result.Stories))
	}
	if result.Stories[0].Title != "User Authentication" {
		t.Errorf("expected fallback catalog, got %q", result.Stories[0].Title)
	}
}

func TestAnalyzeErrorResultFallsBack(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{
		{Type: "result", IsError: true, Result: "rate limited"},
	}}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 2)
	if len(result.Stories) != 2 || result.Stories[0].Title != "User Authentication" {
		t.Errorf("expected fallback stories, got %+v", result.Stories)
	}
}

func TestAnalyzeSkipsMalformedEntries(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{textEvent(
		`{"user_stories": ["not an object", {"title": "Valid Story"}, 42]}`,
	)}}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 5)
	if len(result.Stories) != 1 {
		t.Fatalf("expected 1 story, got %d", len(result.Stories))
	}
	if result.Stories[0].Title != "Valid Story" || result.Stories[0].ID != 1 {
		t.Errorf("unexpected story: %+v", result.Stories[0])
	}
}

func TestAnalyzeEarlyStopAcrossEvents(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{
		textEvent(`{"user_stories": [{"title": "One"}, {"title": "Two"}]}`),
		textEvent(`{"user_stories": [{"title": "Three"}]}`),
	}}}
	a := New(client, llm.Options{})

	result := a.Analyze(context.Background(), testRepo(), nil, "", 2)
	if len(result.Stories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(result.Stories))
	}
	if result.Stories[1].Title != "Two" {
		t.Errorf("unexpected second story: %q", result.Stories[1].Title)
	}
}

func TestBuildPromptTruncatesReadme(t *testing.T) {
	repo := testRepo()
	for len(repo.Readme) <= 2000 {
		repo.Readme += "readme content line\n"
	}

	prompt := buildPrompt(repo, nil, "", 5)
	if len(prompt) == 0 {
		t.Fatal("empty prompt")
	}
	// truncated README is marked with an ellipsis
	if !strings.Contains(prompt, "...") {
		t.Error("expected truncation marker in prompt")
	}
}

func TestBuildPromptTruncatesOnRuneBoundaries(t *testing.T) {
	repo := testRepo()
	repo.Readme = strings.Repeat("é", 1500)

	snippets := []research.Result{{
		Title:   "Multibyte snippet",
		URL:     "https://example.com",
		Snippet: strings.Repeat("ü", 400),
	}}

	prompt := buildPrompt(repo, snippets, "", 5)
	if !utf8.ValidString(prompt) {
		t.Error("prompt contains invalid UTF-8 after truncation")
	}
}

func TestBuildPromptIncludesFocusArea(t *testing.T) {
	prompt := buildPrompt(testRepo(), nil, "security", 5)
	if !strings.Contains(prompt, "Focus Area: security") {
		t.Error("expected focus area in prompt")
	}
}
