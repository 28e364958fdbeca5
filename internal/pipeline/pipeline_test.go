package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storygen/internal/config"
	"storygen/internal/github"
	"storygen/internal/llm"
	"storygen/internal/render"
)

type failingClient struct{}

func (failingClient) Query(ctx context.Context, prompt string, opts llm.Options) (llm.Stream, error) {
	return nil, errors.New("agent unavailable")
}

func newGitHubStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"full_name": "acme/widgets",
			"description": "Widget toolkit",
			"language": "Go",
			"stargazers_count": 42,
			"forks_count": 7,
			"default_branch": "main",
			"created_at": "2020-01-02T03:04:05Z",
			"updated_at": "2024-05-06T07:08:09Z"
		}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, baseURL string) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.GitHub.BaseURL = baseURL
	cfg.GitHub.Cache = false
	cfg.Research.Enabled = false
	return &Pipeline{
		cfg:    cfg,
		gh:     github.NewClient(baseURL, "", 5*time.Second),
		client: failingClient{},
	}
}

func TestRunProducesAllSteps(t *testing.T) {
	srv := newGitHubStub(t)
	p := newTestPipeline(t, srv.URL)

	outPath := filepath.Join(t.TempDir(), "stories.md")
	result := p.Run(context.Background(), Options{
		Owner:      "acme",
		Name:       "widgets",
		MaxStories: 3,
		Format:     render.FormatMarkdown,
		OutputPath: outPath,
	})

	if len(result.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d: %+v", len(result.Steps), result.Steps)
	}
	names := []string{"Fetch", "Research", "Analyze", "Enrich", "Tests", "Save"}
	for i, want := range names {
		if result.Steps[i].Name != want {
			t.Errorf("step %d = %q, want %q", i, result.Steps[i].Name, want)
		}
		if result.Steps[i].Err != nil {
			t.Errorf("step %s failed: %v", want, result.Steps[i].Err)
		}
	}

	// The agent is unavailable, so the analyzer falls back to its catalog.
	if len(result.Analysis.Stories) != 3 {
		t.Errorf("stories = %d, want 3", len(result.Analysis.Stories))
	}
	if result.Analysis.Enrichment == nil {
		t.Error("expected generic enrichment when agent is down")
	}
	if result.TestPlan != nil {
		t.Error("test plan should be nil when generation is disabled")
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(data), "acme/widgets") {
		t.Errorf("output missing repository name:\n%s", data)
	}
	if result.OutputPath != outPath {
		t.Errorf("output path = %q", result.OutputPath)
	}
}

func TestRunStopsOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	p := newTestPipeline(t, srv.URL)

	result := p.Run(context.Background(), Options{Owner: "nobody", Name: "nothing"})

	if len(result.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(result.Steps))
	}
	if !errors.Is(result.Steps[0].Err, github.ErrRepositoryNotFound) {
		t.Errorf("fetch error = %v", result.Steps[0].Err)
	}
	if result.Analysis != nil {
		t.Error("analysis should be nil after fetch failure")
	}
}

func TestRunGeneratesTestPlan(t *testing.T) {
	srv := newGitHubStub(t)
	p := newTestPipeline(t, srv.URL)

	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	result := p.Run(context.Background(), Options{
		Owner:         "acme",
		Name:          "widgets",
		MaxStories:    2,
		Format:        render.FormatJSON,
		GenerateTests: true,
	})

	if result.TestPlan == nil {
		t.Fatal("expected a test plan")
	}
	// Each story degrades to one placeholder case when the agent is down.
	if result.TestPlan.TotalTestCases != 2 {
		t.Errorf("total cases = %d", result.TestPlan.TotalTestCases)
	}
	if result.TestPlanPath == "" {
		t.Fatal("test plan path not recorded")
	}
	if !strings.HasSuffix(result.TestPlanPath, "acme-widgets-test-plan.json") {
		t.Errorf("test plan path = %q", result.TestPlanPath)
	}
	if _, err := os.Stat(result.TestPlanPath); err != nil {
		t.Errorf("test plan not written: %v", err)
	}
	if !strings.HasSuffix(result.OutputPath, "acme-widgets-user-stories.json") {
		t.Errorf("output path = %q", result.OutputPath)
	}
}

func TestDryRunExecutesNothing(t *testing.T) {
	p := newTestPipeline(t, "http://unreachable.invalid")

	result := p.DryRun(Options{
		Owner:  "acme",
		Name:   "widgets",
		Format: render.FormatText,
	})

	if len(result.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(result.Steps))
	}
	for _, step := range result.Steps {
		if step.Err != nil {
			t.Errorf("dry run step %s failed: %v", step.Name, step.Err)
		}
		if !strings.HasPrefix(step.Summary, "[dry-run]") {
			t.Errorf("step %s summary = %q", step.Name, step.Summary)
		}
	}
	if result.Analysis != nil {
		t.Error("dry run must not analyze")
	}
}
