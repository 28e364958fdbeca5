package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"storygen/internal/analyze"
	"storygen/internal/cache"
	"storygen/internal/config"
	"storygen/internal/github"
	"storygen/internal/llm"
	"storygen/internal/render"
	"storygen/internal/research"
	"storygen/internal/testgen"
)

// cacheMaxAge bounds how long a cached repository snapshot stays fresh.
const cacheMaxAge = 24 * time.Hour

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Options selects what a single pipeline run produces.
type Options struct {
	Owner         string
	Name          string
	FocusArea     string
	MaxStories    int
	Format        render.Format
	OutputPath    string
	GenerateTests bool
	SkipResearch  bool
	SkipEnrich    bool
	SkipSave      bool
}

// Result holds the results of a full pipeline run.
type Result struct {
	Repository   string
	Steps        []StepResult
	Analysis     *analyze.Result
	TestPlan     *testgen.Documentation
	OutputPath   string
	TestPlanPath string
}

// Pipeline orchestrates the 6-step story generation pipeline.
type Pipeline struct {
	cfg    *config.Config
	gh     *github.Client
	store  *cache.Cache
	client llm.Client
}

// New creates a new pipeline. store may be nil to disable caching.
func New(cfg *config.Config, store *cache.Cache) *Pipeline {
	token := os.Getenv(cfg.GitHub.TokenEnv)
	return &Pipeline{
		cfg:    cfg,
		gh:     github.NewClient(cfg.GitHub.BaseURL, token, cfg.GitHubTimeout()),
		store:  store,
		client: llm.NewCLIClient(cfg.Agent.Bin),
	}
}

func (p *Pipeline) agentOptions() llm.Options {
	a := p.cfg.Agent
	return llm.Options{
		SystemPrompt:   a.SystemPrompt,
		MaxTurns:       a.MaxTurns,
		AllowedTools:   a.AllowedTools,
		PermissionMode: a.PermissionMode,
	}
}

// Run executes the full pipeline for one repository.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{Repository: opts.Owner + "/" + opts.Name}

	// Step 1: Fetch
	repo, step := p.runFetch(ctx, opts.Owner, opts.Name)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Research
	webResults, step := p.runResearch(ctx, repo, opts)
	r.Steps = append(r.Steps, step)

	// Step 3: Analyze
	analysis, step := p.runAnalyze(ctx, repo, webResults, opts)
	r.Steps = append(r.Steps, step)
	r.Analysis = analysis

	// Step 4: Enrich
	step = p.runEnrich(ctx, analysis, opts)
	r.Steps = append(r.Steps, step)

	// Step 5: Tests
	plan, step := p.runTests(ctx, analysis, opts)
	r.Steps = append(r.Steps, step)
	r.TestPlan = plan

	// Step 6: Save
	step = p.runSave(r, opts)
	r.Steps = append(r.Steps, step)

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(opts Options) *Result {
	fullName := opts.Owner + "/" + opts.Name
	r := &Result{Repository: fullName}

	fetchSummary := fmt.Sprintf("[dry-run] Would fetch %s from %s", fullName, p.cfg.GitHub.BaseURL)
	if p.store != nil && p.cfg.GitHub.Cache {
		if _, ok, _ := p.store.Get(fullName, cacheMaxAge); ok {
			fetchSummary = fmt.Sprintf("[dry-run] %s is cached and fresh", fullName)
		}
	}
	r.Steps = append(r.Steps, StepResult{Name: "Fetch", Summary: fetchSummary})

	researchSummary := fmt.Sprintf("[dry-run] Would gather up to %d web results", p.cfg.Research.MaxResults)
	if !p.cfg.Research.Enabled || opts.SkipResearch {
		researchSummary = "[dry-run] Research disabled"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Research", Summary: researchSummary})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("[dry-run] Would generate up to %d user stories via %s", opts.MaxStories, p.cfg.Agent.Bin),
	})

	enrichSummary := "[dry-run] Would run architecture and API deep dive"
	if !p.enrichEnabled(opts) {
		enrichSummary = "[dry-run] Enrichment disabled"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Enrich", Summary: enrichSummary})

	testsSummary := fmt.Sprintf("[dry-run] Would generate up to %d test cases per story", p.cfg.Tests.MaxPerStory)
	if !opts.GenerateTests {
		testsSummary = "[dry-run] Test generation disabled"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Tests", Summary: testsSummary})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Save",
		Summary: fmt.Sprintf("[dry-run] Would save %s output to %s", opts.Format, p.outputPath(opts)),
	})

	return r
}

func (p *Pipeline) runFetch(ctx context.Context, owner, name string) (*github.Repository, StepResult) {
	log.Println("Step 1/6: Fetching repository metadata...")
	fullName := owner + "/" + name

	if p.store != nil && p.cfg.GitHub.Cache {
		if repo, ok, err := p.store.Get(fullName, cacheMaxAge); err != nil {
			log.Printf("Cache lookup failed for %s: %v", fullName, err)
		} else if ok {
			return repo, StepResult{
				Name:    "Fetch",
				Summary: fmt.Sprintf("Loaded %s from cache (%s, %d stars)", fullName, orUnknown(repo.Language), repo.Stars),
			}
		}
	}

	repo, err := p.gh.Repository(ctx, owner, name)
	if err != nil {
		return nil, StepResult{Name: "Fetch", Err: err}
	}

	if p.store != nil && p.cfg.GitHub.Cache {
		if err := p.store.Put(repo); err != nil {
			log.Printf("Failed to cache %s: %v", fullName, err)
		}
	}

	return repo, StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %s (%s, %d stars)", fullName, orUnknown(repo.Language), repo.Stars),
	}
}

func (p *Pipeline) runResearch(ctx context.Context, repo *github.Repository, opts Options) ([]research.Result, StepResult) {
	log.Println("Step 2/6: Researching web context...")
	if !p.cfg.Research.Enabled || opts.SkipResearch {
		return nil, StepResult{Name: "Research", Summary: "Research disabled"}
	}

	timeout := time.Duration(p.cfg.Research.TimeoutSeconds) * time.Second
	researcher := research.New(p.cfg.Research.MaxResults, timeout)

	results := researcher.RepositoryContext(ctx, repo)
	releases := researcher.Releases(ctx, repo.Owner, repo.Name)
	results = append(results, releases...)

	return results, StepResult{
		Name:    "Research",
		Summary: fmt.Sprintf("Gathered %d web results (%d release notes)", len(results), len(releases)),
	}
}

func (p *Pipeline) runAnalyze(ctx context.Context, repo *github.Repository, webResults []research.Result, opts Options) (*analyze.Result, StepResult) {
	log.Println("Step 3/6: Generating user stories...")

	maxStories := opts.MaxStories
	if maxStories == 0 {
		maxStories = p.cfg.Analysis.MaxStories
	}
	focus := opts.FocusArea
	if focus == "" {
		focus = p.cfg.Analysis.FocusArea
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AgentTimeout())
	defer cancel()

	analyzer := analyze.New(p.client, p.agentOptions())
	result := analyzer.Analyze(actx, repo, webResults, focus, maxStories)

	return result, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("Generated %d user stories", len(result.Stories)),
	}
}

func (p *Pipeline) enrichEnabled(opts Options) bool {
	if opts.SkipEnrich {
		return false
	}
	return p.cfg.Analysis.IncludeArchitecture || p.cfg.Analysis.IncludeAPIAnalysis
}

func (p *Pipeline) runEnrich(ctx context.Context, analysis *analyze.Result, opts Options) StepResult {
	log.Println("Step 4/6: Running technical deep dive...")
	if !p.enrichEnabled(opts) {
		return StepResult{Name: "Enrich", Summary: "Enrichment disabled"}
	}

	ectx, cancel := context.WithTimeout(ctx, p.cfg.AgentTimeout())
	defer cancel()

	enricher := analyze.NewEnricher(p.client, p.agentOptions())
	enrichment := enricher.Enrich(
		ectx,
		analysis.Repository,
		p.cfg.Analysis.IncludeArchitecture,
		p.cfg.Analysis.IncludeAPIAnalysis,
	)

	if analysis.Enrichment == nil {
		analysis.Enrichment = enrichment
	} else {
		analysis.Enrichment.Merge(enrichment)
	}

	sections := 0
	if enrichment != nil {
		if enrichment.Architecture != nil {
			sections++
		}
		if enrichment.API != nil {
			sections++
		}
		if enrichment.DeepDive != nil {
			sections++
		}
		if enrichment.Report != "" {
			sections++
		}
	}
	return StepResult{
		Name:    "Enrich",
		Summary: fmt.Sprintf("Produced %d enrichment sections", sections),
	}
}

func (p *Pipeline) runTests(ctx context.Context, analysis *analyze.Result, opts Options) (*testgen.Documentation, StepResult) {
	log.Println("Step 5/6: Generating test plan...")
	if !opts.GenerateTests {
		return nil, StepResult{Name: "Tests", Summary: "Test generation disabled"}
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.AgentTimeout())
	defer cancel()

	t := p.cfg.Tests
	generator := testgen.NewGenerator(p.client, testgen.Config{
		IncludeUnit:        t.IncludeUnit,
		IncludeIntegration: t.IncludeIntegration,
		IncludeE2E:         t.IncludeE2E,
		IncludeAPI:         t.IncludeAPI,
		MaxPerStory:        t.MaxPerStory,
		FocusArea:          opts.FocusArea,
	})
	plan := generator.Generate(tctx, analysis)

	return plan, StepResult{
		Name:    "Tests",
		Summary: fmt.Sprintf("Generated %d test cases in %d suites", plan.TotalTestCases, len(plan.Suites)),
	}
}

func (p *Pipeline) runSave(r *Result, opts Options) StepResult {
	log.Println("Step 6/6: Saving output...")
	if opts.SkipSave {
		return StepResult{Name: "Save", Summary: "Save disabled"}
	}

	content, err := render.Render(r.Analysis, opts.Format)
	if err != nil {
		return StepResult{Name: "Save", Err: err}
	}

	path := p.outputPath(opts)
	if err := render.Save(content, path); err != nil {
		return StepResult{Name: "Save", Err: err}
	}
	r.OutputPath = path

	summary := fmt.Sprintf("Saved %s output to %s", opts.Format, path)
	if r.TestPlan != nil {
		planContent, err := render.RenderTestPlan(r.TestPlan, opts.Format)
		if err != nil {
			return StepResult{Name: "Save", Err: err}
		}
		planPath := testPlanFilename(opts.Owner, opts.Name, opts.Format)
		if err := render.Save(planContent, planPath); err != nil {
			return StepResult{Name: "Save", Err: err}
		}
		r.TestPlanPath = planPath
		summary += fmt.Sprintf(", test plan to %s", planPath)
	}

	return StepResult{Name: "Save", Summary: summary}
}

func (p *Pipeline) outputPath(opts Options) string {
	if opts.OutputPath != "" {
		return opts.OutputPath
	}
	return render.DefaultFilename(opts.Owner, opts.Name, opts.Format)
}

func testPlanFilename(owner, name string, format render.Format) string {
	return fmt.Sprintf("%s-%s-test-plan%s", owner, name, format.Extension())
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
