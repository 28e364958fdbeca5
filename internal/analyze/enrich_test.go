package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storygen/internal/llm"
)

const enrichmentJSON = `{
	"system_architecture": {
		"system_diagram": "graph TB\n A --> B",
		"api_flow_diagram": "graph LR\n C --> D"
	},
	"api_analysis": {
		"endpoints": ["GET /widgets", "POST /widgets"],
		"data_formats": ["JSON"]
	},
	"technical_deep_dive": {
		"technology_stack": {"backend": ["Go"], "frontend": "React"},
		"build_system": {"type": "Make"},
		"performance_optimizations": ["caching"]
	},
	"comprehensive_report": "# Report"
}`

func TestParseEnrichment(t *testing.T) {
	obj := llm.ExtractJSON(enrichmentJSON)
	if obj == nil {
		t.Fatal("fixture did not parse")
	}

	e := parseEnrichment(obj)
	if e.Architecture == nil || e.Architecture.SystemDiagram == "" {
		t.Fatalf("architecture missing: %+v", e.Architecture)
	}
	if e.API == nil || len(e.API.Endpoints) != 2 {
		t.Fatalf("api analysis missing: %+v", e.API)
	}
	if e.DeepDive == nil {
		t.Fatal("deep dive missing")
	}
	// scalar stack values are promoted to single-element lists
	if got := e.DeepDive.TechnologyStack["frontend"]; len(got) != 1 || got[0] != "React" {
		t.Errorf("frontend stack = %v", got)
	}
	if e.DeepDive.BuildSystem["type"] != "Make" {
		t.Errorf("build system = %v", e.DeepDive.BuildSystem)
	}
	if e.Report != "# Report" {
		t.Errorf("report = %q", e.Report)
	}
}

func TestParseEnrichmentSectionsIndependent(t *testing.T) {
	obj := map[string]any{
		"system_architecture": "not an object",
		"api_analysis":        map[string]any{"endpoints": []any{"GET /x"}},
	}

	e := parseEnrichment(obj)
	if e.Architecture != nil {
		t.Error("malformed architecture should be dropped")
	}
	if e.API == nil || len(e.API.Endpoints) != 1 {
		t.Errorf("valid section should survive: %+v", e.API)
	}
}

func TestEnrichmentMerge(t *testing.T) {
	base := &Enrichment{Report: "old"}
	base.Merge(&Enrichment{API: &APIAnalysis{Endpoints: []string{"GET /a"}}})
	base.Merge(&Enrichment{Report: "new"})
	base.Merge(nil)

	if base.API == nil {
		t.Error("merged API section lost")
	}
	if base.Report != "new" {
		t.Errorf("report = %q", base.Report)
	}
}

func TestEnrichSuccess(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{textEvent("analysis: " + enrichmentJSON)}}}
	e := NewEnricher(client, llm.Options{})

	got := e.Enrich(context.Background(), testRepo(), true, true)
	if got.Report != "# Report" {
		t.Errorf("report = %q", got.Report)
	}
	if got.Architecture == nil {
		t.Error("expected parsed architecture")
	}
}

func TestEnrichFallsBackOnQueryError(t *testing.T) {
	client := &stubClient{err: errors.New("agent unavailable")}
	e := NewEnricher(client, llm.Options{})

	got := e.Enrich(context.Background(), testRepo(), true, true)
	if got == nil || got.Architecture == nil || got.DeepDive == nil {
		t.Fatal("expected generic enrichment")
	}
	if !strings.Contains(got.Architecture.SystemDiagram, "widgets") {
		t.Errorf("generic diagram should name the repository: %q", got.Architecture.SystemDiagram)
	}
}

func TestEnrichFallsBackOnEmptyResponse(t *testing.T) {
	client := &stubClient{stream: &stubStream{events: []*llm.Event{textEvent("no json here")}}}
	e := NewEnricher(client, llm.Options{})

	got := e.Enrich(context.Background(), testRepo(), true, true)
	if got.Report == "" {
		t.Error("expected generic report")
	}
}

func TestGenericEnrichmentAdoptionTiers(t *testing.T) {
	repo := testRepo()

	repo.Stars = 50
	if e := genericEnrichment(repo); !strings.Contains(e.Report, "emerging") {
		t.Error("expected emerging tier")
	}
	repo.Stars = 5000
	if e := genericEnrichment(repo); !strings.Contains(e.Report, "moderate") {
		t.Error("expected moderate tier")
	}
	repo.Stars = 50000
	if e := genericEnrichment(repo); !strings.Contains(e.Report, "high") {
		t.Error("expected high tier")
	}
}
