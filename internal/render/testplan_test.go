package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"storygen/internal/testgen"
)

func samplePlan() *testgen.Documentation {
	return &testgen.Documentation{
		RepositoryName: "acme/widgets",
		AnalysisDate:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TotalTestCases: 2,
		Suites: []testgen.TestSuite{
			{
				ID:          1,
				Name:        "Unit Tests for Login",
				Description: "Test suite covering unit testing for user story: Login",
				Type:        testgen.TypeUnit,
				Cases: []testgen.TestCase{
					{
						ID:         1,
						Title:      "Valid login",
						Type:       testgen.TypeUnit,
						Priority:   testgen.PriorityHigh,
						StoryID:    1,
						StoryTitle: "Login",
						Steps:      []string{"1. Submit credentials"},
					},
					{
						ID:         2,
						Title:      "Invalid login",
						Type:       testgen.TypeUnit,
						Priority:   testgen.PriorityCritical,
						StoryID:    1,
						StoryTitle: "Login",
					},
				},
				StoryIDs: []int{1},
			},
		},
		Coverage:                map[string]float64{"unit": 100},
		Strategy:                "Test early and often.",
		EnvironmentRequirements: []string{"Go toolchain"},
		ExecutionInstructions:   "Run the suite.",
		MaintenanceNotes:        "Keep tests current.",
		Framework:               "pytest",
		Language:                "Python",
	}
}

func TestTestPlanMarkdown(t *testing.T) {
	out := TestPlanMarkdown(samplePlan())

	for _, want := range []string{
		"# Test Plan for acme/widgets",
		"## Suite 1: Unit Tests for Login",
		"### Valid login",
		"**unit:** 100.0%",
		"## Testing Strategy",
		"## Environment Requirements",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestTestPlanText(t *testing.T) {
	out := TestPlanText(samplePlan())
	if !strings.Contains(out, "Total Test Cases: 2") {
		t.Error("missing case count")
	}
	if !strings.Contains(out, "[unit/Critical] Invalid login") {
		t.Errorf("missing case line:\n%s", out)
	}
}

func TestTestPlanJSON(t *testing.T) {
	out, err := TestPlanJSON(samplePlan())
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["repository_name"] != "acme/widgets" {
		t.Errorf("repository_name = %v", decoded["repository_name"])
	}
	suites, ok := decoded["test_suites"].([]any)
	if !ok || len(suites) != 1 {
		t.Fatalf("test_suites = %v", decoded["test_suites"])
	}
}

func TestRenderTestPlanDispatch(t *testing.T) {
	plan := samplePlan()

	out, err := RenderTestPlan(plan, FormatJSON)
	if err != nil || !strings.HasPrefix(out, "{") {
		t.Errorf("json dispatch failed: %v", err)
	}

	out, _ = RenderTestPlan(plan, FormatMarkdown)
	if !strings.HasPrefix(out, "# Test Plan") {
		t.Error("markdown dispatch failed")
	}

	out, _ = RenderTestPlan(plan, FormatText)
	if !strings.HasPrefix(out, "🧪") {
		t.Error("text dispatch failed")
	}
}
