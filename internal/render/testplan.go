package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"storygen/internal/testgen"
)

// TestPlanMarkdown renders a test plan as a Markdown document.
func TestPlanMarkdown(doc *testgen.Documentation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Test Plan for %s\n\n", doc.RepositoryName)

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "**Analysis Date:** %s  \n", doc.AnalysisDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Total Test Cases:** %d  \n", doc.TotalTestCases)
	fmt.Fprintf(&b, "**Test Suites:** %d  \n", len(doc.Suites))
	fmt.Fprintf(&b, "**Framework:** %s  \n", doc.Framework)
	fmt.Fprintf(&b, "**Language:** %s  \n", doc.Language)
	if doc.FocusArea != "" {
		fmt.Fprintf(&b, "**Focus Area:** %s  \n", doc.FocusArea)
	}
	b.WriteString("\n")

	if len(doc.Coverage) > 0 {
		b.WriteString("## Coverage by Test Type\n\n")
		types := make([]string, 0, len(doc.Coverage))
		for t := range doc.Coverage {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "- **%s:** %.1f%%\n", t, doc.Coverage[t])
		}
		b.WriteString("\n")
	}

	for _, suite := range doc.Suites {
		fmt.Fprintf(&b, "## Suite %d: %s\n\n", suite.ID, suite.Name)
		fmt.Fprintf(&b, "%s\n\n", suite.Description)

		for _, c := range suite.Cases {
			fmt.Fprintf(&b, "### %s\n\n", c.Title)
			if c.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", c.Description)
			}
			fmt.Fprintf(&b, "**Type:** %s  \n", c.Type)
			fmt.Fprintf(&b, "**Priority:** %s  \n", c.Priority)
			fmt.Fprintf(&b, "**User Story:** #%d %s  \n\n", c.StoryID, c.StoryTitle)

			writeList(&b, "Steps", c.Steps)
			writeList(&b, "Expected Results", c.ExpectedResults)
			writeList(&b, "Prerequisites", c.Prerequisites)
			if len(c.Tags) > 0 {
				fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(c.Tags, ", "))
			}
		}
	}

	if doc.Strategy != "" {
		b.WriteString("## Testing Strategy\n\n")
		b.WriteString(doc.Strategy)
		b.WriteString("\n\n")
	}

	if len(doc.EnvironmentRequirements) > 0 {
		b.WriteString("## Environment Requirements\n\n")
		for _, req := range doc.EnvironmentRequirements {
			fmt.Fprintf(&b, "- %s\n", req)
		}
		b.WriteString("\n")
	}

	if doc.ExecutionInstructions != "" {
		b.WriteString("## Execution Instructions\n\n")
		b.WriteString(doc.ExecutionInstructions)
		b.WriteString("\n")
	}

	if doc.MaintenanceNotes != "" {
		b.WriteString("## Maintenance Notes\n\n")
		b.WriteString(doc.MaintenanceNotes)
		b.WriteString("\n")
	}

	return b.String()
}

// TestPlanText renders a short plain-text summary of the plan.
func TestPlanText(doc *testgen.Documentation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🧪 Test Plan for %s\n", doc.RepositoryName)
	b.WriteString(strings.Repeat("=", len(doc.RepositoryName)+16))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  • Total Test Cases: %d\n", doc.TotalTestCases)
	fmt.Fprintf(&b, "  • Test Suites: %d\n", len(doc.Suites))
	fmt.Fprintf(&b, "  • Framework: %s\n", doc.Framework)
	fmt.Fprintf(&b, "  • Language: %s\n\n", doc.Language)

	for _, suite := range doc.Suites {
		fmt.Fprintf(&b, "📦 %s (%d tests)\n", suite.Name, suite.TotalTests())
		for _, c := range suite.Cases {
			fmt.Fprintf(&b, "   • [%s/%s] %s\n", c.Type, c.Priority, c.Title)
		}
		b.WriteString("\n")
	}

	return b.String()
}

type testPlanJSON struct {
	RepositoryName string             `json:"repository_name"`
	AnalysisDate   string             `json:"analysis_date"`
	TotalTestCases int                `json:"total_test_cases"`
	Coverage       map[string]float64 `json:"test_coverage"`
	Suites         []testSuiteJSON    `json:"test_suites"`
	Framework      string             `json:"test_framework"`
	Language       string             `json:"test_language"`
}

type testSuiteJSON struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Type        string         `json:"test_type"`
	Cases       []testCaseJSON `json:"test_cases"`
}

type testCaseJSON struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Type            string   `json:"test_type"`
	Priority        string   `json:"priority"`
	StoryID         int      `json:"user_story_id"`
	Steps           []string `json:"test_steps"`
	ExpectedResults []string `json:"expected_results"`
	Prerequisites   []string `json:"prerequisites"`
	Tags            []string `json:"tags"`
}

// TestPlanJSON renders the plan as an indented JSON document.
func TestPlanJSON(doc *testgen.Documentation) (string, error) {
	out := testPlanJSON{
		RepositoryName: doc.RepositoryName,
		AnalysisDate:   doc.AnalysisDate.Format("2006-01-02T15:04:05Z07:00"),
		TotalTestCases: doc.TotalTestCases,
		Coverage:       doc.Coverage,
		Framework:      doc.Framework,
		Language:       doc.Language,
	}
	for _, suite := range doc.Suites {
		sj := testSuiteJSON{
			ID:          suite.ID,
			Name:        suite.Name,
			Description: suite.Description,
			Type:        string(suite.Type),
		}
		for _, c := range suite.Cases {
			sj.Cases = append(sj.Cases, testCaseJSON{
				ID:              c.ID,
				Title:           c.Title,
				Description:     c.Description,
				Type:            string(c.Type),
				Priority:        string(c.Priority),
				StoryID:         c.StoryID,
				Steps:           c.Steps,
				ExpectedResults: c.ExpectedResults,
				Prerequisites:   c.Prerequisites,
				Tags:            c.Tags,
			})
		}
		out.Suites = append(out.Suites, sj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode test plan: %w", err)
	}
	return string(data), nil
}

// RenderTestPlan formats a test plan in the requested format.
func RenderTestPlan(doc *testgen.Documentation, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return TestPlanJSON(doc)
	case FormatMarkdown, FormatHTML:
		return TestPlanMarkdown(doc), nil
	default:
		return TestPlanText(doc), nil
	}
}
