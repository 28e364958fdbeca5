// Package testgen derives test cases, suites and test documentation from
// user stories.
package testgen

import (
	"strings"
	"time"
)

// TestType classifies a generated test case.
type TestType string

const (
	TypeUnit        TestType = "unit"
	TypeIntegration TestType = "integration"
	TypeEndToEnd    TestType = "end_to_end"
	TypeAPI         TestType = "api"
	TypeUI          TestType = "ui"
	TypePerformance TestType = "performance"
	TypeSecurity    TestType = "security"
)

var testTypeKeywords = map[string]TestType{
	"unit":        TypeUnit,
	"integration": TypeIntegration,
	"e2e":         TypeEndToEnd,
	"end-to-end":  TypeEndToEnd,
	"api":         TypeAPI,
	"ui":          TypeUI,
	"performance": TypePerformance,
	"security":    TypeSecurity,
}

// ParseTestType matches s case-insensitively against the known type
// keywords. Unknown values resolve to unit.
func ParseTestType(s string) TestType {
	if t, ok := testTypeKeywords[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t
	}
	return TypeUnit
}

// Title returns the display form of the type, underscores preserved.
func (t TestType) Title() string {
	parts := strings.Split(string(t), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "_")
}

// TestPriority is the execution priority of a test case.
type TestPriority string

const (
	PriorityLow      TestPriority = "Low"
	PriorityMedium   TestPriority = "Medium"
	PriorityHigh     TestPriority = "High"
	PriorityCritical TestPriority = "Critical"
)

// ParseTestPriority matches s case-insensitively against the known
// priorities. Unknown values resolve to Medium.
func ParseTestPriority(s string) TestPriority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "medium":
		return PriorityMedium
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	}
	return PriorityMedium
}

// TestCase is one generated test. Case IDs restart at 1 for each story.
type TestCase struct {
	ID              int
	Title           string
	Description     string
	Type            TestType
	Priority        TestPriority
	StoryID         int
	StoryTitle      string
	Steps           []string
	ExpectedResults []string
	Prerequisites   []string
	Tags            []string
}

// TestSuite groups one story's cases of a single type. Suite IDs are unique
// across the whole run.
type TestSuite struct {
	ID          int
	Name        string
	Description string
	Type        TestType
	Cases       []TestCase
	StoryIDs    []int
}

func (s TestSuite) TotalTests() int {
	return len(s.Cases)
}

// Documentation is the full test plan for one analysis run.
type Documentation struct {
	RepositoryName          string
	AnalysisDate            time.Time
	TotalTestCases          int
	Suites                  []TestSuite
	Coverage                map[string]float64
	Strategy                string
	EnvironmentRequirements []string
	ExecutionInstructions   string
	MaintenanceNotes        string
	Framework               string
	Language                string
	FocusArea               string
}
