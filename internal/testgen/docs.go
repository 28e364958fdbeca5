package testgen

import (
	"fmt"
	"strings"

	"storygen/internal/analyze"
)

// detectFramework picks a test framework from the enrichment pass when it
// names one, otherwise from the repository language.
func detectFramework(result *analyze.Result) string {
	if result.Enrichment != nil && result.Enrichment.DeepDive != nil {
		if unit, ok := result.Enrichment.DeepDive.TestingFramework["unit_tests"]; ok {
			lower := strings.ToLower(unit)
			switch {
			case strings.Contains(lower, "pytest"):
				return "pytest"
			case strings.Contains(lower, "jest"):
				return "Jest"
			case strings.Contains(lower, "junit"):
				return "JUnit"
			case strings.Contains(lower, "mocha"):
				return "Mocha"
			}
		}
	}

	switch strings.ToLower(result.Repository.Language) {
	case "python", "py":
		return "pytest"
	case "javascript", "js", "typescript", "ts":
		return "Jest"
	case "java":
		return "JUnit"
	case "c#", "csharp":
		return "NUnit"
	}
	return "Standard Testing Framework"
}

func detectLanguage(result *analyze.Result) string {
	if result.Repository.Language != "" {
		return result.Repository.Language
	}
	return "Python"
}

func environmentRequirements(framework, language string) []string {
	requirements := []string{
		fmt.Sprintf("%s runtime environment", language),
		fmt.Sprintf("%s testing framework", framework),
		"Test database or mock data sources",
		"Network access for integration tests",
		"Browser automation tools (for UI tests)",
		"Performance testing tools",
		"Security testing tools",
		"Test reporting and coverage tools",
	}

	switch strings.ToLower(language) {
	case "python", "py":
		requirements = append(requirements,
			"Python virtual environment",
			"pip package manager",
			"pytest or unittest framework",
		)
	case "javascript", "js", "typescript", "ts":
		requirements = append(requirements,
			"Node.js runtime",
			"npm or yarn package manager",
			"Jest, Mocha, or similar framework",
		)
	case "java":
		requirements = append(requirements,
			"Java Development Kit (JDK)",
			"Maven or Gradle build tool",
			"JUnit testing framework",
		)
	}
	return requirements
}

func executionInstructions(framework, language string) string {
	return fmt.Sprintf(`Test Execution Instructions for %s with %s

1. Environment Setup:
   - Install %s and %s
   - Set up test environment variables
   - Configure test database connections

2. Running Tests:
   - Unit Tests: Run with %s unit test runner
   - Integration Tests: Ensure external services are available
   - E2E Tests: Start application and run browser tests
   - API Tests: Verify API endpoints are accessible

3. Test Data:
   - Use provided test fixtures and mock data
   - Reset test data between test runs
   - Ensure test isolation

4. Reporting:
   - Generate test coverage reports
   - Export test results in desired format
   - Monitor test execution time and failures

5. Continuous Integration:
   - Integrate tests into CI/CD pipeline
   - Set up automated test execution
   - Configure quality gates and thresholds
`, language, framework, language, framework, framework)
}

func maintenanceNotes(suites []TestSuite) string {
	total := 0
	for _, s := range suites {
		total += s.TotalTests()
	}

	var b strings.Builder
	b.WriteString("Test Maintenance Notes\n\n")
	fmt.Fprintf(&b, "Total Test Suites: %d\n", len(suites))
	fmt.Fprintf(&b, "Total Test Cases: %d\n\n", total)
	b.WriteString(`Maintenance Guidelines:
1. Regular Review: Review test cases monthly for relevance
2. Update Tests: Update tests when user stories change
3. Remove Obsolete Tests: Delete tests for removed features
4. Performance Monitoring: Monitor test execution time
5. Coverage Analysis: Maintain target test coverage levels
6. Test Data Management: Keep test data current and relevant

Test Suite Breakdown:
`)
	for _, s := range suites {
		fmt.Fprintf(&b, "\n- %s: %d tests (%s)", s.Name, s.TotalTests(), s.Type)
	}
	return b.String()
}
