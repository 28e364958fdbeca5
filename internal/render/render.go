// Package render formats analysis results and test plans for output.
package render

import (
	"fmt"
	"strings"

	"storygen/internal/analyze"
)

// Format selects the output representation.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown output format %q, expected text, json, markdown or html", s)
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	}
	return ".txt"
}

// MIMEType returns the content type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown"
	case FormatHTML:
		return "text/html"
	}
	return "text/plain"
}

// Render formats a result in the requested format.
func Render(result *analyze.Result, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return JSON(result)
	case FormatMarkdown:
		return Markdown(result), nil
	case FormatHTML:
		return HTML(result)
	default:
		return Text(result), nil
	}
}

// Text renders the result as a plain-text report.
func Text(result *analyze.Result) string {
	repo := result.Repository
	var b strings.Builder

	fmt.Fprintf(&b, "📋 User Stories for %s\n", repo.FullName)
	b.WriteString(strings.Repeat("=", len(repo.FullName)+20))
	b.WriteString("\n\n")

	b.WriteString("📊 Repository Summary:\n")
	fmt.Fprintf(&b, "  • Description: %s\n", orDefault(repo.Description, "No description available"))
	fmt.Fprintf(&b, "  • Language: %s\n", orDefault(repo.Language, "Not specified"))
	fmt.Fprintf(&b, "  • Stars: %d\n", repo.Stars)
	fmt.Fprintf(&b, "  • Forks: %d\n", repo.Forks)
	fmt.Fprintf(&b, "  • Topics: %s\n", orDefault(strings.Join(repo.Topics, ", "), "None"))
	fmt.Fprintf(&b, "  • License: %s\n", orDefault(repo.License, "Not specified"))
	fmt.Fprintf(&b, "  • Analysis Date: %s\n", result.AnalysisDate.Format("2006-01-02 15:04:05"))
	if result.FocusArea != "" {
		fmt.Fprintf(&b, "  • Focus Area: %s\n", result.FocusArea)
	}
	b.WriteString("\n")

	if len(result.TechStack) > 0 {
		b.WriteString("🔧 Technology Stack:\n")
		for _, tech := range result.TechStack {
			fmt.Fprintf(&b, "  • %s\n", tech)
		}
		b.WriteString("\n")
	}

	if len(result.KeyFeatures) > 0 {
		b.WriteString("🎯 Key Features Identified:\n")
		for i, feature := range result.KeyFeatures {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "  • %s\n", feature)
		}
		b.WriteString("\n")
	}

	if len(result.TargetUsers) > 0 {
		b.WriteString("👥 Target Users:\n")
		for _, user := range result.TargetUsers {
			fmt.Fprintf(&b, "  • %s\n", user)
		}
		b.WriteString("\n")
	}

	b.WriteString("📝 User Stories:\n\n")
	for i, s := range result.Stories {
		fmt.Fprintf(&b, "🎯 Story %d: %s\n", i+1, s.Title)
		fmt.Fprintf(&b, "   %s\n\n", s.Description)

		if len(s.AcceptanceCriteria) > 0 {
			b.WriteString("   Acceptance Criteria:\n")
			for _, c := range s.AcceptanceCriteria {
				fmt.Fprintf(&b, "   • %s\n", c.Description)
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "   Priority: %s\n", s.Priority)
		fmt.Fprintf(&b, "   Effort: %s\n", s.Effort)
		if len(s.Tags) > 0 {
			fmt.Fprintf(&b, "   Tags: %s\n", strings.Join(s.Tags, ", "))
		}
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 60))
		b.WriteString("\n\n")
	}

	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
