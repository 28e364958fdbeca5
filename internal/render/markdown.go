package render

import (
	"fmt"
	"sort"
	"strings"

	"storygen/internal/analyze"
	"storygen/internal/story"
)

// Markdown renders the result as a Markdown report. Enrichment sections are
// included only when the enrichment pass ran.
func Markdown(result *analyze.Result) string {
	repo := result.Repository
	var b strings.Builder

	fmt.Fprintf(&b, "# User Stories for %s\n\n", repo.FullName)

	b.WriteString("## Repository Summary\n\n")
	fmt.Fprintf(&b, "**Repository:** %s  \n", repo.FullName)
	fmt.Fprintf(&b, "**Description:** %s  \n", orDefault(repo.Description, "No description available"))
	fmt.Fprintf(&b, "**Language:** %s  \n", orDefault(repo.Language, "Not specified"))
	fmt.Fprintf(&b, "**Stars:** %d  \n", repo.Stars)
	fmt.Fprintf(&b, "**Forks:** %d  \n", repo.Forks)
	fmt.Fprintf(&b, "**Topics:** %s  \n", orDefault(strings.Join(repo.Topics, ", "), "None"))
	fmt.Fprintf(&b, "**License:** %s  \n", orDefault(repo.License, "Not specified"))
	fmt.Fprintf(&b, "**Analysis Date:** %s  \n", result.AnalysisDate.Format("2006-01-02 15:04:05"))
	if result.FocusArea != "" {
		fmt.Fprintf(&b, "**Focus Area:** %s  \n", result.FocusArea)
	}
	b.WriteString("\n")

	if len(result.TechStack) > 0 {
		b.WriteString("## Technology Stack\n\n")
		for _, tech := range result.TechStack {
			fmt.Fprintf(&b, "- %s\n", tech)
		}
		b.WriteString("\n")
	}

	if len(result.KeyFeatures) > 0 {
		b.WriteString("## Key Features Identified\n\n")
		for i, feature := range result.KeyFeatures {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", feature)
		}
		b.WriteString("\n")
	}

	if len(result.TargetUsers) > 0 {
		b.WriteString("## Target Users\n\n")
		for _, user := range result.TargetUsers {
			fmt.Fprintf(&b, "- %s\n", user)
		}
		b.WriteString("\n")
	}

	b.WriteString("## User Stories\n\n")
	for i, s := range result.Stories {
		fmt.Fprintf(&b, "### Story %d: %s\n\n", i+1, s.Title)
		writeStoryDescription(&b, s)

		if len(s.AcceptanceCriteria) > 0 {
			b.WriteString("#### Acceptance Criteria\n\n")
			for _, c := range s.AcceptanceCriteria {
				fmt.Fprintf(&b, "- %s\n", c.Description)
			}
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "**Priority:** %s  \n", s.Priority)
		fmt.Fprintf(&b, "**Effort:** %s  \n", s.Effort)
		if len(s.Tags) > 0 {
			fmt.Fprintf(&b, "**Tags:** %s  \n", strings.Join(s.Tags, ", "))
		}
		b.WriteString("\n---\n\n")
	}

	if result.Enrichment != nil {
		writeEnrichment(&b, result.Enrichment)
	}

	return b.String()
}

// writeStoryDescription splits the story template into bolded clauses when
// all three markers are present, otherwise prints the description verbatim.
func writeStoryDescription(b *strings.Builder, s story.UserStory) {
	persona, want, benefit, ok := story.SplitClauses(s.Description)
	if !ok {
		fmt.Fprintf(b, "**Description:** %s\n\n", s.Description)
		return
	}
	fmt.Fprintf(b, "**As a** %s  \n", persona)
	fmt.Fprintf(b, "**I want to** %s  \n", want)
	fmt.Fprintf(b, "**So that** %s\n\n", benefit)
}

func writeEnrichment(b *strings.Builder, e *analyze.Enrichment) {
	if arch := e.Architecture; arch != nil {
		b.WriteString("## System Architecture\n\n")
		writeDiagram(b, "System Overview", arch.SystemDiagram)
		writeDiagram(b, "API Flow", arch.APIFlowDiagram)
		writeDiagram(b, "Data Flow", arch.DataFlowDiagram)
		writeDiagram(b, "Components", arch.ComponentDiagram)
		writeDiagram(b, "Deployment", arch.DeploymentDiagram)
	}

	if api := e.API; api != nil {
		b.WriteString("## API Analysis\n\n")
		writeList(b, "Endpoints", api.Endpoints)
		writeList(b, "External Services", api.ExternalServices)
		writeList(b, "Authentication Methods", api.AuthenticationMethods)
		writeList(b, "Data Formats", api.DataFormats)
		writeList(b, "WebSocket Events", api.WebsocketEvents)
		writeList(b, "Database Schemas", api.DatabaseSchemas)
	}

	if dive := e.DeepDive; dive != nil {
		b.WriteString("## Technical Deep Dive\n\n")
		if len(dive.TechnologyStack) > 0 {
			b.WriteString("### Technology Stack\n\n")
			categories := make([]string, 0, len(dive.TechnologyStack))
			for category := range dive.TechnologyStack {
				categories = append(categories, category)
			}
			sort.Strings(categories)
			for _, category := range categories {
				fmt.Fprintf(b, "- **%s:** %s\n", category, strings.Join(dive.TechnologyStack[category], ", "))
			}
			b.WriteString("\n")
		}
		writeKV(b, "Build System", dive.BuildSystem)
		writeKV(b, "Testing Framework", dive.TestingFramework)
		writeKV(b, "CI/CD Pipeline", dive.CICDPipeline)
		writeKV(b, "Deployment Strategy", dive.DeploymentStrategy)
		writeList(b, "Performance Optimizations", dive.PerformanceOptimizations)
		writeList(b, "Security Features", dive.SecurityFeatures)
	}

	if e.Report != "" {
		b.WriteString("## Comprehensive Report\n\n")
		b.WriteString(e.Report)
		b.WriteString("\n")
	}
}

func writeDiagram(b *strings.Builder, title, diagram string) {
	if diagram == "" {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	b.WriteString("```mermaid\n")
	b.WriteString(diagram)
	b.WriteString("\n```\n\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeKV(b *strings.Builder, title string, kv map[string]string) {
	if len(kv) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "- **%s:** %s\n", k, kv[k])
	}
	b.WriteString("\n")
}
