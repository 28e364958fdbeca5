package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"storygen/internal/github"
	"storygen/internal/llm"
)

// Architecture holds Mermaid diagram sources for the analyzed system.
type Architecture struct {
	SystemDiagram     string
	APIFlowDiagram    string
	DataFlowDiagram   string
	ComponentDiagram  string
	DeploymentDiagram string
}

// APIAnalysis documents the repository's integration surface.
type APIAnalysis struct {
	Endpoints             []string
	ExternalServices      []string
	AuthenticationMethods []string
	DataFormats           []string
	WebsocketEvents       []string
	DatabaseSchemas       []string
}

// TechnicalDeepDive covers build, test, deployment and security findings.
type TechnicalDeepDive struct {
	TechnologyStack          map[string][]string
	BuildSystem              map[string]string
	TestingFramework         map[string]string
	CICDPipeline             map[string]string
	DeploymentStrategy       map[string]string
	PerformanceOptimizations []string
	SecurityFeatures         []string
}

// Enrichment is the optional second analysis pass layered onto a Result.
// Any section may be nil when the pass could not produce it.
type Enrichment struct {
	Architecture *Architecture
	API          *APIAnalysis
	DeepDive     *TechnicalDeepDive
	Report       string
}

// Merge overlays non-empty sections of other onto e. Sections missing from
// other keep their current value.
func (e *Enrichment) Merge(other *Enrichment) {
	if other == nil {
		return
	}
	if other.Architecture != nil {
		e.Architecture = other.Architecture
	}
	if other.API != nil {
		e.API = other.API
	}
	if other.DeepDive != nil {
		e.DeepDive = other.DeepDive
	}
	if other.Report != "" {
		e.Report = other.Report
	}
}

func (e *Enrichment) empty() bool {
	return e.Architecture == nil && e.API == nil && e.DeepDive == nil && e.Report == ""
}

const enrichSystemPrompt = `You are a senior software architect and systems analyst. Your task is to perform deep technical analysis of GitHub repositories, including:

1. System Architecture Analysis: Create detailed Mermaid diagrams showing system components, data flow, and interactions
2. API Endpoint Mapping: Identify and document all API endpoints, external integrations, and service communications
3. Technology Stack Deep Dive: Analyze build systems, deployment strategies, testing frameworks, and performance optimizations
4. Code Structure Analysis: Understand component hierarchy, design patterns, and architectural decisions

Focus on providing actionable technical insights that would be valuable for developers, architects, and product teams.`

// Enricher runs the technical deep-dive pass.
type Enricher struct {
	client llm.Client
	opts   llm.Options
}

func NewEnricher(client llm.Client, opts llm.Options) *Enricher {
	opts.SystemPrompt = enrichSystemPrompt
	if opts.MaxTurns < 5 {
		opts.MaxTurns = 5
	}
	opts.AllowedTools = []string{"Read", "Glob", "Grep", "LS", "Bash"}
	return &Enricher{client: client, opts: opts}
}

// Enrich runs the deep-dive prompt and merges whatever sections the agent
// produced. A failed run substitutes a generic template so downstream
// rendering always has something to show.
func (e *Enricher) Enrich(ctx context.Context, repo *github.Repository, includeArchitecture, includeAPI bool) *Enrichment {
	if e.client == nil {
		return genericEnrichment(repo)
	}

	prompt := buildEnrichPrompt(repo, includeArchitecture, includeAPI)
	stream, err := e.client.Query(ctx, prompt, e.opts)
	if err != nil {
		log.Printf("Enrichment query failed, using generic analysis: %v", err)
		return genericEnrichment(repo)
	}
	defer stream.Close()

	enrichment := &Enrichment{}
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("Enrichment stream failed, using generic analysis: %v", err)
			return genericEnrichment(repo)
		}
		if ev.Type != "assistant" {
			continue
		}
		for _, block := range ev.Blocks {
			if block.Type != "text" {
				continue
			}
			if obj := llm.ExtractJSON(block.Text); obj != nil {
				enrichment.Merge(parseEnrichment(obj))
			}
		}
	}

	if enrichment.empty() {
		return genericEnrichment(repo)
	}
	return enrichment
}

func buildEnrichPrompt(repo *github.Repository, includeArchitecture, includeAPI bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Perform a comprehensive technical analysis of the GitHub repository '%s'.\n\n", repo.FullName)
	b.WriteString("Repository Context:\n")
	fmt.Fprintf(&b, "- Name: %s\n", repo.FullName)
	fmt.Fprintf(&b, "- Description: %s\n", orDefault(repo.Description, "No description available"))
	fmt.Fprintf(&b, "- Primary Language: %s\n", orDefault(repo.Language, "Not specified"))
	fmt.Fprintf(&b, "- Topics: %s\n", orDefault(strings.Join(repo.Topics, ", "), "None"))
	fmt.Fprintf(&b, "- Stars: %d\n", repo.Stars)
	fmt.Fprintf(&b, "- Forks: %d\n\n", repo.Forks)

	if includeArchitecture {
		b.WriteString(`TASK 1: SYSTEM ARCHITECTURE ANALYSIS
Analyze the repository structure and create detailed Mermaid diagrams for:
1. Overall System Architecture - showing main components and their relationships
2. API Flow Diagram - showing request/response flows and data processing
3. Data Flow Diagram - showing how data moves through the system
4. Component Architecture - showing internal component structure

For each diagram, provide:
- Mermaid syntax code that can be rendered
- Brief explanation of the architecture
- Key architectural decisions and patterns identified

`)
	}

	if includeAPI {
		b.WriteString(`TASK 2: API AND INTEGRATION ANALYSIS
Identify and document:
1. All API endpoints and their purposes
2. External service integrations (databases, third-party APIs, etc.)
3. Authentication and authorization methods
4. Data formats and protocols used
5. WebSocket events or real-time communication
6. Database schemas and data models

`)
	}

	b.WriteString(`TASK 3: TECHNICAL DEEP DIVE
Analyze and document:
1. Technology Stack (categorized by frontend, backend, database, etc.)
2. Build System and Development Workflow
3. Testing Strategy and Framework
4. CI/CD Pipeline Configuration
5. Deployment Strategy and Infrastructure
6. Performance Optimizations
7. Security Features and Best Practices

TASK 4: COMPREHENSIVE TECHNICAL REPORT
Provide a detailed technical report that includes:
- Executive summary of the technical architecture
- Key technical decisions and their rationale
- Scalability and performance considerations
- Security analysis and recommendations
- Areas for improvement or technical debt

OUTPUT FORMAT:
Return a JSON object with this structure:
{
  "system_architecture": {
    "system_diagram": "mermaid code here",
    "api_flow_diagram": "mermaid code here",
    "data_flow_diagram": "mermaid code here",
    "component_diagram": "mermaid code here"
  },
  "api_analysis": {
    "endpoints": [...],
    "external_services": [...],
    "authentication_methods": [...],
    "data_formats": [...],
    "websocket_events": [...]
  },
  "technical_deep_dive": {
    "technology_stack": {...},
    "build_system": {...},
    "testing_framework": {...},
    "ci_cd_pipeline": {...},
    "deployment_strategy": {...},
    "performance_optimizations": [...],
    "security_features": [...]
  },
  "comprehensive_report": "detailed markdown report here"
}

Use actual repository analysis to provide accurate, specific information.`)

	return b.String()
}

// parseEnrichment decodes whichever sections are present. Sections parse
// independently so one malformed section does not discard the others.
func parseEnrichment(obj map[string]any) *Enrichment {
	out := &Enrichment{}

	if arch, ok := obj["system_architecture"].(map[string]any); ok {
		out.Architecture = &Architecture{
			SystemDiagram:     getStr(arch, "system_diagram", ""),
			APIFlowDiagram:    getStr(arch, "api_flow_diagram", ""),
			DataFlowDiagram:   getStr(arch, "data_flow_diagram", ""),
			ComponentDiagram:  getStr(arch, "component_diagram", ""),
			DeploymentDiagram: getStr(arch, "deployment_diagram", ""),
		}
	}

	if api, ok := obj["api_analysis"].(map[string]any); ok {
		out.API = &APIAnalysis{
			Endpoints:             getStrList(api, "endpoints"),
			ExternalServices:      getStrList(api, "external_services"),
			AuthenticationMethods: getStrList(api, "authentication_methods"),
			DataFormats:           getStrList(api, "data_formats"),
			WebsocketEvents:       getStrList(api, "websocket_events"),
			DatabaseSchemas:       getStrList(api, "database_schemas"),
		}
	}

	if tech, ok := obj["technical_deep_dive"].(map[string]any); ok {
		out.DeepDive = &TechnicalDeepDive{
			TechnologyStack:          getStackMap(tech, "technology_stack"),
			BuildSystem:              getStrMap(tech, "build_system"),
			TestingFramework:         getStrMap(tech, "testing_framework"),
			CICDPipeline:             getStrMap(tech, "ci_cd_pipeline"),
			DeploymentStrategy:       getStrMap(tech, "deployment_strategy"),
			PerformanceOptimizations: getStrList(tech, "performance_optimizations"),
			SecurityFeatures:         getStrList(tech, "security_features"),
		}
	}

	out.Report = getStr(obj, "comprehensive_report", "")
	return out
}

func getStrMap(m map[string]any, key string) map[string]string {
	raw, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func getStackMap(m map[string]any, key string) map[string][]string {
	raw, ok := m[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case []any:
			var list []string
			for _, entry := range val {
				if s, ok := entry.(string); ok {
					list = append(list, s)
				}
			}
			out[k] = list
		case string:
			out[k] = []string{val}
		}
	}
	return out
}

// genericEnrichment fills every section from a template so reports stay
// complete when the deep-dive pass fails.
func genericEnrichment(repo *github.Repository) *Enrichment {
	language := orDefault(repo.Language, "Frontend")

	adoption := "emerging"
	if repo.Stars > 10000 {
		adoption = "high"
	} else if repo.Stars > 1000 {
		adoption = "moderate"
	}

	return &Enrichment{
		Architecture: &Architecture{
			SystemDiagram: fmt.Sprintf(`graph TB
    subgraph "%s System Architecture"
        A[User Interface Layer<br/>%s]
        B[Application Logic<br/>Business Layer]
        C[Data Access Layer<br/>Storage & APIs]
        D[External Services<br/>Third-party Integrations]
    end
    A --> B
    B --> C
    B --> D`, repo.Name, language),
			APIFlowDiagram: `graph LR
    Client[Client Application] --> API[API Gateway]
    API --> Auth[Authentication]
    API --> Business[Business Logic]
    Business --> Database[(Database)]
    Business --> Cache[(Cache)]`,
			DataFlowDiagram: `graph TD
    Input[User Input] --> Validation[Input Validation]
    Validation --> Processing[Data Processing]
    Processing --> Storage[Data Storage]
    Storage --> Output[Response Output]`,
			ComponentDiagram: fmt.Sprintf(`graph TB
    subgraph "%s Components"
        UI[User Interface Components]
        Logic[Business Logic Modules]
        Data[Data Access Objects]
        Utils[Utility Functions]
    end
    UI --> Logic
    Logic --> Data
    Logic --> Utils`, repo.Name),
		},
		API: &APIAnalysis{
			Endpoints:             []string{fmt.Sprintf("API analysis pending for %s", repo.Name)},
			ExternalServices:      []string{orDefault(repo.Language, "Unknown technology stack")},
			AuthenticationMethods: []string{"Standard authentication patterns"},
			DataFormats:           []string{"JSON", "HTTP/HTTPS"},
		},
		DeepDive: &TechnicalDeepDive{
			TechnologyStack:          map[string][]string{"primary": {orDefault(repo.Language, "Unknown")}},
			BuildSystem:              map[string]string{"type": "Standard build process"},
			TestingFramework:         map[string]string{"type": "Standard testing approach"},
			CICDPipeline:             map[string]string{"type": "Continuous integration"},
			DeploymentStrategy:       map[string]string{"type": "Standard deployment"},
			PerformanceOptimizations: []string{"Performance optimizations to be analyzed"},
			SecurityFeatures:         []string{"Security features to be analyzed"},
		},
		Report: fmt.Sprintf(`# Technical Analysis: %s

## Repository Overview
- **Language**: %s
- **Stars**: %d
- **Size**: %d KB

## Analysis Summary
This is a %s project with %d stars, indicating %s community adoption.

Further detailed analysis would require deeper repository inspection to provide comprehensive architecture insights, API documentation, and technical recommendations.
`, repo.FullName, orDefault(repo.Language, "Not specified"), repo.Stars, repo.Size,
			orDefault(repo.Language, "software"), repo.Stars, adoption),
	}
}
