package render

import (
	"encoding/json"
	"fmt"
	"time"

	"storygen/internal/analyze"
	"storygen/internal/story"
)

// Output is the JSON interchange document. It carries everything needed to
// reconstruct the stories, so the format works as a persistence layer too.
type Output struct {
	Repository   repositoryJSON    `json:"repository"`
	Analysis     analysisJSON      `json:"analysis"`
	UserStories  []storyJSON       `json:"user_stories"`
	Architecture *architectureJSON `json:"system_architecture,omitempty"`
	API          *apiAnalysisJSON  `json:"api_analysis,omitempty"`
	DeepDive     *deepDiveJSON     `json:"technical_deep_dive,omitempty"`
	Report       string            `json:"comprehensive_report,omitempty"`
}

type repositoryJSON struct {
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	Topics      []string  `json:"topics"`
	License     string    `json:"license"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type analysisJSON struct {
	Date        time.Time `json:"date"`
	FocusArea   string    `json:"focus_area"`
	TechStack   []string  `json:"tech_stack"`
	KeyFeatures []string  `json:"key_features"`
	TargetUsers []string  `json:"target_users"`
}

type storyJSON struct {
	ID                 int       `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	AcceptanceCriteria []string  `json:"acceptance_criteria"`
	Priority           string    `json:"priority"`
	Effort             string    `json:"effort"`
	Tags               []string  `json:"tags"`
	CreatedAt          time.Time `json:"created_at"`
}

type architectureJSON struct {
	SystemDiagram     string `json:"system_diagram,omitempty"`
	APIFlowDiagram    string `json:"api_flow_diagram,omitempty"`
	DataFlowDiagram   string `json:"data_flow_diagram,omitempty"`
	ComponentDiagram  string `json:"component_diagram,omitempty"`
	DeploymentDiagram string `json:"deployment_diagram,omitempty"`
}

type apiAnalysisJSON struct {
	Endpoints             []string `json:"endpoints,omitempty"`
	ExternalServices      []string `json:"external_services,omitempty"`
	AuthenticationMethods []string `json:"authentication_methods,omitempty"`
	DataFormats           []string `json:"data_formats,omitempty"`
	WebsocketEvents       []string `json:"websocket_events,omitempty"`
	DatabaseSchemas       []string `json:"database_schemas,omitempty"`
}

type deepDiveJSON struct {
	TechnologyStack          map[string][]string `json:"technology_stack,omitempty"`
	BuildSystem              map[string]string   `json:"build_system,omitempty"`
	TestingFramework         map[string]string   `json:"testing_framework,omitempty"`
	CICDPipeline             map[string]string   `json:"ci_cd_pipeline,omitempty"`
	DeploymentStrategy       map[string]string   `json:"deployment_strategy,omitempty"`
	PerformanceOptimizations []string            `json:"performance_optimizations,omitempty"`
	SecurityFeatures         []string            `json:"security_features,omitempty"`
}

// NewOutput converts a result into the interchange form.
func NewOutput(result *analyze.Result) Output {
	repo := result.Repository
	out := Output{
		Repository: repositoryJSON{
			FullName:    repo.FullName,
			Description: repo.Description,
			Language:    repo.Language,
			Stars:       repo.Stars,
			Forks:       repo.Forks,
			Topics:      repo.Topics,
			License:     repo.License,
			CreatedAt:   repo.CreatedAt,
			UpdatedAt:   repo.UpdatedAt,
		},
		Analysis: analysisJSON{
			Date:        result.AnalysisDate,
			FocusArea:   result.FocusArea,
			TechStack:   result.TechStack,
			KeyFeatures: result.KeyFeatures,
			TargetUsers: result.TargetUsers,
		},
		UserStories: make([]storyJSON, 0, len(result.Stories)),
	}

	for _, s := range result.Stories {
		criteria := make([]string, 0, len(s.AcceptanceCriteria))
		for _, c := range s.AcceptanceCriteria {
			criteria = append(criteria, c.Description)
		}
		out.UserStories = append(out.UserStories, storyJSON{
			ID:                 s.ID,
			Title:              s.Title,
			Description:        s.Description,
			AcceptanceCriteria: criteria,
			Priority:           string(s.Priority),
			Effort:             string(s.Effort),
			Tags:               s.Tags,
			CreatedAt:          s.CreatedAt,
		})
	}

	if e := result.Enrichment; e != nil {
		if arch := e.Architecture; arch != nil {
			out.Architecture = &architectureJSON{
				SystemDiagram:     arch.SystemDiagram,
				APIFlowDiagram:    arch.APIFlowDiagram,
				DataFlowDiagram:   arch.DataFlowDiagram,
				ComponentDiagram:  arch.ComponentDiagram,
				DeploymentDiagram: arch.DeploymentDiagram,
			}
		}
		if api := e.API; api != nil {
			out.API = &apiAnalysisJSON{
				Endpoints:             api.Endpoints,
				ExternalServices:      api.ExternalServices,
				AuthenticationMethods: api.AuthenticationMethods,
				DataFormats:           api.DataFormats,
				WebsocketEvents:       api.WebsocketEvents,
				DatabaseSchemas:       api.DatabaseSchemas,
			}
		}
		if dive := e.DeepDive; dive != nil {
			out.DeepDive = &deepDiveJSON{
				TechnologyStack:          dive.TechnologyStack,
				BuildSystem:              dive.BuildSystem,
				TestingFramework:         dive.TestingFramework,
				CICDPipeline:             dive.CICDPipeline,
				DeploymentStrategy:       dive.DeploymentStrategy,
				PerformanceOptimizations: dive.PerformanceOptimizations,
				SecurityFeatures:         dive.SecurityFeatures,
			}
		}
		out.Report = e.Report
	}
	return out
}

// Enrichment converts the interchange enrichment slots back into the domain
// form, or nil when the document carries none.
func (o Output) Enrichment() *analyze.Enrichment {
	if o.Architecture == nil && o.API == nil && o.DeepDive == nil && o.Report == "" {
		return nil
	}
	e := &analyze.Enrichment{Report: o.Report}
	if arch := o.Architecture; arch != nil {
		e.Architecture = &analyze.Architecture{
			SystemDiagram:     arch.SystemDiagram,
			APIFlowDiagram:    arch.APIFlowDiagram,
			DataFlowDiagram:   arch.DataFlowDiagram,
			ComponentDiagram:  arch.ComponentDiagram,
			DeploymentDiagram: arch.DeploymentDiagram,
		}
	}
	if api := o.API; api != nil {
		e.API = &analyze.APIAnalysis{
			Endpoints:             api.Endpoints,
			ExternalServices:      api.ExternalServices,
			AuthenticationMethods: api.AuthenticationMethods,
			DataFormats:           api.DataFormats,
			WebsocketEvents:       api.WebsocketEvents,
			DatabaseSchemas:       api.DatabaseSchemas,
		}
	}
	if dive := o.DeepDive; dive != nil {
		e.DeepDive = &analyze.TechnicalDeepDive{
			TechnologyStack:          dive.TechnologyStack,
			BuildSystem:              dive.BuildSystem,
			TestingFramework:         dive.TestingFramework,
			CICDPipeline:             dive.CICDPipeline,
			DeploymentStrategy:       dive.DeploymentStrategy,
			PerformanceOptimizations: dive.PerformanceOptimizations,
			SecurityFeatures:         dive.SecurityFeatures,
		}
	}
	return e
}

// Stories converts the interchange form back into domain stories.
func (o Output) Stories() []story.UserStory {
	stories := make([]story.UserStory, 0, len(o.UserStories))
	for _, sj := range o.UserStories {
		var criteria []story.AcceptanceCriterion
		for _, c := range sj.AcceptanceCriteria {
			criteria = append(criteria, story.AcceptanceCriterion{Description: c})
		}
		stories = append(stories, story.UserStory{
			ID:                 sj.ID,
			Title:              sj.Title,
			Description:        sj.Description,
			AcceptanceCriteria: criteria,
			Priority:           story.ParsePriority(sj.Priority),
			Effort:             story.ParseEffort(sj.Effort),
			Tags:               sj.Tags,
			CreatedAt:          sj.CreatedAt,
		})
	}
	return stories
}

// JSON renders the result as an indented JSON document.
func JSON(result *analyze.Result) (string, error) {
	data, err := json.MarshalIndent(NewOutput(result), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}

// DecodeJSON parses a document previously produced by JSON.
func DecodeJSON(data []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &out, nil
}
