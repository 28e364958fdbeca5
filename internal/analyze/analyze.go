// Package analyze turns repository metadata into user stories by prompting
// an agent and validating whatever comes back. Agent failures never abort a
// run, the engine degrades to a generic story catalog instead.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"storygen/internal/github"
	"storygen/internal/llm"
	"storygen/internal/research"
	"storygen/internal/story"
)

// Result holds everything one analysis run produced.
type Result struct {
	Repository   *github.Repository
	Stories      []story.UserStory
	AnalysisDate time.Time
	FocusArea    string
	TechStack    []string
	KeyFeatures  []string
	TargetUsers  []string
	Enrichment   *Enrichment
}

// Analyzer generates user stories for a repository.
type Analyzer struct {
	client llm.Client
	opts   llm.Options
}

func New(client llm.Client, opts llm.Options) *Analyzer {
	return &Analyzer{client: client, opts: opts}
}

// Analyze prompts the agent and assembles the analysis result. maxStories
// caps the output; zero or negative means no stories and no agent call.
func (a *Analyzer) Analyze(ctx context.Context, repo *github.Repository, webResults []research.Result, focusArea string, maxStories int) *Result {
	var stories []story.UserStory
	if maxStories > 0 {
		prompt := buildPrompt(repo, webResults, focusArea, maxStories)
		stories = a.generateStories(ctx, prompt, maxStories)
	}

	techStack, keyFeatures, targetUsers := deriveInsights(stories)

	return &Result{
		Repository:   repo,
		Stories:      stories,
		AnalysisDate: time.Now(),
		FocusArea:    focusArea,
		TechStack:    techStack,
		KeyFeatures:  keyFeatures,
		TargetUsers:  targetUsers,
	}
}

// generateStories consumes the agent stream and validates stories as they
// arrive, stopping early once maxStories are collected. Any stream failure
// discards partial results and substitutes the fallback catalog.
func (a *Analyzer) generateStories(ctx context.Context, prompt string, maxStories int) []story.UserStory {
	if a.client == nil {
		log.Println("No agent client available, using fallback stories")
		return FallbackStories(maxStories)
	}

	stream, err := a.client.Query(ctx, prompt, a.opts)
	if err != nil {
		log.Printf("Agent query failed, using fallback stories: %v", err)
		return FallbackStories(maxStories)
	}
	defer stream.Close()

	var stories []story.UserStory
	id := 1

	for len(stories) < maxStories {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("Agent stream failed, using fallback stories: %v", err)
			return FallbackStories(maxStories)
		}
		if ev.Type == "result" && ev.IsError {
			log.Printf("Agent reported error, using fallback stories: %s", ev.Result)
			return FallbackStories(maxStories)
		}
		if ev.Type != "assistant" {
			continue
		}

		for _, block := range ev.Blocks {
			if block.Type != "text" {
				continue
			}
			obj := llm.ExtractJSON(block.Text)
			if obj == nil {
				continue
			}
			raw, ok := obj["user_stories"].([]any)
			if !ok {
				continue
			}
			for _, entry := range raw {
				if len(stories) >= maxStories {
					break
				}
				data, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				stories = append(stories, parseStory(data, id))
				id++
			}
		}
	}

	if len(stories) == 0 {
		log.Println("Agent response contained no usable stories, using fallback stories")
		return FallbackStories(maxStories)
	}
	return stories
}

func buildPrompt(repo *github.Repository, webResults []research.Result, focusArea string, maxStories int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the GitHub repository '%s' and generate %d comprehensive user stories.\n\n", repo.FullName, maxStories)
	b.WriteString("Repository Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", repo.FullName)
	fmt.Fprintf(&b, "- Description: %s\n", orDefault(repo.Description, "No description available"))
	fmt.Fprintf(&b, "- Primary Language: %s\n", orDefault(repo.Language, "Not specified"))
	fmt.Fprintf(&b, "- Topics: %s\n", orDefault(strings.Join(repo.Topics, ", "), "None"))
	fmt.Fprintf(&b, "- Stars: %d\n", repo.Stars)
	fmt.Fprintf(&b, "- Forks: %d\n", repo.Forks)
	fmt.Fprintf(&b, "- License: %s\n", orDefault(repo.License, "Not specified"))
	if !repo.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Created: %s\n", repo.CreatedAt.Format("2006-01-02"))
	}
	if !repo.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- Last Updated: %s\n", repo.UpdatedAt.Format("2006-01-02"))
	}
	b.WriteString("\n")

	if repo.Readme != "" {
		readme := repo.Readme
		if len(readme) > 2000 {
			readme = truncate(readme, 2000) + "..."
		}
		b.WriteString("README Content:\n")
		b.WriteString(readme)
		b.WriteString("\n\n")
	}

	if focusArea != "" {
		fmt.Fprintf(&b, "Focus Area: %s\n", focusArea)
		b.WriteString("Generate user stories that specifically address this focus area.\n\n")
	}

	if len(webResults) > 0 {
		b.WriteString("Additional Research Context:\n")
		b.WriteString("Use this information to better understand the project context and user needs:\n")
		for i, result := range webResults {
			if i >= 5 {
				break
			}
			snippet := result.Snippet
			if len(snippet) > 300 {
				snippet = truncate(snippet, 300)
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, result.Title)
			fmt.Fprintf(&b, "   URL: %s\n", result.URL)
			fmt.Fprintf(&b, "   Context: %s...\n\n", snippet)
		}
	}

	b.WriteString(`Requirements for User Stories:
1. Each user story should follow the format: 'As a [user type], I want [feature], So that [benefit]'
2. Include 3-5 acceptance criteria for each story
3. Assign appropriate priority (Low, Medium, High, Critical) and effort (Small, Medium, Large, Extra Large)
4. Focus on actionable, implementable features
5. Consider the technology stack and project context
6. Make stories specific to this repository's purpose and domain

Output Format:
Return a JSON object with the following structure:
{
  "user_stories": [
    {
      "title": "Story title",
      "description": "As a [user type], I want [feature], So that [benefit]",
      "acceptance_criteria": ["criterion 1", "criterion 2", "criterion 3"],
      "priority": "High",
      "effort": "Medium",
      "tags": ["tag1", "tag2"]
    }
  ]
}

Ensure the JSON is valid and properly formatted.`)

	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
