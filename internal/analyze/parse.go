package analyze

import (
	"fmt"
	"time"

	"storygen/internal/story"
)

// parseStory builds a validated story from one decoded JSON entry. Missing
// or mistyped fields fall back to defaults rather than failing the entry.
func parseStory(data map[string]any, id int) story.UserStory {
	title := getStr(data, "title", fmt.Sprintf("User Story %d", id))

	var criteria []story.AcceptanceCriterion
	if list, ok := data["acceptance_criteria"].([]any); ok {
		for _, entry := range list {
			if s, ok := entry.(string); ok {
				criteria = append(criteria, story.AcceptanceCriterion{Description: s})
			}
		}
	}

	var tags []string
	if list, ok := data["tags"].([]any); ok {
		for _, entry := range list {
			if s, ok := entry.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	return story.UserStory{
		ID:                 id,
		Title:              title,
		Description:        getStr(data, "description", ""),
		AcceptanceCriteria: criteria,
		Priority:           story.ParsePriority(getStr(data, "priority", "")),
		Effort:             story.ParseEffort(getStr(data, "effort", "")),
		Tags:               tags,
		CreatedAt:          time.Now(),
	}
}

func getStr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func getStrList(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range list {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
