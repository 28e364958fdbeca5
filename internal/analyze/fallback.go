package analyze

import "storygen/internal/story"

// fallbackCatalog covers the concerns almost any application has: access
// control, data lifecycle, usability, performance and error visibility.
var fallbackCatalog = []map[string]any{
	{
		"title":       "User Authentication",
		"description": "As a user, I want to securely log in to the application, so that I can access my personalized content and features.",
		"priority":    "High",
		"effort":      "Medium",
	},
	{
		"title":       "Data Management",
		"description": "As a user, I want to create, read, update, and delete my data, so that I can manage my information effectively.",
		"priority":    "High",
		"effort":      "Medium",
	},
	{
		"title":       "User Interface",
		"description": "As a user, I want an intuitive and responsive user interface, so that I can easily navigate and use the application.",
		"priority":    "Medium",
		"effort":      "Large",
	},
	{
		"title":       "Performance Optimization",
		"description": "As a user, I want the application to load quickly and respond promptly, so that I can work efficiently without delays.",
		"priority":    "Medium",
		"effort":      "Large",
	},
	{
		"title":       "Error Handling",
		"description": "As a user, I want clear error messages and graceful error handling, so that I understand what went wrong and can recover easily.",
		"priority":    "Low",
		"effort":      "Medium",
	},
}

// FallbackStories returns up to max generic stories. The catalog entries go
// through the same validation path as agent output.
func FallbackStories(max int) []story.UserStory {
	if max <= 0 {
		return nil
	}
	catalog := fallbackCatalog
	if max < len(catalog) {
		catalog = catalog[:max]
	}

	stories := make([]story.UserStory, 0, len(catalog))
	for i, data := range catalog {
		stories = append(stories, parseStory(data, i+1))
	}
	return stories
}
