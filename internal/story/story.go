// Package story holds the user-story domain model shared by the analysis
// and test-generation engines.
package story

import "time"

// Priority is the delivery priority of a user story.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Effort is the estimated implementation effort of a user story.
type Effort string

const (
	EffortSmall      Effort = "Small"
	EffortMedium     Effort = "Medium"
	EffortLarge      Effort = "Large"
	EffortExtraLarge Effort = "Extra Large"
)

// ParsePriority matches s against the canonical priority values.
// The match is case-sensitive; anything else resolves to Medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s)
	}
	return PriorityMedium
}

// ParseEffort matches s against the canonical effort values.
// The match is case-sensitive; anything else resolves to Medium.
func ParseEffort(s string) Effort {
	switch Effort(s) {
	case EffortSmall, EffortMedium, EffortLarge, EffortExtraLarge:
		return Effort(s)
	}
	return EffortMedium
}

// AcceptanceCriterion is a single acceptance criterion of a user story.
type AcceptanceCriterion struct {
	Description string
	Completed   bool
}

// UserStory is one story generated from repository analysis. IDs are a
// run-scoped sequence starting at 1.
type UserStory struct {
	ID                 int
	Title              string
	Description        string
	AcceptanceCriteria []AcceptanceCriterion
	Priority           Priority
	Effort             Effort
	Tags               []string
	CreatedAt          time.Time
}

// Persona returns the "As a ..." actor from the story description, or ""
// when the description does not follow the story template.
func (s UserStory) Persona() string {
	return personaFromDescription(s.Description)
}
