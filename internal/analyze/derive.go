package analyze

import (
	"strings"

	"storygen/internal/story"
)

// techTags are the tags treated as technology signals when summarizing a
// story set.
var techTags = map[string]struct{}{
	"api": {}, "database": {}, "frontend": {}, "backend": {}, "mobile": {}, "web": {},
}

// deriveInsights summarizes a story set into a tech stack, feature list and
// persona list. Features come from titles, personas from the "As a" clause,
// tech from recognized tags. Order follows first appearance.
func deriveInsights(stories []story.UserStory) (techStack, keyFeatures, targetUsers []string) {
	seenTech := make(map[string]struct{})
	seenUsers := make(map[string]struct{})

	for _, s := range stories {
		keyFeatures = append(keyFeatures, s.Title)

		if persona := s.Persona(); persona != "" {
			if _, dup := seenUsers[persona]; !dup {
				seenUsers[persona] = struct{}{}
				targetUsers = append(targetUsers, persona)
			}
		}

		for _, tag := range s.Tags {
			if _, ok := techTags[strings.ToLower(tag)]; !ok {
				continue
			}
			if _, dup := seenTech[tag]; dup {
				continue
			}
			seenTech[tag] = struct{}{}
			techStack = append(techStack, tag)
		}
	}
	return techStack, keyFeatures, targetUsers
}
