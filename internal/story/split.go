package story

import "strings"

// SplitClauses breaks a story description into its "As a / I want / So that"
// clauses. All three markers must be present in order; otherwise ok is false
// and the description should be shown verbatim. The split is cosmetic only
// and never alters the stored description.
func SplitClauses(description string) (persona, want, benefit string, ok bool) {
	_, rest, found := strings.Cut(description, "As a")
	if !found {
		return "", "", "", false
	}
	personaPart, rest, found := strings.Cut(rest, "I want")
	if !found {
		return "", "", "", false
	}
	wantPart, benefitPart, found := strings.Cut(rest, "So that")
	if !found {
		return "", "", "", false
	}

	persona = strings.Trim(strings.TrimSpace(personaPart), ",")
	want = strings.Trim(strings.TrimSpace(wantPart), ",")
	benefit = strings.TrimSpace(benefitPart)
	return persona, want, benefit, true
}

func personaFromDescription(description string) string {
	_, rest, found := strings.Cut(description, "As a")
	if !found {
		return ""
	}
	persona, _, _ := strings.Cut(rest, ",")
	return strings.TrimSpace(persona)
}
