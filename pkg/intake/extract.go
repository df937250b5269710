package intake

import (
	"regexp"
	"strings"
)

var (
	severityPattern = regexp.MustCompile(`(?i)\b(?:10|[1-9])\s*(?:/|out of)\s*10\b|\b(?:mild|moderate|severe|unbearable|excruciating|worst)\b`)
	durationPattern = regexp.MustCompile(`(?i)\b(?:a few|couple of|\d+)\s*(?:minute|hour|day|week|month|year)s?\b|\bsince\s+(?:yesterday|this morning|last night|last \w+|\w+day)\b`)
	// A bare 1..10 counts as severity only in the severity question, where
	// the number cannot mean anything else.
	bareScorePattern   = regexp.MustCompile(`\b(?:10|[1-9])\b`)
	medicationPattern  = regexp.MustCompile(`(?i)\b(?:taking|i take|on|prescribed)\s+([a-z][a-z0-9 -]{2,40}?)(?:[.,;]|$| and | for )`)
	allergyPattern     = regexp.MustCompile(`(?i)\ballergic to\s+([a-z][a-z0-9 -]{2,40}?)(?:[.,;]|$| and )`)
	noAllergiesPattern = regexp.MustCompile(`(?i)\bno (?:known )?allergies\b`)
)

// extractSeverityDuration pulls both halves of the severity question out of
// one message. The duration match is removed before severity parsing so a
// number inside "2 days ago" is never read as a pain score.
func extractSeverityDuration(text string, severityKnown bool) (string, string) {
	duration := extractDuration(text)
	if duration != "" {
		text = durationPattern.ReplaceAllString(text, " ")
	}
	severity := extractSeverity(text, !severityKnown)
	return severity, duration
}

func extractSeverity(text string, lenientNumber bool) string {
	if m := severityPattern.FindString(text); m != "" {
		return strings.ToLower(strings.TrimSpace(m))
	}
	if lenientNumber {
		if m := bareScorePattern.FindString(text); m != "" {
			return m + "/10"
		}
	}
	return ""
}

func extractDuration(text string) string {
	return strings.ToLower(strings.TrimSpace(durationPattern.FindString(text)))
}

func extractMedications(text string) string {
	m := medicationPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractAllergies(text string) string {
	if noAllergiesPattern.MatchString(text) {
		return "none reported"
	}
	m := allergyPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
