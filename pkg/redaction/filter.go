package redaction

import (
	"fmt"
	"regexp"
	"strconv"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Filter masks personally identifying health information in free text.
// It is pure and deterministic: no session state, and Redact(Redact(x))
// always equals Redact(x) because no mask token matches any rule pattern.
type Filter struct {
	rules        []compiledRule
	agePattern   *regexp.Regexp
	ageNumber    *regexp.Regexp
	ageThreshold int
}

// DefaultAgeThreshold follows the safe-harbor convention of bucketing exact
// ages above 89.
const DefaultAgeThreshold = 89

func NewFilter(cfg RulesConfig, ageThreshold int) (*Filter, error) {
	if ageThreshold <= 0 {
		ageThreshold = DefaultAgeThreshold
	}

	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}

	return &Filter{
		rules:        compiled,
		agePattern:   regexp.MustCompile(`\b\d{1,3}(?:[- ]years?[- ]old|[- ]?y/?o\b)|\bage[:\s]+\d{1,3}\b`),
		ageNumber:    regexp.MustCompile(`\d{1,3}`),
		ageThreshold: ageThreshold,
	}, nil
}

// Redact returns the masked text plus human-readable notes describing which
// categories were masked. The notes never contain the original values.
func (f *Filter) Redact(text string) (string, []string) {
	if text == "" {
		return text, nil
	}

	var notes []string
	masked := text
	for _, rule := range f.rules {
		if !rule.re.MatchString(masked) {
			continue
		}
		masked = rule.re.ReplaceAllString(masked, rule.rule.Mask)
		notes = append(notes, fmt.Sprintf("%s redacted", rule.rule.Name))
	}

	bucketed := f.bucketAges(masked)
	if bucketed != masked {
		notes = append(notes, "Age bucketed")
		masked = bucketed
	}

	return masked, notes
}

func (f *Filter) bucketAges(text string) string {
	return f.agePattern.ReplaceAllStringFunc(text, func(match string) string {
		numStr := f.ageNumber.FindString(match)
		age, err := strconv.Atoi(numStr)
		if err != nil || age <= f.ageThreshold {
			return match
		}
		return fmt.Sprintf("%ds", (age/10)*10)
	})
}
