package redflag

import (
	"sort"
	"strings"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/caremesh-ai/triage/pkg/ml/linear"
)

// Classifier assigns an urgency level to redacted intake text. It is a pure
// function over (text, prior assessment): no session state, safe to call
// concurrently across sessions.
type Classifier struct {
	rules      []Rule
	resolution []string
	weights    linear.Weights
}

func NewClassifier(cfg RulesConfig) *Classifier {
	var rules []Rule
	for _, rule := range cfg.Rules {
		if !rule.Enabled || len(rule.Terms) == 0 {
			continue
		}
		lowered := Rule{
			Name:    rule.Name,
			Urgency: rule.Urgency,
			Action:  rule.Action,
			Enabled: true,
		}
		for _, term := range rule.Terms {
			lowered.Terms = append(lowered.Terms, strings.ToLower(strings.TrimSpace(term)))
		}
		rules = append(rules, lowered)
	}

	signals := make([]string, 0, len(cfg.ResolutionSignals))
	for _, s := range cfg.ResolutionSignals {
		signals = append(signals, strings.ToLower(strings.TrimSpace(s)))
	}

	return &Classifier{
		rules:      rules,
		resolution: signals,
		weights:    linear.DefaultUrgencyWeights(),
	}
}

// Assess classifies the new text and merges the result with the prior
// assessment: the higher urgency wins unless the new text carries an explicit
// resolution signal. A prior emergency is sticky regardless of resolution
// wording; only the human-reviewed override path may lower it.
func (c *Classifier) Assess(redactedText string, prior models.RedFlagAssessment) models.RedFlagAssessment {
	low := strings.ToLower(redactedText)

	current := models.RedFlagAssessment{
		Urgency:    models.UrgencyNone,
		AssessedAt: time.Now().UTC(),
	}

	termSet := make(map[string]struct{})
	var matched int
	for _, rule := range c.rules {
		if !ruleMatches(rule, low) {
			continue
		}
		matched++
		for _, term := range rule.Terms {
			termSet[term] = struct{}{}
		}
		// Highest urgency wins on multi-rule match.
		if rule.Urgency.Rank() > current.Urgency.Rank() {
			current.Urgency = rule.Urgency
			current.RecommendedAction = rule.Action
		}
	}

	for term := range termSet {
		current.TriggeredTerms = append(current.TriggeredTerms, term)
	}
	sort.Strings(current.TriggeredTerms)

	current.Confidence = c.confidence(matched, current.Urgency, len(current.TriggeredTerms))

	if prior.Urgency.Rank() <= current.Urgency.Rank() {
		return current
	}

	// Prior outranks the new text. Emergencies never auto-resolve.
	if prior.Urgency != models.UrgencyEmergency && c.hasResolutionSignal(low) {
		return current
	}

	merged := current
	merged.Urgency = prior.Urgency
	merged.RecommendedAction = prior.RecommendedAction
	merged.TriggeredTerms = mergeTerms(prior.TriggeredTerms, current.TriggeredTerms)
	if prior.Confidence > merged.Confidence {
		merged.Confidence = prior.Confidence
	}
	return merged
}

func ruleMatches(rule Rule, loweredText string) bool {
	for _, term := range rule.Terms {
		if !strings.Contains(loweredText, term) {
			return false
		}
	}
	return true
}

func (c *Classifier) hasResolutionSignal(loweredText string) bool {
	for _, signal := range c.resolution {
		if strings.Contains(loweredText, signal) {
			return true
		}
	}
	return false
}

func (c *Classifier) confidence(matchedRules int, urgency models.UrgencyLevel, termCount int) float64 {
	if matchedRules == 0 {
		return 0
	}
	features := []float64{
		float64(matchedRules),
		float64(urgency.Rank()),
		float64(termCount),
	}
	return linear.Predict(c.weights, features)
}

func mergeTerms(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
