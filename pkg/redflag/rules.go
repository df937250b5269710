package redflag

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/caremesh-ai/triage/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Rule fires when every term in Terms appears in the (lowercased) redacted
// text. Single-term rules catch standalone emergencies; multi-term rules
// encode symptom pairs like chest pain + shortness of breath.
type Rule struct {
	Name    string              `yaml:"name" json:"name"`
	Terms   []string            `yaml:"terms" json:"terms"`
	Urgency models.UrgencyLevel `yaml:"urgency" json:"urgency"`
	Action  string              `yaml:"action" json:"action"`
	Enabled bool                `yaml:"enabled" json:"enabled"`
}

type RulesConfig struct {
	Rules             []Rule   `yaml:"rules" json:"rules"`
	ResolutionSignals []string `yaml:"resolution_signals" json:"resolution_signals"`
}

func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}

	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no red-flag rules configured")
	}
	if len(cfg.ResolutionSignals) == 0 {
		cfg.ResolutionSignals = DefaultRules().ResolutionSignals
	}

	return cfg, nil
}

const (
	ActionEmergency = "Call emergency services or go to the nearest emergency department now."
	ActionUrgent    = "Arrange urgent clinical review within the next few hours."
	ActionPrompt    = "Schedule a clinical appointment promptly."
	ActionMonitor   = "Monitor symptoms and seek care if they worsen."
)

func DefaultRules() RulesConfig {
	return RulesConfig{
		Rules: []Rule{
			// Symptom pairs
			{Name: "cardiac-respiratory", Terms: []string{"chest pain", "shortness of breath"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "cardiac-dyspnea", Terms: []string{"chest pain", "can't breathe"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "cardiac-dyspnea-long", Terms: []string{"chest pain", "cannot breathe"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "cardiac-breathing", Terms: []string{"chest pain", "difficulty breathing"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "meningitis", Terms: []string{"high fever", "stiff neck"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "obstetric-bleeding", Terms: []string{"pregnant", "bleeding"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},

			// Standalone emergencies
			{Name: "stroke", Terms: []string{"stroke"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "facial-droop", Terms: []string{"facial droop"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "slurred-speech", Terms: []string{"slurred speech"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "anaphylaxis", Terms: []string{"anaphylaxis"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "tongue-swelling", Terms: []string{"swelling of tongue"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "cannot-swallow", Terms: []string{"cannot swallow"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "uncontrolled-bleeding", Terms: []string{"uncontrolled bleeding"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "severe-bleeding", Terms: []string{"severe bleeding"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "seizure", Terms: []string{"seizure"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "suicidal", Terms: []string{"suicidal"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "homicidal", Terms: []string{"homicidal"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "intent-to-harm", Terms: []string{"intent to harm"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},
			{Name: "bluish-lips", Terms: []string{"bluish lips"}, Urgency: models.UrgencyEmergency, Action: ActionEmergency, Enabled: true},

			// High urgency
			{Name: "chest-pain", Terms: []string{"chest pain"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "shortness-of-breath", Terms: []string{"shortness of breath"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "difficulty-breathing", Terms: []string{"difficulty breathing"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "fainting", Terms: []string{"fainting"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "syncope", Terms: []string{"syncope"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "confusion", Terms: []string{"confusion"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "hallucinations", Terms: []string{"hallucinations"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},
			{Name: "high-fever", Terms: []string{"high fever"}, Urgency: models.UrgencyHigh, Action: ActionUrgent, Enabled: true},

			// Moderate urgency
			{Name: "severe-headache", Terms: []string{"severe headache"}, Urgency: models.UrgencyModerate, Action: ActionPrompt, Enabled: true},
			{Name: "one-sided-numbness", Terms: []string{"numbness on one side"}, Urgency: models.UrgencyModerate, Action: ActionPrompt, Enabled: true},
			{Name: "one-sided-weakness", Terms: []string{"weakness on one side"}, Urgency: models.UrgencyModerate, Action: ActionPrompt, Enabled: true},
			{Name: "stiff-neck", Terms: []string{"stiff neck"}, Urgency: models.UrgencyModerate, Action: ActionPrompt, Enabled: true},

			// Low urgency
			{Name: "fever", Terms: []string{"fever"}, Urgency: models.UrgencyLow, Action: ActionMonitor, Enabled: true},
			{Name: "persistent-vomiting", Terms: []string{"persistent vomiting"}, Urgency: models.UrgencyLow, Action: ActionMonitor, Enabled: true},
		},
		ResolutionSignals: []string{
			"resolved",
			"no longer",
			"gone away",
			"went away",
			"feeling better",
			"subsided",
			"stopped hurting",
		},
	}
}
