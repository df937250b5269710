package redaction

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Mask     string `yaml:"mask" json:"mask"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Severity string `yaml:"severity" json:"severity"`
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`
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
		return RulesConfig{}, errors.New("no redaction rules configured")
	}

	return cfg, nil
}

// DefaultRules covers the PHI categories the intake pipeline must mask before
// any other component sees the text. Rule order matters: identifiers with
// digit groups that overlap (SSN vs date vs phone) are matched narrow-first.
func DefaultRules() RulesConfig {
	return RulesConfig{Rules: []Rule{
		{Name: "SSN", Type: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Mask: "[REDACTED_ID]", Enabled: true, Severity: "high"},
		{Name: "InsuranceID", Type: "insurance_id", Pattern: `\b[A-Z]{1,3}-?\d{6,10}\b`, Mask: "[REDACTED_ID]", Enabled: true, Severity: "high"},
		{Name: "NationalID", Type: "national_id", Pattern: `\b\d{9,12}\b`, Mask: "[REDACTED_ID]", Enabled: true, Severity: "high"},
		{Name: "DOB", Type: "dob", Pattern: `\b(?:\d{1,2}[/.-]){2}\d{2,4}\b`, Mask: "[REDACTED_DATE]", Enabled: true, Severity: "medium"},
		{Name: "Email", Type: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "[REDACTED_EMAIL]", Enabled: true, Severity: "medium"},
		{Name: "Phone", Type: "phone", Pattern: `\b(?:\+?\d{1,3}[-.\s]?)?(?:\(\d{3}\)\s?|\d{3}[-.\s])\d{3}[-.\s]?\d{4}\b`, Mask: "[REDACTED_PHONE]", Enabled: true, Severity: "medium"},
		{Name: "IntroducedName", Type: "name", Pattern: `\b(?:[Mm]y name is|[Ii]'m|[Ii] am|[Tt]his is)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`, Mask: "[REDACTED_NAME]", Enabled: true, Severity: "high"},
		{Name: "TitledName", Type: "name", Pattern: `\b(?:Name|Patient|Pt|Mr|Mrs|Ms|Dr)\.?\s*[:\-]?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`, Mask: "[REDACTED_NAME]", Enabled: true, Severity: "high"},
		{Name: "Address", Type: "address", Pattern: `(?i)\b\d{1,5}\s[A-Za-z0-9.\s]+(?:Street|St|Avenue|Ave|Road|Rd|Blvd|Lane|Ln|Way)\b`, Mask: "[REDACTED_ADDRESS]", Enabled: true, Severity: "high"},
	}}
}
