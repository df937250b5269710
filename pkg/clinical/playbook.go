package clinical

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type PlaybookRule struct {
	Name           string   `yaml:"name" json:"name"`
	Terms          []string `yaml:"terms" json:"terms"` // any term triggers the rule
	Considerations []string `yaml:"considerations" json:"considerations"`
}

// Playbook maps presentation terms to clinical considerations. It is a rule
// table, not a diagnostic model: considerations are generic next steps a
// clinician would recognize.
type Playbook struct {
	Rules              []PlaybookRule `yaml:"rules" json:"rules"`
	BaseConsiderations []string       `yaml:"base_considerations" json:"base_considerations"`
	Disclaimer         string         `yaml:"disclaimer" json:"disclaimer"`
}

func LoadPlaybook(path string) (Playbook, error) {
	if path == "" {
		return DefaultPlaybook(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPlaybook(), err
	}

	var pb Playbook
	if err := yaml.Unmarshal(content, &pb); err != nil {
		return Playbook{}, err
	}
	if len(pb.Rules) == 0 {
		return Playbook{}, errors.New("playbook has no rules")
	}
	if pb.Disclaimer == "" {
		pb.Disclaimer = DefaultPlaybook().Disclaimer
	}
	return pb, nil
}

func DefaultPlaybook() Playbook {
	return Playbook{
		Rules: []PlaybookRule{
			{
				Name:  "cardiac",
				Terms: []string{"chest pain", "palpitations", "chest discomfort"},
				Considerations: []string{
					"An ECG and cardiac enzyme testing are typically considered for chest symptoms.",
					"Avoid exertion until a clinician has assessed the symptoms.",
				},
			},
			{
				Name:  "respiratory",
				Terms: []string{"shortness of breath", "difficulty breathing", "cough", "wheeze"},
				Considerations: []string{
					"Oxygen saturation measurement helps assess breathing complaints.",
					"Worsening breathlessness at rest needs urgent review.",
				},
			},
			{
				Name:  "neurological",
				Terms: []string{"headache", "dizziness", "numbness"},
				Considerations: []string{
					"Hydration, rest, and simple analgesia are first-line for uncomplicated headache.",
					"Sudden severe onset or new neurological symptoms need urgent assessment.",
				},
			},
			{
				Name:  "infection",
				Terms: []string{"fever", "chills"},
				Considerations: []string{
					"Monitor temperature trends and maintain fluid intake.",
					"Fever persisting beyond three days warrants clinical review.",
				},
			},
			{
				Name:  "gastrointestinal",
				Terms: []string{"stomach pain", "abdominal pain", "vomiting", "diarrhea", "nausea", "nauseous"},
				Considerations: []string{
					"Small frequent fluids help prevent dehydration with gastrointestinal symptoms.",
					"Blood in stool or vomit, or a rigid abdomen, needs urgent review.",
				},
			},
			{
				Name:  "allergic",
				Terms: []string{"rash", "itching", "hives", "allergic"},
				Considerations: []string{
					"Identify and avoid the suspected trigger.",
					"Antihistamines are commonly used for mild allergic skin reactions.",
				},
			},
		},
		BaseConsiderations: []string{
			"Rest and adequate hydration support recovery for most mild conditions.",
			"Seek care promptly if symptoms worsen or new symptoms appear.",
		},
		Disclaimer: "This is not a medical diagnosis. The information provided is for general guidance only. Always consult a qualified clinician for decisions about your health.",
	}
}
