package ragindex

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Document struct {
	ID       string `yaml:"id" json:"id"`
	Text     string `yaml:"text" json:"text"`
	Citation string `yaml:"citation" json:"citation"`
}

type Corpus struct {
	Documents []Document `yaml:"documents" json:"documents"`
}

func LoadCorpus(path string) (Corpus, error) {
	if path == "" {
		return DefaultCorpus(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCorpus(), err
	}

	var corpus Corpus
	if err := yaml.Unmarshal(content, &corpus); err != nil {
		return Corpus{}, err
	}
	if len(corpus.Documents) == 0 {
		return Corpus{}, errors.New("guideline corpus empty")
	}
	return corpus, nil
}

// DefaultCorpus seeds the index with a small built-in guideline set so the
// pipeline works out of the box. Production deployments point
// GUIDELINES_PATH at a curated corpus.
func DefaultCorpus() Corpus {
	return Corpus{Documents: []Document{
		{
			ID:       "guideline-chest-pain",
			Text:     "Acute chest pain evaluation: obtain an ECG within ten minutes of presentation and measure cardiac troponin. Consider acute coronary syndrome, pulmonary embolism, and aortic dissection. Chest pain with dyspnea, diaphoresis, or radiation to the arm warrants immediate emergency assessment.",
			Citation: "Internal guideline CP-01: Acute chest pain pathway",
		},
		{
			ID:       "guideline-dyspnea",
			Text:     "Shortness of breath workup: assess oxygen saturation and respiratory rate first. Persistent hypoxia or breathlessness at rest requires urgent review and chest imaging. Consider asthma, COPD exacerbation, pneumonia, heart failure, and anxiety as differentials.",
			Citation: "Internal guideline RS-02: Dyspnea assessment",
		},
		{
			ID:       "guideline-headache",
			Text:     "Headache triage: most headaches are benign tension-type or migraine. Red-flag features are sudden severe onset, fever with neck stiffness, new neurological deficit, and onset after head injury. Benign headache management includes hydration, analgesia, and rest with follow-up if persisting beyond a week.",
			Citation: "Internal guideline NE-03: Headache red flags",
		},
		{
			ID:       "guideline-fever",
			Text:     "Fever in adults: check temperature trend and look for infection source. Evaluate for sepsis when fever combines with confusion, low blood pressure, or rapid breathing. Consider a complete blood count and cultures for persistent fever beyond three days.",
			Citation: "Internal guideline ID-04: Febrile adult pathway",
		},
		{
			ID:       "guideline-allergy",
			Text:     "Allergic reaction management: identify the trigger and review medication history. Tongue or throat swelling, wheeze, or hypotension indicates anaphylaxis and requires intramuscular epinephrine immediately. Mild cutaneous reactions may be managed with antihistamines and observation.",
			Citation: "Internal guideline AL-05: Allergy and anaphylaxis",
		},
		{
			ID:       "guideline-abdominal-pain",
			Text:     "Abdominal pain assessment: localize the pain and establish onset and severity. Rigid abdomen, uncontrolled vomiting, or blood in stool requires urgent surgical review. Mild self-limiting pain with normal vitals can be observed with dietary advice and safety-netting.",
			Citation: "Internal guideline GI-06: Abdominal pain triage",
		},
	}}
}
