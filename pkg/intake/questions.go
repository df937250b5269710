package intake

import "github.com/caremesh-ai/triage/pkg/common/models"

// Field keys of the structured intake record.
const (
	FieldChiefComplaint     = "chief_complaint"
	FieldOnset              = "onset"
	FieldSeverity           = "severity"
	FieldDuration           = "duration"
	FieldAssociatedSymptoms = "associated_symptoms"
	FieldMedicalHistory     = "medical_history"
	FieldMedications        = "medications"
	FieldAllergies          = "allergies"
)

type question struct {
	FieldKey    string
	Prompt      string
	Suggestions []string
	Hint        string
}

var stateQuestions = map[models.IntakeState]question{
	models.StateChiefComplaint: {
		FieldKey: FieldChiefComplaint,
		Prompt:   "What is the main problem or symptom that brought you here today?",
		Suggestions: []string{
			"I have a headache",
			"I have chest discomfort",
			"I have a fever",
			"I have stomach pain",
		},
		Hint: "Describe the single symptom that bothers you most.",
	},
	models.StateHistory: {
		FieldKey: FieldMedicalHistory,
		Prompt:   "Do you have any existing medical conditions, and are you taking any medications or have known allergies?",
		Suggestions: []string{
			"No conditions, no medications",
			"I have diabetes and take metformin",
			"I am allergic to penicillin",
		},
		Hint: "Include long-term conditions, current medications, and allergies.",
	},
	models.StateSeverityDuration: {
		FieldKey: FieldSeverity,
		Prompt:   "How severe is it on a scale of 1 to 10, and how long has it been going on?",
		Suggestions: []string{
			"About 3 out of 10, for 2 days",
			"Severe, since yesterday",
			"Mild, for about a week",
		},
		Hint: "Give a number from 1 to 10 and how long the symptom has lasted.",
	},
}

var stateAcknowledgments = map[models.IntakeState]string{
	models.StateChiefComplaint:   "Thank you, I've noted your main concern.",
	models.StateHistory:          "Thanks, I've recorded your history.",
	models.StateSeverityDuration: "Got it, I've noted the severity and duration.",
}

const completionReply = "I have everything I need. You can now request a recommendation, or add more detail at any time."

const closedReply = "This conversation has been closed. Please start a new session."

// safetyReply is fixed and deterministic so escalated sessions always
// receive the same instruction regardless of further input.
const safetyReply = "Your answers mention symptoms that may need emergency care. Please call your local emergency number or go to the nearest emergency department now. This assistant cannot provide emergency help."

const safetyBannerMessage = "Possible emergency detected. Seek immediate medical attention."
