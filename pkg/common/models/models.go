package models

import (
	"time"
)

// Conversation

type Speaker string

const (
	SpeakerPatient Speaker = "patient"
	SpeakerAgent   Speaker = "agent"
)

type TurnType string

const (
	TurnMessage    TurnType = "message"
	TurnQuestion   TurnType = "question"
	TurnCompletion TurnType = "completion"
	TurnSafety     TurnType = "safety"
	TurnReport     TurnType = "report"
)

// ConversationTurn is immutable once appended to a session. RawText is only
// ever populated in memory while a turn is being processed; it is excluded
// from serialization so no storage backend can persist unredacted input.
type ConversationTurn struct {
	ID           string    `json:"id"`
	Speaker      Speaker   `json:"speaker"`
	Type         TurnType  `json:"type"`
	RawText      string    `json:"-"`
	RedactedText string    `json:"redacted_text"`
	Redactions   []string  `json:"redactions,omitempty"`
	FieldKey     string    `json:"field_key,omitempty"`
	Suggestions  []string  `json:"suggestions,omitempty"`
	Hint         string    `json:"hint,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Urgency

type UrgencyLevel string

const (
	UrgencyNone      UrgencyLevel = "none"
	UrgencyLow       UrgencyLevel = "low"
	UrgencyModerate  UrgencyLevel = "moderate"
	UrgencyHigh      UrgencyLevel = "high"
	UrgencyEmergency UrgencyLevel = "emergency"
)

var urgencyRank = map[UrgencyLevel]int{
	UrgencyNone:      0,
	UrgencyLow:       1,
	UrgencyModerate:  2,
	UrgencyHigh:      3,
	UrgencyEmergency: 4,
}

func (u UrgencyLevel) Rank() int {
	return urgencyRank[u]
}

func MaxUrgency(a, b UrgencyLevel) UrgencyLevel {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

type RedFlagAssessment struct {
	Urgency           UrgencyLevel `json:"urgency"`
	TriggeredTerms    []string     `json:"triggered_terms,omitempty"`
	RecommendedAction string       `json:"recommended_action,omitempty"`
	Confidence        float64      `json:"confidence"`
	AssessedAt        time.Time    `json:"assessed_at"`
}

// Structured record

type FieldValue struct {
	Value     string    `json:"value"`
	TurnID    string    `json:"turn_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StructuredRecord maps a clinical field name to its redacted value plus the
// turn that populated it. Fields are only extended or corrected, never removed.
type StructuredRecord map[string]FieldValue

func (r StructuredRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v.Value != ""
}

// Intake state machine

type IntakeState string

const (
	StateChiefComplaint   IntakeState = "collecting_chief_complaint"
	StateHistory          IntakeState = "collecting_history"
	StateSeverityDuration IntakeState = "collecting_severity_duration"
	StateReady            IntakeState = "ready_for_recommendation"
	StateClosed           IntakeState = "closed"
	StateEmergency        IntakeState = "emergency_escalation"
)

// Session

type ReportAttachment struct {
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	TurnID      string    `json:"turn_id"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type Session struct {
	ID              string             `json:"session_id"`
	State           IntakeState        `json:"state"`
	Turns           []ConversationTurn `json:"turns"`
	Record          StructuredRecord   `json:"record"`
	Assessment      RedFlagAssessment  `json:"assessment"`
	Recommendations []Recommendation   `json:"recommendations,omitempty"`
	Reports         []ReportAttachment `json:"reports,omitempty"`
	EscalatedAt     *time.Time         `json:"escalated_at,omitempty"`
	OverriddenBy    string             `json:"overridden_by,omitempty"`
	OverrideReason  string             `json:"override_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Retrieval

type RetrievedDocument struct {
	DocID    string  `json:"doc_id"`
	Excerpt  string  `json:"excerpt"`
	Score    float64 `json:"score"`
	Citation string  `json:"citation"`
}

type Recommendation struct {
	ID                  string              `json:"id"`
	SessionID           string              `json:"session_id"`
	Summary             string              `json:"summary"`
	Considerations      []string            `json:"considerations"`
	SupportingDocuments []RetrievedDocument `json:"supporting_documents"`
	Urgency             UrgencyLevel        `json:"urgency"`
	Disclaimer          string              `json:"disclaimer"`
	Degraded            bool                `json:"degraded,omitempty"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// Escalation review

type EscalationStatus string

const (
	EscalationPending    EscalationStatus = "pending"
	EscalationConfirmed  EscalationStatus = "confirmed"
	EscalationOverridden EscalationStatus = "overridden"
)

type Escalation struct {
	ID             string           `json:"id"`
	SessionID      string           `json:"session_id"`
	Urgency        UrgencyLevel     `json:"urgency"`
	TriggeredTerms []string         `json:"triggered_terms,omitempty"`
	Status         EscalationStatus `json:"status"`
	ReviewedBy     string           `json:"reviewed_by,omitempty"`
	ReviewNotes    string           `json:"review_notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ReviewedAt     *time.Time       `json:"reviewed_at,omitempty"`
}

// Event bus

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // intake-turn, escalation, recommendation
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Boundary payloads

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type SafetyBanner struct {
	Message string   `json:"message"`
	Terms   []string `json:"terms,omitempty"`
}

type ChatResponse struct {
	SessionID      string             `json:"session_id"`
	Reply          string             `json:"reply"`
	NextField      string             `json:"next_field,omitempty"`
	Suggestions    []string           `json:"suggestions,omitempty"`
	Hint           string             `json:"hint,omitempty"`
	Redactions     []string           `json:"redactions,omitempty"`
	Assessment     RedFlagAssessment  `json:"assessment"`
	SafetyBanner   *SafetyBanner      `json:"safety_banner,omitempty"`
	TranscriptTail []ConversationTurn `json:"transcript_tail,omitempty"`
	State          IntakeState        `json:"state"`
	Complete       bool               `json:"complete"`
}

type RecommendRequest struct {
	SessionID string `json:"session_id"`
	Notes     string `json:"patient_notes,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

type UploadReportRequest struct {
	SessionID     string `json:"session_id"`
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64,omitempty"`
	ExtractedText string `json:"extracted_text"`
}

type UploadReportResponse struct {
	SessionID   string            `json:"session_id"`
	Filename    string            `json:"filename"`
	StoragePath string            `json:"storage_path"`
	Assessment  RedFlagAssessment `json:"assessment"`
}

type OverrideRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

type ReviewEscalationRequest struct {
	Status   EscalationStatus `json:"status"`
	Reviewer string           `json:"reviewer"`
	Notes    string           `json:"notes,omitempty"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
	Subject   string `json:"subject"`
	Email     string `json:"email,omitempty"`
}
