package review

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository persists the escalation review queue and its audit trail.
// Entries are written by the escalation worker from broker events and
// worked off by clinical reviewers.
type Repository struct {
	db *gorm.DB
}

// ErrNotFound is returned when no queue entry exists for the given id.
var ErrNotFound = errors.New("escalation not found")

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type escalationModel struct {
	ID             uuid.UUID      `gorm:"primaryKey;column:id"`
	SessionID      string         `gorm:"column:session_id;index"`
	Urgency        string         `gorm:"column:urgency"`
	TriggeredTerms datatypes.JSON `gorm:"column:triggered_terms"`
	Status         string         `gorm:"column:status;index"`
	ReviewedBy     string         `gorm:"column:reviewed_by"`
	ReviewNotes    string         `gorm:"column:review_notes"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	ReviewedAt     *time.Time     `gorm:"column:reviewed_at"`
}

func (escalationModel) TableName() string { return "escalations" }

type reviewAuditModel struct {
	ID        int64          `gorm:"primaryKey;column:id"`
	SessionID string         `gorm:"column:session_id;index"`
	Actor     string         `gorm:"column:actor"`
	Action    string         `gorm:"column:action"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (reviewAuditModel) TableName() string { return "escalation_audit_logs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&escalationModel{}, &reviewAuditModel{})
}

// Record adds a pending queue entry for an escalated session. Repeat events
// for a session that already has a pending entry are collapsed.
func (r *Repository) Record(ctx context.Context, esc models.Escalation) (models.Escalation, error) {
	var existing escalationModel
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", esc.SessionID, string(models.EscalationPending)).
		First(&existing).Error
	if err == nil {
		return buildEscalation(&existing), nil
	}
	if err != gorm.ErrRecordNotFound {
		return models.Escalation{}, err
	}

	entry := &escalationModel{
		ID:        uuid.New(),
		SessionID: esc.SessionID,
		Urgency:   string(esc.Urgency),
		Status:    string(models.EscalationPending),
		CreatedAt: time.Now().UTC(),
	}
	if len(esc.TriggeredTerms) > 0 {
		if data, err := json.Marshal(esc.TriggeredTerms); err == nil {
			entry.TriggeredTerms = datatypes.JSON(data)
		}
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.Escalation{}, err
	}
	return buildEscalation(entry), nil
}

func (r *Repository) ListPending(ctx context.Context, limit int) ([]models.Escalation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []escalationModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(models.EscalationPending)).
		Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	escalations := make([]models.Escalation, 0, len(rows))
	for i := range rows {
		escalations = append(escalations, buildEscalation(&rows[i]))
	}
	return escalations, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.Escalation, error) {
	var row escalationModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Escalation{}, ErrNotFound
		}
		return models.Escalation{}, err
	}
	return buildEscalation(&row), nil
}

// Review resolves a queue entry as confirmed or overridden.
func (r *Repository) Review(ctx context.Context, id uuid.UUID, status models.EscalationStatus, reviewer, notes string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&escalationModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       string(status),
		"reviewed_by":  reviewer,
		"review_notes": notes,
		"reviewed_at":  now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveBySession marks every pending entry for a session. Used by the
// override endpoint, which identifies the session rather than the entry.
func (r *Repository) ResolveBySession(ctx context.Context, sessionID string, status models.EscalationStatus, reviewer, notes string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&escalationModel{}).
		Where("session_id = ? AND status = ?", sessionID, string(models.EscalationPending)).
		Updates(map[string]interface{}{
			"status":       string(status),
			"reviewed_by":  reviewer,
			"review_notes": notes,
			"reviewed_at":  now,
		}).Error
}

func (r *Repository) AppendAudit(ctx context.Context, sessionID, actor, action string, payload map[string]interface{}) error {
	data, _ := json.Marshal(payload)
	entry := &reviewAuditModel{
		SessionID: sessionID,
		Actor:     actor,
		Action:    action,
		Payload:   datatypes.JSON(data),
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ListAudits(ctx context.Context, sessionID string, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []reviewAuditModel
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	audits := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		var payload map[string]interface{}
		if len(row.Payload) > 0 {
			_ = json.Unmarshal(row.Payload, &payload)
		}
		audits = append(audits, map[string]interface{}{
			"id":         row.ID,
			"session_id": row.SessionID,
			"actor":      row.Actor,
			"action":     row.Action,
			"payload":    payload,
			"created_at": row.CreatedAt,
		})
	}
	return audits, nil
}

func buildEscalation(row *escalationModel) models.Escalation {
	esc := models.Escalation{
		ID:          row.ID.String(),
		SessionID:   row.SessionID,
		Urgency:     models.UrgencyLevel(row.Urgency),
		Status:      models.EscalationStatus(row.Status),
		ReviewedBy:  row.ReviewedBy,
		ReviewNotes: row.ReviewNotes,
		CreatedAt:   row.CreatedAt,
		ReviewedAt:  row.ReviewedAt,
	}
	if len(row.TriggeredTerms) > 0 {
		var terms []string
		_ = json.Unmarshal(row.TriggeredTerms, &terms)
		esc.TriggeredTerms = terms
	}
	return esc
}
