package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/caremesh-ai/triage/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type sessionModel struct {
	ID        string         `gorm:"primaryKey;column:id"`
	State     string         `gorm:"column:state;index"`
	Urgency   string         `gorm:"column:urgency;index"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string { return "intake_sessions" }

type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AutoMigrate() error {
	return s.db.AutoMigrate(&sessionModel{})
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	var record sessionModel
	if err := s.db.WithContext(ctx).First(&record, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal(record.Payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *PostgresStore) Save(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	record := sessionModel{
		ID:        session.ID,
		State:     string(session.State),
		Urgency:   string(session.Assessment.Urgency),
		Payload:   payload,
		CreatedAt: session.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Save(&record).Error
}
