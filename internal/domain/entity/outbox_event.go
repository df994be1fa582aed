package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Типы событий outbox. Каждый тип обрабатывается одним обработчиком.
const (
	EventAssessmentAssigned = "notification.assessment_assigned"
	EventProfileLevelUpdate = "profile.level_update"
	EventCertificateRequest = "certificate.requested"
	EventResultsReady       = "notification.results_ready"
	EventAIScoringRequested = "scoring.ai_requested"
)

// Статусы события outbox
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusProcessed  = "processed"
	OutboxStatusDead       = "dead"
)

// EventPayload - типизированные данные события
type EventPayload struct {
	AssessmentID uint           `json:"assessmentId"`
	SectionID    *uint          `json:"sectionId,omitempty"`
	Skill        *Skill         `json:"skill,omitempty"`
	Language     string         `json:"language,omitempty"`
	Type         AssessmentType `json:"type,omitempty"`
	CEFRLevel    *CEFRLevel     `json:"cefrLevel,omitempty"`
	Score        *int           `json:"score,omitempty"`
	Expired      bool           `json:"expired,omitempty"`
}

// Scan реализует интерфейс sql.Scanner для EventPayload
func (p *EventPayload) Scan(value interface{}) error {
	*p = EventPayload{}
	_, err := scanJSONB(value, p)
	return err
}

// Value реализует интерфейс driver.Valuer для EventPayload
func (p EventPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// OutboxEvent - отложенный побочный эффект (уведомление, сертификат, профиль)
type OutboxEvent struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	EventID     string       `gorm:"size:36;not null;uniqueIndex" json:"eventId"`
	Type        string       `gorm:"size:64;not null;index" json:"type"`
	StudentID   uint         `gorm:"not null" json:"studentId"`
	Payload     EventPayload `gorm:"type:jsonb;not null" json:"payload"`
	Status      string       `gorm:"size:20;not null;index:idx_outbox_claim,priority:1" json:"status"`
	Attempts    int          `gorm:"not null;default:0" json:"attempts"`
	LastError   string       `gorm:"type:text" json:"lastError,omitempty"`
	AvailableAt time.Time    `gorm:"not null;index:idx_outbox_claim,priority:2" json:"availableAt"`
	ProcessedAt *time.Time   `json:"processedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TableName определяет имя таблицы для GORM
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
