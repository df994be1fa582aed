package entity

import "time"

// Certificate - сертификат о результатах multi-skill тестирования
type Certificate struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssessmentID uint      `gorm:"not null;uniqueIndex" json:"assessmentId"`
	StudentID    uint      `gorm:"not null;index" json:"studentId"`
	Number       string    `gorm:"size:64;not null;uniqueIndex" json:"number"`
	Language     string    `gorm:"size:10;not null" json:"language"`
	CEFRLevel    CEFRLevel `gorm:"column:cefr_level;size:2;not null" json:"cefrLevel"`
	Score        int       `gorm:"not null" json:"score"`
	FileKey      string    `gorm:"size:500;not null" json:"-"`
	FileURL      string    `gorm:"size:1000;not null" json:"fileUrl"`
	IssuedAt     time.Time `gorm:"not null" json:"issuedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName определяет имя таблицы для GORM
func (Certificate) TableName() string {
	return "certificates"
}
