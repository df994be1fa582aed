package entity

import "time"

// Student - проекция студента для уведомлений и сертификатов.
// Учетные записи ведет внешний сервис пользователей.
type Student struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Email    string `gorm:"size:255" json:"email"`
	FullName string `gorm:"size:255" json:"fullName"`
}

// TableName определяет имя таблицы для GORM
func (Student) TableName() string {
	return "students"
}

// DisplayName возвращает имя для документов
func (s *Student) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.Email
}

// StudentLanguageLevel - текущий уровень студента по языку в профиле
type StudentLanguageLevel struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_student_language" json:"studentId"`
	Language     string    `gorm:"size:10;not null;uniqueIndex:idx_student_language" json:"language"`
	CEFRLevel    CEFRLevel `gorm:"column:cefr_level;size:2;not null" json:"cefrLevel"`
	AssessmentID uint      `gorm:"not null" json:"assessmentId"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName определяет имя таблицы для GORM
func (StudentLanguageLevel) TableName() string {
	return "student_language_levels"
}
