package entity

import "time"

// AssessmentType - назначение тестирования
type AssessmentType string

const (
	AssessmentTypePlacement AssessmentType = "PLACEMENT"
	AssessmentTypeProgress  AssessmentType = "PROGRESS"
	AssessmentTypeFinal     AssessmentType = "FINAL"
)

// IsValid проверяет тип тестирования
func (t AssessmentType) IsValid() bool {
	switch t {
	case AssessmentTypePlacement, AssessmentTypeProgress, AssessmentTypeFinal:
		return true
	}
	return false
}

// Assessment представляет назначенное студенту тестирование
type Assessment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	StudentID    uint           `gorm:"not null;index" json:"studentId"`
	AssignedBy   uint           `gorm:"not null;default:0" json:"assignedBy"`
	Language     string         `gorm:"size:10;not null;index" json:"language"`
	Type         AssessmentType `gorm:"size:20;not null" json:"type"`
	IsMultiSkill bool           `gorm:"not null;default:false" json:"isMultiSkill"`
	Run
	Violations     ViolationList `gorm:"type:jsonb;not null;default:'[]'" json:"violations"`
	Score          *int          `json:"score"`
	CEFRLevel      *CEFRLevel    `gorm:"column:cefr_level;size:2" json:"cefrLevel"`
	ReadingLevel   *CEFRLevel    `gorm:"size:2" json:"readingLevel"`
	ListeningLevel *CEFRLevel    `gorm:"size:2" json:"listeningLevel"`
	WritingLevel   *CEFRLevel    `gorm:"size:2" json:"writingLevel"`
	SpeakingLevel  *CEFRLevel    `gorm:"size:2" json:"speakingLevel"`
	Sections       []Section     `gorm:"foreignKey:AssessmentID" json:"sections,omitempty"`
	Version        int           `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// TableName определяет имя таблицы для GORM
func (Assessment) TableName() string {
	return "assessments"
}

// IsCompleted проверяет, завершено ли тестирование
func (a *Assessment) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// OwnedBy проверяет, принадлежит ли тестирование студенту
func (a *Assessment) OwnedBy(studentID uint) bool {
	return a.StudentID == studentID
}

// SetSkillLevel записывает уровень по навыку (только для multi-skill)
func (a *Assessment) SetSkillLevel(skill Skill, level *CEFRLevel) {
	switch skill {
	case SkillReading:
		a.ReadingLevel = level
	case SkillListening:
		a.ListeningLevel = level
	case SkillWriting:
		a.WritingLevel = level
	case SkillSpeaking:
		a.SpeakingLevel = level
	}
}

// SkillLevel возвращает уровень по навыку
func (a *Assessment) SkillLevel(skill Skill) *CEFRLevel {
	switch skill {
	case SkillReading:
		return a.ReadingLevel
	case SkillListening:
		return a.ListeningLevel
	case SkillWriting:
		return a.WritingLevel
	case SkillSpeaking:
		return a.SpeakingLevel
	}
	return nil
}
