package entity

import "time"

// Section - секция multi-skill тестирования по одному навыку
type Section struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	AssessmentID uint  `gorm:"not null;index;uniqueIndex:idx_section_assessment_order" json:"assessmentId"`
	Skill        Skill `gorm:"size:20;not null" json:"skill"`
	OrderIndex   int   `gorm:"not null;uniqueIndex:idx_section_assessment_order" json:"orderIndex"`
	Run
	RawScore        *int       `json:"rawScore"`
	MaxScore        *int       `json:"maxScore"`
	PercentageScore *int       `json:"percentageScore"`
	CEFRLevel       *CEFRLevel `gorm:"column:cefr_level;size:2" json:"cefrLevel"`
	AIScore         *ScoreBlob `gorm:"column:ai_score;type:jsonb" json:"aiScore"`
	TeacherScore    *ScoreBlob `gorm:"type:jsonb" json:"teacherScore"`
	FinalScore      *ScoreBlob `gorm:"type:jsonb" json:"finalScore"`
	Version         int        `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TableName определяет имя таблицы для GORM
func (Section) TableName() string {
	return "assessment_sections"
}

// IsObjective - секция проверяется автоматически
func (s *Section) IsObjective() bool {
	return s.Skill.IsObjective()
}

// ApplyFinalScore пересчитывает итоговую оценку субъективной секции.
// Оценка преподавателя приоритетнее оценки AI.
func (s *Section) ApplyFinalScore() {
	switch {
	case s.TeacherScore != nil:
		final := *s.TeacherScore
		s.FinalScore = &final
	case s.AIScore != nil:
		final := *s.AIScore
		s.FinalScore = &final
	default:
		s.FinalScore = nil
	}
	if s.FinalScore != nil {
		s.CEFRLevel = LevelPtr(s.FinalScore.CEFRLevel)
	}
}
