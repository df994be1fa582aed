package entity

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	*o = StringArray{}
	_, err := scanJSONB(value, o)
	return err
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Типы вопросов банка
const (
	QuestionTypeMultipleChoice = "MULTIPLE_CHOICE"
	QuestionTypeFillBlank      = "FILL_BLANK"
	QuestionTypeTrueFalse      = "TRUE_FALSE"
	QuestionTypeEssay          = "ESSAY"
	QuestionTypeSpeakingPrompt = "SPEAKING_PROMPT"
)

// Question представляет вопрос из банка вопросов. Ядро тестирования только читает вопросы.
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Language      string      `gorm:"size:10;not null;index:idx_question_pick,priority:1" json:"language"`
	CEFRLevel     CEFRLevel   `gorm:"column:cefr_level;size:2;not null;index:idx_question_pick,priority:2" json:"cefrLevel"`
	Skill         *Skill      `gorm:"size:20" json:"skill"` // nil - вопрос подходит любой секции
	QuestionType  string      `gorm:"size:30;not null" json:"questionType"`
	Text          string      `gorm:"type:text;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null;default:'[]'" json:"options"`
	MediaURL      string      `gorm:"size:500" json:"mediaUrl,omitempty"`
	CorrectAnswer string      `gorm:"type:text" json:"-"` // Скрыто от клиента
	Points        int         `gorm:"not null;default:1" json:"points"`
	OrderIndex    int         `gorm:"not null;default:0;index:idx_question_pick,priority:3" json:"orderIndex"`
	IsActive      bool        `gorm:"not null;default:true" json:"isActive"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect сравнивает ответ с эталоном без учета регистра и пробелов по краям.
// Для вопросов без эталона (эссе, устная речь) всегда false.
func (q *Question) IsCorrect(answer string) bool {
	expected := strings.TrimSpace(q.CorrectAnswer)
	if expected == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), expected)
}

// CalculatePoints рассчитывает очки за ответ на вопрос
func (q *Question) CalculatePoints(isCorrect bool) int {
	if !isCorrect {
		return 0
	}
	return q.Points
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsSkillAgnostic - вопрос не привязан к навыку
func (q *Question) IsSkillAgnostic() bool {
	return q.Skill == nil
}
