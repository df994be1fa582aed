package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// scanJSONB разбирает JSONB значение из базы в dest.
// NULL и пустой массив байтов оставляют dest без изменений и возвращают false.
func scanJSONB(value interface{}, dest interface{}) (bool, error) {
	if value == nil {
		return false, nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return false, errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(bytes, dest)
}

// AnswerRecord - один ответ на вопрос внутри прохода
type AnswerRecord struct {
	QuestionID   uint      `json:"questionId"`
	Answer       string    `json:"answer"`
	IsCorrect    bool      `json:"isCorrect"`
	CEFRLevel    CEFRLevel `json:"cefrLevel"` // уровень вопроса, а не студента
	PointsEarned int       `json:"pointsEarned"`
	AnsweredAt   time.Time `json:"answeredAt"`
}

// AnswerList - упорядоченный список ответов, хранится в JSONB
type AnswerList []AnswerRecord

// Scan реализует интерфейс sql.Scanner для AnswerList
func (l *AnswerList) Scan(value interface{}) error {
	*l = AnswerList{}
	_, err := scanJSONB(value, l)
	return err
}

// Value реализует интерфейс driver.Valuer для AnswerList
func (l AnswerList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Has проверяет, был ли уже ответ на вопрос
func (l AnswerList) Has(questionID uint) bool {
	for _, a := range l {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// QuestionIDs возвращает ID отвеченных вопросов
func (l AnswerList) QuestionIDs() []uint {
	ids := make([]uint, 0, len(l))
	for _, a := range l {
		ids = append(ids, a.QuestionID)
	}
	return ids
}

// Last возвращает n последних ответов (или все, если их меньше)
func (l AnswerList) Last(n int) AnswerList {
	if n <= 0 {
		return AnswerList{}
	}
	if len(l) <= n {
		return l
	}
	return l[len(l)-n:]
}

// CorrectCount - количество правильных ответов
func (l AnswerList) CorrectCount() int {
	count := 0
	for _, a := range l {
		if a.IsCorrect {
			count++
		}
	}
	return count
}

// Violation - событие прокторинга (уход со вкладки, вставка текста и т.п.)
type Violation struct {
	Type       string    `json:"type"`
	Details    string    `json:"details,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ViolationList - журнал нарушений, хранится в JSONB
type ViolationList []Violation

// Scan реализует интерфейс sql.Scanner для ViolationList
func (l *ViolationList) Scan(value interface{}) error {
	*l = ViolationList{}
	_, err := scanJSONB(value, l)
	return err
}

// Value реализует интерфейс driver.Valuer для ViolationList
func (l ViolationList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// ScoreBlob - оценка субъективной секции от AI или преподавателя
type ScoreBlob struct {
	Overall    float64            `json:"overall"`
	CEFRLevel  CEFRLevel          `json:"cefrLevel"`
	Criteria   map[string]float64 `json:"criteria,omitempty"`
	Feedback   string             `json:"feedback,omitempty"`
	ReviewerID *uint              `json:"reviewerId,omitempty"`
	ScoredAt   time.Time          `json:"scoredAt"`
}

// Scan реализует интерфейс sql.Scanner для ScoreBlob
func (b *ScoreBlob) Scan(value interface{}) error {
	*b = ScoreBlob{}
	_, err := scanJSONB(value, b)
	return err
}

// Value реализует интерфейс driver.Valuer для ScoreBlob
func (b ScoreBlob) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Validate проверяет обязательные поля оценки
func (b *ScoreBlob) Validate() error {
	if !b.CEFRLevel.IsValid() {
		return errors.New("score cefrLevel is invalid")
	}
	if b.Overall < 0 {
		return errors.New("score overall must be non-negative")
	}
	return nil
}
