package service

import (
	"time"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// NextItemResult - ответ на запрос следующего вопроса
type NextItemResult struct {
	Question       *entity.Question
	IsComplete     bool
	Expired        bool
	TargetLevel    entity.CEFRLevel
	AnsweredCount  int
	QuestionsLimit int
	TimeRemaining  *time.Duration
}

// SubmitResult - результат отправки ответа
type SubmitResult struct {
	IsCorrect          bool
	CorrectAnswer      string
	PointsEarned       int
	ShouldAutoComplete bool
	Expired            bool
	AnsweredCount      int
}

// AssignRequest - параметры назначения тестирования
type AssignRequest struct {
	StudentID      uint
	Language       string
	Type           entity.AssessmentType
	IsMultiSkill   bool
	TargetLevel    entity.CEFRLevel
	QuestionsLimit int
	TimeLimitMin   *int
}

func nextItemResult(run *entity.Run, now time.Time) *NextItemResult {
	return &NextItemResult{
		TargetLevel:    run.TargetLevel,
		AnsweredCount:  len(run.Answers),
		QuestionsLimit: run.QuestionsLimit,
		TimeRemaining:  run.TimeRemaining(now),
	}
}
