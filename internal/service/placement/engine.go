package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// NextOutcome - результат запроса следующего вопроса
type NextOutcome struct {
	Question     *entity.Question
	IsComplete   bool
	Expired      bool
	LevelChanged bool
}

// AnswerOutcome - результат приёма ответа
type AnswerOutcome struct {
	IsCorrect          bool
	CorrectAnswer      string
	PointsEarned       int
	ShouldAutoComplete bool
	Expired            bool
	AnsweredCount      int
}

// Engine ведёт один адаптивный проход (тестирование или секцию) через его состояния.
// Engine не сохраняет данные, за персистентность и блокировки отвечает вызывающий.
type Engine struct {
	levels   *LevelConfig
	selector *AdaptiveSelector
	scoring  *ScoringEngine
	deps     *Dependencies
}

// NewEngine создаёт движок с селектором и оцениванием
func NewEngine(levels *LevelConfig, deps *Dependencies) *Engine {
	return &Engine{
		levels:   levels,
		selector: NewAdaptiveSelector(levels, deps),
		scoring:  NewScoringEngine(levels),
		deps:     deps,
	}
}

// Scoring возвращает движок оценивания
func (e *Engine) Scoring() *ScoringEngine {
	return e.scoring
}

// Start переводит проход в IN_PROGRESS. Повторный старт активного прохода ничего не меняет.
func (e *Engine) Start(run *entity.Run, now time.Time) error {
	switch run.Status {
	case entity.StatusAssigned, entity.StatusPending:
		run.Begin(now)
		return nil
	case entity.StatusInProgress:
		return nil
	default:
		return fmt.Errorf("%w: cannot start run in status %s", apperrors.ErrInvalidState, run.Status)
	}
}

// Next выбирает следующий вопрос. При Expired вызывающий обязан завершить проход.
func (e *Engine) Next(ctx context.Context, run *entity.Run, scope Scope, now time.Time) (*NextOutcome, error) {
	if run.Status.IsSettled() {
		return &NextOutcome{IsComplete: true}, nil
	}
	if !run.IsInProgress() {
		return nil, fmt.Errorf("%w: run is %s", apperrors.ErrInvalidState, run.Status)
	}

	// === 1. Истечение времени ===
	if run.IsExpired(now) {
		return &NextOutcome{IsComplete: true, Expired: true}, nil
	}

	// === 2. Лимит вопросов (состояние не меняется) ===
	if run.LimitReached() {
		return &NextOutcome{IsComplete: true}, nil
	}

	// === 3. Пересчёт уровня на каждом запросе после окна ответов ===
	outcome := &NextOutcome{}
	if len(run.Answers) >= e.levels.WindowSize {
		newLevel := e.selector.RecomputeTargetLevel(run.TargetLevel, run.Answers)
		if newLevel != run.TargetLevel {
			e.logger().Debug("[Engine] target level changed",
				zap.String("from", run.TargetLevel.String()), zap.String("to", newLevel.String()),
				zap.Int("answers", len(run.Answers)))
			run.TargetLevel = newLevel
			outcome.LevelChanged = true
		}
	}

	// === 4. Выбор вопроса ===
	question, err := e.selector.NextQuestion(ctx, SelectionQuery{
		Scope:       scope,
		TargetLevel: run.TargetLevel,
		Answered:    run.Answers,
	})
	if err != nil {
		return nil, err
	}
	if question == nil {
		outcome.IsComplete = true
		return outcome, nil
	}

	outcome.Question = question
	return outcome, nil
}

// Answer принимает ответ на вопрос. При Expired ответ не записывается,
// вызывающий обязан завершить проход.
func (e *Engine) Answer(ctx context.Context, run *entity.Run, scope Scope, questionID uint, answer string, now time.Time) (*AnswerOutcome, error) {
	if !run.IsInProgress() {
		return nil, fmt.Errorf("%w: cannot answer run in status %s", apperrors.ErrInvalidState, run.Status)
	}
	if run.IsExpired(now) {
		return &AnswerOutcome{Expired: true, AnsweredCount: len(run.Answers)}, nil
	}
	if run.Answers.Has(questionID) {
		return nil, fmt.Errorf("%w: question %d", apperrors.ErrDuplicateAnswer, questionID)
	}

	question, err := e.deps.QuestionRepo.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: question %d", apperrors.ErrNotFound, questionID)
		}
		return nil, fmt.Errorf("failed to load question %d: %w", questionID, err)
	}
	if err := checkAnswerable(question, scope); err != nil {
		return nil, err
	}

	isCorrect := question.IsCorrect(answer)
	points := question.CalculatePoints(isCorrect)
	run.Answers = append(run.Answers, entity.AnswerRecord{
		QuestionID:   question.ID,
		Answer:       answer,
		IsCorrect:    isCorrect,
		CEFRLevel:    question.CEFRLevel,
		PointsEarned: points,
		AnsweredAt:   now,
	})

	return &AnswerOutcome{
		IsCorrect:          isCorrect,
		CorrectAnswer:      question.CorrectAnswer,
		PointsEarned:       points,
		ShouldAutoComplete: run.LimitReached(),
		AnsweredCount:      len(run.Answers),
	}, nil
}

// Finish оценивает ответы и переводит проход в COMPLETED
func (e *Engine) Finish(run *entity.Run, now time.Time) (ScoreResult, error) {
	if !run.IsInProgress() {
		return ScoreResult{}, fmt.Errorf("%w: cannot complete run in status %s", apperrors.ErrInvalidState, run.Status)
	}
	result := e.scoring.Score(run.Answers)
	run.Finish(entity.StatusCompleted, now)
	return result, nil
}

// checkAnswerable проверяет, что вопрос активен и относится к языку и навыку прохода.
// Вопросы без навыка подходят любой секции.
func checkAnswerable(question *entity.Question, scope Scope) error {
	switch {
	case !question.IsActive:
		return fmt.Errorf("%w: question %d is inactive", apperrors.ErrValidation, question.ID)
	case question.Language != scope.Language:
		return fmt.Errorf("%w: question %d is not a %s question", apperrors.ErrValidation, question.ID, scope.Language)
	case scope.Skill != nil && question.Skill != nil && *question.Skill != *scope.Skill:
		return fmt.Errorf("%w: question %d is a %s question, section is %s", apperrors.ErrValidation, question.ID, *question.Skill, *scope.Skill)
	}
	return nil
}

func (e *Engine) logger() *zap.Logger {
	if e.deps == nil || e.deps.Logger == nil {
		return zap.NewNop()
	}
	return e.deps.Logger
}
