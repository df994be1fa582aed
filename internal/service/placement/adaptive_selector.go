package placement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
)

// AdaptiveSelector выбирает следующий вопрос по текущему целевому уровню
type AdaptiveSelector struct {
	config *LevelConfig
	deps   *Dependencies
}

// NewAdaptiveSelector создаёт новый селектор
func NewAdaptiveSelector(config *LevelConfig, deps *Dependencies) *AdaptiveSelector {
	return &AdaptiveSelector{
		config: config,
		deps:   deps,
	}
}

// SelectionQuery - параметры выбора вопроса
type SelectionQuery struct {
	Scope
	TargetLevel entity.CEFRLevel
	Answered    entity.AnswerList
}

// RecomputeTargetLevel возвращает новый целевой уровень по последним ответам
func (s *AdaptiveSelector) RecomputeTargetLevel(current entity.CEFRLevel, answers entity.AnswerList) entity.CEFRLevel {
	return s.config.AdjustLevel(current, answers)
}

// NextQuestion выбирает следующий неотвеченный вопрос.
// Сначала ищет вопрос ровно на целевом уровне, затем любой вопрос языка.
// Возвращает nil, nil, когда вопросы закончились.
// У возвращённого вопроса эталонный ответ очищен.
func (s *AdaptiveSelector) NextQuestion(ctx context.Context, q SelectionQuery) (*entity.Question, error) {
	excludeIDs := q.Answered.QuestionIDs()
	level := q.TargetLevel

	// 1. Вопрос ровно на целевом уровне (и навыке секции)
	question, err := s.deps.QuestionRepo.FindFirst(ctx, repository.QuestionFilter{
		Language:   q.Language,
		Level:      &level,
		Skill:      q.Skill,
		ExcludeIDs: excludeIDs,
	})
	if err != nil {
		s.logger().Warn("[AdaptiveSelector] level query failed, trying fallback",
			zap.String("language", q.Language), zap.String("level", level.String()), zap.Error(err))
	}

	// 2. Fallback: любой уровень, для секций добавляем вопросы без навыка
	if question == nil {
		question, err = s.deps.QuestionRepo.FindFirst(ctx, repository.QuestionFilter{
			Language:             q.Language,
			Skill:                q.Skill,
			IncludeSkillAgnostic: q.Skill != nil,
			ExcludeIDs:           excludeIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to find fallback question: %w", err)
		}
		if question != nil {
			s.logger().Debug("[AdaptiveSelector] no question at target level, used fallback",
				zap.String("target_level", level.String()), zap.Uint("question_id", question.ID))
		}
	}

	if question == nil {
		return nil, nil
	}

	served := *question
	served.CorrectAnswer = ""
	return &served, nil
}

func (s *AdaptiveSelector) logger() *zap.Logger {
	if s.deps == nil || s.deps.Logger == nil {
		return zap.NewNop()
	}
	return s.deps.Logger
}
