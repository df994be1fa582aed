package repository

import (
	"context"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// QuestionFilter описывает выборку активных вопросов банка
type QuestionFilter struct {
	Language string
	// Level - точный уровень вопроса, nil - любой уровень
	Level *entity.CEFRLevel
	// Skill - навык секции, nil - любой навык
	Skill *entity.Skill
	// IncludeSkillAgnostic добавляет к выборке по Skill вопросы без навыка
	IncludeSkillAgnostic bool
	// ExcludeIDs - уже отвеченные вопросы
	ExcludeIDs []uint
}

// QuestionRepository определяет методы чтения банка вопросов
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Question, error)
	// FindFirst возвращает первый подходящий вопрос по возрастанию orderIndex.
	// Если вопросов нет, возвращает nil, nil.
	FindFirst(ctx context.Context, filter QuestionFilter) (*entity.Question, error)
	// CountActiveByLevel возвращает число активных вопросов языка по уровням
	CountActiveByLevel(ctx context.Context, language string) (map[entity.CEFRLevel]int64, error)
}
