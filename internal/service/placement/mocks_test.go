package placement

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
)

// MockQuestionRepo - мок банка вопросов
type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) FindFirst(ctx context.Context, filter repository.QuestionFilter) (*entity.Question, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) CountActiveByLevel(ctx context.Context, language string) (map[entity.CEFRLevel]int64, error) {
	args := m.Called(ctx, language)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entity.CEFRLevel]int64), args.Error(1)
}

// answer собирает запись ответа для тестов
func answer(id uint, level entity.CEFRLevel, correct bool) entity.AnswerRecord {
	return entity.AnswerRecord{QuestionID: id, CEFRLevel: level, IsCorrect: correct}
}
