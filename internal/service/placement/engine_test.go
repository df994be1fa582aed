package placement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/placement-api/internal/domain/entity"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// ============================================================================
// Тесты для Engine: старт, выбор вопроса, приём ответа, завершение
// ============================================================================

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestEngine(repo *MockQuestionRepo) *Engine {
	return NewEngine(DefaultLevelConfig(), &Dependencies{QuestionRepo: repo})
}

func activeRun(limit int, timeLimit *int) *entity.Run {
	run := &entity.Run{Status: entity.StatusAssigned, TargetLevel: entity.LevelA2, QuestionsLimit: limit, TimeLimitMin: timeLimit}
	run.Begin(testNow)
	return run
}

func minutes(v int) *int { return &v }

func TestEngineStart(t *testing.T) {
	engine := newTestEngine(new(MockQuestionRepo))

	run := &entity.Run{Status: entity.StatusPending, TimeLimitMin: minutes(15)}
	require.NoError(t, engine.Start(run, testNow))
	assert.Equal(t, entity.StatusInProgress, run.Status)
	assert.Equal(t, testNow.Add(15*time.Minute), *run.ExpiresAt)

	// Повторный старт (вторая вкладка) не сдвигает таймер
	require.NoError(t, engine.Start(run, testNow.Add(time.Minute)))
	assert.Equal(t, testNow.Add(15*time.Minute), *run.ExpiresAt)

	run.Status = entity.StatusCompleted
	err := engine.Start(run, testNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestEngineNext_ExpiredRun(t *testing.T) {
	repo := new(MockQuestionRepo)
	engine := newTestEngine(repo)
	run := activeRun(10, minutes(20))

	outcome, err := engine.Next(context.Background(), run, Scope{Language: "en"}, testNow.Add(21*time.Minute))

	require.NoError(t, err)
	assert.True(t, outcome.IsComplete)
	assert.True(t, outcome.Expired)
	repo.AssertNotCalled(t, "FindFirst", mock.Anything, mock.Anything)
}

func TestEngineNext_LimitReachedDoesNotMutate(t *testing.T) {
	repo := new(MockQuestionRepo)
	engine := newTestEngine(repo)
	run := activeRun(3, nil)
	run.Answers = entity.AnswerList{answer(1, entity.LevelA2, true), answer(2, entity.LevelA2, true), answer(3, entity.LevelA2, true)}

	outcome, err := engine.Next(context.Background(), run, Scope{Language: "en"}, testNow)

	require.NoError(t, err)
	assert.True(t, outcome.IsComplete)
	assert.False(t, outcome.Expired)
	assert.Equal(t, entity.LevelA2, run.TargetLevel, "При достигнутом лимите уровень не пересчитывается")
}

func TestEngineNext_RecomputesLevelOnEveryRequest(t *testing.T) {
	// Arrange: три верных ответа на A2
	repo := new(MockQuestionRepo)
	for i, level := range []entity.CEFRLevel{entity.LevelB1, entity.LevelB2, entity.LevelC1} {
		repo.On("FindFirst", mock.Anything, atLevel(level)).Return(&entity.Question{ID: uint(10 + i), CEFRLevel: level}, nil)
	}
	engine := newTestEngine(repo)
	run := activeRun(10, nil)
	run.Answers = entity.AnswerList{answer(1, entity.LevelA2, true), answer(2, entity.LevelA2, true), answer(3, entity.LevelA2, true)}

	// Act + Assert: каждый запрос поднимает уровень на шаг
	for _, expected := range []entity.CEFRLevel{entity.LevelB1, entity.LevelB2, entity.LevelC1} {
		outcome, err := engine.Next(context.Background(), run, Scope{Language: "en"}, testNow)
		require.NoError(t, err)
		assert.True(t, outcome.LevelChanged)
		assert.Equal(t, expected, run.TargetLevel)
		require.NotNil(t, outcome.Question)
		assert.Equal(t, expected, outcome.Question.CEFRLevel)
	}
}

func TestEngineNext_NoRecomputeBeforeWindow(t *testing.T) {
	repo := new(MockQuestionRepo)
	repo.On("FindFirst", mock.Anything, atLevel(entity.LevelA2)).Return(&entity.Question{ID: 5, CEFRLevel: entity.LevelA2}, nil)
	engine := newTestEngine(repo)
	run := activeRun(10, nil)
	run.Answers = entity.AnswerList{answer(1, entity.LevelA2, true), answer(2, entity.LevelA2, true)}

	outcome, err := engine.Next(context.Background(), run, Scope{Language: "en"}, testNow)

	require.NoError(t, err)
	assert.False(t, outcome.LevelChanged)
	assert.Equal(t, entity.LevelA2, run.TargetLevel, "До трёх ответов уровень не меняется")
}

func TestEngineNext_NoQuestionsCompletes(t *testing.T) {
	repo := new(MockQuestionRepo)
	repo.On("FindFirst", mock.Anything, mock.Anything).Return(nil, nil)
	engine := newTestEngine(repo)
	run := activeRun(10, nil)

	outcome, err := engine.Next(context.Background(), run, Scope{Language: "en"}, testNow)

	require.NoError(t, err)
	assert.True(t, outcome.IsComplete)
	assert.Nil(t, outcome.Question)
	assert.Equal(t, entity.StatusInProgress, run.Status, "Next сам не завершает проход")
}

func TestEngineNext_NotStarted(t *testing.T) {
	engine := newTestEngine(new(MockQuestionRepo))
	run := &entity.Run{Status: entity.StatusAssigned}

	_, err := engine.Next(context.Background(), run, Scope{Language: "en"}, testNow)

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestEngineAnswer(t *testing.T) {
	// Arrange
	repo := new(MockQuestionRepo)
	repo.On("GetByID", mock.Anything, uint(7)).Return(&entity.Question{
		ID: 7, Language: "en", CEFRLevel: entity.LevelB1, CorrectAnswer: "Went", Points: 2, IsActive: true,
	}, nil)
	engine := newTestEngine(repo)
	run := activeRun(2, nil)
	run.Answers = entity.AnswerList{answer(1, entity.LevelA2, false)}

	// Act
	outcome, err := engine.Answer(context.Background(), run, Scope{Language: "en"}, 7, " went ", testNow)

	// Assert
	require.NoError(t, err)
	assert.True(t, outcome.IsCorrect)
	assert.Equal(t, "Went", outcome.CorrectAnswer)
	assert.Equal(t, 2, outcome.PointsEarned)
	assert.True(t, outcome.ShouldAutoComplete, "Лимит 2 достигнут")
	assert.Equal(t, entity.StatusInProgress, run.Status, "Answer не завершает проход автоматически")
	require.Len(t, run.Answers, 2)
	assert.Equal(t, entity.LevelB1, run.Answers[1].CEFRLevel, "В записи хранится уровень вопроса")
}

func TestEngineAnswer_Duplicate(t *testing.T) {
	repo := new(MockQuestionRepo)
	engine := newTestEngine(repo)
	run := activeRun(5, nil)
	run.Answers = entity.AnswerList{answer(7, entity.LevelB1, true)}

	_, err := engine.Answer(context.Background(), run, Scope{Language: "en"}, 7, "went", testNow)

	assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)
	assert.Len(t, run.Answers, 1)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestEngineAnswer_ExpiredIsNotAnError(t *testing.T) {
	engine := newTestEngine(new(MockQuestionRepo))
	run := activeRun(5, minutes(10))

	outcome, err := engine.Answer(context.Background(), run, Scope{Language: "en"}, 7, "went", testNow.Add(11*time.Minute))

	require.NoError(t, err)
	assert.True(t, outcome.Expired)
	assert.Empty(t, run.Answers, "Просроченный ответ не записывается")
}

func TestEngineAnswer_InvalidStates(t *testing.T) {
	engine := newTestEngine(new(MockQuestionRepo))

	for _, status := range []entity.RunStatus{entity.StatusAssigned, entity.StatusPending, entity.StatusCompleted, entity.StatusSkipped} {
		t.Run(string(status), func(t *testing.T) {
			run := &entity.Run{Status: status, QuestionsLimit: 5}
			_, err := engine.Answer(context.Background(), run, Scope{Language: "en"}, 1, "x", testNow)
			assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		})
	}
}

func TestEngineAnswer_QuestionNotFoundOrWrongLanguage(t *testing.T) {
	repo := new(MockQuestionRepo)
	repo.On("GetByID", mock.Anything, uint(1)).Return(nil, apperrors.ErrNotFound)
	repo.On("GetByID", mock.Anything, uint(2)).Return(&entity.Question{ID: 2, Language: "fr", CEFRLevel: entity.LevelA1, IsActive: true}, nil)
	engine := newTestEngine(repo)
	run := activeRun(5, nil)

	_, err := engine.Answer(context.Background(), run, Scope{Language: "en"}, 1, "x", testNow)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = engine.Answer(context.Background(), run, Scope{Language: "en"}, 2, "x", testNow)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, run.Answers)
}

func TestEngineAnswer_QuestionOutsideScope(t *testing.T) {
	reading, listening := entity.SkillReading, entity.SkillListening

	tests := []struct {
		name     string
		question *entity.Question
		scope    Scope
		wantErr  bool
	}{
		{
			name:     "неактивный вопрос",
			question: &entity.Question{ID: 3, Language: "en", CEFRLevel: entity.LevelA2, IsActive: false},
			scope:    Scope{Language: "en"},
			wantErr:  true,
		},
		{
			name:     "вопрос другого навыка в секции",
			question: &entity.Question{ID: 3, Language: "en", CEFRLevel: entity.LevelA2, Skill: &listening, IsActive: true},
			scope:    Scope{Language: "en", Skill: &reading},
			wantErr:  true,
		},
		{
			name:     "вопрос без навыка подходит секции",
			question: &entity.Question{ID: 3, Language: "en", CEFRLevel: entity.LevelA2, IsActive: true},
			scope:    Scope{Language: "en", Skill: &reading},
			wantErr:  false,
		},
		{
			name:     "вопрос с навыком в тесте без секций",
			question: &entity.Question{ID: 3, Language: "en", CEFRLevel: entity.LevelA2, Skill: &listening, IsActive: true},
			scope:    Scope{Language: "en"},
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockQuestionRepo)
			repo.On("GetByID", mock.Anything, uint(3)).Return(tt.question, nil)
			engine := newTestEngine(repo)
			run := activeRun(5, nil)

			_, err := engine.Answer(context.Background(), run, tt.scope, 3, "x", testNow)

			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				assert.Empty(t, run.Answers, "Ответ не записывается")
				return
			}
			require.NoError(t, err)
			assert.Len(t, run.Answers, 1)
		})
	}
}

func TestEngineFinish(t *testing.T) {
	engine := newTestEngine(new(MockQuestionRepo))
	run := activeRun(6, nil)
	run.Answers = entity.AnswerList{
		answer(1, entity.LevelA1, true), answer(2, entity.LevelA1, true), answer(3, entity.LevelA1, true),
		answer(4, entity.LevelB1, false), answer(5, entity.LevelB1, false), answer(6, entity.LevelB1, false),
	}

	result, err := engine.Finish(run, testNow.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 33, result.Percentage)
	assert.Equal(t, entity.LevelA1, result.Level)
	assert.Equal(t, entity.StatusCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)

	_, err = engine.Finish(run, testNow)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "Завершённый проход нельзя завершить повторно")
}
