package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// ============================================================================
// Тесты для ScoringEngine
// ============================================================================

func TestScore_NoAnswers(t *testing.T) {
	engine := NewScoringEngine(DefaultLevelConfig())

	result := engine.Score(nil)

	assert.Equal(t, 0, result.Percentage, "Без ответов процент равен 0")
	assert.Equal(t, entity.LevelA1, result.Level, "Без ответов уровень A1")
}

// TestScore_A1PassB1Fail - 3 верных на A1, 3 неверных на B1
func TestScore_A1PassB1Fail(t *testing.T) {
	// Arrange
	engine := NewScoringEngine(DefaultLevelConfig())
	answers := entity.AnswerList{
		answer(1, entity.LevelA1, true),
		answer(2, entity.LevelA1, true),
		answer(3, entity.LevelA1, true),
		answer(4, entity.LevelB1, false),
		answer(5, entity.LevelB1, false),
		answer(6, entity.LevelB1, false),
	}

	// Act
	result := engine.Score(answers)

	// Assert: (1+1+1)/(1+1+1+2+2+2) = 3/9 = 33%
	assert.Equal(t, 33, result.Percentage)
	assert.Equal(t, entity.LevelA1, result.Level, "A1 пройден, B1 провален - остаёмся на A1")
	assert.Equal(t, 3, result.EarnedWeight)
	assert.Equal(t, 9, result.TotalWeight)
}

func TestDetermineLevel(t *testing.T) {
	engine := NewScoringEngine(DefaultLevelConfig())

	tests := []struct {
		name     string
		answers  entity.AnswerList
		expected entity.CEFRLevel
	}{
		{
			name: "пропуск уровня не прерывает цепочку",
			answers: entity.AnswerList{
				answer(1, entity.LevelA2, true),
				answer(2, entity.LevelB2, true),
				answer(3, entity.LevelB2, true),
			},
			expected: entity.LevelB2,
		},
		{
			name: "провал останавливает проход, даже если выше всё верно",
			answers: entity.AnswerList{
				answer(1, entity.LevelA2, true),
				answer(2, entity.LevelB1, false),
				answer(3, entity.LevelB1, true),
				answer(4, entity.LevelB1, false),
				answer(5, entity.LevelC1, true),
			},
			expected: entity.LevelA2,
		},
		{
			name: "ровно 60% - порог пройден",
			answers: entity.AnswerList{
				answer(1, entity.LevelB1, true),
				answer(2, entity.LevelB1, true),
				answer(3, entity.LevelB1, true),
				answer(4, entity.LevelB1, false),
				answer(5, entity.LevelB1, false),
			},
			expected: entity.LevelB1,
		},
		{
			name: "первый же уровень провален - A1",
			answers: entity.AnswerList{
				answer(1, entity.LevelB2, false),
				answer(2, entity.LevelB2, false),
			},
			expected: entity.LevelA1,
		},
		{
			name: "все уровни пройдены",
			answers: entity.AnswerList{
				answer(1, entity.LevelA1, true),
				answer(2, entity.LevelB1, true),
				answer(3, entity.LevelC2, true),
			},
			expected: entity.LevelC2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := engine.DetermineLevel(tt.answers)
			assert.Equal(t, tt.expected, level)
			assert.True(t, level.IsValid())
		})
	}
}

// TestPercentage_NonDecreasingOnCorrectAnswer - добавление верного ответа не уменьшает процент
func TestPercentage_NonDecreasingOnCorrectAnswer(t *testing.T) {
	engine := NewScoringEngine(DefaultLevelConfig())
	answers := entity.AnswerList{
		answer(1, entity.LevelB2, false),
		answer(2, entity.LevelA1, true),
		answer(3, entity.LevelC1, false),
	}

	prev := engine.Percentage(answers)
	for i, level := range entity.CEFRLevels {
		answers = append(answers, answer(uint(10+i), level, true))
		next := engine.Percentage(answers)
		assert.GreaterOrEqual(t, next, prev, "Процент не должен падать после верного ответа на %s", level)
		prev = next
	}
}

// TestDetermineLevel_NeverAboveHighestAnswered - уровень не выше самого высокого отвеченного
func TestDetermineLevel_NeverAboveHighestAnswered(t *testing.T) {
	engine := NewScoringEngine(DefaultLevelConfig())
	answers := entity.AnswerList{
		answer(1, entity.LevelA2, true),
		answer(2, entity.LevelB1, true),
	}

	level := engine.DetermineLevel(answers)

	assert.LessOrEqual(t, level.Index(), entity.LevelB1.Index())
}
