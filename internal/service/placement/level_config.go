package placement

import "github.com/yourusername/placement-api/internal/domain/entity"

// LevelConfig содержит настройки адаптации уровня и порог оценивания
type LevelConfig struct {
	// WindowSize - сколько последних ответов учитывается при пересчете уровня
	WindowSize int

	// PromoteAt - минимум правильных ответов в окне для повышения уровня
	PromoteAt int

	// DemoteAt - максимум правильных ответов в окне для понижения уровня
	DemoteAt int

	// PassThreshold - доля правильных ответов, при которой уровень считается подтвержденным
	PassThreshold float64
}

// DefaultLevelConfig возвращает настройки по умолчанию
func DefaultLevelConfig() *LevelConfig {
	return &LevelConfig{
		WindowSize:    3,
		PromoteAt:     2,
		DemoteAt:      0,
		PassThreshold: 0.60,
	}
}

// AdjustLevel пересчитывает целевой уровень по последним WindowSize ответам.
// Уровень сдвигается не больше чем на один шаг и не выходит за границы шкалы.
func (c *LevelConfig) AdjustLevel(current entity.CEFRLevel, answers entity.AnswerList) entity.CEFRLevel {
	if c.WindowSize <= 0 || len(answers) < c.WindowSize {
		return current
	}

	correct := answers.Last(c.WindowSize).CorrectCount()
	switch {
	case correct >= c.PromoteAt:
		return current.Up()
	case correct <= c.DemoteAt:
		return current.Down()
	}
	return current
}
