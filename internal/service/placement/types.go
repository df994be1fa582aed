package placement

import (
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
)

// SectionDefaults - лимиты секции по умолчанию
type SectionDefaults struct {
	TimeLimitMin   int
	QuestionsLimit int
}

// Config содержит настройки назначения тестирований
type Config struct {
	// DefaultTargetLevel - стартовый уровень адаптивного прохода
	DefaultTargetLevel entity.CEFRLevel

	// DefaultQuestionsLimit - число вопросов single-skill теста
	DefaultQuestionsLimit int

	// DefaultTimeLimitMin - лимит времени single-skill теста, 0 - без ограничения
	DefaultTimeLimitMin int

	// Sections - лимиты секций multi-skill теста по навыкам
	Sections map[entity.Skill]SectionDefaults
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		DefaultTargetLevel:    entity.LevelA2,
		DefaultQuestionsLimit: 20,
		DefaultTimeLimitMin:   0,
		Sections: map[entity.Skill]SectionDefaults{
			entity.SkillReading:   {TimeLimitMin: 20, QuestionsLimit: 10},
			entity.SkillListening: {TimeLimitMin: 15, QuestionsLimit: 8},
			entity.SkillWriting:   {TimeLimitMin: 20, QuestionsLimit: 3},
			entity.SkillSpeaking:  {TimeLimitMin: 15, QuestionsLimit: 3},
		},
	}
}

// SectionDefaultsFor возвращает лимиты секции навыка
func (c *Config) SectionDefaultsFor(skill entity.Skill) SectionDefaults {
	if d, ok := c.Sections[skill]; ok {
		return d
	}
	return DefaultConfig().Sections[skill]
}

// Dependencies содержит зависимости движка тестирования
type Dependencies struct {
	QuestionRepo repository.QuestionRepository
	Logger       *zap.Logger
}

// Scope - область выбора вопросов для прохода
type Scope struct {
	Language string
	// Skill - навык секции, nil для single-skill теста
	Skill *entity.Skill
}
