package placement

import (
	"math"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// AggregateResult - общий результат multi-skill тестирования
type AggregateResult struct {
	Level       entity.CEFRLevel
	Percentage  int
	SkillLevels map[entity.Skill]*entity.CEFRLevel
	Graded      int // завершённые секции с уровнем
}

// ResultAggregator объединяет результаты секций
type ResultAggregator struct{}

// NewResultAggregator создаёт агрегатор
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// Aggregate считает общий результат. ok=false, пока хотя бы одна секция не завершена и не пропущена.
//
// Процент делится на число завершённых секций с уровнем, секция с уровнем,
// но без процента (субъективная) входит в делитель.
func (a *ResultAggregator) Aggregate(sections []entity.Section) (*AggregateResult, bool) {
	if len(sections) == 0 {
		return nil, false
	}
	for i := range sections {
		if !sections[i].Status.IsSettled() {
			return nil, false
		}
	}

	result := &AggregateResult{
		Level:       entity.LevelA1,
		SkillLevels: make(map[entity.Skill]*entity.CEFRLevel, len(sections)),
	}

	var withLevel, indexSum, percentSum int
	for i := range sections {
		s := &sections[i]
		if s.Status != entity.StatusCompleted || s.CEFRLevel == nil || !s.CEFRLevel.IsValid() {
			result.SkillLevels[s.Skill] = nil
			continue
		}
		result.SkillLevels[s.Skill] = entity.LevelPtr(*s.CEFRLevel)
		withLevel++
		indexSum += s.CEFRLevel.Index()
		if s.PercentageScore != nil {
			percentSum += *s.PercentageScore
		}
	}

	result.Graded = withLevel
	if withLevel > 0 {
		result.Level = entity.LevelAt(indexSum / withLevel)
		result.Percentage = int(math.Round(float64(percentSum) / float64(withLevel)))
	}
	return result, true
}
