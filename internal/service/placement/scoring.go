package placement

import (
	"math"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// ScoreResult - результат оценивания набора ответов
type ScoreResult struct {
	Percentage   int
	Level        entity.CEFRLevel
	EarnedWeight int
	TotalWeight  int
}

// ScoringEngine считает взвешенный процент и итоговый уровень
type ScoringEngine struct {
	config *LevelConfig
}

// NewScoringEngine создаёт движок оценивания
func NewScoringEngine(config *LevelConfig) *ScoringEngine {
	return &ScoringEngine{config: config}
}

// Score оценивает ответы
func (e *ScoringEngine) Score(answers entity.AnswerList) ScoreResult {
	earned, total := weightedTotals(answers)
	return ScoreResult{
		Percentage:   percentage(earned, total),
		Level:        e.DetermineLevel(answers),
		EarnedWeight: earned,
		TotalWeight:  total,
	}
}

// Percentage - доля набранного веса от максимально возможного, 0..100
func (e *ScoringEngine) Percentage(answers entity.AnswerList) int {
	return percentage(weightedTotals(answers))
}

// DetermineLevel проходит уровни снизу вверх. Уровень без ответов пропускается,
// уровень ниже порога останавливает проход.
func (e *ScoringEngine) DetermineLevel(answers entity.AnswerList) entity.CEFRLevel {
	type tally struct{ correct, total int }
	byLevel := make(map[entity.CEFRLevel]tally, len(entity.CEFRLevels))
	for _, a := range answers {
		t := byLevel[a.CEFRLevel]
		t.total++
		if a.IsCorrect {
			t.correct++
		}
		byLevel[a.CEFRLevel] = t
	}

	determined := entity.LevelA1
	for _, level := range entity.CEFRLevels {
		t := byLevel[level]
		if t.total == 0 {
			continue
		}
		if float64(t.correct)/float64(t.total) < e.config.PassThreshold {
			break
		}
		determined = level
	}
	return determined
}

func weightedTotals(answers entity.AnswerList) (earned, total int) {
	for _, a := range answers {
		w := a.CEFRLevel.Weight()
		total += w
		if a.IsCorrect {
			earned += w
		}
	}
	return earned, total
}

func percentage(earned, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}
