package entity

import (
	"fmt"
	"strings"
)

// CEFRLevel - уровень владения языком по шкале CEFR
type CEFRLevel string

const (
	LevelA1 CEFRLevel = "A1"
	LevelA2 CEFRLevel = "A2"
	LevelB1 CEFRLevel = "B1"
	LevelB2 CEFRLevel = "B2"
	LevelC1 CEFRLevel = "C1"
	LevelC2 CEFRLevel = "C2"
)

// CEFRLevels - упорядоченная шкала уровней, от низшего к высшему
var CEFRLevels = []CEFRLevel{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// levelWeights - вес правильного ответа на вопрос соответствующего уровня
var levelWeights = map[CEFRLevel]int{
	LevelA1: 1,
	LevelA2: 1,
	LevelB1: 2,
	LevelB2: 2,
	LevelC1: 3,
	LevelC2: 3,
}

// Index возвращает позицию уровня на шкале или -1 для неизвестного уровня
func (l CEFRLevel) Index() int {
	for i, lvl := range CEFRLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// IsValid проверяет, что уровень входит в шкалу
func (l CEFRLevel) IsValid() bool {
	return l.Index() >= 0
}

// Weight возвращает вес уровня при подсчете балла. Неизвестный уровень весит 0.
func (l CEFRLevel) Weight() int {
	return levelWeights[l]
}

// Up возвращает следующий уровень. На верхнем уровне возвращает его же.
func (l CEFRLevel) Up() CEFRLevel {
	return LevelAt(l.Index() + 1)
}

// Down возвращает предыдущий уровень. На нижнем уровне возвращает его же.
func (l CEFRLevel) Down() CEFRLevel {
	idx := l.Index()
	if idx <= 0 {
		return LevelA1
	}
	return LevelAt(idx - 1)
}

// String реализует fmt.Stringer
func (l CEFRLevel) String() string {
	return string(l)
}

// LevelAt возвращает уровень по индексу, приводя индекс к границам шкалы
func LevelAt(idx int) CEFRLevel {
	idx = max(0, min(idx, len(CEFRLevels)-1))
	return CEFRLevels[idx]
}

// ParseCEFRLevel разбирает строку вида "b1" / " B1 " в уровень
func ParseCEFRLevel(s string) (CEFRLevel, error) {
	lvl := CEFRLevel(strings.ToUpper(strings.TrimSpace(s)))
	if !lvl.IsValid() {
		return "", fmt.Errorf("unknown CEFR level %q", s)
	}
	return lvl, nil
}

// LevelPtr возвращает указатель на копию уровня (удобно для nullable полей)
func LevelPtr(l CEFRLevel) *CEFRLevel {
	return &l
}

// Skill - проверяемый языковой навык
type Skill string

const (
	SkillReading   Skill = "READING"
	SkillListening Skill = "LISTENING"
	SkillWriting   Skill = "WRITING"
	SkillSpeaking  Skill = "SPEAKING"
)

// Skills - навыки в порядке прохождения секций
var Skills = []Skill{SkillReading, SkillListening, SkillWriting, SkillSpeaking}

// IsValid проверяет, что навык известен
func (s Skill) IsValid() bool {
	switch s {
	case SkillReading, SkillListening, SkillWriting, SkillSpeaking:
		return true
	}
	return false
}

// IsObjective - навыки с автоматической проверкой ответов (чтение и аудирование)
func (s Skill) IsObjective() bool {
	return s == SkillReading || s == SkillListening
}

// SkillPtr возвращает указатель на копию навыка
func SkillPtr(s Skill) *Skill {
	return &s
}
