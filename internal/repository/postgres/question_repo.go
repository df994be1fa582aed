package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.WithContext(ctx).First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// FindFirst возвращает первый активный вопрос, подходящий под фильтр.
// Порядок выдачи детерминирован: order_index, затем id.
func (r *QuestionRepo) FindFirst(ctx context.Context, filter repository.QuestionFilter) (*entity.Question, error) {
	query := r.db.WithContext(ctx).
		Where("language = ? AND is_active = ?", filter.Language, true)

	if filter.Level != nil {
		query = query.Where("cefr_level = ?", *filter.Level)
	}
	if filter.Skill != nil {
		if filter.IncludeSkillAgnostic {
			query = query.Where("(skill = ? OR skill IS NULL)", *filter.Skill)
		} else {
			query = query.Where("skill = ?", *filter.Skill)
		}
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}

	var question entity.Question
	err := query.Order("order_index ASC, id ASC").First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &question, nil
}

// CountActiveByLevel возвращает число активных вопросов языка по уровням
func (r *QuestionRepo) CountActiveByLevel(ctx context.Context, language string) (map[entity.CEFRLevel]int64, error) {
	var rows []struct {
		CEFRLevel entity.CEFRLevel `gorm:"column:cefr_level"`
		Count     int64            `gorm:"column:count"`
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Question{}).
		Select("cefr_level, COUNT(*) AS count").
		Where("language = ? AND is_active = ?", language, true).
		Group("cefr_level").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entity.CEFRLevel]int64, len(rows))
	for _, row := range rows {
		counts[row.CEFRLevel] = row.Count
	}
	return counts, nil
}
