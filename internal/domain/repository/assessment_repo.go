package repository

import (
	"context"
	"time"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// AssessmentExportFilter - параметры выгрузки результатов
type AssessmentExportFilter struct {
	Language      string
	CompletedFrom *time.Time
	CompletedTo   *time.Time
	Limit         int
}

// AssessmentRepository определяет методы для работы с тестированиями
type AssessmentRepository interface {
	// Create сохраняет тестирование вместе с секциями
	Create(ctx context.Context, assessment *entity.Assessment) error
	GetByID(ctx context.Context, id uint) (*entity.Assessment, error)
	// GetWithSections загружает тестирование с секциями, упорядоченными по orderIndex
	GetWithSections(ctx context.Context, id uint) (*entity.Assessment, error)
	ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]entity.Assessment, int64, error)
	ListCompleted(ctx context.Context, filter AssessmentExportFilter) ([]entity.Assessment, error)
	// Update сохраняет тестирование, если версия не изменилась с момента чтения.
	// При конфликте версий возвращает apperrors.ErrConflict.
	Update(ctx context.Context, assessment *entity.Assessment) error
	// UpdateWithSection сохраняет секцию и тестирование в одной транзакции
	// с проверкой версий обеих записей
	UpdateWithSection(ctx context.Context, assessment *entity.Assessment, section *entity.Section) error
}

// SectionRepository определяет методы для работы с секциями
type SectionRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Section, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]entity.Section, error)
	// Update сохраняет секцию с проверкой версии (apperrors.ErrConflict при конфликте)
	Update(ctx context.Context, section *entity.Section) error
}
