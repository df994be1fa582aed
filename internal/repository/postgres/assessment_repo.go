package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// AssessmentRepo реализует repository.AssessmentRepository
type AssessmentRepo struct {
	db *gorm.DB
}

// NewAssessmentRepo создает новый репозиторий тестирований
func NewAssessmentRepo(db *gorm.DB) *AssessmentRepo {
	return &AssessmentRepo{db: db}
}

// Create сохраняет тестирование и его секции в одной транзакции
func (r *AssessmentRepo) Create(ctx context.Context, assessment *entity.Assessment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment.Version = 1
		for i := range assessment.Sections {
			assessment.Sections[i].Version = 1
		}
		if err := tx.Create(assessment).Error; err != nil {
			return fmt.Errorf("failed to create assessment: %w", err)
		}
		return nil
	})
}

// GetByID возвращает тестирование без секций
func (r *AssessmentRepo) GetByID(ctx context.Context, id uint) (*entity.Assessment, error) {
	var assessment entity.Assessment
	err := r.db.WithContext(ctx).First(&assessment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &assessment, nil
}

// GetWithSections возвращает тестирование с секциями по порядку
func (r *AssessmentRepo) GetWithSections(ctx context.Context, id uint) (*entity.Assessment, error) {
	var assessment entity.Assessment
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		First(&assessment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &assessment, nil
}

// ListByStudent возвращает тестирования студента, новые первыми
func (r *AssessmentRepo) ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]entity.Assessment, int64, error) {
	var assessments []entity.Assessment
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Assessment{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&assessments).Error
	if err != nil {
		return nil, 0, err
	}
	return assessments, total, nil
}

// ListCompleted возвращает завершенные тестирования для выгрузки
func (r *AssessmentRepo) ListCompleted(ctx context.Context, filter repository.AssessmentExportFilter) ([]entity.Assessment, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", entity.StatusCompleted)

	if filter.Language != "" {
		query = query.Where("language = ?", filter.Language)
	}
	if filter.CompletedFrom != nil {
		query = query.Where("completed_at >= ?", *filter.CompletedFrom)
	}
	if filter.CompletedTo != nil {
		query = query.Where("completed_at < ?", *filter.CompletedTo)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var assessments []entity.Assessment
	if err := query.Order("completed_at ASC, id ASC").Find(&assessments).Error; err != nil {
		return nil, err
	}
	return assessments, nil
}

// Update сохраняет тестирование с оптимистичной блокировкой по version
func (r *AssessmentRepo) Update(ctx context.Context, assessment *entity.Assessment) error {
	return updateAssessment(r.db.WithContext(ctx), assessment)
}

// UpdateWithSection сохраняет секцию и её тестирование в одной транзакции
func (r *AssessmentRepo) UpdateWithSection(ctx context.Context, assessment *entity.Assessment, section *entity.Section) error {
	assessmentVersion, sectionVersion := assessment.Version, section.Version

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateSection(tx, section); err != nil {
			return err
		}
		return updateAssessment(tx, assessment)
	})
	if err != nil {
		// транзакция откатилась, версии в памяти тоже
		assessment.Version, section.Version = assessmentVersion, sectionVersion
		return err
	}
	return nil
}

func updateAssessment(db *gorm.DB, assessment *entity.Assessment) error {
	expected := assessment.Version
	assessment.Version = expected + 1

	result := db.
		Model(assessment).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at", "Sections").
		Updates(assessment)
	if result.Error != nil {
		assessment.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		assessment.Version = expected
		return fmt.Errorf("assessment %d version %d: %w", assessment.ID, expected, apperrors.ErrConflict)
	}
	return nil
}

// SectionRepo реализует repository.SectionRepository
type SectionRepo struct {
	db *gorm.DB
}

// NewSectionRepo создает новый репозиторий секций
func NewSectionRepo(db *gorm.DB) *SectionRepo {
	return &SectionRepo{db: db}
}

// GetByID возвращает секцию по ID
func (r *SectionRepo) GetByID(ctx context.Context, id uint) (*entity.Section, error) {
	var section entity.Section
	err := r.db.WithContext(ctx).First(&section, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &section, nil
}

// ListByAssessment возвращает секции тестирования по порядку
func (r *SectionRepo) ListByAssessment(ctx context.Context, assessmentID uint) ([]entity.Section, error) {
	var sections []entity.Section
	err := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("order_index ASC").
		Find(&sections).Error
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// Update сохраняет секцию с оптимистичной блокировкой по version
func (r *SectionRepo) Update(ctx context.Context, section *entity.Section) error {
	return updateSection(r.db.WithContext(ctx), section)
}

func updateSection(db *gorm.DB, section *entity.Section) error {
	expected := section.Version
	section.Version = expected + 1

	result := db.
		Model(section).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "assessment_id", "created_at").
		Updates(section)
	if result.Error != nil {
		section.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		section.Version = expected
		return fmt.Errorf("section %d version %d: %w", section.ID, expected, apperrors.ErrConflict)
	}
	return nil
}
