package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/placement-api/internal/domain/entity"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// StudentRepo реализует repository.StudentRepository
type StudentRepo struct {
	db *gorm.DB
}

// NewStudentRepo создает новый репозиторий студентов
func NewStudentRepo(db *gorm.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

// GetByID возвращает студента по ID
func (r *StudentRepo) GetByID(ctx context.Context, id uint) (*entity.Student, error) {
	var student entity.Student
	err := r.db.WithContext(ctx).First(&student, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &student, nil
}

// UpsertLanguageLevel записывает уровень по паре (студент, язык)
func (r *StudentRepo) UpsertLanguageLevel(ctx context.Context, level *entity.StudentLanguageLevel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"cefr_level", "assessment_id", "updated_at"}),
	}).Create(level).Error
}

// GetLanguageLevels возвращает уровни студента по всем языкам
func (r *StudentRepo) GetLanguageLevels(ctx context.Context, studentID uint) ([]entity.StudentLanguageLevel, error) {
	var levels []entity.StudentLanguageLevel
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("language ASC").
		Find(&levels).Error
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// CertificateRepo реализует repository.CertificateRepository
type CertificateRepo struct {
	db *gorm.DB
}

// NewCertificateRepo создает новый репозиторий сертификатов
func NewCertificateRepo(db *gorm.DB) *CertificateRepo {
	return &CertificateRepo{db: db}
}

// Save создает сертификат или перезаписывает существующий
func (r *CertificateRepo) Save(ctx context.Context, certificate *entity.Certificate) error {
	err := r.db.WithContext(ctx).Save(certificate).Error
	if isUniqueViolation(err) {
		return apperrors.ErrConflict
	}
	return err
}

// GetByAssessment возвращает сертификат тестирования
func (r *CertificateRepo) GetByAssessment(ctx context.Context, assessmentID uint) (*entity.Certificate, error) {
	var certificate entity.Certificate
	err := r.db.WithContext(ctx).Where("assessment_id = ?", assessmentID).First(&certificate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &certificate, nil
}
