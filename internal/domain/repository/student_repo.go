package repository

import (
	"context"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// StudentRepository определяет методы для работы с профилем студента
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Student, error)
	// UpsertLanguageLevel записывает уровень студента по языку
	UpsertLanguageLevel(ctx context.Context, level *entity.StudentLanguageLevel) error
	GetLanguageLevels(ctx context.Context, studentID uint) ([]entity.StudentLanguageLevel, error)
}

// CertificateRepository определяет методы для работы с сертификатами
type CertificateRepository interface {
	// Save создает сертификат или обновляет существующий для того же тестирования
	Save(ctx context.Context, certificate *entity.Certificate) error
	GetByAssessment(ctx context.Context, assessmentID uint) (*entity.Certificate, error)
}
