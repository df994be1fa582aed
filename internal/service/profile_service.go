package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// ProfileService ведёт уровни владения языками в профиле студента
type ProfileService struct {
	studentRepo repository.StudentRepository
	logger      *zap.Logger
}

// NewProfileService создает новый сервис профиля
func NewProfileService(studentRepo repository.StudentRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		studentRepo: studentRepo,
		logger:      logger.Named("ProfileService"),
	}
}

// UpdateLanguageLevel записывает уровень студента по языку
func (s *ProfileService) UpdateLanguageLevel(ctx context.Context, studentID uint, language string, level entity.CEFRLevel, assessmentID uint, now time.Time) error {
	if !level.IsValid() {
		return fmt.Errorf("%w: unknown level %q", apperrors.ErrValidation, level)
	}
	record := &entity.StudentLanguageLevel{
		StudentID:    studentID,
		Language:     language,
		CEFRLevel:    level,
		AssessmentID: assessmentID,
		UpdatedAt:    now,
	}
	if err := s.studentRepo.UpsertLanguageLevel(ctx, record); err != nil {
		return fmt.Errorf("failed to update level of student %d: %w", studentID, err)
	}
	s.logger.Info("language level updated",
		zap.Uint("student_id", studentID),
		zap.String("language", language),
		zap.String("level", level.String()))
	return nil
}

// HandleLevelUpdate обрабатывает событие profile.level_update
func (s *ProfileService) HandleLevelUpdate(ctx context.Context, event *entity.OutboxEvent) error {
	if event.Payload.CEFRLevel == nil {
		s.logger.Warn("level update without level, skipping", zap.String("event_id", event.EventID))
		return nil
	}
	return s.UpdateLanguageLevel(ctx, event.StudentID, event.Payload.Language, *event.Payload.CEFRLevel,
		event.Payload.AssessmentID, time.Now())
}

// GetLevels возвращает уровни студента по всем языкам
func (s *ProfileService) GetLevels(ctx context.Context, actor Actor, studentID uint) ([]entity.StudentLanguageLevel, error) {
	if !actor.CanAccess(studentID) {
		return nil, fmt.Errorf("%w: profile of student %d", apperrors.ErrAccessDenied, studentID)
	}
	return s.studentRepo.GetLanguageLevels(ctx, studentID)
}
