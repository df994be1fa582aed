package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// AIScoringRequester передаёт завершённую субъективную секцию внешнему оценщику.
// Результат возвращается через SectionService.ApplyAIScore.
type AIScoringRequester interface {
	RequestScoring(ctx context.Context, studentID uint, payload entity.EventPayload) error
}

// LoggingAIScoringRequester только фиксирует запрос. Внешний оценщик
// забирает секции сам и присылает оценку через API.
type LoggingAIScoringRequester struct {
	logger *zap.Logger
}

func NewLoggingAIScoringRequester(logger *zap.Logger) *LoggingAIScoringRequester {
	return &LoggingAIScoringRequester{logger: logger.Named("AIScoring")}
}

func (r *LoggingAIScoringRequester) RequestScoring(ctx context.Context, studentID uint, payload entity.EventPayload) error {
	fields := []zap.Field{
		zap.Uint("student_id", studentID),
		zap.Uint("assessment_id", payload.AssessmentID),
		zap.String("language", payload.Language),
	}
	if payload.SectionID != nil {
		fields = append(fields, zap.Uint("section_id", *payload.SectionID))
	}
	if payload.Skill != nil {
		fields = append(fields, zap.String("skill", string(*payload.Skill)))
	}
	r.logger.Info("AI scoring requested", fields...)
	return nil
}

// AIScoringHandler обрабатывает событие scoring.ai_requested
func AIScoringHandler(requester AIScoringRequester) func(ctx context.Context, event *entity.OutboxEvent) error {
	return func(ctx context.Context, event *entity.OutboxEvent) error {
		return requester.RequestScoring(ctx, event.StudentID, event.Payload)
	}
}
