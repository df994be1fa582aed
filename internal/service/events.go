package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// EventPublisher ставит побочные эффекты в очередь outbox
type EventPublisher interface {
	Enqueue(ctx context.Context, event *entity.OutboxEvent) error
}

func newEvent(eventType string, studentID uint, payload entity.EventPayload, now time.Time) *entity.OutboxEvent {
	return &entity.OutboxEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		StudentID:   studentID,
		Payload:     payload,
		Status:      entity.OutboxStatusPending,
		AvailableAt: now,
	}
}

// publishAll ставит события в очередь. Ошибки только логируются:
// основное изменение состояния уже сохранено и не откатывается.
func publishAll(ctx context.Context, publisher EventPublisher, logger *zap.Logger, events ...*entity.OutboxEvent) {
	for _, evt := range events {
		if err := publisher.Enqueue(ctx, evt); err != nil {
			logger.Error("[Events] failed to enqueue event",
				zap.String("type", evt.Type),
				zap.Uint("student_id", evt.StudentID),
				zap.Uint("assessment_id", evt.Payload.AssessmentID),
				zap.Error(err))
		}
	}
}
