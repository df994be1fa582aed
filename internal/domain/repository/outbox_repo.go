package repository

import (
	"context"
	"time"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// OutboxRepository определяет методы очереди отложенных событий
type OutboxRepository interface {
	// Enqueue добавляет событие. Повтор с тем же EventID игнорируется.
	Enqueue(ctx context.Context, event *entity.OutboxEvent) error
	// ClaimPending забирает до limit событий, готовых к обработке на момент now.
	// Забранные события недоступны другим обработчикам до leaseUntil.
	ClaimPending(ctx context.Context, limit int, now, leaseUntil time.Time) ([]entity.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uint, at time.Time) error
	// MarkFailed увеличивает счетчик попыток и откладывает событие до retryAt.
	// dead=true переводит событие в терминальный статус.
	MarkFailed(ctx context.Context, id uint, lastErr string, retryAt time.Time, dead bool) error
}
