package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/placement-api/internal/domain/entity"
)

// OutboxRepo реализует repository.OutboxRepository
type OutboxRepo struct {
	db *gorm.DB
}

// NewOutboxRepo создает новый репозиторий очереди событий
func NewOutboxRepo(db *gorm.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// Enqueue добавляет событие. Повтор с тем же event_id игнорируется.
func (r *OutboxRepo) Enqueue(ctx context.Context, event *entity.OutboxEvent) error {
	if event.Status == "" {
		event.Status = entity.OutboxStatusPending
	}
	err := r.db.WithContext(ctx).Create(event).Error
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

// ClaimPending забирает пачку событий под аренду.
// FOR UPDATE SKIP LOCKED позволяет нескольким инстансам разбирать очередь параллельно.
// События в статусе processing с истекшей арендой забираются повторно.
func (r *OutboxRepo) ClaimPending(ctx context.Context, limit int, now, leaseUntil time.Time) ([]entity.OutboxEvent, error) {
	var events []entity.OutboxEvent

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sql := `
			UPDATE outbox_events
			SET status = ?, available_at = ?, updated_at = ?
			WHERE id IN (
				SELECT id FROM outbox_events
				WHERE status IN (?, ?) AND available_at <= ?
				ORDER BY available_at ASC, id ASC
				LIMIT ?
				FOR UPDATE SKIP LOCKED
			)
			RETURNING *
		`
		return tx.Raw(sql,
			entity.OutboxStatusProcessing, leaseUntil, now,
			entity.OutboxStatusPending, entity.OutboxStatusProcessing, now,
			limit,
		).Scan(&events).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MarkProcessed помечает событие обработанным
func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       entity.OutboxStatusProcessed,
			"processed_at": at,
			"last_error":   "",
		}).Error
}

// MarkFailed учитывает неудачную попытку
func (r *OutboxRepo) MarkFailed(ctx context.Context, id uint, lastErr string, retryAt time.Time, dead bool) error {
	status := entity.OutboxStatusPending
	if dead {
		status = entity.OutboxStatusDead
	}
	return r.db.WithContext(ctx).
		Model(&entity.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   lastErr,
			"available_at": retryAt,
		}).Error
}
