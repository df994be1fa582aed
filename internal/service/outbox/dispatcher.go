package outbox

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	"github.com/yourusername/placement-api/pkg/monitoring"
)

// Handler обрабатывает событие одного типа. Ошибка ведёт к повтору.
type Handler func(ctx context.Context, event *entity.OutboxEvent) error

// Config содержит настройки диспетчера
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// LeaseTimeout - на сколько событие скрывается от других инстансов
	LeaseTimeout time.Duration
	// BaseBackoff - задержка перед первым повтором, удваивается с каждой попыткой
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		LeaseTimeout: time.Minute,
		BaseBackoff:  5 * time.Second,
		MaxBackoff:   10 * time.Minute,
	}
}

// Dispatcher забирает события из outbox и передаёт их обработчикам
type Dispatcher struct {
	repo     repository.OutboxRepository
	config   Config
	handlers map[string]Handler
	logger   *zap.Logger
	clock    func() time.Time

	mu      sync.Mutex
	running bool
}

// NewDispatcher создает диспетчер
func NewDispatcher(repo repository.OutboxRepository, config Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		config:   config,
		handlers: make(map[string]Handler),
		logger:   logger.Named("OutboxDispatcher"),
		clock:    time.Now,
	}
}

// Register регистрирует обработчик типа события
func (d *Dispatcher) Register(eventType string, handler Handler) {
	d.handlers[eventType] = handler
	d.logger.Info("[Outbox] handler registered", zap.String("type", eventType))
}

// Run обрабатывает события до отмены ctx
func (d *Dispatcher) Run(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Warn("[Outbox] dispatcher is already running")
		return
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("[Outbox] dispatcher started", zap.Duration("poll_interval", d.config.PollInterval))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("[Outbox] dispatcher stopped")
			return
		case <-ticker.C:
			// Выгребаем очередь, пока батчи полные
			for {
				n, err := d.ProcessBatch(ctx)
				if err != nil {
					d.logger.Error("[Outbox] failed to process batch", zap.Error(err))
					break
				}
				if n < d.config.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessBatch обрабатывает одну порцию событий и возвращает их число
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	now := d.clock()
	events, err := d.repo.ClaimPending(ctx, d.config.BatchSize, now, now.Add(d.config.LeaseTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to claim events: %w", err)
	}

	for i := range events {
		d.process(ctx, &events[i])
	}
	return len(events), nil
}

func (d *Dispatcher) process(ctx context.Context, event *entity.OutboxEvent) {
	log := d.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("type", event.Type),
		zap.Int("attempt", event.Attempts+1))

	handler, ok := d.handlers[event.Type]
	if !ok {
		log.Error("[Outbox] no handler for event type")
		d.fail(ctx, event, "no handler registered", true, log)
		return
	}

	if err := d.invoke(ctx, handler, event); err != nil {
		dead := event.Attempts+1 >= d.config.MaxAttempts
		log.Warn("[Outbox] handler failed", zap.Bool("dead", dead), zap.Error(err))
		d.fail(ctx, event, err.Error(), dead, log)
		return
	}

	if err := d.repo.MarkProcessed(ctx, event.ID, d.clock()); err != nil {
		// Событие вернётся после истечения аренды, обработчики идемпотентны
		log.Error("[Outbox] failed to mark event processed", zap.Error(err))
		return
	}
	monitoring.ObserveOutbox(event.Type, entity.OutboxStatusProcessed)
	log.Debug("[Outbox] event processed")
}

func (d *Dispatcher) invoke(ctx context.Context, handler Handler, event *entity.OutboxEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("[Outbox] handler panic",
				zap.String("event_id", event.EventID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

func (d *Dispatcher) fail(ctx context.Context, event *entity.OutboxEvent, reason string, dead bool, log *zap.Logger) {
	retryAt := d.clock().Add(d.backoff(event.Attempts))
	if err := d.repo.MarkFailed(ctx, event.ID, reason, retryAt, dead); err != nil {
		log.Error("[Outbox] failed to mark event failed", zap.Error(err))
		return
	}
	status := "retry"
	if dead {
		status = entity.OutboxStatusDead
	}
	monitoring.ObserveOutbox(event.Type, status)
}

// backoff - экспоненциальная задержка по числу уже сделанных попыток
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.config.BaseBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= d.config.MaxBackoff {
			return d.config.MaxBackoff
		}
	}
	return delay
}
