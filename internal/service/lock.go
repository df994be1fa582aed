package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// Locker сериализует изменения одного тестирования.
// Acquire возвращает функцию освобождения блокировки.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

func assessmentLockKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:%d", assessmentID)
}

// RedisLocker - распределённая блокировка на SET NX с токеном владельца
type RedisLocker struct {
	cache  repository.CacheRepository
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedisLocker создаёт блокировку поверх кеша
func NewRedisLocker(cache repository.CacheRepository, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		cache:  cache,
		ttl:    ttl,
		wait:   wait,
		retry:  25 * time.Millisecond,
		logger: logger,
	}
}

// Acquire ждёт освобождения ключа не дольше wait
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.cache.SetNX(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(lockKey, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s is locked by another request", apperrors.ErrConflict, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) release(lockKey, token string) {
	// Освобождаем даже если контекст запроса уже отменён
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	released, err := l.cache.DeleteIfEquals(ctx, lockKey, token)
	if err != nil {
		l.logger.Warn("[Locker] failed to release lock", zap.String("key", lockKey), zap.Error(err))
		return
	}
	if !released {
		l.logger.Warn("[Locker] lock expired before release", zap.String("key", lockKey))
	}
}

// LocalLocker - блокировка в памяти процесса для одного инстанса и тестов
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker создаёт блокировку в памяти
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// Acquire ждёт ключ, пока не отменён ctx
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.sem
				l.unref(key, entry)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
