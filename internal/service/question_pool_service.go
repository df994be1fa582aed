package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// PoolStats - число активных вопросов языка по уровням
type PoolStats struct {
	Language string                     `json:"language"`
	ByLevel  map[entity.CEFRLevel]int64 `json:"byLevel"`
	Total    int64                      `json:"total"`
}

// QuestionPoolService отдаёт статистику банка вопросов с кешированием в Redis
type QuestionPoolService struct {
	questionRepo repository.QuestionRepository
	cache        repository.CacheRepository
	ttl          time.Duration
	logger       *zap.Logger
}

func NewQuestionPoolService(questionRepo repository.QuestionRepository, cache repository.CacheRepository, ttl time.Duration, logger *zap.Logger) *QuestionPoolService {
	return &QuestionPoolService{
		questionRepo: questionRepo,
		cache:        cache,
		ttl:          ttl,
		logger:       logger.Named("QuestionPoolService"),
	}
}

func poolStatsKey(language string) string {
	return "question_pool:" + language
}

// Stats возвращает статистику банка вопросов языка
func (s *QuestionPoolService) Stats(ctx context.Context, actor Actor, language string) (*PoolStats, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: pool stats are available to staff only", apperrors.ErrForbidden)
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return nil, fmt.Errorf("%w: language is required", apperrors.ErrValidation)
	}

	var cached PoolStats
	err := s.cache.GetJSON(ctx, poolStatsKey(language), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		// Кеш недоступен - идем в БД
		s.logger.Warn("pool stats cache read failed", zap.String("language", language), zap.Error(err))
	}

	counts, err := s.questionRepo.CountActiveByLevel(ctx, language)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	stats := &PoolStats{Language: language, ByLevel: make(map[entity.CEFRLevel]int64, len(entity.CEFRLevels))}
	for _, level := range entity.CEFRLevels {
		stats.ByLevel[level] = counts[level]
		stats.Total += counts[level]
	}

	if err := s.cache.SetJSON(ctx, poolStatsKey(language), stats, s.ttl); err != nil {
		s.logger.Warn("pool stats cache write failed", zap.String("language", language), zap.Error(err))
	}
	return stats, nil
}
