package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
	"github.com/yourusername/placement-api/internal/service/placement"
	"github.com/yourusername/placement-api/pkg/monitoring"
	"github.com/yourusername/placement-api/pkg/tracing"
)

// SectionService управляет секциями multi-skill тестирования и сводит их результаты
type SectionService struct {
	assessmentRepo repository.AssessmentRepository
	sectionRepo    repository.SectionRepository
	engine         *placement.Engine
	aggregator     *placement.ResultAggregator
	events         EventPublisher
	locker         Locker
	logger         *zap.Logger
}

// NewSectionService создает новый сервис секций
func NewSectionService(
	assessmentRepo repository.AssessmentRepository,
	sectionRepo repository.SectionRepository,
	engine *placement.Engine,
	aggregator *placement.ResultAggregator,
	events EventPublisher,
	locker Locker,
	logger *zap.Logger,
) *SectionService {
	return &SectionService{
		assessmentRepo: assessmentRepo,
		sectionRepo:    sectionRepo,
		engine:         engine,
		aggregator:     aggregator,
		events:         events,
		locker:         locker,
		logger:         logger.Named("SectionService"),
	}
}

// sectionContext - тестирование с секциями, загруженное под блокировкой
type sectionContext struct {
	assessment *entity.Assessment
	section    *entity.Section
	release    func()
}

// load блокирует родительское тестирование и перечитывает его вместе с секциями
func (s *SectionService) load(ctx context.Context, actor Actor, sectionID uint) (*sectionContext, error) {
	found, err := s.sectionRepo.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, assessmentLockKey(found.AssessmentID))
	if err != nil {
		return nil, err
	}

	assessment, err := s.assessmentRepo.GetWithSections(ctx, found.AssessmentID)
	if err != nil {
		release()
		return nil, err
	}
	if err := authorizeAssessment(actor, assessment); err != nil {
		release()
		return nil, err
	}

	for i := range assessment.Sections {
		if assessment.Sections[i].ID == sectionID {
			return &sectionContext{assessment: assessment, section: &assessment.Sections[i], release: release}, nil
		}
	}
	release()
	return nil, fmt.Errorf("%w: section %d", apperrors.ErrNotFound, sectionID)
}

func scopeOf(sc *sectionContext) placement.Scope {
	skill := sc.section.Skill
	return placement.Scope{Language: sc.assessment.Language, Skill: &skill}
}

// checkOrder проверяет, что все предыдущие секции завершены или пропущены
func checkOrder(assessment *entity.Assessment, section *entity.Section) error {
	for i := range assessment.Sections {
		other := &assessment.Sections[i]
		if other.OrderIndex < section.OrderIndex && !other.Status.IsSettled() {
			return fmt.Errorf("%w: section %s (order %d) is %s",
				apperrors.ErrOutOfOrder, other.Skill, other.OrderIndex, other.Status)
		}
	}
	return nil
}

// Start запускает секцию. Предыдущие секции должны быть завершены или пропущены.
func (s *SectionService) Start(ctx context.Context, actor Actor, sectionID uint, now time.Time) (*entity.Section, error) {
	sc, err := s.load(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	defer sc.release()

	section := sc.section
	if section.IsInProgress() {
		return section, nil
	}
	if section.Status == entity.StatusPending {
		if err := checkOrder(sc.assessment, section); err != nil {
			return nil, err
		}
	}
	if err := s.engine.Start(&section.Run, now); err != nil {
		return nil, err
	}

	// Первая начатая секция переводит тестирование в IN_PROGRESS, обе записи в одной транзакции
	if sc.assessment.Status == entity.StatusAssigned {
		if err := s.engine.Start(&sc.assessment.Run, now); err != nil {
			return nil, err
		}
		if err := s.assessmentRepo.UpdateWithSection(ctx, sc.assessment, section); err != nil {
			return nil, fmt.Errorf("failed to start section %d: %w", sectionID, err)
		}
	} else if err := s.sectionRepo.Update(ctx, section); err != nil {
		return nil, fmt.Errorf("failed to start section %d: %w", sectionID, err)
	}

	s.logger.Info("section started",
		zap.Uint("section_id", sectionID),
		zap.String("skill", string(section.Skill)),
		zap.Timep("expires_at", section.ExpiresAt))
	return section, nil
}

// NextItem возвращает следующий вопрос секции
func (s *SectionService) NextItem(ctx context.Context, actor Actor, sectionID uint, now time.Time) (*NextItemResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SectionService.NextItem", attribute.Int64("section.id", int64(sectionID)))
	defer span.End()

	sc, err := s.load(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	defer sc.release()

	section := sc.section
	outcome, err := s.engine.Next(ctx, &section.Run, scopeOf(sc), now)
	if err != nil {
		return nil, err
	}

	if outcome.Expired {
		if err := s.completeSection(ctx, sc, now, true); err != nil {
			return nil, err
		}
		result := nextItemResult(&section.Run, now)
		result.IsComplete = true
		result.Expired = true
		return result, nil
	}

	if outcome.LevelChanged {
		if err := s.sectionRepo.Update(ctx, section); err != nil {
			return nil, fmt.Errorf("failed to save target level of section %d: %w", sectionID, err)
		}
	}

	result := nextItemResult(&section.Run, now)
	result.IsComplete = outcome.IsComplete
	result.Question = outcome.Question
	return result, nil
}

// SubmitAnswer принимает ответ в секции
func (s *SectionService) SubmitAnswer(ctx context.Context, actor Actor, sectionID, questionID uint, answer string, now time.Time) (*SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SectionService.SubmitAnswer", attribute.Int64("section.id", int64(sectionID)))
	defer span.End()

	sc, err := s.load(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	defer sc.release()

	section := sc.section
	outcome, err := s.engine.Answer(ctx, &section.Run, scopeOf(sc), questionID, answer, now)
	if err != nil {
		return nil, err
	}

	if outcome.Expired {
		if err := s.completeSection(ctx, sc, now, true); err != nil {
			return nil, err
		}
		return &SubmitResult{Expired: true, AnsweredCount: outcome.AnsweredCount}, nil
	}

	if err := s.sectionRepo.Update(ctx, section); err != nil {
		return nil, fmt.Errorf("failed to save answer for section %d: %w", sectionID, err)
	}
	monitoring.ObserveAnswer("section", outcome.IsCorrect)

	return &SubmitResult{
		IsCorrect:          outcome.IsCorrect,
		CorrectAnswer:      outcome.CorrectAnswer,
		PointsEarned:       outcome.PointsEarned,
		ShouldAutoComplete: outcome.ShouldAutoComplete,
		AnsweredCount:      outcome.AnsweredCount,
	}, nil
}

// Complete завершает секцию и при необходимости подводит итог тестирования
func (s *SectionService) Complete(ctx context.Context, actor Actor, sectionID uint, now time.Time) (*entity.Section, error) {
	sc, err := s.load(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	defer sc.release()

	if err := s.completeSection(ctx, sc, now, false); err != nil {
		return nil, err
	}
	return sc.section, nil
}

// Skip пропускает начатую секцию (например, нет микрофона для Speaking)
func (s *SectionService) Skip(ctx context.Context, actor Actor, sectionID uint, now time.Time) (*entity.Section, error) {
	sc, err := s.load(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	defer sc.release()

	section := sc.section
	if !section.IsInProgress() {
		return nil, fmt.Errorf("%w: cannot skip section in status %s", apperrors.ErrInvalidState, section.Status)
	}

	section.Finish(entity.StatusSkipped, now)
	if err := s.save(ctx, sc, now); err != nil {
		return nil, fmt.Errorf("failed to skip section %d: %w", sectionID, err)
	}
	s.logger.Info("section skipped", zap.Uint("section_id", sectionID), zap.String("skill", string(section.Skill)))
	return section, nil
}

func (s *SectionService) completeSection(ctx context.Context, sc *sectionContext, now time.Time, expired bool) error {
	section := sc.section
	result, err := s.engine.Finish(&section.Run, now)
	if err != nil {
		return err
	}

	var events []*entity.OutboxEvent
	if section.IsObjective() {
		raw, max, pct := result.EarnedWeight, result.TotalWeight, result.Percentage
		section.RawScore = &raw
		section.MaxScore = &max
		section.PercentageScore = &pct
		section.CEFRLevel = entity.LevelPtr(result.Level)
	} else {
		// Письмо и говорение оценивает внешний сервис, уровень появится позже
		section.ApplyFinalScore()
		sectionID, skill := section.ID, section.Skill
		events = append(events, newEvent(entity.EventAIScoringRequested, sc.assessment.StudentID, entity.EventPayload{
			AssessmentID: sc.assessment.ID,
			SectionID:    &sectionID,
			Skill:        &skill,
			Language:     sc.assessment.Language,
		}, now))
	}

	if err := s.save(ctx, sc, now, events...); err != nil {
		return fmt.Errorf("failed to complete section %d: %w", section.ID, err)
	}

	level := "pending"
	if section.CEFRLevel != nil {
		level = section.CEFRLevel.String()
	}
	monitoring.ObserveCompletion("section", level, expired)
	s.logger.Info("section completed",
		zap.Uint("section_id", section.ID),
		zap.String("skill", string(section.Skill)),
		zap.String("level", level),
		zap.Bool("expired", expired))
	return nil
}

// ApplyAIScore сохраняет оценку AI для субъективной секции
func (s *SectionService) ApplyAIScore(ctx context.Context, actor Actor, sectionID uint, score entity.ScoreBlob, now time.Time) (*entity.Section, error) {
	if !actor.CanScore() {
		return nil, fmt.Errorf("%w: only scoring services can submit AI scores", apperrors.ErrForbidden)
	}
	return s.applyScore(ctx, actor, sectionID, score, now, func(section *entity.Section, blob *entity.ScoreBlob) error {
		if section.IsObjective() {
			return fmt.Errorf("%w: section %s is scored automatically", apperrors.ErrInvalidState, section.Skill)
		}
		section.AIScore = blob
		return nil
	})
}

// ApplyTeacherReview сохраняет оценку преподавателя. Она перекрывает оценку AI
// и запускает повторный подсчёт итогов тестирования.
func (s *SectionService) ApplyTeacherReview(ctx context.Context, actor Actor, sectionID uint, score entity.ScoreBlob, now time.Time) (*entity.Section, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only teachers can review sections", apperrors.ErrForbidden)
	}
	return s.applyScore(ctx, actor, sectionID, score, now, func(section *entity.Section, blob *entity.ScoreBlob) error {
		reviewer := actor.UserID
		blob.ReviewerID = &reviewer
		section.TeacherScore = blob
		return nil
	})
}

func (s *SectionService) applyScore(
	ctx context.Context,
	actor Actor,
	sectionID uint,
	score entity.ScoreBlob,
	now time.Time,
	apply func(section *entity.Section, blob *entity.ScoreBlob) error,
) (*entity.Section, error) {
	if err := score.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if score.ScoredAt.IsZero() {
		score.ScoredAt = now
	}

	sc, err := s.load(ctx, actor, sectionID)
	if err != nil {
		return nil, err
	}
	defer sc.release()

	section := sc.section
	if section.Status != entity.StatusCompleted {
		return nil, fmt.Errorf("%w: section %d is %s", apperrors.ErrInvalidState, sectionID, section.Status)
	}

	blob := score
	if err := apply(section, &blob); err != nil {
		return nil, err
	}
	section.ApplyFinalScore()

	if err := s.save(ctx, sc, now); err != nil {
		return nil, fmt.Errorf("failed to save score of section %d: %w", sectionID, err)
	}
	s.logger.Info("section scored",
		zap.Uint("section_id", sectionID),
		zap.String("level", section.CEFRLevel.String()),
		zap.Uint("actor_id", actor.UserID))
	return section, nil
}

// aggregation - итог тестирования, подведённый в памяти
type aggregation struct {
	result       *placement.AggregateResult
	wasCompleted bool
	levelChanged bool
	scoreChanged bool
}

// aggregate подводит итог тестирования, когда все секции завершены или пропущены.
// Повторный вызов после пересмотра оценки пересчитывает результат, completedAt не меняется.
// Возвращает nil, пока итог подводить рано.
func (s *SectionService) aggregate(assessment *entity.Assessment, now time.Time) *aggregation {
	result, ok := s.aggregator.Aggregate(assessment.Sections)
	if !ok {
		return nil
	}

	agg := &aggregation{
		result:       result,
		wasCompleted: assessment.IsCompleted(),
		levelChanged: assessment.CEFRLevel == nil || *assessment.CEFRLevel != result.Level,
		scoreChanged: assessment.Score == nil || *assessment.Score != result.Percentage,
	}

	score := result.Percentage
	assessment.Score = &score
	assessment.CEFRLevel = entity.LevelPtr(result.Level)
	for skill, level := range result.SkillLevels {
		assessment.SetSkillLevel(skill, level)
	}
	if !agg.wasCompleted {
		assessment.Finish(entity.StatusCompleted, now)
	}
	return agg
}

// save сохраняет секцию. Если все секции завершены, итог тестирования
// пишется в той же транзакции.
func (s *SectionService) save(ctx context.Context, sc *sectionContext, now time.Time, events ...*entity.OutboxEvent) error {
	agg := s.aggregate(sc.assessment, now)
	if agg == nil {
		if err := s.sectionRepo.Update(ctx, sc.section); err != nil {
			return err
		}
		publishAll(ctx, s.events, s.logger, events...)
		return nil
	}

	if err := s.assessmentRepo.UpdateWithSection(ctx, sc.assessment, sc.section); err != nil {
		return fmt.Errorf("failed to save result of assessment %d: %w", sc.assessment.ID, err)
	}

	assessment := sc.assessment
	s.logger.Info("assessment result aggregated",
		zap.Uint("assessment_id", assessment.ID),
		zap.String("level", agg.result.Level.String()),
		zap.Int("score", agg.result.Percentage),
		zap.Int("graded_sections", agg.result.Graded),
		zap.Bool("recalculated", agg.wasCompleted))

	if !agg.wasCompleted {
		monitoring.ObserveCompletion("multi", agg.result.Level.String(), false)
	}
	events = append(events, s.resultEvents(assessment, agg, now)...)
	publishAll(ctx, s.events, s.logger, events...)
	return nil
}

// resultEvents выбирает события итога.
// Без оценённых секций профиль и сертификат не обновляются.
func (s *SectionService) resultEvents(assessment *entity.Assessment, agg *aggregation, now time.Time) []*entity.OutboxEvent {
	if agg.wasCompleted && !agg.levelChanged && !agg.scoreChanged {
		return nil
	}

	payload := entity.EventPayload{
		AssessmentID: assessment.ID,
		Language:     assessment.Language,
		Type:         assessment.Type,
		CEFRLevel:    assessment.CEFRLevel,
		Score:        assessment.Score,
	}

	var events []*entity.OutboxEvent
	if agg.result.Graded > 0 {
		if !agg.wasCompleted || agg.levelChanged {
			events = append(events, newEvent(entity.EventProfileLevelUpdate, assessment.StudentID, payload, now))
		}
		events = append(events, newEvent(entity.EventCertificateRequest, assessment.StudentID, payload, now))
	}
	return append(events, newEvent(entity.EventResultsReady, assessment.StudentID, payload, now))
}
