package service

import (
	"context"
	"fmt"
	"strings"
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

// AssessmentService управляет жизненным циклом тестирования:
// назначение, старт, выдача вопросов, ответы и завершение.
type AssessmentService struct {
	assessmentRepo repository.AssessmentRepository
	engine         *placement.Engine
	config         *placement.Config
	events         EventPublisher
	locker         Locker
	logger         *zap.Logger
}

// NewAssessmentService создает новый сервис тестирований
func NewAssessmentService(
	assessmentRepo repository.AssessmentRepository,
	engine *placement.Engine,
	config *placement.Config,
	events EventPublisher,
	locker Locker,
	logger *zap.Logger,
) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		engine:         engine,
		config:         config,
		events:         events,
		locker:         locker,
		logger:         logger.Named("AssessmentService"),
	}
}

// Assign создаёт тестирование (и секции для multi-skill) и отправляет уведомление о назначении
func (s *AssessmentService) Assign(ctx context.Context, actor Actor, req AssignRequest, now time.Time) (*entity.Assessment, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff can assign assessments", apperrors.ErrForbidden)
	}

	assessment, err := s.buildAssessment(actor, req)
	if err != nil {
		return nil, err
	}

	if err := s.assessmentRepo.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	s.logger.Info("assessment assigned",
		zap.Uint("assessment_id", assessment.ID),
		zap.Uint("student_id", assessment.StudentID),
		zap.String("language", assessment.Language),
		zap.Bool("multi_skill", assessment.IsMultiSkill))

	publishAll(ctx, s.events, s.logger, newEvent(entity.EventAssessmentAssigned, assessment.StudentID, entity.EventPayload{
		AssessmentID: assessment.ID,
		Language:     assessment.Language,
		Type:         assessment.Type,
	}, now))

	return assessment, nil
}

func (s *AssessmentService) buildAssessment(actor Actor, req AssignRequest) (*entity.Assessment, error) {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if req.StudentID == 0 || language == "" {
		return nil, fmt.Errorf("%w: studentId and language are required", apperrors.ErrValidation)
	}

	testType := req.Type
	if testType == "" {
		testType = entity.AssessmentTypePlacement
	}
	if !testType.IsValid() {
		return nil, fmt.Errorf("%w: unknown assessment type %q", apperrors.ErrValidation, testType)
	}

	target := req.TargetLevel
	if target == "" {
		target = s.config.DefaultTargetLevel
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown target level %q", apperrors.ErrValidation, target)
	}
	if req.QuestionsLimit < 0 || (req.TimeLimitMin != nil && *req.TimeLimitMin < 0) {
		return nil, fmt.Errorf("%w: limits must be non-negative", apperrors.ErrValidation)
	}

	assessment := &entity.Assessment{
		StudentID:    req.StudentID,
		AssignedBy:   actor.UserID,
		Language:     language,
		Type:         testType,
		IsMultiSkill: req.IsMultiSkill,
		Run: entity.Run{
			Status:      entity.StatusAssigned,
			TargetLevel: target,
			Answers:     entity.AnswerList{},
		},
		Violations: entity.ViolationList{},
	}

	if !req.IsMultiSkill {
		assessment.QuestionsLimit = req.QuestionsLimit
		if assessment.QuestionsLimit == 0 {
			assessment.QuestionsLimit = s.config.DefaultQuestionsLimit
		}
		assessment.TimeLimitMin = req.TimeLimitMin
		if assessment.TimeLimitMin == nil && s.config.DefaultTimeLimitMin > 0 {
			limit := s.config.DefaultTimeLimitMin
			assessment.TimeLimitMin = &limit
		}
		return assessment, nil
	}

	// Секции таймированы по отдельности, у самого тестирования таймера нет
	for i, skill := range entity.Skills {
		defaults := s.config.SectionDefaultsFor(skill)
		timeLimit := defaults.TimeLimitMin
		assessment.Sections = append(assessment.Sections, entity.Section{
			Skill:      skill,
			OrderIndex: i,
			Run: entity.Run{
				Status:         entity.StatusPending,
				TargetLevel:    target,
				QuestionsLimit: defaults.QuestionsLimit,
				TimeLimitMin:   &timeLimit,
				Answers:        entity.AnswerList{},
			},
		})
		assessment.QuestionsLimit += defaults.QuestionsLimit
	}
	return assessment, nil
}

// Start переводит тестирование в IN_PROGRESS и запускает таймер
func (s *AssessmentService) Start(ctx context.Context, actor Actor, id uint, now time.Time) (*entity.Assessment, error) {
	release, err := s.locker.Acquire(ctx, assessmentLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	assessment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if assessment.IsInProgress() {
		return assessment, nil
	}
	if err := s.engine.Start(&assessment.Run, now); err != nil {
		return nil, err
	}
	if err := s.assessmentRepo.Update(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to start assessment %d: %w", id, err)
	}

	s.logger.Info("assessment started", zap.Uint("assessment_id", id), zap.Timep("expires_at", assessment.ExpiresAt))
	return assessment, nil
}

// NextItem возвращает следующий вопрос single-skill тестирования.
// Просроченное тестирование завершается и возвращается с Expired=true.
func (s *AssessmentService) NextItem(ctx context.Context, actor Actor, id uint, now time.Time) (*NextItemResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AssessmentService.NextItem", attribute.Int64("assessment.id", int64(id)))
	defer span.End()

	release, err := s.locker.Acquire(ctx, assessmentLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	assessment, err := s.loadOwnedSingleSkill(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Next(ctx, &assessment.Run, placement.Scope{Language: assessment.Language}, now)
	if err != nil {
		return nil, err
	}

	if outcome.Expired {
		if _, err := s.finish(ctx, assessment, now, true); err != nil {
			return nil, err
		}
		result := nextItemResult(&assessment.Run, now)
		result.IsComplete = true
		result.Expired = true
		return result, nil
	}

	if outcome.LevelChanged {
		if err := s.assessmentRepo.Update(ctx, assessment); err != nil {
			return nil, fmt.Errorf("failed to save target level of assessment %d: %w", id, err)
		}
	}

	result := nextItemResult(&assessment.Run, now)
	result.IsComplete = outcome.IsComplete
	result.Question = outcome.Question
	return result, nil
}

// SubmitAnswer принимает ответ на вопрос. Завершение по лимиту остаётся за вызывающим.
func (s *AssessmentService) SubmitAnswer(ctx context.Context, actor Actor, id, questionID uint, answer string, now time.Time) (*SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AssessmentService.SubmitAnswer", attribute.Int64("assessment.id", int64(id)))
	defer span.End()

	release, err := s.locker.Acquire(ctx, assessmentLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	assessment, err := s.loadOwnedSingleSkill(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Answer(ctx, &assessment.Run, placement.Scope{Language: assessment.Language}, questionID, answer, now)
	if err != nil {
		return nil, err
	}

	if outcome.Expired {
		if _, err := s.finish(ctx, assessment, now, true); err != nil {
			return nil, err
		}
		return &SubmitResult{Expired: true, AnsweredCount: outcome.AnsweredCount}, nil
	}

	if err := s.assessmentRepo.Update(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to save answer for assessment %d: %w", id, err)
	}
	monitoring.ObserveAnswer("single", outcome.IsCorrect)

	return &SubmitResult{
		IsCorrect:          outcome.IsCorrect,
		CorrectAnswer:      outcome.CorrectAnswer,
		PointsEarned:       outcome.PointsEarned,
		ShouldAutoComplete: outcome.ShouldAutoComplete,
		AnsweredCount:      outcome.AnsweredCount,
	}, nil
}

// Complete оценивает ответы и завершает single-skill тестирование
func (s *AssessmentService) Complete(ctx context.Context, actor Actor, id uint, now time.Time) (*entity.Assessment, error) {
	release, err := s.locker.Acquire(ctx, assessmentLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	assessment, err := s.loadOwnedSingleSkill(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, assessment, now, false)
}

// finish завершает тестирование и ставит в очередь обновление уровня в профиле
func (s *AssessmentService) finish(ctx context.Context, assessment *entity.Assessment, now time.Time, expired bool) (*entity.Assessment, error) {
	result, err := s.engine.Finish(&assessment.Run, now)
	if err != nil {
		return nil, err
	}

	score := result.Percentage
	assessment.Score = &score
	assessment.CEFRLevel = entity.LevelPtr(result.Level)

	if err := s.assessmentRepo.Update(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to complete assessment %d: %w", assessment.ID, err)
	}

	monitoring.ObserveCompletion("single", result.Level.String(), expired)
	s.logger.Info("assessment completed",
		zap.Uint("assessment_id", assessment.ID),
		zap.String("level", result.Level.String()),
		zap.Int("score", score),
		zap.Bool("expired", expired))

	publishAll(ctx, s.events, s.logger, newEvent(entity.EventProfileLevelUpdate, assessment.StudentID, entity.EventPayload{
		AssessmentID: assessment.ID,
		Language:     assessment.Language,
		CEFRLevel:    assessment.CEFRLevel,
		Score:        assessment.Score,
		Expired:      expired,
	}, now))

	return assessment, nil
}

// RecordViolation добавляет событие прокторинга, если тестирование активно.
// Никогда не возвращает ошибку: неудачная запись только логируется.
func (s *AssessmentService) RecordViolation(ctx context.Context, actor Actor, id uint, violation entity.Violation, now time.Time) bool {
	release, err := s.locker.Acquire(ctx, assessmentLockKey(id))
	if err != nil {
		s.logger.Warn("violation dropped: lock unavailable", zap.Uint("assessment_id", id), zap.Error(err))
		return false
	}
	defer release()

	assessment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		s.logger.Warn("violation dropped", zap.Uint("assessment_id", id), zap.Error(err))
		return false
	}
	if !assessment.IsInProgress() {
		return false
	}

	if violation.OccurredAt.IsZero() {
		violation.OccurredAt = now
	}
	assessment.Violations = append(assessment.Violations, violation)

	if err := s.assessmentRepo.Update(ctx, assessment); err != nil {
		s.logger.Warn("violation dropped: save failed", zap.Uint("assessment_id", id), zap.Error(err))
		return false
	}
	return true
}

// Get возвращает тестирование с секциями
func (s *AssessmentService) Get(ctx context.Context, actor Actor, id uint) (*entity.Assessment, error) {
	assessment, err := s.assessmentRepo.GetWithSections(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAssessment(actor, assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}

// ListForStudent возвращает тестирования студента постранично
func (s *AssessmentService) ListForStudent(ctx context.Context, actor Actor, studentID uint, page, pageSize int) ([]entity.Assessment, int64, error) {
	if !actor.CanAccess(studentID) {
		return nil, 0, fmt.Errorf("%w: cannot list assessments of student %d", apperrors.ErrAccessDenied, studentID)
	}
	offset := (page - 1) * pageSize
	return s.assessmentRepo.ListByStudent(ctx, studentID, pageSize, offset)
}

// ListCompleted возвращает завершённые тестирования для выгрузки
func (s *AssessmentService) ListCompleted(ctx context.Context, actor Actor, filter repository.AssessmentExportFilter) ([]entity.Assessment, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff can export results", apperrors.ErrForbidden)
	}
	return s.assessmentRepo.ListCompleted(ctx, filter)
}

func (s *AssessmentService) loadOwned(ctx context.Context, actor Actor, id uint) (*entity.Assessment, error) {
	assessment, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAssessment(actor, assessment); err != nil {
		return nil, err
	}
	return assessment, nil
}

func (s *AssessmentService) loadOwnedSingleSkill(ctx context.Context, actor Actor, id uint) (*entity.Assessment, error) {
	assessment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if assessment.IsMultiSkill {
		return nil, fmt.Errorf("%w: multi-skill assessment %d is served per section", apperrors.ErrInvalidState, id)
	}
	return assessment, nil
}
