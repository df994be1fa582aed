package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// Типы realtime-уведомлений
const (
	RealtimeAssessmentAssigned = "assessment_assigned"
	RealtimeResultsReady       = "results_ready"
)

// RealtimePusher доставляет событие подключенному пользователю
type RealtimePusher interface {
	SendEventToUser(userID string, eventType string, data interface{}) error
}

// NotificationService уведомляет студентов о назначении и результатах тестирований
type NotificationService struct {
	studentRepo repository.StudentRepository
	mailer      EmailService
	realtime    RealtimePusher
	logger      *zap.Logger
}

// NewNotificationService создает сервис уведомлений. realtime может быть nil.
func NewNotificationService(studentRepo repository.StudentRepository, mailer EmailService, realtime RealtimePusher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		studentRepo: studentRepo,
		mailer:      mailer,
		realtime:    realtime,
		logger:      logger.Named("NotificationService"),
	}
}

// HandleAssessmentAssigned обрабатывает notification.assessment_assigned
func (s *NotificationService) HandleAssessmentAssigned(ctx context.Context, event *entity.OutboxEvent) error {
	p := event.Payload
	s.push(event.StudentID, RealtimeAssessmentAssigned, map[string]interface{}{
		"assessmentId": p.AssessmentID,
		"language":     p.Language,
		"type":         p.Type,
	})

	subject := fmt.Sprintf("New %s assessment: %s", assessmentTypeLabel(p.Type), languageLabel(p.Language))
	text := fmt.Sprintf("You have been assigned a %s assessment in %s. Open your dashboard to start it.",
		assessmentTypeLabel(p.Type), languageLabel(p.Language))
	html := fmt.Sprintf("<p>You have been assigned a <strong>%s</strong> assessment in <strong>%s</strong>.</p><p>Open your dashboard to start it.</p>",
		assessmentTypeLabel(p.Type), languageLabel(p.Language))

	return s.mail(ctx, event, subject, text, html)
}

// HandleResultsReady обрабатывает notification.results_ready
func (s *NotificationService) HandleResultsReady(ctx context.Context, event *entity.OutboxEvent) error {
	p := event.Payload
	level := "-"
	if p.CEFRLevel != nil {
		level = p.CEFRLevel.String()
	}
	score := "-"
	if p.Score != nil {
		score = strconv.Itoa(*p.Score) + "%"
	}

	s.push(event.StudentID, RealtimeResultsReady, map[string]interface{}{
		"assessmentId": p.AssessmentID,
		"cefrLevel":    p.CEFRLevel,
		"score":        p.Score,
	})

	subject := fmt.Sprintf("Your %s results are ready", languageLabel(p.Language))
	text := fmt.Sprintf("Your %s assessment is complete. Level: %s, score: %s.", languageLabel(p.Language), level, score)
	html := fmt.Sprintf("<p>Your %s assessment is complete.</p><p>Level: <strong>%s</strong><br>Score: <strong>%s</strong></p>",
		languageLabel(p.Language), level, score)

	return s.mail(ctx, event, subject, text, html)
}

func (s *NotificationService) mail(ctx context.Context, event *entity.OutboxEvent, subject, text, html string) error {
	student, err := s.studentRepo.GetByID(ctx, event.StudentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Студента нет в проекции - повтор не поможет
			s.logger.Warn("student not found, email skipped", zap.Uint("student_id", event.StudentID))
			return nil
		}
		return err
	}
	if student.Email == "" {
		return nil
	}

	msg := EmailMessage{To: student.Email, Subject: subject, Text: text, HTML: html}
	if err := s.mailer.Send(ctx, msg, event.EventID); err != nil {
		return fmt.Errorf("failed to send %s email: %w", event.Type, err)
	}
	return nil
}

// push не влияет на результат обработки: студент может быть не в сети
func (s *NotificationService) push(studentID uint, eventType string, data interface{}) {
	if s.realtime == nil {
		return
	}
	if err := s.realtime.SendEventToUser(strconv.FormatUint(uint64(studentID), 10), eventType, data); err != nil {
		s.logger.Debug("realtime push skipped",
			zap.Uint("student_id", studentID),
			zap.String("event", eventType),
			zap.Error(err))
	}
}

func assessmentTypeLabel(t entity.AssessmentType) string {
	switch t {
	case entity.AssessmentTypeProgress:
		return "progress"
	case entity.AssessmentTypeFinal:
		return "final"
	default:
		return "placement"
	}
}

var languageNames = map[string]string{
	"en": "English",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"ru": "Russian",
	"kk": "Kazakh",
	"zh": "Chinese",
}

func languageLabel(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
