package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// CertificateService выпускает PDF-сертификаты по завершённым тестированиям
type CertificateService struct {
	assessmentRepo  repository.AssessmentRepository
	studentRepo     repository.StudentRepository
	certificateRepo repository.CertificateRepository
	storage         StorageProvider
	logger          *zap.Logger
}

// NewCertificateService создает сервис сертификатов
func NewCertificateService(
	assessmentRepo repository.AssessmentRepository,
	studentRepo repository.StudentRepository,
	certificateRepo repository.CertificateRepository,
	storage StorageProvider,
	logger *zap.Logger,
) *CertificateService {
	return &CertificateService{
		assessmentRepo:  assessmentRepo,
		studentRepo:     studentRepo,
		certificateRepo: certificateRepo,
		storage:         storage,
		logger:          logger.Named("CertificateService"),
	}
}

// HandleCertificateRequest обрабатывает событие certificate.requested
func (s *CertificateService) HandleCertificateRequest(ctx context.Context, event *entity.OutboxEvent) error {
	_, err := s.GenerateForAssessment(ctx, event.StudentID, event.Payload.AssessmentID, time.Now())
	if errors.Is(err, apperrors.ErrInvalidState) || errors.Is(err, apperrors.ErrNotFound) {
		// Повтор не исправит состояние тестирования
		s.logger.Warn("certificate not issued", zap.Uint("assessment_id", event.Payload.AssessmentID), zap.Error(err))
		return nil
	}
	return err
}

// GenerateForAssessment выпускает сертификат или перевыпускает его,
// если уровень изменился после пересмотра. Номер сертификата сохраняется.
func (s *CertificateService) GenerateForAssessment(ctx context.Context, studentID, assessmentID uint, issuedAt time.Time) (*entity.Certificate, error) {
	assessment, err := s.assessmentRepo.GetWithSections(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.StudentID != studentID {
		return nil, fmt.Errorf("%w: assessment %d belongs to another student", apperrors.ErrAccessDenied, assessmentID)
	}
	if !assessment.IsCompleted() || assessment.CEFRLevel == nil {
		return nil, fmt.Errorf("%w: assessment %d has no final result", apperrors.ErrInvalidState, assessmentID)
	}

	existing, err := s.certificateRepo.GetByAssessment(ctx, assessmentID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	score := 0
	if assessment.Score != nil {
		score = *assessment.Score
	}
	if existing != nil && existing.CEFRLevel == *assessment.CEFRLevel && existing.Score == score {
		return existing, nil
	}

	cert := &entity.Certificate{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Number:       newCertificateNumber(issuedAt),
		Language:     assessment.Language,
		CEFRLevel:    *assessment.CEFRLevel,
		Score:        score,
		IssuedAt:     issuedAt,
	}
	var oldKey string
	if existing != nil {
		cert.ID = existing.ID
		cert.Number = existing.Number
		oldKey = existing.FileKey
	}

	studentName := fmt.Sprintf("Student #%d", studentID)
	if student, err := s.studentRepo.GetByID(ctx, studentID); err == nil {
		studentName = student.DisplayName()
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	var buf bytes.Buffer
	if err := renderCertificate(&buf, cert, assessment, studentName); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	cert.FileKey = fmt.Sprintf("certificates/%d/%s-%d.pdf", assessmentID, cert.Number, issuedAt.Unix())
	url, err := s.storage.Upload(ctx, cert.FileKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to upload certificate: %w", err)
	}
	cert.FileURL = url

	if err := s.certificateRepo.Save(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	if oldKey != "" && oldKey != cert.FileKey {
		if err := s.storage.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("failed to delete previous certificate file", zap.String("key", oldKey), zap.Error(err))
		}
	}

	s.logger.Info("certificate issued",
		zap.Uint("assessment_id", assessmentID),
		zap.String("number", cert.Number),
		zap.String("level", cert.CEFRLevel.String()))
	return cert, nil
}

// GetForAssessment возвращает выпущенный сертификат
func (s *CertificateService) GetForAssessment(ctx context.Context, actor Actor, assessmentID uint) (*entity.Certificate, error) {
	cert, err := s.certificateRepo.GetByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(cert.StudentID) {
		return nil, fmt.Errorf("%w: certificate of assessment %d", apperrors.ErrAccessDenied, assessmentID)
	}
	return cert, nil
}

func newCertificateNumber(issuedAt time.Time) string {
	return fmt.Sprintf("CEFR-%d-%s", issuedAt.Year(), strings.ToUpper(uuid.NewString()[:8]))
}

func renderCertificate(buf *bytes.Buffer, cert *entity.Certificate, assessment *entity.Assessment, studentName string) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Language Proficiency Certificate", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 26)
	pdf.CellFormat(0, 20, "Certificate of Language Proficiency", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, "This is to certify that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 14, studentName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("has achieved level %s in %s", cert.CEFRLevel, languageLabel(cert.Language)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 10, fmt.Sprintf("Overall score: %d%%", cert.Score), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	if assessment.IsMultiSkill {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, "Skill breakdown", "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 12)
		for _, skill := range entity.Skills {
			level := "-"
			if l := assessment.SkillLevel(skill); l != nil {
				level = l.String()
			}
			pdf.CellFormat(0, 7, fmt.Sprintf("%s: %s", skillLabel(skill), level), "", 1, "C", false, 0, "")
		}
		pdf.Ln(6)
	}

	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Certificate No. %s", cert.Number), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued on %s", cert.IssuedAt.Format("2 January 2006")), "", 1, "C", false, 0, "")

	return pdf.Output(buf)
}

func skillLabel(skill entity.Skill) string {
	name := strings.ToLower(string(skill))
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
