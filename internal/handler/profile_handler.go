package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/service"
)

// ProfileHandler отдает уровни студента и сертификаты
type ProfileHandler struct {
	profileService     *service.ProfileService
	certificateService *service.CertificateService
	logger             *zap.Logger
}

// NewProfileHandler создает обработчик профиля
func NewProfileHandler(profileService *service.ProfileService, certificateService *service.CertificateService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService:     profileService,
		certificateService: certificateService,
		logger:             logger.Named("ProfileHandler"),
	}
}

// GetLevels возвращает текущие уровни студента по языкам
func (h *ProfileHandler) GetLevels(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	studentID := c.MustGet("studentID").(uint)

	levels, err := h.profileService.GetLevels(c.Request.Context(), actor, studentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"studentId": studentID, "levels": levels})
}

// GetCertificate возвращает сертификат тестирования
func (h *ProfileHandler) GetCertificate(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	assessmentID := c.MustGet("assessmentID").(uint)

	certificate, err := h.certificateService.GetForAssessment(c.Request.Context(), actor, assessmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, certificate)
}
