package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/handler/dto"
	"github.com/yourusername/placement-api/internal/service"
)

// AssessmentHandler обрабатывает запросы single-skill тестирований
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
	logger            *zap.Logger
	now               func() time.Time
}

// NewAssessmentHandler создает новый обработчик тестирований
func NewAssessmentHandler(assessmentService *service.AssessmentService, logger *zap.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		logger:            logger.Named("AssessmentHandler"),
		now:               time.Now,
	}
}

// Assign назначает тестирование студенту (только преподаватели и администраторы)
func (h *AssessmentHandler) Assign(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req dto.AssignAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	assessment, err := h.assessmentService.Assign(c.Request.Context(), actor, req.ToService(), h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAssessmentResponse(assessment))
}

// Get возвращает тестирование с секциями
func (h *AssessmentHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.MustGet("assessmentID").(uint)

	assessment, err := h.assessmentService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAssessmentResponse(assessment))
}

// ListForStudent возвращает тестирования студента постранично
func (h *AssessmentHandler) ListForStudent(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	studentID := c.MustGet("studentID").(uint)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	items, total, err := h.assessmentService.ListForStudent(c.Request.Context(), actor, studentID, page, perPage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedAssessmentResponse(items, total, page, perPage))
}

// Start начинает тестирование
func (h *AssessmentHandler) Start(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.MustGet("assessmentID").(uint)

	assessment, err := h.assessmentService.Start(c.Request.Context(), actor, id, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAssessmentResponse(assessment))
}

// NextItem выдает следующий вопрос
func (h *AssessmentHandler) NextItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.MustGet("assessmentID").(uint)

	result, err := h.assessmentService.NextItem(c.Request.Context(), actor, id, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewNextItemResponse(result))
}

// SubmitAnswer принимает ответ на вопрос
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.MustGet("assessmentID").(uint)

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.assessmentService.SubmitAnswer(c.Request.Context(), actor, id, req.QuestionID, req.Answer, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSubmitAnswerResponse(result))
}

// Complete завершает тестирование и возвращает результат
func (h *AssessmentHandler) Complete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.MustGet("assessmentID").(uint)

	assessment, err := h.assessmentService.Complete(c.Request.Context(), actor, id, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAssessmentResponse(assessment))
}

// RecordViolation записывает событие прокторинга. Всегда отвечает 202.
func (h *AssessmentHandler) RecordViolation(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id := c.MustGet("assessmentID").(uint)

	var req dto.ViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	recorded := h.assessmentService.RecordViolation(c.Request.Context(), actor, id, entity.Violation{
		Type:    req.Type,
		Details: req.Details,
	}, h.now())

	c.JSON(http.StatusAccepted, gin.H{"recorded": recorded})
}
