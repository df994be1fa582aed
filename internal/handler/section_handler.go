package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/handler/dto"
	"github.com/yourusername/placement-api/internal/service"
)

// SectionHandler обрабатывает запросы секций multi-skill тестирования
type SectionHandler struct {
	sectionService *service.SectionService
	logger         *zap.Logger
	now            func() time.Time
}

// NewSectionHandler создает новый обработчик секций
func NewSectionHandler(sectionService *service.SectionService, logger *zap.Logger) *SectionHandler {
	return &SectionHandler{
		sectionService: sectionService,
		logger:         logger.Named("SectionHandler"),
		now:            time.Now,
	}
}

// sectionAction - операция над секцией, возвращающая ее новое состояние
type sectionAction func(c *gin.Context, actor service.Actor, sectionID uint) (*entity.Section, error)

func (h *SectionHandler) run(action sectionAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		sectionID := c.MustGet("sectionID").(uint)

		section, err := action(c, actor, sectionID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSectionResponse(section))
	}
}

// Start начинает секцию (предыдущие секции должны быть завершены или пропущены)
func (h *SectionHandler) Start() gin.HandlerFunc {
	return h.run(func(c *gin.Context, actor service.Actor, id uint) (*entity.Section, error) {
		return h.sectionService.Start(c.Request.Context(), actor, id, h.now())
	})
}

// Complete завершает секцию
func (h *SectionHandler) Complete() gin.HandlerFunc {
	return h.run(func(c *gin.Context, actor service.Actor, id uint) (*entity.Section, error) {
		return h.sectionService.Complete(c.Request.Context(), actor, id, h.now())
	})
}

// Skip пропускает секцию
func (h *SectionHandler) Skip() gin.HandlerFunc {
	return h.run(func(c *gin.Context, actor service.Actor, id uint) (*entity.Section, error) {
		return h.sectionService.Skip(c.Request.Context(), actor, id, h.now())
	})
}

// ApplyAIScore принимает оценку внешнего AI-оценщика
func (h *SectionHandler) ApplyAIScore() gin.HandlerFunc {
	return h.run(func(c *gin.Context, actor service.Actor, id uint) (*entity.Section, error) {
		score, err := bindScore(c)
		if err != nil {
			return nil, err
		}
		return h.sectionService.ApplyAIScore(c.Request.Context(), actor, id, score, h.now())
	})
}

// ApplyTeacherReview принимает оценку преподавателя
func (h *SectionHandler) ApplyTeacherReview() gin.HandlerFunc {
	return h.run(func(c *gin.Context, actor service.Actor, id uint) (*entity.Section, error) {
		score, err := bindScore(c)
		if err != nil {
			return nil, err
		}
		return h.sectionService.ApplyTeacherReview(c.Request.Context(), actor, id, score, h.now())
	})
}

// NextItem выдает следующий вопрос секции
func (h *SectionHandler) NextItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	sectionID := c.MustGet("sectionID").(uint)

	result, err := h.sectionService.NextItem(c.Request.Context(), actor, sectionID, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewNextItemResponse(result))
}

// SubmitAnswer принимает ответ в секции
func (h *SectionHandler) SubmitAnswer(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	sectionID := c.MustGet("sectionID").(uint)

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.sectionService.SubmitAnswer(c.Request.Context(), actor, sectionID, req.QuestionID, req.Answer, h.now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSubmitAnswerResponse(result))
}

// bindScore разбирает тело запроса с оценкой
func bindScore(c *gin.Context) (entity.ScoreBlob, error) {
	var req dto.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return entity.ScoreBlob{}, &bindError{err: err}
	}
	return req.ToScoreBlob(), nil
}
