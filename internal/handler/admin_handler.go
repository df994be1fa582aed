package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	"github.com/yourusername/placement-api/internal/service"
)

const (
	exportDateLayout = "2006-01-02"
	maxExportRows    = 50000
)

// AdminHandler - выгрузка результатов и статистика банка вопросов
type AdminHandler struct {
	assessmentService *service.AssessmentService
	poolService       *service.QuestionPoolService
	logger            *zap.Logger
	now               func() time.Time
}

// NewAdminHandler создает обработчик административных запросов
func NewAdminHandler(assessmentService *service.AssessmentService, poolService *service.QuestionPoolService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		assessmentService: assessmentService,
		poolService:       poolService,
		logger:            logger.Named("AdminHandler"),
		now:               time.Now,
	}
}

// parseExportFilter разбирает параметры выгрузки: language, from, to (YYYY-MM-DD), limit
func parseExportFilter(c *gin.Context) (repository.AssessmentExportFilter, error) {
	filter := repository.AssessmentExportFilter{
		Language: c.Query("language"),
		Limit:    maxExportRows,
	}

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(exportDateLayout, from)
		if err != nil {
			return filter, fmt.Errorf("invalid from date: %w", err)
		}
		filter.CompletedFrom = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(exportDateLayout, to)
		if err != nil {
			return filter, fmt.Errorf("invalid to date: %w", err)
		}
		// Включительно: до начала следующего дня
		end := t.AddDate(0, 0, 1)
		filter.CompletedTo = &end
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("invalid limit %q", limit)
		}
		if n < maxExportRows {
			filter.Limit = n
		}
	}
	return filter, nil
}

// ExportResults выгружает завершенные тестирования в XLSX
func (h *AdminHandler) ExportResults(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	filter, err := parseExportFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	assessments, err := h.assessmentService.ListCompleted(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("assessment_results_%s", h.now().Format(exportDateLayout))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	if err := writeResultsXLSX(c.Writer, assessments); err != nil {
		h.logger.Error("[AdminHandler] export failed", zap.Int("rows", len(assessments)), zap.Error(err))
	}
}

var exportHeaders = []interface{}{
	"ID", "Студент", "Язык", "Тип", "Multi-skill", "Завершено",
	"Балл (%)", "Уровень", "Reading", "Listening", "Writing", "Speaking", "Нарушений",
}

// writeResultsXLSX пишет результаты через StreamWriter
func writeResultsXLSX(w io.Writer, assessments []entity.Assessment) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Результаты"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", exportHeaders); err != nil {
		return err
	}

	for i := range assessments {
		a := &assessments[i]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)

		completed := ""
		if a.CompletedAt != nil {
			completed = a.CompletedAt.UTC().Format("2006-01-02 15:04")
		}
		score := ""
		if a.Score != nil {
			score = strconv.Itoa(*a.Score)
		}
		multi := "Нет"
		if a.IsMultiSkill {
			multi = "Да"
		}

		row := []interface{}{
			a.ID,
			a.StudentID,
			sanitizeForExcel(a.Language),
			string(a.Type),
			multi,
			completed,
			score,
			levelCell(a.CEFRLevel),
			levelCell(a.ReadingLevel),
			levelCell(a.ListeningLevel),
			levelCell(a.WritingLevel),
			levelCell(a.SpeakingLevel),
			len(a.Violations),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func levelCell(level *entity.CEFRLevel) string {
	if level == nil {
		return ""
	}
	return string(*level)
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// PoolStats возвращает число активных вопросов языка по уровням
func (h *AdminHandler) PoolStats(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	language := c.Query("language")
	if language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language is required", "error_type": "bad_request"})
		return
	}

	stats, err := h.poolService.Stats(c.Request.Context(), actor, language)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
