package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/middleware"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
	"github.com/yourusername/placement-api/internal/service"
)

// bindError - тело запроса не прошло валидацию
type bindError struct {
	err error
}

func (e *bindError) Error() string { return e.err.Error() }

func (e *bindError) Unwrap() error { return e.err }

// errorStatus сопоставляет ошибку сервиса с HTTP статусом и кодом ошибки
func errorStatus(err error) (int, string) {
	var bindErr *bindError
	switch {
	case errors.As(err, &bindErr):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrOutOfOrder):
		return http.StatusConflict, "out_of_order"
	case errors.Is(err, apperrors.ErrDuplicateAnswer):
		return http.StatusConflict, "duplicate_answer"
	case errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	}
	return http.StatusInternalServerError, "internal"
}

// respondError отправляет ошибку сервиса клиенту. Внутренние ошибки логируются и не раскрываются.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("[Handler] internal error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error", "error_type": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "error_type": code})
}

// badRequest отвечает 400 на невалидное тело запроса
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error(), "error_type": "bad_request"})
}

// actorOrAbort достает пользователя из контекста. Без него запрос не обрабатывается.
func actorOrAbort(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthorized"})
		return service.Actor{}, false
	}
	return actor, true
}
