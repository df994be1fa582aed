package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда тестирование, секция или вопрос не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок аутентификации (нет токена, неверный токен).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда роли пользователя недостаточно для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrAccessDenied используется, когда пользователь не владеет ресурсом.
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState используется, когда действие недопустимо в текущем статусе.
	ErrInvalidState = errors.New("invalid state")

	// ErrOutOfOrder используется при попытке начать секцию до завершения предыдущих.
	ErrOutOfOrder = errors.New("section started out of order")

	// ErrDuplicateAnswer используется при повторной отправке ответа на тот же вопрос.
	ErrDuplicateAnswer = errors.New("question already answered")

	// ErrConflict используется для конфликтов записи (устаревшая версия, занятая блокировка).
	ErrConflict = errors.New("resource state conflict")
)
