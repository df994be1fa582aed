package service

import (
	"fmt"

	"github.com/yourusername/placement-api/internal/domain/entity"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

// Роли пользователей из JWT
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
	// RoleService - внутренние сервисы (например, AI-оценщик)
	RoleService = "service"
)

// Actor - пользователь, от имени которого выполняется операция
type Actor struct {
	UserID uint
	Role   string
}

// IsStaff - преподаватель или администратор
func (a Actor) IsStaff() bool {
	return a.Role == RoleTeacher || a.Role == RoleAdmin
}

// CanScore - может присылать оценки субъективных секций
func (a Actor) CanScore() bool {
	return a.IsStaff() || a.Role == RoleService
}

// CanAccess проверяет доступ к данным студента
func (a Actor) CanAccess(studentID uint) bool {
	return a.IsStaff() || a.Role == RoleService || a.UserID == studentID
}

func authorizeAssessment(actor Actor, assessment *entity.Assessment) error {
	if !actor.CanAccess(assessment.StudentID) {
		return fmt.Errorf("%w: assessment %d does not belong to user %d", apperrors.ErrAccessDenied, assessment.ID, actor.UserID)
	}
	return nil
}
