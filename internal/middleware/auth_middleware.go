package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/service"
	"github.com/yourusername/placement-api/pkg/auth"
)

// ActorKey - ключ контекста Gin, под которым хранится service.Actor
const ActorKey = "actor"

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	jwtService *auth.JWTService
	logger     *zap.Logger
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(jwtService *auth.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger.Named("AuthMiddleware"),
	}
}

// RequireAuth проверяет Bearer-токен и кладет пользователя в контекст
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			return
		}

		claims, err := m.jwtService.ParseToken(parts[1])
		if err != nil {
			m.logger.Debug("[Auth] token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			return
		}

		role := claims.Role
		if role == "" {
			role = service.RoleStudent
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set(ActorKey, service.Actor{UserID: claims.UserID, Role: role})
		c.Next()
	}
}

// RequireStaff пропускает только преподавателей и администраторов.
// Должен применяться после RequireAuth.
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !actor.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Teacher or admin rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

// ActorFromContext возвращает пользователя, установленного RequireAuth
func ActorFromContext(c *gin.Context) (service.Actor, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	return actor, ok
}
