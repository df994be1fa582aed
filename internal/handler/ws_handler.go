package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/websocket"
	"github.com/yourusername/placement-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения для уведомлений в реальном времени
type WSHandler struct {
	wsHub      *websocket.Hub
	wsManager  *websocket.Manager
	jwtService *auth.JWTService
	upgrader   gorillaws.Upgrader
	logger     *zap.Logger
}

// NewWSHandler создает новый обработчик WebSocket.
// allowedOrigins - список origin браузерных клиентов, "*" разрешает любой.
func NewWSHandler(
	wsHub *websocket.Hub,
	wsManager *websocket.Manager,
	jwtService *auth.JWTService,
	allowedOrigins []string,
	logger *zap.Logger,
) *WSHandler {
	h := &WSHandler{
		wsHub:      wsHub,
		wsManager:  wsManager,
		jwtService: jwtService,
		logger:     logger.Named("WSHandler"),
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       h.originChecker(allowedOrigins),
		EnableCompression: true,
	}
	return h
}

func (h *WSHandler) originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
		allowed[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Пустой Origin - не браузерный клиент (мобильное приложение, curl)
		if origin == "" || wildcard {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		h.logger.Warn("[WSHandler] rejected origin", zap.String("origin", origin))
		return false
	}
}

// IssueTicket выдает короткоживущий тикет для подключения к /ws.
// Браузер не может передать заголовок Authorization при апгрейде, поэтому тикет идет в query.
func (h *WSHandler) IssueTicket(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	ticket, err := h.jwtService.GenerateWSTicket(actor.UserID, c.GetString("email"), actor.Role)
	if err != nil {
		h.logger.Error("[WSHandler] failed to issue ticket", zap.Uint("user_id", actor.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue ticket"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// HandleConnection обрабатывает входящее WebSocket соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// НЕ логируем тикет - это секретные данные аутентификации
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		h.logger.Info("[WSHandler] invalid ticket", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		h.logger.Warn("[WSHandler] upgrade failed", zap.Uint("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := websocket.NewClient(h.wsHub, conn, strconv.FormatUint(uint64(claims.UserID), 10))
	client.StartPumps(h.wsManager.HandleMessage)

	h.logger.Debug("[WSHandler] connection established", zap.Uint("user_id", claims.UserID))
}
