package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const (
	// usageWebsocket - назначение короткоживущего тикета для подключения к WebSocket
	usageWebsocket = "websocket_auth"
	audienceAPI    = "placement-api"
	audienceWS     = "placement-ws"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("token is invalid")
)

// JWTCustomClaims содержит пользовательские поля для токена.
// Токены доступа выпускает сервис пользователей, здесь они только проверяются.
type JWTCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	// Usage отличает WS-тикет от токена доступа
	Usage string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// JWTService проверяет токены доступа (HS256) и выпускает WS-тикеты
type JWTService struct {
	secret         []byte
	issuer         string
	wsTicketExpiry time.Duration
	logger         *zap.Logger
}

// NewJWTService создает сервис JWT
func NewJWTService(secret, issuer string, wsTicketExpiry time.Duration, logger *zap.Logger) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if wsTicketExpiry <= 0 {
		wsTicketExpiry = time.Minute
	}
	return &JWTService{
		secret:         []byte(secret),
		issuer:         issuer,
		wsTicketExpiry: wsTicketExpiry,
		logger:         logger.Named("JWT"),
	}, nil
}

// GenerateToken выпускает токен доступа. Используется внутренними сервисами и тестами.
func (s *JWTService) GenerateToken(userID uint, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{audienceAPI},
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken проверяет токен доступа и возвращает его claims
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage == usageWebsocket {
		return nil, fmt.Errorf("%w: websocket ticket used as access token", ErrTokenInvalid)
	}
	return claims, nil
}

// GenerateWSTicket выпускает короткоживущий тикет для подключения к WebSocket
func (s *JWTService) GenerateWSTicket(userID uint, email, role string) (string, error) {
	now := time.Now()
	claims := &JWTCustomClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Usage:  usageWebsocket,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.wsTicketExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{audienceWS},
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.logger.Error("[JWT] failed to sign ws ticket", zap.Uint("user_id", userID), zap.Error(err))
		return "", err
	}
	return tokenString, nil
}

// ParseWSTicket проверяет WS-тикет
func (s *JWTService) ParseWSTicket(ticket string) (*JWTCustomClaims, error) {
	claims, err := s.parse(ticket)
	if err != nil {
		return nil, err
	}
	if claims.Usage != usageWebsocket || !claims.VerifyAudience(audienceWS, true) {
		return nil, fmt.Errorf("%w: not a websocket ticket", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				s.logger.Debug("[JWT] token expired", zap.Uint("user_id", claims.UserID))
				return nil, ErrTokenExpired
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if s.issuer != "" && claims.Issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: user_id claim is missing", ErrTokenInvalid)
	}
	return claims, nil
}
