package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/badge-camp-api/internal/config"
	"github.com/gdg-garage/badge-camp-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	TokenDuration = 24 * time.Hour
	CookieName    = "auth_token"
)

type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

func (h *AuthHandler) GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(TokenDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// ParseToken validates an HS256 token and returns its claims.
func (h *AuthHandler) ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserID extracts the numeric user id claim.
func UserID(claims jwt.MapClaims) (uint, error) {
	v, ok := claims["user_id"].(float64)
	if !ok || v <= 0 {
		return 0, errors.New("invalid token claims")
	}
	return uint(v), nil
}

type MeOutput struct {
	Body models.User
}

// HandleMe returns the user Middleware authenticated.
func (h *AuthHandler) HandleMe(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	userID, ok := CurrentUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("No token found")
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error401Unauthorized("User not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load user", err)
	}
	return &MeOutput{Body: user}, nil
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
