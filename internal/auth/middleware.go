// Package auth защищает изменяющие запросы EFB API общим токеном планшета.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Middleware проверяет токен доступа к API
type Middleware struct {
	token  []byte
	logger *utils.Logger
}

// NewMiddleware создает middleware аутентификации, пустой токен отключает проверку
func NewMiddleware(token string, logger *utils.Logger) (*Middleware, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Middleware{
		token:  []byte(token),
		logger: logger.WithField("component", "auth"),
	}, nil
}

// Enabled проверка токена включена
func (m *Middleware) Enabled() bool {
	return len(m.token) > 0
}

// Authenticate требует действительный токен
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			m.logger.WithField("ip", c.ClientIP()).Warn("Missing authentication token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "missing_token",
				"message": "Missing authentication token",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), m.token) != 1 {
			m.logger.WithFields(map[string]interface{}{
				"ip":     c.ClientIP(),
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Warn("Invalid authentication token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "invalid_token",
				"message": "Invalid authentication token",
			})
			return
		}

		c.Next()
	}
}

// extractToken извлекает токен из запроса (header, query parameter или cookie)
func extractToken(c *gin.Context) string {
	// 1. Authorization header
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	// 2. Query parameter (браузерный WebSocket не передает заголовки)
	if token := c.Query("token"); token != "" {
		return token
	}

	// 3. Cookie
	if token, err := c.Cookie("token"); err == nil && token != "" {
		return token
	}

	return ""
}
