package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/service/auth"
)

// abortWithError 以统一错误信封终止请求
func abortWithError(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":       code,
			"message":    message,
			"statusCode": statusCode,
		},
		"meta": gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}

// RequireAuth 要求有效认证的中间件
// 本地校验 Bearer JWT，不发起外部认证调用
func RequireAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing Authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Authorization header format")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := authService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				abortWithError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")
			default:
				abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			}
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("organization_id", claims.OrganizationID)
		c.Next()
	}
}

// GetUserID 从上下文获取当前用户ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

// GetOrganizationID 从上下文获取当前组织ID
func GetOrganizationID(c *gin.Context) string {
	if orgID, exists := c.Get("organization_id"); exists {
		if id, ok := orgID.(string); ok {
			return id
		}
	}
	return ""
}
