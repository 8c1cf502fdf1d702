package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/service/ratelimit"
)

// RateLimit 端点限流中间件
// 已认证请求按用户计数，匿名请求按客户端 IP 计数
func RateLimit(limiter *ratelimit.Limiter, endpoint string, preset ratelimit.Preset) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := "ip:" + c.ClientIP()
		if userID, ok := GetUserID(c); ok && userID != "" {
			identity = "user:" + userID
		}

		result := limiter.Check(c.Request.Context(), endpoint, identity, preset)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later.")
			return
		}

		c.Next()
	}
}
