package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// 错误码常量
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ErrorInfo 错误信封中的错误详情
type ErrorInfo struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

// Meta 响应元数据
type Meta struct {
	Timestamp string `json:"timestamp"`
}

// Envelope 统一响应信封
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

func newMeta() Meta {
	return Meta{Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Meta: newMeta()})
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data, Meta: newMeta()})
}

// Fail 错误响应
func Fail(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Envelope{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message, StatusCode: statusCode},
		Meta:    newMeta(),
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, CodeValidationError, message)
}

// Forbidden 403 错误响应
func Forbidden(c *gin.Context, message string) {
	Fail(c, http.StatusForbidden, CodeForbidden, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, CodeInternalError, message)
}

// getUserID 获取当前用户ID
func getUserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		if userID, ok := id.(string); ok {
			return userID
		}
	}
	return ""
}

// getOrganizationID 获取当前组织ID
func getOrganizationID(c *gin.Context) string {
	if id, exists := c.Get("organization_id"); exists {
		if orgID, ok := id.(string); ok {
			return orgID
		}
	}
	return ""
}
