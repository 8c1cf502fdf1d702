package handler

import (
	"github.com/gin-gonic/gin"
)

// SecretHandler 密钥管理处理器
// 密钥的实际存储由平台核心服务负责，这里仅保留占位接口
type SecretHandler struct{}

// NewSecretHandler 创建密钥管理处理器
func NewSecretHandler() *SecretHandler {
	return &SecretHandler{}
}

// List 列出密钥 GET /api/v1/secrets
func (h *SecretHandler) List(c *gin.Context) {
	Success(c, gin.H{
		"secrets": []gin.H{},
		"total":   0,
		"message": "secret management is handled by the core platform service",
	})
}

// Get 获取密钥 GET /api/v1/secrets/:id
func (h *SecretHandler) Get(c *gin.Context) {
	Success(c, gin.H{
		"id":      c.Param("id"),
		"message": "secret management is handled by the core platform service",
	})
}

// Create 创建密钥 POST /api/v1/secrets
func (h *SecretHandler) Create(c *gin.Context) {
	Created(c, gin.H{
		"message": "secret management is handled by the core platform service",
	})
}

// Update 更新密钥 PUT /api/v1/secrets/:id
func (h *SecretHandler) Update(c *gin.Context) {
	Success(c, gin.H{
		"id":      c.Param("id"),
		"message": "secret management is handled by the core platform service",
	})
}

// Delete 删除密钥 DELETE /api/v1/secrets/:id
func (h *SecretHandler) Delete(c *gin.Context) {
	Success(c, gin.H{
		"id":      c.Param("id"),
		"message": "secret management is handled by the core platform service",
	})
}
