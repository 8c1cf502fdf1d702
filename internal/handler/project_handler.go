package handler

import (
	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目管理处理器
// 项目的实际存储由平台核心服务负责，这里仅保留占位接口
type ProjectHandler struct{}

// NewProjectHandler 创建项目管理处理器
func NewProjectHandler() *ProjectHandler {
	return &ProjectHandler{}
}

// List 列出项目 GET /api/v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	Success(c, gin.H{
		"projects": []gin.H{},
		"total":    0,
		"message":  "project management is handled by the core platform service",
	})
}

// Get 获取项目 GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	Success(c, gin.H{
		"id":      c.Param("id"),
		"message": "project management is handled by the core platform service",
	})
}

// Create 创建项目 POST /api/v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	Created(c, gin.H{
		"message": "project management is handled by the core platform service",
	})
}

// Update 更新项目 PUT /api/v1/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	Success(c, gin.H{
		"id":      c.Param("id"),
		"message": "project management is handled by the core platform service",
	})
}

// Delete 删除项目 DELETE /api/v1/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	Success(c, gin.H{
		"id":      c.Param("id"),
		"message": "project management is handled by the core platform service",
	})
}
