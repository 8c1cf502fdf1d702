package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	services *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(services *service.Services) *SystemHandler {
	return &SystemHandler{services: services}
}

// Health 健康检查 GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	Success(c, gin.H{
		"status":  "ok",
		"service": h.services.Config.App.Name,
		"version": h.services.Config.App.Version,
	})
}

// Status 服务状态 GET /api/v1/public/status
// 逐项检查依赖连通性，任一依赖不可用时整体状态为 degraded
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "ok"
	if sqlDB, err := h.services.Repos.DB.DB(); err != nil {
		dbStatus = "unavailable"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unavailable"
	}

	redisStatus := "ok"
	if err := h.services.Redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unavailable"
	}

	status := "ok"
	if dbStatus != "ok" || redisStatus != "ok" {
		status = "degraded"
	}

	Success(c, gin.H{
		"status":      status,
		"environment": h.services.Config.App.Environment,
		"version":     h.services.Config.App.Version,
		"checks": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
