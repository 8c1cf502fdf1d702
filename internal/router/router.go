// Package router 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/config"
	"github.com/ashwinyue/vault-ai/internal/handler"
	"github.com/ashwinyue/vault-ai/internal/middleware"
	"github.com/ashwinyue/vault-ai/internal/service"
	"github.com/ashwinyue/vault-ai/internal/service/ratelimit"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, services *service.Services, handlers *handler.Handlers) *gin.Engine {
	r := gin.New()

	// 全局中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware(cfg))

	// 健康检查
	r.GET("/health", handlers.System.Health)

	v1 := r.Group("/api/v1")
	{
		// 公开接口
		public := v1.Group("/public")
		{
			public.GET("/status", handlers.System.Status)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.RequireAuth(services.Auth))
		{
			ai := authorized.Group("/ai")
			{
				ai.POST("/chat",
					middleware.RateLimit(services.Limiter, "chat", ratelimit.PresetChat),
					handlers.Chat.Chat)

				conversations := ai.Group("/conversations")
				conversations.Use(middleware.RateLimit(services.Limiter, "read", ratelimit.PresetRead))
				{
					conversations.GET("", handlers.Chat.ListConversations)
					conversations.GET("/:id", handlers.Chat.GetConversation)
				}
			}

			authorized.POST("/scrape",
				middleware.RateLimit(services.Limiter, "scrape", ratelimit.PresetScrape),
				handlers.Scrape.Scrape)

			secrets := authorized.Group("/secrets")
			secrets.Use(middleware.RateLimit(services.Limiter, "secrets", ratelimit.PresetRead))
			{
				secrets.GET("", handlers.Secret.List)
				secrets.GET("/:id", handlers.Secret.Get)
				secrets.POST("", handlers.Secret.Create)
				secrets.PUT("/:id", handlers.Secret.Update)
				secrets.DELETE("/:id", handlers.Secret.Delete)
			}

			projects := authorized.Group("/projects")
			projects.Use(middleware.RateLimit(services.Limiter, "projects", ratelimit.PresetRead))
			{
				projects.GET("", handlers.Project.List)
				projects.GET("/:id", handlers.Project.Get)
				projects.POST("", handlers.Project.Create)
				projects.PUT("/:id", handlers.Project.Update)
				projects.DELETE("/:id", handlers.Project.Delete)
			}
		}
	}

	return r
}
