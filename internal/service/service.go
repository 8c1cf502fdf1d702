// Package service 服务层，封装业务逻辑
package service

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/vault-ai/internal/config"
	"github.com/ashwinyue/vault-ai/internal/repository"
	"github.com/ashwinyue/vault-ai/internal/service/auth"
	"github.com/ashwinyue/vault-ai/internal/service/chat"
	"github.com/ashwinyue/vault-ai/internal/service/llm"
	"github.com/ashwinyue/vault-ai/internal/service/ratelimit"
	"github.com/ashwinyue/vault-ai/internal/service/scrape"
)

// Services 服务集合，用于统一管理所有服务
type Services struct {
	Config  *config.Config
	Repos   *repository.Repositories
	Redis   *redis.Client
	Auth    *auth.Service
	Chat    *chat.Service
	Scrape  *scrape.Service
	Limiter *ratelimit.Limiter
}

// NewServices 创建所有服务
func NewServices(cfg *config.Config, repos *repository.Repositories, redisClient *redis.Client) *Services {
	llmClient := llm.NewClient(llm.Config{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Version:    cfg.AI.Version,
		MaxRetries: cfg.AI.MaxRetries,
		Timeout:    time.Duration(cfg.AI.Timeout) * time.Second,
	})

	return &Services{
		Config:  cfg,
		Repos:   repos,
		Redis:   redisClient,
		Auth:    auth.NewService(cfg.Auth.JWTSecret),
		Chat:    chat.NewService(repos.Conversation, llmClient, &cfg.AI),
		Scrape:  scrape.NewService(&cfg.Scrape, redisClient),
		Limiter: ratelimit.NewLimiter(ratelimit.NewRedisCounter(redisClient)),
	}
}
