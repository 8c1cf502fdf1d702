package handler

import (
	"github.com/ashwinyue/vault-ai/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Chat    *ChatHandler
	Scrape  *ScrapeHandler
	System  *SystemHandler
	Secret  *SecretHandler
	Project *ProjectHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Chat:    NewChatHandler(services.Chat),
		Scrape:  NewScrapeHandler(services.Scrape),
		System:  NewSystemHandler(services),
		Secret:  NewSecretHandler(),
		Project: NewProjectHandler(),
	}
}
