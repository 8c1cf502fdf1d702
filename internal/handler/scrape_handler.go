package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/service/scrape"
)

// ScrapeHandler 文档抓取处理器
type ScrapeHandler struct {
	scrapeService *scrape.Service
}

// NewScrapeHandler 创建文档抓取处理器
func NewScrapeHandler(scrapeService *scrape.Service) *ScrapeHandler {
	return &ScrapeHandler{scrapeService: scrapeService}
}

// Scrape 抓取文档页面 POST /api/v1/ai/scrape
func (h *ScrapeHandler) Scrape(c *gin.Context) {
	var req scrape.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	result, err := h.scrapeService.Scrape(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, scrape.ErrUnknownService):
			BadRequest(c, "unknown documentation service")
		case errors.Is(err, scrape.ErrInvalidURL):
			BadRequest(c, "invalid url")
		case errors.Is(err, scrape.ErrBlockedTarget):
			BadRequest(c, "url target is not allowed")
		default:
			log.Printf("scrape failed: %v", err)
			InternalServerError(c, "failed to scrape documentation")
		}
		return
	}

	Success(c, result)
}
