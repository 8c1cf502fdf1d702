package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/vault-ai/internal/service/chat"
)

// ChatHandler AI对话处理器
type ChatHandler struct {
	chatService *chat.Service
}

// NewChatHandler 创建AI对话处理器
func NewChatHandler(chatService *chat.Service) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理一轮对话 POST /api/v1/ai/chat
// 前置阶段（校验、会话解析、用户消息落库）的错误映射为 4xx/5xx 信封；
// 一旦开始写 SSE 流，后续失败只能以 error 事件下发
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	userID := getUserID(c)
	orgID := getOrganizationID(c)

	turn, err := h.chatService.PrepareTurn(c.Request.Context(), userID, orgID, &req)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			BadRequest(c, "message must not be empty")
		case errors.Is(err, chat.ErrMessageTooLong):
			BadRequest(c, fmt.Sprintf("message exceeds maximum length of %d characters", chat.MaxMessageLength))
		case errors.Is(err, chat.ErrConversationNotFound):
			NotFound(c, "conversation not found")
		case errors.Is(err, chat.ErrForbidden):
			Forbidden(c, "conversation belongs to another user")
		default:
			log.Printf("failed to prepare chat turn: %v", err)
			InternalServerError(c, "failed to process message")
		}
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)

	emit := func(event chat.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	h.chatService.ExecuteTurn(c.Request.Context(), turn, emit)
}

// ListConversations 列出当前用户的会话 GET /api/v1/ai/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	conversations, total, err := h.chatService.ListConversations(c.Request.Context(), getUserID(c), page, size)
	if err != nil {
		log.Printf("failed to list conversations: %v", err)
		InternalServerError(c, "failed to list conversations")
		return
	}

	Success(c, gin.H{
		"conversations": conversations,
		"total":         total,
		"page":          page,
		"size":          size,
	})
}

// GetConversation 获取会话详情及消息 GET /api/v1/ai/conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.chatService.GetConversation(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrConversationNotFound):
			NotFound(c, "conversation not found")
		case errors.Is(err, chat.ErrForbidden):
			Forbidden(c, "conversation belongs to another user")
		default:
			log.Printf("failed to get conversation: %v", err)
			InternalServerError(c, "failed to get conversation")
		}
		return
	}

	Success(c, conv)
}
