// Package chat 实现对话轮次的编排
// 一个轮次按固定阶段推进：校验 → 解析会话 → 持久化用户消息 →
// 条件设置标题 → 组装提示词 → 选择模型 → 调用模型 → 持久化助手消息
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ashwinyue/vault-ai/internal/config"
	"github.com/ashwinyue/vault-ai/internal/model"
	"github.com/ashwinyue/vault-ai/internal/repository"
	"github.com/ashwinyue/vault-ai/internal/service/llm"
)

const (
	// MaxMessageLength 单条消息的最大字符数
	MaxMessageLength = 10000
	// historyWindow 每轮加载的最近消息数，约束提示词长度
	historyWindow = 10
)

// 终态错误，在任何持久化或模型调用之前返回
var (
	ErrEmptyMessage         = errors.New("message must not be empty")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrForbidden            = errors.New("conversation belongs to another user")
)

// 下发给客户端的事件类型
const (
	EventStart    = "start"
	EventChunk    = "chunk"
	EventComplete = "complete"
	EventError    = "error"
)

// UsagePayload complete 事件中的用量
type UsagePayload struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Event 下发给客户端的单个事件
type Event struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId,omitempty"`
	Content        string         `json:"content,omitempty"`
	Model          string         `json:"model,omitempty"`
	Usage          *UsagePayload  `json:"usage,omitempty"`
	CostUSD        float64        `json:"costUsd,omitempty"`
	Code           string         `json:"code,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// EmitFunc 向客户端下发一个事件
type EmitFunc func(Event) error

// LLMClient 上游模型客户端接口，便于单元测试 mock
type LLMClient interface {
	Call(ctx context.Context, req *llm.Request) (*llm.Response, error)
	CallStream(ctx context.Context, req *llm.Request) (io.ReadCloser, error)
}

// Request 一轮对话的输入
type Request struct {
	Message        string                 `json:"message"`
	ConversationID string                 `json:"conversationId"`
	Context        map[string]interface{} `json:"context"`
	Stream         bool                   `json:"stream"`
}

// Turn 已通过校验并完成用户消息持久化的轮次
type Turn struct {
	Conversation *model.Conversation
	Messages     []llm.Message
	Model        string
	System       string
	Stream       bool
}

// Service 对话服务
type Service struct {
	repo repository.ConversationRepository
	llm  LLMClient
	cfg  *config.AIConfig
}

// NewService 创建对话服务
func NewService(repo repository.ConversationRepository, llmClient LLMClient, cfg *config.AIConfig) *Service {
	return &Service{repo: repo, llm: llmClient, cfg: cfg}
}

// PrepareTurn 执行轮次的前半段：校验、解析会话、持久化用户消息、组装提示词
// 返回错误时尚未向客户端写出任何内容，调用方可映射为 4xx/5xx 响应。
// 用户消息先于模型调用落库，模型失败也不会丢失用户输入
func (s *Service) PrepareTurn(ctx context.Context, userID, orgID string, req *Request) (*Turn, error) {
	// 1. 校验
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	// 2. 解析会话：载入并校验所有权，或新建
	conv, err := s.resolveConversation(userID, orgID, req)
	if err != nil {
		return nil, err
	}

	// 3. 持久化用户消息（标题检查在 appendMessage 内完成）
	userMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Message,
	}
	count, err := s.appendMessage(userMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	// 5. 组装提示词：最近 10 条消息升序排列，新用户消息在末尾
	recent, err := s.repo.GetRecentMessages(conv.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load message history: %w", err)
	}
	messages := make([]llm.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role == model.RoleSystem {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	// 6. 选择模型
	return &Turn{
		Conversation: conv,
		Messages:     messages,
		Model:        s.SelectModel(req.Message, int(count)),
		System:       BuildSystemPrompt(conv.Context),
		Stream:       req.Stream,
	}, nil
}

// ExecuteTurn 执行轮次的后半段：调用模型、持久化助手消息、下发事件
// 此阶段的失败以 error 事件下发，HTTP 响应保持已发送的 200
func (s *Service) ExecuteTurn(ctx context.Context, turn *Turn, emit EmitFunc) {
	if err := emit(Event{Type: EventStart, ConversationID: turn.Conversation.ID}); err != nil {
		return
	}

	var result *turnResult
	var streamed bool

	if turn.Stream {
		res, emitted, err := s.streamTurn(ctx, turn, emit)
		switch {
		case err == nil:
			result = res
			streamed = true
		case emitted:
			// 已下发部分内容，无法干净回退
			log.Printf("streaming failed mid-response: %v", err)
			_ = emit(Event{Type: EventError, Code: "INTERNAL_ERROR", Message: "stream interrupted"})
			return
		default:
			// 仅回退一次非流式调用，不做第二次流式尝试
			log.Printf("streaming call failed, falling back to non-streaming: %v", err)
		}
	}

	if result == nil {
		resp, err := s.llm.Call(ctx, &llm.Request{
			Model:     turn.Model,
			System:    turn.System,
			Messages:  turn.Messages,
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			log.Printf("model call failed: %v", err)
			_ = emit(Event{Type: EventError, Code: "INTERNAL_ERROR", Message: "model call failed"})
			return
		}
		result = &turnResult{content: resp.Content, model: resp.Model, usage: resp.Usage}
	}

	if result.model == "" {
		result.model = turn.Model
	}
	cost := CalculateCost(result.model, result.usage)

	// 8. 持久化助手消息，元数据携带实际模型与用量
	assistantMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: turn.Conversation.ID,
		Role:           model.RoleAssistant,
		Content:        result.content,
		Model:          result.model,
		InputTokens:    result.usage.InputTokens,
		OutputTokens:   result.usage.OutputTokens,
		CostUSD:        cost,
	}
	if _, err := s.appendMessage(assistantMsg); err != nil {
		log.Printf("failed to persist assistant message: %v", err)
		_ = emit(Event{Type: EventError, Code: "INTERNAL_ERROR", Message: "failed to persist response"})
		return
	}

	if !streamed {
		if err := emit(Event{Type: EventChunk, Content: result.content}); err != nil {
			return
		}
	}

	_ = emit(Event{
		Type:           EventComplete,
		ConversationID: turn.Conversation.ID,
		Model:          result.model,
		Usage:          &UsagePayload{InputTokens: result.usage.InputTokens, OutputTokens: result.usage.OutputTokens},
		CostUSD:        cost,
	})
}

// turnResult 单次模型调用的聚合结果
type turnResult struct {
	content string
	model   string
	usage   llm.Usage
}

// streamTurn 流式调用模型并逐块下发
// 用量在整个事件流上累计，仅在流结束后随 complete 事件下发一次
func (s *Service) streamTurn(ctx context.Context, turn *Turn, emit EmitFunc) (*turnResult, bool, error) {
	body, err := s.llm.CallStream(ctx, &llm.Request{
		Model:     turn.Model,
		System:    turn.System,
		Messages:  turn.Messages,
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, false, err
	}
	defer body.Close()

	result := &turnResult{}
	emitted := false

	scanner := llm.NewStreamScanner(body)
	for {
		event, err := scanner.Next()
		if err == io.EOF {
			return result, emitted, nil
		}
		if err != nil {
			return nil, emitted, err
		}

		switch event.Type {
		case llm.EventMessageStart:
			result.model = event.Model
			result.usage.InputTokens = event.Usage.InputTokens
		case llm.EventContentBlockDelta:
			result.content += event.Text
			if err := emit(Event{Type: EventChunk, Content: event.Text}); err != nil {
				return nil, true, err
			}
			emitted = true
		case llm.EventMessageDelta:
			// message_delta 携带累计输出用量，取最新值
			if event.Usage.OutputTokens > 0 {
				result.usage.OutputTokens = event.Usage.OutputTokens
			}
		case llm.EventMessageStop:
			return result, emitted, nil
		}
	}
}

// resolveConversation 载入已有会话或新建会话
// 已有会话的 context 与调用方 context 合并，调用方字段覆盖已存字段
func (s *Service) resolveConversation(userID, orgID string, req *Request) (*model.Conversation, error) {
	if req.ConversationID == "" {
		conv := &model.Conversation{
			ID:             uuid.New().String(),
			UserID:         userID,
			OrganizationID: orgID,
			Context:        model.JSON(req.Context),
		}
		if err := s.repo.CreateConversation(conv); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}

	conv, err := s.repo.GetConversationByID(req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.UserID != userID {
		return nil, ErrForbidden
	}

	if len(req.Context) > 0 {
		merged := model.JSON{}
		for k, v := range conv.Context {
			merged[k] = v
		}
		for k, v := range req.Context {
			merged[k] = v
		}
		conv.Context = merged
		if err := s.repo.UpdateConversation(conv); err != nil {
			return nil, fmt.Errorf("failed to merge conversation context: %w", err)
		}
	}

	return conv, nil
}

// appendMessage 追加消息并返回会话消息总数
// 当追加后恰好存在两条消息时设置一次标题（取首条消息内容）。
// 同一会话的并发轮次可能都观察到相同计数并重复覆盖标题，属已接受的竞态
func (s *Service) appendMessage(msg *model.Message) (int64, error) {
	if err := s.repo.CreateMessage(msg); err != nil {
		return 0, err
	}

	count, err := s.repo.CountMessages(msg.ConversationID)
	if err != nil {
		return 0, err
	}

	if count == 2 {
		first, err := s.repo.GetFirstMessage(msg.ConversationID)
		if err == nil && first != nil {
			if err := s.repo.SetTitle(msg.ConversationID, deriveTitle(first.Content)); err != nil {
				log.Printf("failed to set conversation title: %v", err)
			}
		}
	}

	return count, nil
}

// deriveTitle 从首条消息派生标题
func deriveTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	const maxTitleLength = 50
	if utf8.RuneCountInString(title) > maxTitleLength {
		runes := []rune(title)
		title = string(runes[:maxTitleLength]) + "..."
	}
	return title
}

// ListConversations 列出用户自己的会话
func (s *Service) ListConversations(ctx context.Context, userID string, page, size int) ([]*model.Conversation, int64, error) {
	return s.repo.ListConversations(userID, (page-1)*size, size)
}

// GetConversation 获取会话及其全部消息，校验所有权
func (s *Service) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, err := s.repo.GetConversationByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.UserID != userID {
		return nil, ErrForbidden
	}

	messages, err := s.repo.GetMessagesByConversationID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	conv.Messages = make([]model.Message, 0, len(messages))
	for _, m := range messages {
		conv.Messages = append(conv.Messages, *m)
	}
	return conv, nil
}
