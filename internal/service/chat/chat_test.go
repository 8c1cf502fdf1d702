// Package chat 提供对话服务单元测试
package chat

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ashwinyue/vault-ai/internal/config"
	"github.com/ashwinyue/vault-ai/internal/model"
	"github.com/ashwinyue/vault-ai/internal/service/llm"
)

// mockConversationRepository Mock Conversation Repository
type mockConversationRepository struct {
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
	titleCalls    map[string]int
	createError   error
	getError      error
	msgError      error
	seq           int
}

func newMockRepo() *mockConversationRepository {
	return &mockConversationRepository{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
		titleCalls:    make(map[string]int),
	}
}

func (m *mockConversationRepository) CreateConversation(conv *model.Conversation) error {
	if m.createError != nil {
		return m.createError
	}
	m.conversations[conv.ID] = conv
	return nil
}

func (m *mockConversationRepository) GetConversationByID(id string) (*model.Conversation, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	conv, ok := m.conversations[id]
	if !ok {
		return nil, nil
	}
	return conv, nil
}

func (m *mockConversationRepository) ListConversations(userID string, offset, limit int) ([]*model.Conversation, int64, error) {
	var result []*model.Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			result = append(result, conv)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockConversationRepository) UpdateConversation(conv *model.Conversation) error {
	m.conversations[conv.ID] = conv
	return nil
}

func (m *mockConversationRepository) SetTitle(id, title string) error {
	m.titleCalls[id]++
	if conv, ok := m.conversations[id]; ok {
		conv.Title = &title
	}
	return nil
}

func (m *mockConversationRepository) CreateMessage(msg *model.Message) error {
	if m.msgError != nil {
		return m.msgError
	}
	m.seq++
	msg.CreatedAt = time.Unix(int64(m.seq), 0)
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *mockConversationRepository) CountMessages(conversationID string) (int64, error) {
	return int64(len(m.messages[conversationID])), nil
}

func (m *mockConversationRepository) sorted(conversationID string) []*model.Message {
	msgs := append([]*model.Message{}, m.messages[conversationID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs
}

func (m *mockConversationRepository) GetRecentMessages(conversationID string, limit int) ([]*model.Message, error) {
	msgs := m.sorted(conversationID)
	var result []*model.Message
	for i := len(msgs) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, msgs[i])
	}
	return result, nil
}

func (m *mockConversationRepository) GetFirstMessage(conversationID string) (*model.Message, error) {
	msgs := m.sorted(conversationID)
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[0], nil
}

func (m *mockConversationRepository) GetMessagesByConversationID(conversationID string) ([]*model.Message, error) {
	return m.sorted(conversationID), nil
}

// mockLLMClient Mock 模型客户端
type mockLLMClient struct {
	response    *llm.Response
	callError   error
	streamBody  string
	streamError error
	calls       int
	streamCalls int
	lastRequest *llm.Request
}

func (m *mockLLMClient) Call(_ context.Context, req *llm.Request) (*llm.Response, error) {
	m.calls++
	m.lastRequest = req
	if m.callError != nil {
		return nil, m.callError
	}
	return m.response, nil
}

func (m *mockLLMClient) CallStream(_ context.Context, req *llm.Request) (io.ReadCloser, error) {
	m.streamCalls++
	m.lastRequest = req
	if m.streamError != nil {
		return nil, m.streamError
	}
	return io.NopCloser(strings.NewReader(m.streamBody)), nil
}

func testAIConfig() *config.AIConfig {
	return &config.AIConfig{
		FastModel:  "claude-3-5-haiku-latest",
		SmartModel: "claude-sonnet-4-20250514",
		MaxTokens:  1024,
	}
}

func defaultResponse() *llm.Response {
	return &llm.Response{
		Model:      "claude-3-5-haiku-latest",
		Content:    "here is your answer",
		StopReason: "end_turn",
		Usage:      llm.Usage{InputTokens: 20, OutputTokens: 10},
	}
}

func collect(events *[]Event) EmitFunc {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func TestPrepareTurn_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), &mockLLMClient{}, testAIConfig())
	ctx := context.Background()

	if _, err := svc.PrepareTurn(ctx, "u1", "o1", &Request{Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}

	long := strings.Repeat("a", MaxMessageLength+1)
	if _, err := svc.PrepareTurn(ctx, "u1", "o1", &Request{Message: long}); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestPrepareTurn_CreatesConversationAndPersistsUserMessage(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockLLMClient{}, testAIConfig())

	turn, err := svc.PrepareTurn(context.Background(), "u1", "o1", &Request{Message: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conv := turn.Conversation
	if conv.UserID != "u1" || conv.OrganizationID != "o1" {
		t.Errorf("unexpected ownership: %+v", conv)
	}
	msgs := repo.messages[conv.ID]
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser || msgs[0].Content != "hi" {
		t.Fatalf("expected persisted user message, got %+v", msgs)
	}
	if len(turn.Messages) != 1 || turn.Messages[0].Content != "hi" {
		t.Errorf("expected prompt to end with user message, got %+v", turn.Messages)
	}
}

func TestPrepareTurn_OwnershipForbidden(t *testing.T) {
	repo := newMockRepo()
	repo.conversations["c1"] = &model.Conversation{ID: "c1", UserID: "other"}
	svc := NewService(repo, &mockLLMClient{}, testAIConfig())

	_, err := svc.PrepareTurn(context.Background(), "u1", "o1", &Request{Message: "hi", ConversationID: "c1"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// 所有权校验失败时不得写入任何消息
	if len(repo.messages["c1"]) != 0 {
		t.Error("expected no messages written on ownership failure")
	}
}

func TestPrepareTurn_NotFound(t *testing.T) {
	svc := NewService(newMockRepo(), &mockLLMClient{}, testAIConfig())

	_, err := svc.PrepareTurn(context.Background(), "u1", "o1", &Request{Message: "hi", ConversationID: "missing"})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestPrepareTurn_MergesContext(t *testing.T) {
	repo := newMockRepo()
	repo.conversations["c1"] = &model.Conversation{
		ID:      "c1",
		UserID:  "u1",
		Context: model.JSON{"organizationName": "Acme", "projectName": "old"},
	}
	svc := NewService(repo, &mockLLMClient{}, testAIConfig())

	turn, err := svc.PrepareTurn(context.Background(), "u1", "o1", &Request{
		Message:        "hi",
		ConversationID: "c1",
		Context:        map[string]interface{}{"projectName": "new"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 调用方字段覆盖已存字段，未提及的字段保留
	got := repo.conversations["c1"].Context
	if got["projectName"] != "new" {
		t.Errorf("expected caller field to win, got %v", got["projectName"])
	}
	if got["organizationName"] != "Acme" {
		t.Errorf("expected stored field preserved, got %v", got["organizationName"])
	}
	if !strings.Contains(turn.System, "Acme") || !strings.Contains(turn.System, "new") {
		t.Errorf("expected merged context in system prompt, got %q", turn.System)
	}
}

func TestAppendMessage_TitleSetOnce(t *testing.T) {
	repo := newMockRepo()
	repo.conversations["c1"] = &model.Conversation{ID: "c1", UserID: "u1"}
	svc := NewService(repo, &mockLLMClient{}, testAIConfig())

	// 零条历史：不触发
	if _, err := svc.appendMessage(&model.Message{ID: "m1", ConversationID: "c1", Role: model.RoleUser, Content: "how do I rotate a key"}); err != nil {
		t.Fatal(err)
	}
	if repo.titleCalls["c1"] != 0 {
		t.Errorf("expected no title call after first message, got %d", repo.titleCalls["c1"])
	}

	// 恰好一条历史：触发一次
	if _, err := svc.appendMessage(&model.Message{ID: "m2", ConversationID: "c1", Role: model.RoleAssistant, Content: "sure"}); err != nil {
		t.Fatal(err)
	}
	if repo.titleCalls["c1"] != 1 {
		t.Errorf("expected exactly one title call, got %d", repo.titleCalls["c1"])
	}
	if repo.conversations["c1"].Title == nil || *repo.conversations["c1"].Title != "how do I rotate a key" {
		t.Errorf("expected title from first message, got %v", repo.conversations["c1"].Title)
	}

	// 两条以上历史：不再触发
	if _, err := svc.appendMessage(&model.Message{ID: "m3", ConversationID: "c1", Role: model.RoleUser, Content: "thanks"}); err != nil {
		t.Fatal(err)
	}
	if repo.titleCalls["c1"] != 1 {
		t.Errorf("expected title call count unchanged, got %d", repo.titleCalls["c1"])
	}
}

func TestDeriveTitle_Truncates(t *testing.T) {
	long := strings.Repeat("secret rotation ", 10)
	title := deriveTitle(long)
	if len([]rune(title)) != 53 {
		t.Errorf("expected 50 runes plus ellipsis, got %d", len([]rune(title)))
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("expected ellipsis suffix, got %q", title)
	}
}

func TestSelectModel(t *testing.T) {
	svc := NewService(newMockRepo(), &mockLLMClient{}, testAIConfig())

	tests := []struct {
		message   string
		turnCount int
		want      string
	}{
		{"What is an API key?", 1, "claude-3-5-haiku-latest"},
		{"Explain environments", 2, "claude-3-5-haiku-latest"},
		{"Give me step by step instructions to compare providers", 1, "claude-sonnet-4-20250514"},
		{"Recommend a rotation policy", 1, "claude-sonnet-4-20250514"},
		{"hello", 1, "claude-3-5-haiku-latest"},
		{"hello", 11, "claude-sonnet-4-20250514"},
	}
	for _, tt := range tests {
		if got := svc.SelectModel(tt.message, tt.turnCount); got != tt.want {
			t.Errorf("SelectModel(%q, %d) = %s, want %s", tt.message, tt.turnCount, got, tt.want)
		}
	}
}

func TestCalculateCost_ExactAtOneMillionTokens(t *testing.T) {
	for name, pricing := range pricingTable {
		usage := llm.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
		if got := CalculateCost(name, usage); got != pricing.Input+pricing.Output {
			t.Errorf("%s: expected %v, got %v", name, pricing.Input+pricing.Output, got)
		}
	}
}

func TestCalculateCost_UnknownModel(t *testing.T) {
	if got := CalculateCost("mystery-model", llm.Usage{InputTokens: 100, OutputTokens: 100}); got != 0 {
		t.Errorf("expected 0 for unknown model, got %v", got)
	}
}

func TestExecuteTurn_NonStreaming(t *testing.T) {
	repo := newMockRepo()
	client := &mockLLMClient{response: defaultResponse()}
	svc := NewService(repo, client, testAIConfig())
	ctx := context.Background()

	turn, err := svc.PrepareTurn(ctx, "u1", "o1", &Request{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	var events []Event
	svc.ExecuteTurn(ctx, turn, collect(&events))

	if len(events) != 3 {
		t.Fatalf("expected start/chunk/complete, got %+v", events)
	}
	if events[0].Type != EventStart || events[0].ConversationID != turn.Conversation.ID {
		t.Errorf("unexpected start event: %+v", events[0])
	}
	if events[1].Type != EventChunk || events[1].Content != "here is your answer" {
		t.Errorf("unexpected chunk event: %+v", events[1])
	}
	complete := events[2]
	if complete.Type != EventComplete || complete.Usage == nil {
		t.Fatalf("unexpected complete event: %+v", complete)
	}
	if complete.Usage.InputTokens != 20 || complete.Usage.OutputTokens != 10 {
		t.Errorf("unexpected usage: %+v", complete.Usage)
	}

	// 助手消息携带实际模型与用量
	msgs := repo.sorted(turn.Conversation.ID)
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(msgs))
	}
	assistant := msgs[1]
	if assistant.Role != model.RoleAssistant || assistant.Model != "claude-3-5-haiku-latest" {
		t.Errorf("unexpected assistant message: %+v", assistant)
	}
	if assistant.InputTokens != 20 || assistant.OutputTokens != 10 || assistant.CostUSD <= 0 {
		t.Errorf("expected usage metadata on assistant message: %+v", assistant)
	}
}

func TestExecuteTurn_StreamingEmitsChunks(t *testing.T) {
	repo := newMockRepo()
	client := &mockLLMClient{streamBody: "data: {\"type\":\"message_start\",\"message\":{\"model\":\"claude-3-5-haiku-latest\",\"usage\":{\"input_tokens\":9}}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n" +
		"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n" +
		"data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":4}}\n\n" +
		"data: {\"type\":\"message_stop\"}\n\n"}
	svc := NewService(repo, client, testAIConfig())
	ctx := context.Background()

	turn, err := svc.PrepareTurn(ctx, "u1", "o1", &Request{Message: "hi", Stream: true})
	if err != nil {
		t.Fatal(err)
	}

	var events []Event
	svc.ExecuteTurn(ctx, turn, collect(&events))

	if client.calls != 0 {
		t.Errorf("expected no non-streaming call, got %d", client.calls)
	}
	if len(events) != 4 {
		t.Fatalf("expected start + 2 chunks + complete, got %+v", events)
	}
	if events[1].Content != "Hel" || events[2].Content != "lo" {
		t.Errorf("unexpected chunks: %+v", events)
	}
	complete := events[3]
	if complete.Usage.InputTokens != 9 || complete.Usage.OutputTokens != 4 {
		t.Errorf("expected accumulated usage flushed once, got %+v", complete.Usage)
	}

	msgs := repo.sorted(turn.Conversation.ID)
	if msgs[1].Content != "Hello" {
		t.Errorf("expected aggregated assistant content, got %q", msgs[1].Content)
	}
}

func TestExecuteTurn_StreamFailureFallsBackOnce(t *testing.T) {
	repo := newMockRepo()
	client := &mockLLMClient{
		streamError: errors.New("connection reset"),
		response:    defaultResponse(),
	}
	svc := NewService(repo, client, testAIConfig())
	ctx := context.Background()

	turn, err := svc.PrepareTurn(ctx, "u1", "o1", &Request{Message: "hi", Stream: true})
	if err != nil {
		t.Fatal(err)
	}

	var events []Event
	svc.ExecuteTurn(ctx, turn, collect(&events))

	if client.streamCalls != 1 {
		t.Errorf("expected exactly one streaming attempt, got %d", client.streamCalls)
	}
	if client.calls != 1 {
		t.Errorf("expected one non-streaming fallback call, got %d", client.calls)
	}
	if len(events) != 3 || events[1].Type != EventChunk || events[2].Type != EventComplete {
		t.Fatalf("expected full answer via fallback, got %+v", events)
	}
}

func TestExecuteTurn_ModelFailureEmitsErrorEvent(t *testing.T) {
	repo := newMockRepo()
	client := &mockLLMClient{callError: errors.New("boom")}
	svc := NewService(repo, client, testAIConfig())
	ctx := context.Background()

	turn, err := svc.PrepareTurn(ctx, "u1", "o1", &Request{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	var events []Event
	svc.ExecuteTurn(ctx, turn, collect(&events))

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("expected error event, got %+v", last)
	}
	// 用户消息已持久化，重试不会丢数据
	if len(repo.sorted(turn.Conversation.ID)) != 1 {
		t.Error("expected user message to survive model failure")
	}
}
