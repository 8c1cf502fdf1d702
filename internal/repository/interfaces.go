// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import "github.com/ashwinyue/vault-ai/internal/model"

// ConversationRepository 对话数据访问接口
// 接口定义使 Service 层可以轻松 mock 进行单元测试。
// "未找到" 统一返回 (nil, nil)，调用方据此区分记录缺失与传输失败
type ConversationRepository interface {
	// 会话操作
	CreateConversation(conv *model.Conversation) error
	GetConversationByID(id string) (*model.Conversation, error)
	ListConversations(userID string, offset, limit int) ([]*model.Conversation, int64, error)
	UpdateConversation(conv *model.Conversation) error
	SetTitle(id, title string) error

	// 消息操作
	CreateMessage(msg *model.Message) error
	CountMessages(conversationID string) (int64, error)
	GetRecentMessages(conversationID string, limit int) ([]*model.Message, error)
	GetFirstMessage(conversationID string) (*model.Message, error)
	GetMessagesByConversationID(conversationID string) ([]*model.Message, error)
}

// 确保 conversationRepositoryImpl 实现了接口
var _ ConversationRepository = (*conversationRepositoryImpl)(nil)
