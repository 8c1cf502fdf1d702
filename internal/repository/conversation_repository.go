package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/vault-ai/internal/model"
)

// conversationRepositoryImpl 对话数据访问
type conversationRepositoryImpl struct {
	db *gorm.DB
}

// NewConversationRepository 创建对话仓库
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepositoryImpl{db: db}
}

// CreateConversation 创建会话
func (r *conversationRepositoryImpl) CreateConversation(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// GetConversationByID 获取会话，不存在时返回 (nil, nil)
func (r *conversationRepositoryImpl) GetConversationByID(id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations 列出用户的会话
func (r *conversationRepositoryImpl) ListConversations(userID string, offset, limit int) ([]*model.Conversation, int64, error) {
	var convs []*model.Conversation
	var total int64

	query := r.db.Model(&model.Conversation{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&convs).Error
	return convs, total, err
}

// UpdateConversation 更新会话
func (r *conversationRepositoryImpl) UpdateConversation(conv *model.Conversation) error {
	return r.db.Save(conv).Error
}

// SetTitle 设置会话标题
func (r *conversationRepositoryImpl) SetTitle(id, title string) error {
	return r.db.Model(&model.Conversation{}).Where("id = ?", id).Update("title", title).Error
}

// CreateMessage 创建消息
func (r *conversationRepositoryImpl) CreateMessage(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// CountMessages 统计会话消息数
func (r *conversationRepositoryImpl) CountMessages(conversationID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error
	return count, err
}

// GetRecentMessages 获取会话最近的 N 条消息（时间倒序）
func (r *conversationRepositoryImpl) GetRecentMessages(conversationID string, limit int) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// GetFirstMessage 获取会话的第一条消息，用于生成标题
func (r *conversationRepositoryImpl) GetFirstMessage(conversationID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessagesByConversationID 获取会话全部消息（时间升序）
func (r *conversationRepositoryImpl) GetMessagesByConversationID(conversationID string) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}
