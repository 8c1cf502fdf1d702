package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 消息角色常量
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// JSON jsonb 列的通用类型
type JSON map[string]interface{}

// Value 实现 driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSON value")
	}
	return json.Unmarshal(bytes, j)
}

// GormDataType 指定列类型
func (JSON) GormDataType() string {
	return "jsonb"
}

// Conversation 对话会话
// Context 为合并式 JSON 上下文（组织名、项目名、已有密钥名等），
// 每轮对话中调用方字段覆盖已存字段
type Conversation struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string    `gorm:"index;type:varchar(36);not null" json:"user_id"`
	OrganizationID string    `gorm:"index;type:varchar(36)" json:"organization_id"`
	Title          *string   `gorm:"size:255" json:"title"`
	Context        JSON      `gorm:"type:jsonb" json:"context"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Messages       []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// Message 对话消息，写入后不可变
// 助手消息必须携带本次调用实际使用的模型与用量，用于计费审计
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"index;type:varchar(36);not null" json:"conversation_id"`
	Role           string    `gorm:"size:20;index" json:"role"` // user, assistant, system
	Content        string    `gorm:"type:text" json:"content"`
	Model          string    `gorm:"size:64" json:"model,omitempty"`
	InputTokens    int       `gorm:"default:0" json:"input_tokens"`
	OutputTokens   int       `gorm:"default:0" json:"output_tokens"`
	CostUSD        float64   `gorm:"default:0" json:"cost_usd"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

func (Message) TableName() string {
	return "messages"
}
