// Package messaging 提供记录变更事件的消息抽象
package messaging

import (
	"time"

	"github.com/google/uuid"
)

// 记录变更事件类型
const (
	EventRecordCreated = "record.created"
	EventRecordWritten = "record.written"
)

// IMessage 消息接口
type IMessage interface {
	// GetID 获取消息ID
	GetID() string

	// GetType 获取消息类型
	GetType() string

	// GetTimestamp 获取时间戳
	GetTimestamp() time.Time

	// GetPayload 获取消息数据
	GetPayload() interface{}

	// GetMetadata 获取元数据
	GetMetadata() map[string]interface{}
}

// Message 消息基础实现
type Message struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   interface{}            `json:"payload"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// GetID 获取消息ID
func (m *Message) GetID() string {
	return m.ID
}

// GetType 获取消息类型
func (m *Message) GetType() string {
	return m.Type
}

// GetTimestamp 获取时间戳
func (m *Message) GetTimestamp() time.Time {
	return m.Timestamp
}

// GetPayload 获取消息数据
func (m *Message) GetPayload() interface{} {
	return m.Payload
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata() map[string]interface{} {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	return m.Metadata
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key string, value interface{}) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
}

// NewMessage 创建新消息，ID 为随机 UUID
func NewMessage(messageType string, data interface{}) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      messageType,
		Timestamp: time.Now(),
		Payload:   data,
		Metadata:  make(map[string]interface{}),
	}
}

// RecordChange 记录保存后发布的事件载荷
type RecordChange struct {
	Database string   `json:"database"`
	Model    string   `json:"model"`
	ID       int64    `json:"id"`
	Fields   []string `json:"fields"`
}

// NewRecordEvent 构造记录变更事件
func NewRecordEvent(eventType string, change RecordChange) *Message {
	msg := NewMessage(eventType, change)
	msg.SetMetadata("database", change.Database)
	msg.SetMetadata("model", change.Model)
	return msg
}
