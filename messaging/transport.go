package messaging

import (
	"context"
)

// IPublisher 事件发布接口，记录保存后通过它广播变更
type IPublisher interface {
	Publish(ctx context.Context, message IMessage) error
}

// Transport 消息传输接口
type Transport interface {
	IPublisher
	PublishAll(ctx context.Context, messages []IMessage) error
	Subscribe(messageType string, handler IMessageHandler) error
	Unsubscribe(messageType string, handler IMessageHandler) error
	Start(ctx context.Context) error
	Close() error
	Stats() TransportStats
}

// TransportStats 传输层统计信息
type TransportStats struct {
	Running      bool     `json:"running"`
	HandlerCount int      `json:"handler_count"`
	MessageTypes []string `json:"message_types"`
}
