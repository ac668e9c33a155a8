package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Wildcard 订阅所有消息类型
const Wildcard = "*"

// LocalTransport 进程内同步传输，Publish 在调用方 goroutine 中依次执行处理器
type LocalTransport struct {
	handlers map[string][]IMessageHandler
	mutex    sync.RWMutex
	running  bool
}

// NewLocalTransport 创建一个同步传输实例
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		handlers: make(map[string][]IMessageHandler),
	}
}

// Publish 立即、同步地发布消息
func (t *LocalTransport) Publish(ctx context.Context, message IMessage) error {
	t.mutex.RLock()
	if !t.running {
		t.mutex.RUnlock()
		return fmt.Errorf("local transport is not running")
	}
	exact := t.handlers[message.GetType()]
	wildcard := t.handlers[Wildcard]
	handlers := make([]IMessageHandler, 0, len(exact)+len(wildcard))
	handlers = append(handlers, exact...)
	handlers = append(handlers, wildcard...)
	t.mutex.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("message handling completed with %d errors: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// PublishAll 批量发布消息（同步执行）
func (t *LocalTransport) PublishAll(ctx context.Context, messages []IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return fmt.Errorf("failed to publish message %s: %w", message.GetID(), err)
		}
	}
	return nil
}

// Subscribe 订阅消息处理器，messageType 为 Wildcard 时接收所有消息
func (t *LocalTransport) Subscribe(messageType string, handler IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	return nil
}

// Unsubscribe 取消订阅消息处理器
func (t *LocalTransport) Unsubscribe(messageType string, handler IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	handlers, ok := t.handlers[messageType]
	if !ok {
		return fmt.Errorf("no handlers for message type %s", messageType)
	}
	for i, h := range handlers {
		if h == handler {
			t.handlers[messageType] = append(handlers[:i], handlers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("handler not found for message type %s", messageType)
}

// Start 启动传输层
func (t *LocalTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.running {
		return fmt.Errorf("local transport is already running")
	}
	t.running = true
	return nil
}

// Close 关闭传输层
func (t *LocalTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.running {
		return fmt.Errorf("local transport is not running")
	}
	t.running = false
	return nil
}

// Stats 返回统计信息
func (t *LocalTransport) Stats() TransportStats {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	handlerCount := 0
	messageTypes := make([]string, 0, len(t.handlers))
	for mt, h := range t.handlers {
		messageTypes = append(messageTypes, mt)
		handlerCount += len(h)
	}
	sort.Strings(messageTypes)

	return TransportStats{
		Running:      t.running,
		HandlerCount: handlerCount,
		MessageTypes: messageTypes,
	}
}
