package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oebrowse/logging"
)

// HandlerFunc 是一个函数类型，用于处理消息。它是中间件链中的基本执行单元
type HandlerFunc func(ctx context.Context, message IMessage) error

// IMiddleware 定义了消息总线中间件的接口
type IMiddleware interface {
	Handle(ctx context.Context, message IMessage, next HandlerFunc) error
	Name() string
}

// MessageBus 在 Transport 之上叠加中间件的发布器
type MessageBus struct {
	transport   Transport
	middlewares []IMiddleware
	mutex       sync.RWMutex
}

// NewMessageBus 创建消息总线
func NewMessageBus(transport Transport) *MessageBus {
	return &MessageBus{
		transport:   transport,
		middlewares: make([]IMiddleware, 0),
	}
}

// Use 注册中间件
func (bus *MessageBus) Use(middleware IMiddleware) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.middlewares = append(bus.middlewares, middleware)
}

// Subscribe 订阅消息处理器
func (bus *MessageBus) Subscribe(messageType string, handler IMessageHandler) error {
	return bus.transport.Subscribe(messageType, handler)
}

// Publish 发布消息，并在发送到 Transport 前执行中间件
func (bus *MessageBus) Publish(ctx context.Context, message IMessage) error {
	return bus.executeMiddlewares(ctx, message, bus.transport.Publish)
}

// PublishAll 发布多个消息，任一中间件失败则整批不发送
func (bus *MessageBus) PublishAll(ctx context.Context, messages []IMessage) error {
	if len(messages) == 0 {
		return nil
	}

	batched := make([]IMessage, 0, len(messages))
	for _, message := range messages {
		err := bus.executeMiddlewares(ctx, message, func(ctx context.Context, msg IMessage) error {
			batched = append(batched, msg)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to publish message %s: %w", message.GetID(), err)
		}
	}

	if err := bus.transport.PublishAll(ctx, batched); err != nil {
		return fmt.Errorf("failed to publish batch (%d messages): %w", len(batched), err)
	}
	return nil
}

// executeMiddlewares 构建并执行中间件链
func (bus *MessageBus) executeMiddlewares(ctx context.Context, message IMessage, finalHandler HandlerFunc) error {
	bus.mutex.RLock()
	middlewares := bus.middlewares
	bus.mutex.RUnlock()

	next := finalHandler
	for i := len(middlewares) - 1; i >= 0; i-- {
		middleware := middlewares[i]
		currentNext := next
		next = func(ctx context.Context, msg IMessage) error {
			return middleware.Handle(ctx, msg, currentNext)
		}
	}
	return next(ctx, message)
}

// LoggingMiddleware 记录每条发布的消息
type LoggingMiddleware struct {
	Logger logging.Logger
}

// Name 中间件名称
func (LoggingMiddleware) Name() string { return "logging" }

// Handle 记录消息后交给下一环
func (mw LoggingMiddleware) Handle(ctx context.Context, message IMessage, next HandlerFunc) error {
	logger := mw.Logger
	if logger == nil {
		logger = logging.Component("messaging")
	}
	start := time.Now()
	err := next(ctx, message)
	fields := []logging.Field{
		logging.String("message_id", message.GetID()),
		logging.String("type", message.GetType()),
		logging.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		logger.Warn(ctx, "publish failed", append(fields, logging.Error(err))...)
		return err
	}
	logger.Debug(ctx, "published", fields...)
	return nil
}
