package messaging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/logging"
)

type mockTransport struct {
	published     []IMessage
	batch         [][]IMessage
	subscribed    map[string]int
	shouldError   error
	orderRecorder *[]string
}

func newMockTransport() *mockTransport {
	return &mockTransport{subscribed: make(map[string]int)}
}

func (m *mockTransport) Publish(ctx context.Context, message IMessage) error {
	if m.orderRecorder != nil {
		*m.orderRecorder = append(*m.orderRecorder, "transport")
	}
	m.published = append(m.published, message)
	return m.shouldError
}

func (m *mockTransport) PublishAll(ctx context.Context, messages []IMessage) error {
	m.batch = append(m.batch, messages)
	return m.shouldError
}

func (m *mockTransport) Subscribe(messageType string, handler IMessageHandler) error {
	m.subscribed[messageType]++
	return nil
}

func (m *mockTransport) Unsubscribe(messageType string, handler IMessageHandler) error { return nil }
func (m *mockTransport) Start(ctx context.Context) error                               { return nil }
func (m *mockTransport) Close() error                                                  { return nil }
func (m *mockTransport) Stats() TransportStats                                         { return TransportStats{} }

type recordingMiddleware struct {
	name  string
	order *[]string
	err   error
}

func (mw recordingMiddleware) Handle(ctx context.Context, message IMessage, next HandlerFunc) error {
	*mw.order = append(*mw.order, mw.name)
	if mw.err != nil {
		return mw.err
	}
	return next(ctx, message)
}

func (mw recordingMiddleware) Name() string { return mw.name }

func TestMessageBus_PublishWithMiddleware(t *testing.T) {
	order := make([]string, 0, 3)
	transport := newMockTransport()
	transport.orderRecorder = &order

	bus := NewMessageBus(transport)
	bus.Use(recordingMiddleware{name: "mw1", order: &order})
	bus.Use(recordingMiddleware{name: "mw2", order: &order})

	msg := &Message{ID: "msg-1", Type: EventRecordWritten}
	require.NoError(t, bus.Publish(context.Background(), msg))

	assert.Equal(t, []string{"mw1", "mw2", "transport"}, order)
	require.Len(t, transport.published, 1)
	assert.Same(t, msg, transport.published[0])
}

func TestMessageBus_PublishAllMiddlewareError(t *testing.T) {
	order := make([]string, 0, 1)
	transport := newMockTransport()

	mwErr := errors.New("middleware failed")
	bus := NewMessageBus(transport)
	bus.Use(recordingMiddleware{name: "mw-error", order: &order, err: mwErr})

	err := bus.PublishAll(context.Background(), []IMessage{&Message{ID: "msg-err", Type: "test"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, mwErr)
	assert.Empty(t, transport.batch)
	assert.Equal(t, []string{"mw-error"}, order)
}

func TestMessageBus_PublishAllSuccess(t *testing.T) {
	transport := newMockTransport()
	bus := NewMessageBus(transport)

	msg1 := &Message{ID: "msg-1", Type: "t"}
	msg2 := &Message{ID: "msg-2", Type: "t"}
	require.NoError(t, bus.PublishAll(context.Background(), []IMessage{msg1, msg2}))

	require.Len(t, transport.batch, 1)
	assert.Equal(t, []IMessage{msg1, msg2}, transport.batch[0])
	assert.NoError(t, bus.PublishAll(context.Background(), nil))
	assert.Len(t, transport.batch, 1)
}

func TestMessageBus_SubscribeDelegation(t *testing.T) {
	transport := newMockTransport()
	bus := NewMessageBus(transport)
	var n int
	require.NoError(t, bus.Subscribe(EventRecordCreated, counter(&n)))
	assert.Equal(t, 1, transport.subscribed[EventRecordCreated])
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	transport := newMockTransport()
	transport.shouldError = errors.New("down")

	bus := NewMessageBus(transport)
	bus.Use(LoggingMiddleware{Logger: logging.NewWriterLogger(&buf, "", logging.DebugLevel)})

	err := bus.Publish(context.Background(), &Message{ID: "m-1", Type: EventRecordCreated})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "publish failed")
	assert.Contains(t, buf.String(), "m-1")
}
