package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/validation"
)

// Invoker 发起一次完整的请求/响应调用。
//
// message 是有序的调用描述：(调用域, 方法名, 方法参数...)。
type Invoker interface {
	Call(ctx context.Context, message ...any) (any, error)
}

// Config 连接配置
type Config struct {
	Host string
	Port int

	// DialTimeout 仅约束建连阶段，连接建立后读写不设超时
	DialTimeout time.Duration

	// Codec 载荷编解码器，默认 Pickle
	Codec Codec

	Logger logging.Logger
}

// Conn 每次调用新建一条连接的帧传输通道。
//
// Conn 本身无状态，可被多个调用方共享；每次 Call 独占自己的 net.Conn。
type Conn struct {
	cfg    Config
	addr   string
	logger logging.Logger
}

// NewConn 创建传输通道
func NewConn(cfg Config) (*Conn, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8070
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 500 * time.Millisecond
	}
	if cfg.Codec == nil {
		cfg.Codec = Pickle
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("transport")
	}
	if err := validation.ValidateAddress(cfg.Host, cfg.Port); err != nil {
		return nil, err
	}

	return &Conn{
		cfg:    cfg,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		logger: cfg.Logger,
	}, nil
}

// Addr 返回服务端地址
func (c *Conn) Addr() string {
	return c.addr
}

// Codec 返回当前编解码器
func (c *Conn) Codec() Codec {
	return c.cfg.Codec
}

// Exchange 一次调用独占的连接，Send 之后必须 Receive
type Exchange struct {
	conn  net.Conn
	codec Codec
}

// Send 建立新连接并发送调用描述
func (c *Conn) Send(ctx context.Context, message ...any) (*Exchange, error) {
	payload, err := c.cfg.Codec.Encode([]any{Tuple(message), nil})
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, errors.Normalize(err).(errors.IError).WithContext("addr", c.addr)
	}

	if err := WriteFrame(nc, payload, false); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return &Exchange{conn: nc, codec: c.cfg.Codec}, nil
}

// Receive 读取响应帧并关闭连接。
//
// 服务端异常以 *RemoteError 为 cause 的 REMOTE_ERROR 返回。
func (x *Exchange) Receive() (any, error) {
	defer x.conn.Close()

	payload, exception, err := ReadFrame(x.conn)
	if err != nil {
		return nil, err
	}
	return decodeResponse(x.codec, payload, exception)
}

func decodeResponse(codec Codec, payload []byte, exception bool) (any, error) {
	decoded, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	env, ok := AsList(decoded)
	if !ok || len(env) != 2 {
		return nil, errors.Errorf(errors.ErrCodeProtocol, "响应载荷应为二元组，实际为 %T", decoded)
	}

	trace, _ := AsString(env[1])
	if _, isExc := env[0].(*Exception); isExc || exception {
		return nil, NewRemoteError(env[0], trace)
	}
	return env[0], nil
}

// DecodeResponse 解码响应载荷，服务端异常包装为 REMOTE_ERROR
func DecodeResponse(codec Codec, payload []byte, exception bool, method string) (any, error) {
	result, err := decodeResponse(codec, payload, exception)
	if re, ok := err.(*RemoteError); ok {
		return nil, re.AsAppError(method)
	}
	return result, err
}

// Call 发送并等待响应
func (c *Conn) Call(ctx context.Context, message ...any) (any, error) {
	callID := uuid.NewString()
	start := time.Now()
	fields := []logging.Field{logging.String("call_id", callID)}
	if len(message) >= 2 {
		fields = append(fields, logging.Any("domain", message[0]), logging.Any("method", message[1]))
	}
	if method, ok := objectMethod(message); ok {
		fields = append(fields, logging.String("object_method", method))
	}

	x, err := c.Send(ctx, message...)
	if err != nil {
		c.logger.Warn(ctx, "发送失败", append(fields, logging.Error(err))...)
		return nil, err
	}

	result, err := x.Receive()
	fields = append(fields, logging.Duration("elapsed", time.Since(start)))
	if err != nil {
		if re, ok := err.(*RemoteError); ok {
			c.logger.Debug(ctx, "远程异常", append(fields, logging.String("type", re.Type))...)
			return nil, re.AsAppError(MethodName(message))
		}
		c.logger.Warn(ctx, "接收失败", append(fields, logging.Error(err))...)
		return nil, err
	}

	c.logger.Debug(ctx, "调用完成", fields...)
	return result, nil
}

// objectMethod 对 object execute 调用返回实际的模型方法名
// 报文形如 (object, execute, db, uid, password, model, method, ...)
func objectMethod(message []any) (string, bool) {
	if len(message) < 7 || message[0] != "object" || message[1] != "execute" {
		return "", false
	}
	s, ok := message[6].(string)
	return s, ok
}

// MethodName 调用描述对应的方法名，object execute 取模型方法名
func MethodName(message []any) string {
	if m, ok := objectMethod(message); ok {
		return m
	}
	if len(message) >= 2 {
		if s, ok := message[1].(string); ok {
			return s
		}
	}
	return ""
}
