// Package rpc 提供面向对象服务的远程方法代理与最小会话支持
package rpc

import (
	"context"
	"sync"

	"oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/transport"
	"oebrowse/validation"
)

// Client 持有传输通道、各数据库的凭据与共享的会话上下文
type Client struct {
	invoker transport.Invoker
	context *Context
	logger  logging.Logger

	mu          sync.Mutex
	credentials map[string]*Credentials
}

// NewClient 基于任意 Invoker 创建客户端
func NewClient(invoker transport.Invoker) *Client {
	return &Client{
		invoker:     invoker,
		context:     NewContext(),
		logger:      logging.Component("rpc"),
		credentials: make(map[string]*Credentials),
	}
}

// Dial 使用帧传输创建客户端；连接在每次调用时才建立
func Dial(cfg transport.Config) (*Client, error) {
	conn, err := transport.NewConn(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// Invoker 返回底层传输
func (c *Client) Invoker() transport.Invoker { return c.invoker }

// Context 返回共享的会话上下文
func (c *Client) Context() *Context { return c.context }

// Credentials 返回数据库对应的凭据，不存在时创建空凭据
func (c *Client) Credentials(database string) *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, ok := c.credentials[database]
	if !ok {
		cred = &Credentials{}
		c.credentials[database] = cred
	}
	return cred
}

// Execute 发起原始调用 (domain, method, args...)
func (c *Client) Execute(ctx context.Context, domain, method string, args ...any) (any, error) {
	if err := validation.ValidateDomain(domain); err != nil {
		return nil, err
	}
	message := append([]any{domain, method}, args...)
	return c.invoker.Call(ctx, message...)
}

// Login 登录数据库；成功时保存用户标识并重新加载会话上下文
func (c *Client) Login(ctx context.Context, database, user, password string) (bool, error) {
	if err := validation.ValidateRequired(database, "数据库"); err != nil {
		return false, err
	}

	cred := c.Credentials(database)
	cred.Set(0, user, password)

	result, err := c.Execute(ctx, "common", "login", database, user, password)
	if err != nil {
		return false, err
	}
	uid, ok := transport.AsInt64(result)
	if !ok || uid <= 0 {
		c.logger.Info(ctx, "登录被拒绝", logging.String("database", database), logging.String("user", user))
		return false, nil
	}

	cred.Set(uid, user, password)
	if err := c.context.Reload(ctx, c.invoker, database, uid, password); err != nil {
		return false, errors.Wrap(ctx, err, errors.GetErrorCode(err), "加载会话上下文失败")
	}
	c.logger.Debug(ctx, "登录成功", logging.String("database", database), logging.Int64("uid", uid))
	return true, nil
}

// ListDatabases 列出服务端的数据库
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	result, err := c.Execute(ctx, "db", "list")
	if err != nil {
		return nil, err
	}
	items, ok := transport.AsList(result)
	if !ok {
		return nil, unexpected("list", result)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := transport.AsString(item); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

// Proxy 创建绑定到模型的远程方法代理
func (c *Client) Proxy(database, model string) *ObjectProxy {
	return NewObjectProxy(c.invoker, database, model, c.Credentials(database), c.context)
}
