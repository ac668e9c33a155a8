package rpc

import (
	"context"
	"sync"

	"oebrowse/transport"
)

// Credentials 单个数据库的登录凭据
type Credentials struct {
	mu       sync.RWMutex
	uid      int64
	login    string
	password string
}

// Set 设置凭据，uid 为 0 表示尚未登录成功
func (c *Credentials) Set(uid int64, login, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid, c.login, c.password = uid, login, password
}

// UID 用户标识
func (c *Credentials) UID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

// Login 登录名
func (c *Credentials) Login() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.login
}

// Password 密码
func (c *Credentials) Password() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.password
}

// Connected 用户标识与密码均已设置
func (c *Credentials) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid > 0 && c.password != ""
}

// Context 随每次 object 调用透传的会话上下文（lang、tz 等）
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContext 创建空上下文
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set 设置上下文键
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get 读取上下文键
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// AsMap 返回上下文副本，作为调用的最后一个位置参数
func (c *Context) AsMap() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Reload 清空并从 res.users context_get 重新加载
func (c *Context) Reload(ctx context.Context, invoker transport.Invoker, database string, uid int64, password string) error {
	result, err := invoker.Call(ctx, "object", "execute", database, uid, password, "res.users", "context_get")
	if err != nil {
		return err
	}

	values, _ := transport.AsMap(result)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any, len(values))
	for k, v := range values {
		c.values[k] = v
	}
	return nil
}
