// Package stub 实现一个说同样帧协议的最小对象服务，用于集成测试与本地开发。
//
// 模型定义与记录保存在 sqlite 中；支持 common、db 与 object 三个调用域中
// 客户端用到的方法，其余方法以异常帧回应。
package stub

import (
	"context"
	"slices"
	"sort"
	"sync"

	"oebrowse/logging"
	"oebrowse/storage"
	"oebrowse/transport"
)

// User 可登录的用户
type User struct {
	ID       int64
	Login    string
	Password string
	Lang     string
	TZ       string
}

// Service 调用分发器，与监听方式无关
type Service struct {
	store     *storage.Store
	databases []string
	logger    logging.Logger

	mu    sync.RWMutex
	users map[string]User
}

// ServiceConfig 分发器配置
type ServiceConfig struct {
	Store     *storage.Store
	Databases []string
	Users     []User
	Logger    logging.Logger
}

// NewService 创建分发器，未配置数据库与用户时使用 demo / admin:admin
func NewService(cfg ServiceConfig) *Service {
	if len(cfg.Databases) == 0 {
		cfg.Databases = []string{"demo"}
	}
	if len(cfg.Users) == 0 {
		cfg.Users = []User{{ID: 1, Login: "admin", Password: "admin", Lang: "en_US", TZ: "UTC"}}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("stub")
	}
	users := make(map[string]User, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Login] = u
	}
	dbs := append([]string(nil), cfg.Databases...)
	sort.Strings(dbs)
	return &Service{store: cfg.Store, databases: dbs, logger: cfg.Logger, users: users}
}

// Store 底层存储
func (s *Service) Store() *storage.Store { return s.store }

// Dispatch 处理一条调用描述 (domain, method, args...)
func (s *Service) Dispatch(ctx context.Context, message []any) (any, error) {
	if len(message) < 2 {
		return nil, faultf(TagWarning, "malformed call %v", message)
	}
	domain, _ := message[0].(string)
	method, _ := message[1].(string)
	args := message[2:]

	switch domain {
	case "common":
		return s.common(method, args)
	case "db":
		if method == "list" {
			out := make([]any, len(s.databases))
			for i, name := range s.databases {
				out[i] = name
			}
			return out, nil
		}
	case "object":
		switch method {
		case "execute":
			return s.execute(ctx, args)
		case "exec_workflow":
			return s.execWorkflow(ctx, args)
		}
	}
	return nil, faultf(TagWarning, "unsupported call %s.%s", domain, method)
}

func (s *Service) common(method string, args []any) (any, error) {
	switch method {
	case "login":
		if len(args) != 3 {
			return nil, faultf(TagWarning, "login expects (db, login, password)")
		}
		db, _ := args[0].(string)
		login, _ := args[1].(string)
		password, _ := args[2].(string)
		if !slices.Contains(s.databases, db) {
			return false, nil
		}
		s.mu.RLock()
		u, ok := s.users[login]
		s.mu.RUnlock()
		if !ok || u.Password != password {
			return false, nil
		}
		return u.ID, nil
	case "version":
		return map[string]any{"server_version": "6.0-stub", "protocol_version": int64(1)}, nil
	}
	return nil, faultf(TagWarning, "unsupported call common.%s", method)
}

// execute 处理 (db, uid, password, model, method, args...)
func (s *Service) execute(ctx context.Context, args []any) (any, error) {
	if len(args) < 5 {
		return nil, faultf(TagWarning, "execute expects (db, uid, password, model, method, ...)")
	}
	db, _ := args[0].(string)
	uid, _ := transport.AsInt64(args[1])
	password, _ := args[2].(string)
	model, _ := args[3].(string)
	method, _ := args[4].(string)

	if !slices.Contains(s.databases, db) {
		return nil, faultf(TagWarning, "database %q does not exist", db)
	}
	user, ok := s.authenticate(uid, password)
	if !ok {
		return nil, faultf(TagAccessDenied, "access denied for uid %d", uid)
	}

	s.logger.Debug(ctx, "execute", logging.String("model", model), logging.String("method", method))
	return s.object(ctx, user, model, method, args[5:])
}

// execWorkflow 处理 (db, uid, password, model, transition, id)，桩服务没有工作流，
// 记录存在即视为迁移成功
func (s *Service) execWorkflow(ctx context.Context, args []any) (any, error) {
	if len(args) < 6 {
		return nil, faultf(TagWarning, "exec_workflow expects (db, uid, password, model, signal, id)")
	}
	db, _ := args[0].(string)
	uid, _ := transport.AsInt64(args[1])
	password, _ := args[2].(string)
	model, _ := args[3].(string)
	id, _ := transport.AsInt64(args[5])

	if !slices.Contains(s.databases, db) {
		return nil, faultf(TagWarning, "database %q does not exist", db)
	}
	if _, ok := s.authenticate(uid, password); !ok {
		return nil, faultf(TagAccessDenied, "access denied for uid %d", uid)
	}
	if _, err := s.loadModel(ctx, model); err != nil {
		return nil, err
	}
	rows, err := s.store.Get(ctx, model, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, faultf(TagMissing, "Record %s(%d) does not exist", model, id)
	}
	return true, nil
}

func (s *Service) authenticate(uid int64, password string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == uid && u.Password == password {
			return u, true
		}
	}
	return User{}, false
}

// Loopback 进程内调用分发器的 transport.Invoker，每次调用都经过编解码
type Loopback struct {
	service *Service
	codec   transport.Codec
}

// NewLoopback 创建进程内调用通道，codec 为空时使用 Pickle
func NewLoopback(service *Service, codec transport.Codec) *Loopback {
	if codec == nil {
		codec = transport.Pickle
	}
	return &Loopback{service: service, codec: codec}
}

// Call 实现 transport.Invoker
func (l *Loopback) Call(ctx context.Context, message ...any) (any, error) {
	request, err := l.codec.Encode([]any{transport.Tuple(message), nil})
	if err != nil {
		return nil, err
	}
	payload, exception, err := l.service.Handle(ctx, l.codec, request)
	if err != nil {
		return nil, err
	}
	return transport.DecodeResponse(l.codec, payload, exception, transport.MethodName(message))
}
