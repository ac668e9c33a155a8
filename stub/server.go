package stub

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	apperrors "oebrowse/errors"
	"oebrowse/logging"
	"oebrowse/server"
	"oebrowse/storage"
	"oebrowse/transport"
)

// Handle 处理一个请求载荷，返回响应载荷与异常标志。
//
// 只有请求本身无法解码时才返回 error；业务错误编码为异常响应。
func (s *Service) Handle(ctx context.Context, codec transport.Codec, request []byte) ([]byte, bool, error) {
	decoded, err := codec.Decode(request)
	if err != nil {
		return nil, false, err
	}
	env, ok := transport.AsList(decoded)
	if !ok || len(env) == 0 {
		return nil, false, apperrors.Errorf(apperrors.ErrCodeProtocol, "请求载荷应为二元组，实际为 %T", decoded)
	}
	message, ok := transport.AsList(env[0])
	if !ok {
		return nil, false, apperrors.Errorf(apperrors.ErrCodeProtocol, "调用描述应为序列，实际为 %T", env[0])
	}

	result, err := s.Dispatch(ctx, message)
	if err != nil {
		method := transport.MethodName(message)
		s.logger.Debug(ctx, "call failed", logging.String("method", method), logging.Error(err))
		exc, trace := exceptionOf(method, err)
		payload, encErr := codec.Encode([]any{exc, trace})
		return payload, true, encErr
	}
	payload, err := codec.Encode([]any{result, nil})
	return payload, false, err
}

// Config 测试桩服务配置
type Config struct {
	// Addr 监听地址，默认 127.0.0.1:8070；测试中使用 127.0.0.1:0
	Addr string
	// Codec 默认 Pickle
	Codec transport.Codec
	// DSN sqlite 数据源，默认内存数据库
	DSN       string
	Databases []string
	Users     []User
	// Seed 启动时写入演示模型与数据
	Seed   bool
	Logger logging.Logger
}

// Server 监听 TCP 的测试桩服务，实现 server.IServer
type Server struct {
	cfg     Config
	logger  logging.Logger
	store   *storage.Store
	service *Service

	listener net.Listener
	ready    chan struct{}
	wg       sync.WaitGroup
}

var _ server.IServer = (*Server)(nil)

// NewServer 创建测试桩服务
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8070"
	}
	if cfg.Codec == nil {
		cfg.Codec = transport.Pickle
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("stub")
	}
	return &Server{cfg: cfg, logger: cfg.Logger, ready: make(chan struct{})}
}

// Name 服务名
func (s *Server) Name() string { return "stub" }

// SetupDependencies 打开存储、写入演示数据并开始监听
func (s *Server) SetupDependencies(ctx context.Context) error {
	store, err := storage.Open(ctx, storage.Config{DSN: s.cfg.DSN, Logger: s.logger})
	if err != nil {
		return err
	}
	if s.cfg.Seed {
		if err := Seed(ctx, store); err != nil {
			_ = store.Close()
			return err
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		_ = store.Close()
		return apperrors.WrapError(err, apperrors.ErrCodeNetwork, "listen "+s.cfg.Addr)
	}

	s.store = store
	s.service = NewService(ServiceConfig{
		Store:     store,
		Databases: s.cfg.Databases,
		Users:     s.cfg.Users,
		Logger:    s.logger,
	})
	s.listener = ln
	close(s.ready)
	s.logger.Info(ctx, "stub listening", logging.String("addr", ln.Addr().String()), logging.String("codec", s.cfg.Codec.Name()))
	return nil
}

// Run 接受连接直到监听关闭；每条连接只服务一次调用
func (s *Server) Run(ctx context.Context) error {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return apperrors.WrapError(err, apperrors.ErrCodeNetwork, "accept")
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(ctx, nc)
		}()
	}
}

func (s *Server) serve(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	_ = nc.SetDeadline(time.Now().Add(30 * time.Second))

	request, _, err := transport.ReadFrame(nc)
	if err != nil {
		s.logger.Warn(ctx, "read request", logging.Error(err))
		return
	}
	payload, exception, err := s.service.Handle(ctx, s.cfg.Codec, request)
	if err != nil {
		s.logger.Warn(ctx, "bad request", logging.Error(err))
		return
	}
	if err := transport.WriteFrame(nc, payload, exception); err != nil {
		s.logger.Warn(ctx, "write response", logging.Error(err))
	}
}

// Shutdown 关闭监听，等待进行中的调用结束后关闭存储
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return apperrors.WrapError(ctx.Err(), apperrors.ErrCodeTimeout, "stub shutdown")
	}

	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Ready 监听就绪后关闭
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr 实际监听地址，未就绪时返回配置值
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Service 调用分发器，未就绪时为 nil
func (s *Server) Service() *Service { return s.service }

// Start 完成初始化并在后台运行，调用方负责 Shutdown
func Start(ctx context.Context, cfg Config) (*Server, error) {
	srv := NewServer(cfg)
	if err := srv.SetupDependencies(ctx); err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Run(ctx); err != nil {
			srv.logger.Error(ctx, "stub stopped", logging.Error(err))
		}
	}()
	return srv, nil
}
