// Package server 管理长期运行服务的生命周期：初始化依赖、运行、响应信号并优雅关闭
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"oebrowse/logging"
)

// IServer 由具体服务实现的生命周期步骤
type IServer interface {
	// Name 服务名称
	Name() string

	// SetupDependencies 打开存储、准备监听等，受 StartupTimeout 约束
	SetupDependencies(ctx context.Context) error

	// Run 阻塞运行，ctx 取消时应返回 nil
	Run(ctx context.Context) error

	// Shutdown 释放资源
	Shutdown(ctx context.Context) error
}

// Engine 按 Setup -> Run -> 等待信号或退出 -> Shutdown 的顺序编排服务
type Engine struct {
	server  IServer
	options *Options
	logger  logging.Logger

	mu    sync.RWMutex
	state State
}

// NewEngine 创建引擎
func NewEngine(server IServer, opts ...Option) *Engine {
	options := DefaultOptions()
	if name := server.Name(); name != "" {
		options.Name = name
	}
	for _, o := range opts {
		o(options)
	}
	if options.Logger == nil {
		options.Logger = logging.Component("server")
	}
	return &Engine{
		server:  server,
		options: options,
		logger:  options.Logger.WithFields(logging.String("server", options.Name)),
		state:   StatePending,
	}
}

// State 当前状态
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Start 运行服务直到 Run 返回、ctx 取消或收到 SIGINT/SIGTERM
func (e *Engine) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	setupCtx, setupCancel := context.WithTimeout(ctx, e.options.StartupTimeout)
	err := e.server.SetupDependencies(setupCtx)
	setupCancel()
	if err != nil {
		e.setState(StateError)
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	e.setState(StatePrepared)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	e.setState(StateRunning)
	errChan := make(chan error, 1)
	go func() {
		errChan <- e.server.Run(runCtx)
	}()
	e.logger.Info(ctx, "server is running")

	for _, hook := range e.options.OnAfterStart {
		if err := hook(runCtx); err != nil {
			e.logger.Warn(ctx, "after-start hook failed", logging.Error(err))
		}
	}

	var runErr error
	select {
	case runErr = <-errChan:
		if runErr != nil {
			e.logger.Warn(ctx, "server stopped with error", logging.Error(runErr))
		}
	case <-ctx.Done():
		e.logger.Info(ctx, "stop requested, shutting down")
		cancelRun()
		runErr = <-errChan
	}

	e.setState(StateStopping)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), e.options.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.setState(StateError)
		return fmt.Errorf("shutdown: %w", err)
	}
	for _, hook := range e.options.OnAfterStop {
		if err := hook(shutdownCtx); err != nil {
			e.logger.Warn(ctx, "after-stop hook failed", logging.Error(err))
		}
	}

	if runErr != nil {
		e.setState(StateError)
		return fmt.Errorf("server execution error: %w", runErr)
	}
	e.setState(StateStopped)
	e.logger.Info(ctx, "shutdown complete")
	return nil
}
