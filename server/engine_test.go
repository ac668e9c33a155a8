package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lifecycleFakeServer 记录生命周期调用顺序
type lifecycleFakeServer struct {
	mu    sync.Mutex
	steps []string

	setupErr    error
	runErr      error
	shutdownErr error
	block       bool
}

func (s *lifecycleFakeServer) record(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *lifecycleFakeServer) Name() string { return "lifecycle-fake" }

func (s *lifecycleFakeServer) SetupDependencies(ctx context.Context) error {
	s.record("Setup")
	return s.setupErr
}

func (s *lifecycleFakeServer) Run(ctx context.Context) error {
	s.record("Run")
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.runErr
}

func (s *lifecycleFakeServer) Shutdown(ctx context.Context) error {
	s.record("Shutdown")
	return s.shutdownErr
}

func (s *lifecycleFakeServer) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

func TestEngineStart_LifecycleSuccess(t *testing.T) {
	srv := &lifecycleFakeServer{}
	var stopped bool
	engine := NewEngine(srv, WithAfterStop(func(ctx context.Context) error {
		stopped = true
		return nil
	}))

	require.NoError(t, engine.Start(context.Background()))
	assert.Equal(t, []string{"Setup", "Run", "Shutdown"}, srv.snapshot())
	assert.Equal(t, StateStopped, engine.State())
	assert.True(t, stopped)
}

func TestEngineStart_RunErrorPropagates(t *testing.T) {
	runErr := errors.New("listener died")
	srv := &lifecycleFakeServer{runErr: runErr}
	engine := NewEngine(srv)

	err := engine.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, runErr)
	assert.Equal(t, StateError, engine.State())
	assert.Equal(t, []string{"Setup", "Run", "Shutdown"}, srv.snapshot())
}

func TestEngineStart_SetupErrorStopsEarly(t *testing.T) {
	srv := &lifecycleFakeServer{setupErr: errors.New("no storage")}
	engine := NewEngine(srv)

	err := engine.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"Setup"}, srv.snapshot())
	assert.Equal(t, StateError, engine.State())
}

func TestEngineStart_ContextCancelShutsDown(t *testing.T) {
	srv := &lifecycleFakeServer{block: true}
	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(srv,
		WithShutdownTimeout(50*time.Millisecond),
		WithAfterStart(func(context.Context) error {
			cancel()
			return nil
		}))

	done := make(chan error, 1)
	go func() { done <- engine.Start(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after context cancel")
	}
	assert.Equal(t, StateStopped, engine.State())
	assert.Equal(t, []string{"Setup", "Run", "Shutdown"}, srv.snapshot())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Unknown", State(99).String())
}
