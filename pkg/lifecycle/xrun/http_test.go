package xrun

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer 实现 HTTPServerInterface 的测试替身。
// ListenAndServe 阻塞到 Shutdown 被调用（或 listenErr 非空时立即失败）。
type fakeServer struct {
	listenErr   error
	shutdownErr error

	shutdown     chan struct{}
	shutdownOnce sync.Once
	shutdownSeen bool
	mu           sync.Mutex
}

func newFakeServer() *fakeServer {
	return &fakeServer{shutdown: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.shutdown
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdownSeen = true
	s.mu.Unlock()

	s.shutdownOnce.Do(func() { close(s.shutdown) })
	return s.shutdownErr
}

func (s *fakeServer) shutdownCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownSeen
}

// =============================================================================
// HTTPServer 测试
// =============================================================================

func TestHTTPServer_GracefulShutdownOnCancel(t *testing.T) {
	srv := newFakeServer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- HTTPServer(srv, time.Second)(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, srv.shutdownCalled())
	case <-time.After(2 * time.Second):
		t.Fatal("service did not exit after cancel")
	}
}

func TestHTTPServer_ListenErrorPropagates(t *testing.T) {
	errBind := errors.New("bind: address already in use")
	srv := newFakeServer()
	srv.listenErr = errBind

	err := HTTPServer(srv, time.Second)(context.Background())

	assert.ErrorIs(t, err, errBind)
	assert.False(t, srv.shutdownCalled())
}

func TestHTTPServer_ShutdownErrorPropagates(t *testing.T) {
	errTimeout := errors.New("shutdown deadline exceeded")
	srv := newFakeServer()
	srv.shutdownErr = errTimeout

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- HTTPServer(srv, time.Second)(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not exit after cancel")
	}
}

func TestHTTPServer_ExternalShutdownReturnsNil(t *testing.T) {
	srv := newFakeServer()

	done := make(chan error, 1)
	go func() {
		done <- HTTPServer(srv, time.Second)(context.Background())
	}()

	// 外部直接调用 Shutdown，ctx 未取消
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not exit after external shutdown")
	}
}

func TestHTTPServer_NilServer(t *testing.T) {
	err := HTTPServer(nil, time.Second)(context.Background())
	assert.ErrorIs(t, err, ErrNilServer)
}

func TestHTTPServer_RealServerUnderRun(t *testing.T) {
	server := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NewServeMux(),
		ReadHeaderTimeout: time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	ctx := withTestSigChan(context.Background(), sigCh)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, HTTPServer(server, time.Second))
	}()

	// 给服务器一点启动时间后触发信号退出
	time.Sleep(50 * time.Millisecond)
	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		assert.True(t, IsSignal(err))
	case <-time.After(3 * time.Second):
		t.Fatal("run did not exit after signal")
	}
}
