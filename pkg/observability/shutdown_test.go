package observability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{
			name:            "with custom timeout",
			timeout:         10 * time.Second,
			expectedTimeout: 10 * time.Second,
		},
		{
			name:            "with zero timeout uses default",
			timeout:         0,
			expectedTimeout: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(InfoLevel, &bytes.Buffer{})
			server := &http.Server{}

			sm := NewShutdownManager(logger, server, tt.timeout)

			if sm == nil {
				t.Fatal("Expected non-nil shutdown manager")
			}
			if sm.logger != logger {
				t.Error("Logger not set correctly")
			}
			if sm.server != server {
				t.Error("Server not set correctly")
			}
			if sm.shutdownTimeout != tt.expectedTimeout {
				t.Errorf("Expected timeout %v, got %v", tt.expectedTimeout, sm.shutdownTimeout)
			}
			if len(sm.shutdownFuncs) != 0 {
				t.Error("Expected empty shutdown functions slice")
			}
		})
	}
}

func TestNewShutdownManager_NilLogger(t *testing.T) {
	// Construction must not panic with nil logger or server
	sm := NewShutdownManager(nil, nil, 5*time.Second)

	if sm == nil {
		t.Fatal("Expected non-nil shutdown manager")
	}
	if sm.shutdownTimeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", sm.shutdownTimeout)
	}
}

func TestRegisterShutdownFunc(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })

	if len(sm.shutdownFuncs) != 3 {
		t.Errorf("Expected 3 shutdown functions, got %d", len(sm.shutdownFuncs))
	}

	// Concurrent registration
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
		}()
	}
	wg.Wait()

	if len(sm.shutdownFuncs) != 13 {
		t.Errorf("Expected 13 shutdown functions, got %d", len(sm.shutdownFuncs))
	}
}

// executeShutdownLogic mirrors WaitForShutdown without blocking on an OS
// signal, so tests can drive the shutdown path directly.
func executeShutdownLogic(sm *ShutdownManager) error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		sm.logger.Info("HTTP server shutdown complete")
	}

	sm.mu.Lock()
	funcs := sm.shutdownFuncs
	sm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(funcs))

	for i, fn := range funcs {
		if fn == nil {
			continue
		}
		wg.Add(1)
		go func(index int, shutdownFn ShutdownFunc) {
			defer wg.Done()
			if err := shutdownFn(ctx); err != nil {
				errChan <- err
			}
		}(i, fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout reached")
	}

	close(errChan)
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors", len(errs))
	}
	return nil
}

func TestShutdown_FunctionsExecute(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var mu sync.Mutex
	closed := make(map[string]bool)
	mark := func(name string) ShutdownFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			closed[name] = true
			mu.Unlock()
			return nil
		}
	}

	sm.RegisterShutdownFunc(mark("database"))
	sm.RegisterShutdownFunc(mark("redis"))
	sm.RegisterShutdownFunc(mark("otel"))

	if err := executeShutdownLogic(sm); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"database", "redis", "otel"} {
		if !closed[name] {
			t.Errorf("Shutdown function %q was not called", name)
		}
	}
}

func TestShutdown_HTTPServer(t *testing.T) {
	tests := []struct {
		name        string
		setupServer func() *http.Server
	}{
		{
			name: "running server shuts down cleanly",
			setupServer: func() *http.Server {
				server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))
				server.Start()
				return server.Config
			},
		},
		{
			name:        "nil server is skipped",
			setupServer: func() *http.Server { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(InfoLevel, io.Discard)
			sm := NewShutdownManager(logger, tt.setupServer(), 5*time.Second)

			if err := executeShutdownLogic(sm); err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestShutdown_Timeout(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 500*time.Millisecond)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		select {
		case <-time.After(2 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	err := executeShutdownLogic(sm)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected timeout error but got nil")
	}
	if err.Error() != "shutdown timeout reached" {
		t.Errorf("Expected 'shutdown timeout reached' error, got: %v", err)
	}
	// Should give up around the 500ms deadline, not wait the full 2 seconds.
	if elapsed > 1*time.Second {
		t.Errorf("Shutdown took too long: %v", elapsed)
	}
}

func TestShutdown_ConcurrentExecution(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var mu sync.Mutex
	executed := 0

	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			mu.Lock()
			executed++
			mu.Unlock()
			return nil
		})
	}

	start := time.Now()
	err := executeShutdownLogic(sm)
	elapsed := time.Since(start)

	if err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}

	// Concurrent execution finishes near the slowest function (~100ms);
	// sequential would take ~300ms.
	if elapsed > 250*time.Millisecond {
		t.Error("Functions did not run concurrently")
	}

	mu.Lock()
	defer mu.Unlock()
	if executed != 3 {
		t.Errorf("Expected 3 functions to execute, got %d", executed)
	}
}

func TestShutdown_MixedSuccessAndFailure(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	}
	for i := 0; i < 2; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return errors.New("connection pool drain failed")
		})
	}

	err := executeShutdownLogic(sm)

	if err == nil {
		t.Fatal("Expected error but got nil")
	}
	if err.Error() != "shutdown completed with 2 errors" {
		t.Errorf("Expected 'shutdown completed with 2 errors', got: %v", err)
	}
}

func TestShutdown_EmptyFunctionList(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	if err := executeShutdownLogic(sm); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}
}

func TestShutdown_NilFunctionsSkipped(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc(nil)
	sm.RegisterShutdownFunc(nil)

	if err := executeShutdownLogic(sm); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}
}

func TestShutdown_ContextPropagated(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var receivedCtx context.Context
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		receivedCtx = ctx
		return nil
	})

	if err := executeShutdownLogic(sm); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}

	if receivedCtx == nil {
		t.Fatal("Shutdown function did not receive context")
	}
	if _, ok := receivedCtx.Deadline(); !ok {
		t.Error("Shutdown context should carry the shutdown deadline")
	}
}

func TestShutdown_ThreadSafety(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				select {
				case <-done:
					return
				default:
					sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(done)
	time.Sleep(50 * time.Millisecond)

	if err := executeShutdownLogic(sm); err != nil {
		t.Errorf("Expected no error but got: %v", err)
	}

	if len(sm.shutdownFuncs) == 0 {
		t.Error("Expected some shutdown functions to be registered")
	}
}

func TestWaitForShutdown_Signal(t *testing.T) {
	t.Skip("Skipping signal test - sending signals to test process is unreliable")
}

func TestGracefulShutdown_Signal(t *testing.T) {
	t.Skip("Skipping signal test - sending signals to test process is unreliable")
}
