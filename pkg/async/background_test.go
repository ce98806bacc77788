package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/lantern/pkg/observability"
)

// logBuffer is a goroutine-safe sink for asserting on structured logs.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func loggedCtx(level observability.LogLevel) (context.Context, *logBuffer) {
	buf := &logBuffer{}
	return observability.WithLogger(context.Background(), observability.NewLogger(level, buf)), buf
}

func TestGoRunsDetached(t *testing.T) {
	done := make(chan struct{})

	Go(quietCtx(), time.Second, "audit-write", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background task never ran")
	}
}

func TestGoLogsTaskErrors(t *testing.T) {
	ctx, buf := loggedCtx(observability.WarnLevel)

	Go(ctx, time.Second, "audit-write", func(ctx context.Context) error {
		return errors.New("sink unavailable")
	})

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "sink unavailable")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "audit-write")
}

func TestGoRecoversPanics(t *testing.T) {
	ctx, buf := loggedCtx(observability.ErrorLevel)

	Go(ctx, time.Second, "audit-write", func(ctx context.Context) error {
		panic("nil event")
	})

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "panicked")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "nil event")
}

func TestGoEnforcesTimeout(t *testing.T) {
	got := make(chan error, 1)

	Go(quietCtx(), 30*time.Millisecond, "slow-task", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			got <- nil
		case <-ctx.Done():
			got <- ctx.Err()
		}
		return nil
	})

	require.ErrorIs(t, <-got, context.DeadlineExceeded)
}

func TestGoStopsWithParent(t *testing.T) {
	parent, cancel := context.WithCancel(quietCtx())
	got := make(chan error, 1)

	Go(parent, time.Minute, "long-task", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			got <- nil
		case <-ctx.Done():
			got <- ctx.Err()
		}
		return nil
	})

	cancel()
	require.ErrorIs(t, <-got, context.Canceled)
}
