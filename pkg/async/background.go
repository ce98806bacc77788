package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lanternhq/lantern/pkg/observability"
)

// Go runs fn on its own goroutine, detached from the caller but bounded
// by timeout. Errors and panics are logged under the task name; nothing
// propagates back to the caller.
func Go(parent context.Context, timeout time.Duration, task string, fn func(context.Context) error) {
	logger := observability.GetLogger(parent).WithField("task", task)
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}
