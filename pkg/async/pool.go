package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lanternhq/lantern/pkg/observability"
)

// ErrPoolClosed is returned by Submit once the pool has stopped
// accepting work.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs submitted tasks on a fixed set of workers, each task under
// its own timeout. Task errors and recovered panics accumulate in the
// pool instead of aborting it, so one unreadable document cannot stop
// a sync run.
type Pool struct {
	timeout time.Duration
	logger  *observability.Logger

	tasks chan func(context.Context) error
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	errs    []error
	sending sync.WaitGroup
}

// NewPool starts workers goroutines reading from the task queue. The
// name labels the pool's log lines; timeout bounds each task.
func NewPool(ctx context.Context, workers int, name string, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	poolCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		timeout: timeout,
		logger:  observability.GetLogger(ctx).WithField("pool", name),
		tasks:   make(chan func(context.Context) error, workers*2),
		done:    make(chan struct{}),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	var workersDone sync.WaitGroup
	workersDone.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer workersDone.Done()
			p.work()
		}()
	}
	go func() {
		workersDone.Wait()
		close(p.done)
	}()
	return p
}

// Submit queues one task, blocking when every worker is busy and the
// queue is full. It fails once the pool is closed or its context is
// cancelled.
func (p *Pool) Submit(fn func(context.Context) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.sending.Add(1)
	p.mu.Unlock()
	defer p.sending.Done()

	select {
	case p.tasks <- fn:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Close stops intake. Queued tasks still run; use Shutdown to wait for
// them.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	// In-flight Submit calls must finish before the queue closes.
	p.sending.Wait()
	close(p.tasks)
}

// Shutdown closes the pool and waits up to wait for the workers to
// drain the queue. On timeout the pool context is cancelled, aborting
// whatever is still queued or running.
func (p *Pool) Shutdown(wait time.Duration) error {
	p.Close()

	select {
	case <-p.done:
		p.cancel()
		return nil
	case <-time.After(wait):
		p.cancel()
		return fmt.Errorf("worker pool did not drain within %v", wait)
	}
}

// Errors returns the task errors and recovered panics collected so far.
// The set is complete once Shutdown has returned.
func (p *Pool) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

func (p *Pool) record(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

func (p *Pool) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(fn)
		}
	}
}

func (p *Pool) runTask(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("task panicked")
			p.record(fmt.Errorf("task panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.record(err)
	}
}

// Batch fans items out across a temporary pool and waits for every
// submitted task. A cancelled ctx abandons the unsubmitted remainder
// and surfaces as a context error in the returned set; the order of
// the returned errors is unspecified.
func Batch[T any](ctx context.Context, items []T, workers int, name string, timeout time.Duration, fn func(context.Context, T) error) []error {
	pool := NewPool(ctx, workers, name, timeout)
	for _, item := range items {
		err := pool.Submit(func(taskCtx context.Context) error {
			return fn(taskCtx, item)
		})
		if err != nil {
			pool.record(err)
			break
		}
	}

	pool.Close()
	<-pool.done
	pool.cancel()
	return pool.Errors()
}
