package taskrunner

import (
	"fmt"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/meridian-labs/meridian-go/module"
	"github.com/meridian-labs/meridian-go/module/irrecoverable"
)

// Runner executes named units of blocking work on a bounded worker pool.
// It implements module.TaskRunner.
//
// Tasks submitted via SpawnCriticalBlocking are safety-critical: a panic
// inside one is recovered and thrown as an irrecoverable error on the
// context the Runner was started with, so it surfaces as a process-level
// failure instead of silently killing a pool worker.
type Runner struct {
	log  zerolog.Logger
	pool *workerpool.WorkerPool

	started *atomic.Bool
	ctx     *atomic.Pointer[irrecoverable.SignalerContext]
	done    chan struct{}
}

var _ module.TaskRunner = (*Runner)(nil)
var _ module.Startable = (*Runner)(nil)
var _ module.ReadyDoneAware = (*Runner)(nil)

// NewRunner creates a task runner with the given number of pool workers.
func NewRunner(log zerolog.Logger, workers int) *Runner {
	return &Runner{
		log:     log.With().Str("component", "task_runner").Logger(),
		pool:    workerpool.New(workers),
		started: atomic.NewBool(false),
		ctx:     atomic.NewPointer[irrecoverable.SignalerContext](nil),
		done:    make(chan struct{}),
	}
}

// Start registers the signaler context used to escalate panics in critical
// tasks. Start must be called before any task is submitted.
func (r *Runner) Start(ctx irrecoverable.SignalerContext) {
	if !r.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}
	r.ctx.Store(&ctx)

	go func() {
		<-ctx.Done()
		// drain the pool before reporting done; in-flight prune runs are
		// not cancellable and must be allowed to finish
		r.pool.StopWait()
		close(r.done)
	}()
}

// SpawnCriticalBlocking submits the given task for background execution.
// Submission never blocks; the task waits in the pool queue if all workers
// are busy.
func (r *Runner) SpawnCriticalBlocking(name string, task func()) {
	ctx := r.ctx.Load()
	if ctx == nil {
		panic(fmt.Sprintf("task %q submitted before task runner was started", name))
	}

	r.pool.Submit(func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error().Str("task", name).Interface("panic", p).Msg("critical task panicked")
				// Throw exits the calling goroutine; escalate from a fresh
				// one so the pool worker survives
				go (*ctx).Throw(fmt.Errorf("critical task %q panicked: %v", name, p))
			}
		}()

		r.log.Debug().Str("task", name).Msg("critical task started")
		task()
		r.log.Debug().Str("task", name).Msg("critical task completed")
	})
}

// Ready returns a channel that closes immediately; the pool accepts work as
// soon as the Runner is started.
func (r *Runner) Ready() <-chan struct{} {
	ready := make(chan struct{})
	defer close(ready)
	return ready
}

// Done returns a channel that closes once the context has been cancelled
// and all queued tasks have finished.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
