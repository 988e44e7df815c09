package prune

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/meridian-go/module"
	"github.com/meridian-labs/meridian-go/module/component"
	"github.com/meridian-labs/meridian-go/module/irrecoverable"
)

// ErrTaskDropped is thrown as an irrecoverable error when the background
// prune task terminates without reporting a result. The pruning capability
// is lost at that point; recovery requires restarting the whole pruning
// subsystem at a higher level.
var ErrTaskDropped = errors.New("prune task dropped without reporting a result")

// Engine integrates the prune Controller into the node: a single worker
// loop waits on the waker, drains the controller of available events, and
// reacts to them. Other subsystems consult IsIdle before routing any
// store-mutating message.
type Engine struct {
	log  zerolog.Logger
	core *Controller
	wake module.Notifier

	cm *component.ComponentManager
	component.Component
}

// NewEngine creates a prune engine around the given pruning capability.
func NewEngine(log zerolog.Logger, pruner module.Pruner, taskRunner module.TaskRunner) *Engine {
	e := &Engine{
		log:  log.With().Str("engine", "prune").Logger(),
		wake: module.NewNotifier(),
	}
	e.core = NewController(e.log, pruner, taskRunner)

	e.cm = component.NewComponentManagerBuilder().
		AddWorker(e.pruneLoop).
		Build()
	e.Component = e.cm

	return e
}

// IsIdle returns true iff no prune run is in flight. While it returns
// false, callers must not submit operations that would mutate the store.
// Safe for concurrent use.
func (e *Engine) IsIdle() bool {
	return e.core.IsIdle()
}

// Poke schedules a poll of the controller. Upstream notification plumbing
// that does not go through the pruning capability itself can use this to
// nudge the engine.
func (e *Engine) Poke() {
	e.wake.Notify()
}

// pruneLoop is the single driver of the controller state machine.
func (e *Engine) pruneLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	// poll once at startup; afterwards the waker schedules us
	e.wake.Notify()

	doneSignal := ctx.Done()
	wakeSignal := e.wake.Channel()
	for {
		select {
		case <-doneSignal:
			return
		case <-wakeSignal:
			e.processAvailableEvents(ctx)
		}
	}
}

// processAvailableEvents drains the controller of synchronously available
// events. It stops on NotReady rather than re-checking the same answer in a
// tight loop; the capability wakes us once the answer may have changed.
func (e *Engine) processAvailableEvents(ctx irrecoverable.SignalerContext) {
	for {
		event, ok := e.core.Poll(e.wake)
		if !ok {
			// a run is in flight; the worker notifies the waker on completion
			return
		}

		switch ev := event.(type) {
		case NotReady:
			e.log.Trace().Msg("no tip eligible for pruning")
			return

		case Started:
			e.log.Info().Uint64("tip", ev.Tip).Msg("prune run started")

		case Finished:
			if ev.Err != nil {
				// a domain pruning failure; the capability is back and
				// reusable, but the failure itself is not retried here
				e.log.Error().Err(ev.Err).Msg("prune run failed")
			} else {
				e.log.Info().Msg("prune run finished")
			}

		case TaskDropped:
			e.log.Error().Msg("prune task dropped, escalating")
			ctx.Throw(ErrTaskDropped)
			return
		}
	}
}
