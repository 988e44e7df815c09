package prune

import (
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/meridian-labs/meridian-go/module"
)

// Controller arbitrates a single background pruning operation on behalf of
// the engine loop. The engine polls the controller once per tick; the
// controller decides whether a run can be started, tracks whether one is in
// flight, and translates completion into an event, without ever blocking
// the caller.
//
// All methods except IsIdle must be called from the single goroutine
// driving Poll; the controller performs no locking around its state.
type Controller struct {
	log        zerolog.Logger
	state      prunerState
	taskRunner module.TaskRunner

	// mirrors state.isIdle() for concurrent readers; updated strictly
	// before a run is handed to the task runner, so the gate is already
	// closed by the time the run can touch the store
	idle *atomic.Bool
}

// prunerRun carries the pruning capability back from the background task,
// together with the outcome of the run.
type prunerRun struct {
	pruner module.Pruner
	err    error
}

// prunerState holds the lifecycle state of the pruning capability.
//
// When idle, the state owns the capability itself; when running, it holds
// only the one-shot channel through which the capability will be returned.
// The asymmetry is deliberate: while a run is in flight, the capability
// holds the write lock over the store, and no code path on the engine side
// can reach it. Forwarding store-mutating messages during that window would
// deadlock against the run, which is why the controller exposes IsIdle as
// the gate for the engine's message routing.
//
// Exactly one of the two fields is set, except for the transient instant
// within a transition where the capability has been taken out of the idle
// slot but the run has not been handed off yet.
type prunerState struct {
	// the pruning capability; set iff idle
	pruner module.Pruner
	// the completion channel of the in-flight run; set iff running
	done <-chan prunerRun
}

// isIdle returns true iff no run is in flight.
func (s *prunerState) isIdle() bool {
	return s.done == nil
}

// NewController creates a controller holding the given pruning capability,
// starting in the idle state.
func NewController(log zerolog.Logger, pruner module.Pruner, taskRunner module.TaskRunner) *Controller {
	return &Controller{
		log:        log.With().Str("component", "prune_controller").Logger(),
		state:      prunerState{pruner: pruner},
		taskRunner: taskRunner,
		idle:       atomic.NewBool(true),
	}
}

// IsIdle returns true iff no prune run is in flight. While it returns
// false, the engine must not forward any message that would mutate the
// store. Safe for concurrent use.
func (c *Controller) IsIdle() bool {
	return c.idle.Load()
}

// Poll advances the prune state machine by at most one event. It never
// blocks: the second return value is false iff no event could be produced
// synchronously, which only happens while a run is in flight. In that case
// the background task notifies the given waker on completion, so the caller
// knows to poll again.
func (c *Controller) Poll(wake module.Notifier) (Event, bool) {
	// try to start a run; this produces an event whenever the controller
	// holds the capability
	if event, ok := c.tryStartRun(wake); ok {
		return event, true
	}

	for {
		if event, ok := c.pollRunning(); ok {
			return event, true
		}

		if !c.state.isIdle() {
			// run still in flight, no result yet
			return nil, false
		}

		// Idle with an empty capability slot. The slot is refilled before
		// every return, so this state cannot persist across polls; keep
		// retrying until an event is produced or a run is confirmed in
		// flight.
	}
}

// tryStartRun attempts to launch a prune run if the controller is idle:
//  1. take the capability out of the idle slot,
//  2. ask it for an eligible tip, non-blocking,
//  3. if a tip is available, hand the capability to a critical background
//     task and transition to running; otherwise put the capability back.
//
// Produces no event iff a run is already in flight or the idle slot is
// empty. Exactly one start attempt occurs per call.
func (c *Controller) tryStartRun(wake module.Notifier) (Event, bool) {
	if !c.state.isIdle() {
		return nil, false
	}

	pruner := c.state.pruner
	if pruner == nil {
		// nothing to start
		return nil, false
	}
	c.state.pruner = nil

	tip, ok := pruner.CheckTip(wake)
	if !ok {
		// no eligible tip yet; not an error
		c.state.pruner = pruner
		return NotReady{}, true
	}

	c.log.Trace().Uint64("tip", tip).Msg("tip height for pruning acquired")

	// close the gate before the run exists, so no reader can observe idle
	// while the run holds the write lock
	c.idle.Store(false)

	done := make(chan prunerRun, 1)
	c.taskRunner.SpawnCriticalBlocking("prune run", func() {
		// A close without a send signals abnormal termination: if Prune
		// panics, the deferred close still runs during unwinding and the
		// controller observes TaskDropped instead of waiting forever.
		defer wake.Notify()
		defer close(done)
		err := pruner.Prune(tip)
		done <- prunerRun{pruner: pruner, err: err}
	})
	c.state.done = done

	return Started{Tip: tip}, true
}

// pollRunning checks the completion channel of the in-flight run without
// blocking. Produces no event if the controller is idle or the run has not
// resolved yet.
func (c *Controller) pollRunning() (Event, bool) {
	if c.state.done == nil {
		return nil, false
	}

	select {
	case run, ok := <-c.state.done:
		if !ok {
			// The task terminated without returning the capability. The
			// closed channel stays in place, so the controller keeps
			// reporting TaskDropped and never reports idle again.
			return TaskDropped{}, true
		}
		c.state.pruner = run.pruner
		c.state.done = nil
		c.idle.Store(true)
		return Finished{Err: run.err}, true
	default:
		return nil, false
	}
}
