package prune

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/meridian-go/module"
	"github.com/meridian-labs/meridian-go/utils/unittest"
)

// fakePruner is a scripted pruning capability. A tip set with setTip is
// consumed by the next CheckTip call.
type fakePruner struct {
	mu      sync.Mutex
	nextTip *uint64
	runErr  error
	panics  bool
	pruned  []uint64
}

var _ module.Pruner = (*fakePruner)(nil)

func (f *fakePruner) setTip(tip uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTip = &tip
}

func (f *fakePruner) CheckTip(wake module.Notifier) (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextTip == nil {
		return 0, false
	}
	tip := *f.nextTip
	f.nextTip = nil
	return tip, true
}

func (f *fakePruner) Prune(tip uint64) error {
	if f.panics {
		panic("pruner exploded")
	}
	f.mu.Lock()
	f.pruned = append(f.pruned, tip)
	f.mu.Unlock()
	return f.runErr
}

func (f *fakePruner) prunedTips() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.pruned...)
}

// immediateTaskRunner executes submitted tasks synchronously, so the run has
// already completed by the time the controller is polled next. Panics are
// recovered the way the production runner recovers them.
type immediateTaskRunner struct{}

func (immediateTaskRunner) SpawnCriticalBlocking(name string, task func()) {
	defer func() {
		_ = recover()
	}()
	task()
}

// manualTaskRunner queues submitted tasks for explicit execution by the
// test, so the controller can be observed while a run is in flight.
type manualTaskRunner struct {
	mu    sync.Mutex
	tasks []func()
}

func (r *manualTaskRunner) SpawnCriticalBlocking(name string, task func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
}

func (r *manualTaskRunner) runAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, task := range tasks {
		func() {
			defer func() {
				_ = recover()
			}()
			task()
		}()
	}
}

func (r *manualTaskRunner) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// TestController_NotReady verifies that polling an idle controller whose
// capability reports no eligible tip produces NotReady and leaves the
// controller idle.
func TestController_NotReady(t *testing.T) {
	pruner := &fakePruner{}
	ctl := NewController(unittest.Logger(), pruner, &manualTaskRunner{})
	wake := module.NewNotifier()

	require.True(t, ctl.IsIdle())

	event, ok := ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, NotReady{}, event)
	assert.True(t, ctl.IsIdle())
}

// TestController_StartRun verifies that an eligible tip starts a run: the
// event carries the tip, the capability is handed to the task runner, and
// the controller stops reporting idle.
func TestController_StartRun(t *testing.T) {
	pruner := &fakePruner{}
	runner := &manualTaskRunner{}
	ctl := NewController(unittest.Logger(), pruner, runner)
	wake := module.NewNotifier()

	pruner.setTip(1000)

	event, ok := ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, Started{Tip: 1000}, event)
	assert.False(t, ctl.IsIdle())
	assert.Equal(t, 1, runner.pending())
}

// TestController_PendingWhileRunning verifies that polling while the run
// has not resolved produces no event.
func TestController_PendingWhileRunning(t *testing.T) {
	pruner := &fakePruner{}
	runner := &manualTaskRunner{}
	ctl := NewController(unittest.Logger(), pruner, runner)
	wake := module.NewNotifier()

	pruner.setTip(1000)
	_, ok := ctl.Poll(wake)
	require.True(t, ok)

	event, ok := ctl.Poll(wake)
	assert.False(t, ok)
	assert.Nil(t, event)
	assert.False(t, ctl.IsIdle())
}

// TestController_FinishAndRestart verifies the full cycle: a completed run
// produces Finished, returns the capability, and a subsequent eligible tip
// starts the next run.
func TestController_FinishAndRestart(t *testing.T) {
	pruner := &fakePruner{}
	runner := &manualTaskRunner{}
	ctl := NewController(unittest.Logger(), pruner, runner)
	wake := module.NewNotifier()

	pruner.setTip(1000)
	event, ok := ctl.Poll(wake)
	require.True(t, ok)
	require.Equal(t, Started{Tip: 1000}, event)

	runner.runAll()

	// completion must have re-armed the waker
	select {
	case <-wake.Channel():
	default:
		t.Fatal("expected completion to notify the waker")
	}

	event, ok = ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, Finished{}, event)
	assert.True(t, ctl.IsIdle())
	assert.Equal(t, []uint64{1000}, pruner.prunedTips())

	// the capability is reusable for the next run
	pruner.setTip(2000)
	event, ok = ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, Started{Tip: 2000}, event)
	assert.False(t, ctl.IsIdle())

	runner.runAll()
	event, ok = ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, Finished{}, event)
	assert.Equal(t, []uint64{1000, 2000}, pruner.prunedTips())
}

// TestController_FinishWithDomainError verifies that a failed run surfaces
// the error verbatim inside Finished and that the controller returns to
// idle with a reusable capability.
func TestController_FinishWithDomainError(t *testing.T) {
	pruneFailure := errors.New("store inconsistency at height 512")
	pruner := &fakePruner{runErr: pruneFailure}
	ctl := NewController(unittest.Logger(), pruner, immediateTaskRunner{})
	wake := module.NewNotifier()

	pruner.setTip(1000)
	event, ok := ctl.Poll(wake)
	require.True(t, ok)
	require.Equal(t, Started{Tip: 1000}, event)

	event, ok = ctl.Poll(wake)
	require.True(t, ok)
	finished, isFinished := event.(Finished)
	require.True(t, isFinished)
	assert.ErrorIs(t, finished.Err, pruneFailure)

	// no automatic retry, but the controller is reusable
	assert.True(t, ctl.IsIdle())
	pruner.runErr = nil
	pruner.setTip(2000)
	event, ok = ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, Started{Tip: 2000}, event)
}

// TestController_TaskDropped verifies that a run terminating without a
// result (simulated worker panic) is reported as TaskDropped, and that the
// controller never reports idle again afterwards.
func TestController_TaskDropped(t *testing.T) {
	pruner := &fakePruner{panics: true}
	ctl := NewController(unittest.Logger(), pruner, immediateTaskRunner{})
	wake := module.NewNotifier()

	pruner.setTip(1000)
	event, ok := ctl.Poll(wake)
	require.True(t, ok)
	require.Equal(t, Started{Tip: 1000}, event)

	event, ok = ctl.Poll(wake)
	require.True(t, ok)
	assert.Equal(t, TaskDropped{}, event)
	assert.False(t, ctl.IsIdle())

	// no spurious recovery: every subsequent poll reports the same terminal
	// condition and the controller stays non-idle
	for i := 0; i < 5; i++ {
		event, ok = ctl.Poll(wake)
		require.True(t, ok)
		assert.Equal(t, TaskDropped{}, event)
		assert.False(t, ctl.IsIdle())
	}
}

// TestController_OnlyNotReadyWhileIneligible verifies that a capability
// which never reports an eligible tip only ever produces NotReady.
func TestController_OnlyNotReadyWhileIneligible(t *testing.T) {
	pruner := &fakePruner{}
	runner := &manualTaskRunner{}
	ctl := NewController(unittest.Logger(), pruner, runner)
	wake := module.NewNotifier()

	for i := 0; i < 100; i++ {
		event, ok := ctl.Poll(wake)
		require.True(t, ok)
		require.Equal(t, NotReady{}, event)
		require.True(t, ctl.IsIdle())
	}
	assert.Zero(t, runner.pending())
}

// TestController_StartsAndCompletionsAlternate drives the controller
// through many cycles and verifies the ordering invariant: no two Started
// events without an intervening Finished, and IsIdle tracks the events
// exactly.
func TestController_StartsAndCompletionsAlternate(t *testing.T) {
	pruner := &fakePruner{}
	ctl := NewController(unittest.Logger(), pruner, immediateTaskRunner{})
	wake := module.NewNotifier()

	running := false
	started := 0
	finished := 0

	for i := 0; i < 1000; i++ {
		if i%3 == 0 {
			pruner.setTip(uint64(i + 1))
		}

		event, ok := ctl.Poll(wake)
		require.True(t, ok)

		switch event.(type) {
		case Started:
			require.False(t, running, "two Started events without an intervening completion")
			running = true
			started++
			require.False(t, ctl.IsIdle())
		case Finished:
			require.True(t, running, "Finished without a preceding Started")
			running = false
			finished++
			require.True(t, ctl.IsIdle())
		case NotReady:
			require.False(t, running, "NotReady while a run is in flight")
			require.True(t, ctl.IsIdle())
		default:
			t.Fatalf("unexpected event: %T", event)
		}
	}

	require.Greater(t, started, 0)
	assert.InDelta(t, started, finished, 1)
}
