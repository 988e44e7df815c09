package prune

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/meridian-go/module/irrecoverable"
	"github.com/meridian-labs/meridian-go/utils/unittest"
)

// asyncTaskRunner executes submitted tasks on their own goroutine,
// recovering panics the way the production runner does.
type asyncTaskRunner struct {
	wg sync.WaitGroup
}

func (r *asyncTaskRunner) SpawnCriticalBlocking(name string, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			_ = recover()
		}()
		task()
	}()
}

// TestEngine_PruneCycle starts the engine, feeds it an eligible tip, and
// verifies that a run executes in the background and the engine returns to
// idle afterwards.
func TestEngine_PruneCycle(t *testing.T) {
	pruner := &fakePruner{}
	runner := &asyncTaskRunner{}
	engine := NewEngine(unittest.Logger(), pruner, runner)

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	engine.Start(ctx)
	unittest.RequireCloseBefore(t, engine.Ready(), time.Second, "engine ready")

	require.True(t, engine.IsIdle())

	pruner.setTip(1000)
	engine.Poke()

	require.Eventually(t, func() bool {
		return len(pruner.prunedTips()) == 1 && engine.IsIdle()
	}, time.Second, time.Millisecond, "expected prune run to complete")
	assert.Equal(t, []uint64{1000}, pruner.prunedTips())

	// a second tip starts a second run
	pruner.setTip(2000)
	engine.Poke()

	require.Eventually(t, func() bool {
		return len(pruner.prunedTips()) == 2 && engine.IsIdle()
	}, time.Second, time.Millisecond, "expected second prune run to complete")
	assert.Equal(t, []uint64{1000, 2000}, pruner.prunedTips())

	cancel()
	unittest.RequireCloseBefore(t, engine.Done(), time.Second, "engine done")
	runner.wg.Wait()
}

// TestEngine_IdleGateWhileRunning verifies that the engine reports not-idle
// for the entire duration of a run.
func TestEngine_IdleGateWhileRunning(t *testing.T) {
	release := make(chan struct{})
	pruner := &blockingPruner{release: release}
	runner := &asyncTaskRunner{}
	engine := NewEngine(unittest.Logger(), pruner, runner)

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	engine.Start(ctx)
	unittest.RequireCloseBefore(t, engine.Ready(), time.Second, "engine ready")

	pruner.setTip(500)
	engine.Poke()

	require.Eventually(t, func() bool {
		return !engine.IsIdle()
	}, time.Second, time.Millisecond, "expected run to start")

	// the gate stays closed while the run is blocked
	for i := 0; i < 10; i++ {
		require.False(t, engine.IsIdle())
		time.Sleep(time.Millisecond)
	}

	close(release)
	require.Eventually(t, func() bool {
		return engine.IsIdle()
	}, time.Second, time.Millisecond, "expected engine to return to idle")

	cancel()
	unittest.RequireCloseBefore(t, engine.Done(), time.Second, "engine done")
	runner.wg.Wait()
}

// TestEngine_TaskDroppedEscalates verifies that an abnormally terminating
// run is escalated as an irrecoverable error.
func TestEngine_TaskDroppedEscalates(t *testing.T) {
	pruner := &fakePruner{panics: true}
	runner := &asyncTaskRunner{}
	engine := NewEngine(unittest.Logger(), pruner, runner)

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, errChan := irrecoverable.WithSignaler(parent)

	engine.Start(ctx)
	unittest.RequireCloseBefore(t, engine.Ready(), time.Second, "engine ready")

	pruner.setTip(1000)
	engine.Poke()

	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, ErrTaskDropped)
	case <-time.After(time.Second):
		t.Fatal("expected an irrecoverable error")
	}

	assert.False(t, engine.IsIdle())
	runner.wg.Wait()
}

// blockingPruner runs until released, so tests can observe the engine
// mid-run.
type blockingPruner struct {
	fakePruner
	release chan struct{}
}

func (b *blockingPruner) Prune(tip uint64) error {
	<-b.release
	return b.fakePruner.Prune(tip)
}
