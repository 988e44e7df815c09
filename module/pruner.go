package module

// Pruner is the capability to irreversibly delete historical chain data up
// to a tip height. A Pruner requires exclusive write access to the
// underlying store while a run is in progress, which is why at most one run
// may ever be in flight; the prune controller enforces this.
type Pruner interface {
	// CheckTip returns the highest height that is currently safe and
	// worthwhile to prune to. It never blocks: if no eligible tip exists
	// yet, it returns false and registers the given waker to be notified
	// once the answer may have changed, so the caller knows to check again.
	CheckTip(wake Notifier) (uint64, bool)

	// Prune executes a full prune run up to the given tip height. It blocks
	// until the run completes and must therefore never be invoked on the
	// engine thread. Errors are domain pruning failures; the Pruner remains
	// usable for subsequent runs regardless of the outcome.
	Prune(tip uint64) error
}

// TaskRunner is the capability to run a unit of work in the background.
type TaskRunner interface {
	// SpawnCriticalBlocking submits a blocking unit of work for background
	// execution. The task is safety-critical: a panic inside it is escalated
	// as an irrecoverable, process-level error rather than swallowed.
	// Submission never blocks the caller.
	SpawnCriticalBlocking(name string, task func())
}
