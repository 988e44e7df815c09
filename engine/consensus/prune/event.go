package prune

// Event is the outcome of a single Controller poll. Exactly one event is
// produced per poll that makes progress; polls that cannot make progress
// produce no event.
type Event interface {
	isPruneEvent()
}

// NotReady indicates that no tip is eligible for pruning yet. This is an
// expected steady state while the chain has not advanced far enough.
type NotReady struct{}

// Started indicates that a prune run was just launched up to Tip.
type Started struct {
	Tip uint64
}

// Finished indicates that the most recent prune run completed. Err carries
// the domain pruning error, if any; the controller is idle again and the
// capability is reusable either way.
type Finished struct {
	Err error
}

// TaskDropped indicates that the background task terminated without
// reporting a result, e.g. because it panicked. The pruning capability was
// never returned, so the controller will never report idle again; the
// integrating engine must escalate.
type TaskDropped struct{}

func (NotReady) isPruneEvent()    {}
func (Started) isPruneEvent()     {}
func (Finished) isPruneEvent()    {}
func (TaskDropped) isPruneEvent() {}
