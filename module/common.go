package module

import (
	"errors"

	"github.com/meridian-labs/meridian-go/module/irrecoverable"
)

// ErrMultipleStartup is returned when Start is called on a component that
// may only be started once.
var ErrMultipleStartup = errors.New("component may only be started once")

// ReadyDoneAware provides an interface to wait for component startup and
// shutdown. Components implementing it support a single start-stop cycle and
// will not restart if Ready is called again after shutdown has commenced.
type ReadyDoneAware interface {
	// Ready returns a channel that is closed once startup has completed.
	// Idempotent.
	Ready() <-chan struct{}

	// Done returns a channel that is closed once shutdown has completed.
	// Idempotent.
	Done() <-chan struct{}
}

// Startable provides an interface to start a component. Once started, the
// component can be stopped by cancelling the given context.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered while
	// the component is running should be thrown with the given context.
	//
	// This method should only be called once; subsequent calls panic with
	// ErrMultipleStartup.
	Start(irrecoverable.SignalerContext)
}

// NoopReadyDoneAware is a ReadyDoneAware implementation whose ready and done
// channels close immediately. Useful for components without any startup or
// shutdown work of their own.
type NoopReadyDoneAware struct{}

func (n *NoopReadyDoneAware) Ready() <-chan struct{} {
	ready := make(chan struct{})
	defer close(ready)
	return ready
}

func (n *NoopReadyDoneAware) Done() <-chan struct{} {
	done := make(chan struct{})
	defer close(done)
	return done
}
