package irrecoverable

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/atomic"
)

// Signaler sends the error out.
type Signaler struct {
	errChan   chan error
	errThrown *atomic.Bool
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{
		errChan:   errChan,
		errThrown: atomic.NewBool(false),
	}, errChan
}

// Throw is a narrow drop-in replacement for panic, log.Fatal, log.Panic, etc.
// anywhere there's something connected to the error channel. It only sends
// the first error to be thrown and exits the calling goroutine; subsequent
// errors are logged and discarded.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	if s.errThrown.CompareAndSwap(false, true) {
		s.errChan <- err
		close(s.errChan)
	} else {
		// only the first throw is propagated
		fmt.Fprintf(os.Stderr, "unhandled irrecoverable error (additional throw): %v\n", err)
	}
}

// SignalerContext is a constrained drop-in replacement for context.Context,
// to be threaded through all components that may encounter irrecoverable
// errors.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain construction to WithSignaler
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc signalerCtx) sealed() {}

// WithSignaler is the One True Way of getting a SignalerContext.
// The returned error channel receives at most one error: the first
// irrecoverable error thrown with the returned context.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return signalerCtx{parent, sig}, errChan
}

// Throw enables throwing an irrecoverable error through any context.Context.
//
// If the given context was not derived via WithSignaler, there is no
// signaler to receive the error, and the node cannot continue safely.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	}
	// be spectacular on how this does not -but should- handle irrecoverables
	fmt.Fprintf(os.Stderr, "irrecoverable error signaler not found in context, erroring out: %v\n", err)
	os.Exit(1)
}
