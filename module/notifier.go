package module

// Notifier is a concurrency primitive for informing a worker routine that
// there may be new work, or that an event it is waiting for has occurred.
// Notifiers behave like channels in that they can be passed by value and
// still share the same internal state.
//
// A Notifier stores at most one pending notification: notifying an
// already-notified Notifier is a no-op, and a single receive on Channel()
// consumes the pending notification. This makes it a suitable waker for
// cooperative polling: the producer side calls Notify whenever progress
// might be possible, and the polling loop blocks on Channel in between
// polls without ever missing a wake-up.
type Notifier struct {
	notifier chan struct{} // buffered channel with capacity 1
}

// NewNotifier instantiates a Notifier with no pending notification.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sets the pending notification. It never blocks: if a notification
// is already pending, the call is dropped.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel for receiving notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
