package module

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNotifier_PassByValue verifies that passing a Notifier by value is safe.
func TestNotifier_PassByValue(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var sent sync.WaitGroup
	sent.Add(1)
	go func(n Notifier) {
		n.Notify()
		sent.Done()
	}(notifier)
	sent.Wait()

	select {
	case <-notifier.Channel(): // expected
	default:
		t.Fail()
	}
}

// TestNotifier_NoNotificationsInitialization verifies that a Notifier is
// initialized without a pending notification.
func TestNotifier_NoNotificationsInitialization(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()
	select {
	case <-notifier.Channel():
		t.Fail()
	default: // expected
	}
}

// TestNotifier_ManyNotifications verifies that many concurrent
// notifications never block and collapse into a single pending one.
func TestNotifier_ManyNotifications(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var counter sync.WaitGroup
	for i := 0; i < 10; i++ {
		counter.Add(1)
		go func() {
			defer counter.Done()
			notifier.Notify()
		}()
	}
	counter.Wait()

	// exactly one notification should be available
	c := notifier.Channel()
	select {
	case <-c: // expected
	default:
		t.Error("expected one notification to be available")
	}
	select {
	case <-c:
		t.Error("expected only one notification to be available")
	default: // expected
	}
}

// TestNotifier_ZeroValueNotifyIsNoop verifies that notifying the zero-value
// Notifier does not block or panic. Components hold a zero Notifier until a
// waker is registered with them.
func TestNotifier_ZeroValueNotifyIsNoop(t *testing.T) {
	t.Parallel()
	var notifier Notifier
	assert.NotPanics(t, func() {
		notifier.Notify()
	})
}
