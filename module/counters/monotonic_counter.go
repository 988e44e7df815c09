package counters

import "sync/atomic"

// StrictMonotonicCounter is a lock-free counter that only ever increases.
// Concurrent attempts to set a lower or equal value are rejected.
type StrictMonotonicCounter struct {
	atomicCounter uint64
}

// NewMonotonicCounter creates a new StrictMonotonicCounter with the given
// initial value.
func NewMonotonicCounter(initial uint64) StrictMonotonicCounter {
	return StrictMonotonicCounter{
		atomicCounter: initial,
	}
}

// Set updates the value, retrying on concurrent modification, and returns
// true if the new value is strictly larger than the stored one.
func (c *StrictMonotonicCounter) Set(new uint64) bool {
	for {
		old := atomic.LoadUint64(&c.atomicCounter)
		if new <= old {
			return false
		}
		if atomic.CompareAndSwapUint64(&c.atomicCounter, old, new) {
			return true
		}
	}
}

// Value returns the current value.
func (c *StrictMonotonicCounter) Value() uint64 {
	return atomic.LoadUint64(&c.atomicCounter)
}
