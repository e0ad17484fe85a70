// Package bus provides an in-process latest-value message store. Producers
// publish timestamped values onto a Topic; consumers take non-blocking
// snapshots of the most recent value. A snapshot may return a value older
// than the caller's current cycle; detecting staleness from the returned
// timestamp is the consumer's responsibility.
package bus

import (
	"sync"
	"time"
)

// Topic holds the latest published value of a single message stream.
// The zero value is an empty topic whose Snapshot reports ok=false.
type Topic[T any] struct {
	mu    sync.RWMutex
	value T
	stamp time.Time
	set   bool
}

// Publish replaces the topic's current value. The stamp should be the
// measurement time, not the publish time, so consumers can age the data.
func (t *Topic[T]) Publish(value T, stamp time.Time) {
	t.mu.Lock()
	t.value = value
	t.stamp = stamp
	t.set = true
	t.mu.Unlock()
}

// Snapshot returns the most recently published value and its stamp without
// blocking. ok is false if nothing has ever been published.
func (t *Topic[T]) Snapshot() (value T, stamp time.Time, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value, t.stamp, t.set
}

// MaxInstances is the capacity of an InstanceGroup. It bounds the number of
// simultaneous producers of the same message type (for example independent
// range-sensor streams) and is an invariant of the group, not an incidental
// array size.
const MaxInstances = 4

// InstanceGroup is a bounded collection of topics carrying the same message
// type, indexed by instance slot.
type InstanceGroup[T any] struct {
	topics [MaxInstances]Topic[T]
}

// Instance returns the topic for the given slot. It panics if the slot is
// outside [0, MaxInstances); slots are assigned at wiring time, so an
// out-of-range index is a programming error, not a runtime condition.
func (g *InstanceGroup[T]) Instance(slot int) *Topic[T] {
	return &g.topics[slot]
}

// Snapshot reads the latest value of the given slot.
func (g *InstanceGroup[T]) Snapshot(slot int) (value T, stamp time.Time, ok bool) {
	return g.topics[slot].Snapshot()
}
