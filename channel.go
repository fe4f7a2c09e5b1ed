package logpipe

import (
	"sync"
	"sync/atomic"
	"time"
)

const initialRingSize = 64

// Channel is a bounded multi-producer multi-consumer FIFO queue with batch
// extraction and a shutdown protocol. Capacity 0 means unbounded.
// Items still queued after Shutdown remain poppable until drained.
type Channel[T any] struct {
	mu       sync.Mutex
	ring     []T
	head     int
	count    int
	capacity int
	shutdown bool

	// Closed and replaced to wake waiters, only when someone waits
	notEmpty         chan struct{}
	notFull          chan struct{}
	waitingConsumers int
	waitingProducers int
	done             chan struct{} // closed on Shutdown

	dropped  atomic.Uint64
	enqueued atomic.Uint64
}

// NewChannel creates a channel holding at most capacity items, 0 for no limit
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 0 {
		capacity = 0
	}
	size := initialRingSize
	if capacity > 0 && capacity < size {
		size = capacity
	}
	return &Channel[T]{
		ring:     make([]T, size),
		capacity: capacity,
		notEmpty: make(chan struct{}),
		notFull:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Push enqueues v, blocking while the channel is full.
// Returns false only when the channel is shut down.
func (c *Channel[T]) Push(v T) bool {
	c.mu.Lock()
	for !c.shutdown && c.full() {
		wait := c.notFull
		c.waitingProducers++
		c.mu.Unlock()

		select {
		case <-wait:
		case <-c.done:
		}

		c.mu.Lock()
		c.waitingProducers--
	}
	if c.shutdown {
		c.mu.Unlock()
		return false
	}
	c.enqueue(v)
	c.mu.Unlock()
	return true
}

// TryPush enqueues v without blocking. A full or shut down channel rejects v
// and counts it as dropped.
func (c *Channel[T]) TryPush(v T) bool {
	c.mu.Lock()
	if c.shutdown || c.full() {
		c.mu.Unlock()
		c.dropped.Add(1)
		return false
	}
	c.enqueue(v)
	c.mu.Unlock()
	return true
}

// Pop blocks until an item is available. Returns false once the channel is
// shut down and empty.
func (c *Channel[T]) Pop() (T, bool) {
	return c.PopTimeout(-1)
}

// PopTimeout is Pop bounded by timeout. A negative timeout waits forever.
func (c *Channel[T]) PopTimeout(timeout time.Duration) (T, bool) {
	var zero T
	batch := c.popBatch(make([]T, 0, 1), 1, timeout, nil, nil)
	if len(batch) == 0 {
		return zero, false
	}
	return batch[0], true
}

// TryPop dequeues one item without blocking
func (c *Channel[T]) TryPop() (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return zero, false
	}
	return c.dequeue(), true
}

// PopBatch blocks until at least one item is available, then appends up to maxItems
// of the items present to dst without waiting for more. dst is returned
// unchanged once the channel is shut down and empty.
func (c *Channel[T]) PopBatch(dst []T, maxItems int) []T {
	return c.popBatch(dst, maxItems, -1, nil, nil)
}

// PopBatchTimeout is PopBatch bounded by timeout
func (c *Channel[T]) PopBatchTimeout(dst []T, maxItems int, timeout time.Duration) []T {
	return c.popBatch(dst, maxItems, timeout, nil, nil)
}

// TryPopBatch appends up to maxItems queued items to dst without blocking
func (c *Channel[T]) TryPopBatch(dst []T, maxItems int) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainLocked(dst, maxItems, nil)
}

// popBatch waits up to timeout (negative: no limit) for an item, returning
// early when cancel closes. taken, if set, is increased under the channel lock
// by the number of items removed.
func (c *Channel[T]) popBatch(dst []T, maxItems int, timeout time.Duration, cancel <-chan struct{}, taken *atomic.Int64) []T {
	if maxItems <= 0 {
		return dst
	}

	var timer *time.Timer
	var expired <-chan time.Time

	c.mu.Lock()
	for c.count == 0 && !c.shutdown {
		if timeout == 0 {
			c.mu.Unlock()
			return dst
		}
		if timer == nil && timeout > 0 {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}

		wait := c.notEmpty
		c.waitingConsumers++
		c.mu.Unlock()

		var stop bool
		select {
		case <-wait:
		case <-c.done:
		case <-expired:
			stop = true
		case <-cancel:
			stop = true
		}

		c.mu.Lock()
		c.waitingConsumers--
		if stop && c.count == 0 {
			c.mu.Unlock()
			return dst
		}
	}

	dst = c.drainLocked(dst, maxItems, taken)
	c.mu.Unlock()
	return dst
}

// drainLocked moves up to maxItems items into dst, assumes mu is held
func (c *Channel[T]) drainLocked(dst []T, maxItems int, taken *atomic.Int64) []T {
	n := min(maxItems, c.count)
	if n <= 0 {
		return dst
	}
	if taken != nil {
		taken.Add(int64(n))
	}
	for i := 0; i < n; i++ {
		dst = append(dst, c.dequeue())
	}
	return dst
}

// Shutdown rejects further pushes and wakes every waiter. Safe to call repeatedly.
func (c *Channel[T]) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return
	}
	c.shutdown = true
	close(c.done)
}

// IsShutdown reports whether Shutdown was called
func (c *Channel[T]) IsShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

// Done is closed when the channel shuts down
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// Len returns the number of queued items
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cap returns the capacity, 0 when unbounded
func (c *Channel[T]) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// SetCapacity changes the capacity. Shrinking below the current length is
// refused so queued items are never evicted.
func (c *Channel[T]) SetCapacity(capacity int) bool {
	if capacity < 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if capacity > 0 && capacity < c.count {
		return false
	}
	c.capacity = capacity
	c.wakeProducers()
	return true
}

// Clear discards every queued item and returns how many were removed
func (c *Channel[T]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.count
	clear(c.ring)
	c.head = 0
	c.count = 0
	if n > 0 {
		c.wakeProducers()
	}
	return n
}

// Dropped returns the number of rejected TryPush calls
func (c *Channel[T]) Dropped() uint64 {
	return c.dropped.Load()
}

// ResetDropped zeroes the drop counter and returns its previous value
func (c *Channel[T]) ResetDropped() uint64 {
	return c.dropped.Swap(0)
}

// Enqueued returns the number of successful pushes
func (c *Channel[T]) Enqueued() uint64 {
	return c.enqueued.Load()
}

// full assumes mu is held
func (c *Channel[T]) full() bool {
	return c.capacity > 0 && c.count >= c.capacity
}

// enqueue assumes mu is held and there is room
func (c *Channel[T]) enqueue(v T) {
	if c.count == len(c.ring) {
		c.grow()
	}
	c.ring[(c.head+c.count)%len(c.ring)] = v
	c.count++
	c.enqueued.Add(1)
	if c.waitingConsumers > 0 {
		close(c.notEmpty)
		c.notEmpty = make(chan struct{})
	}
}

// dequeue assumes mu is held and count > 0
func (c *Channel[T]) dequeue() T {
	var zero T
	v := c.ring[c.head]
	c.ring[c.head] = zero
	c.head = (c.head + 1) % len(c.ring)
	c.count--
	c.wakeProducers()
	return v
}

// wakeProducers assumes mu is held
func (c *Channel[T]) wakeProducers() {
	if c.waitingProducers > 0 {
		close(c.notFull)
		c.notFull = make(chan struct{})
	}
}

// grow doubles the ring, bounded by capacity
func (c *Channel[T]) grow() {
	size := len(c.ring) * 2
	if size == 0 {
		size = initialRingSize
	}
	if c.capacity > 0 && size > c.capacity {
		size = c.capacity
	}
	if size <= len(c.ring) {
		size = len(c.ring) + 1
	}
	ring := make([]T, size)
	n := copy(ring, c.ring[c.head:])
	copy(ring[n:], c.ring[:c.head])
	c.ring = ring
	c.head = 0
}
