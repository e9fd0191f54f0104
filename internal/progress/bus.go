package progress

import (
	"sync"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	// DefaultCapacity bounds the queue; overflow drops the oldest event.
	DefaultCapacity = 1000
	// MaxDrainBatch caps how many events one Drain call returns.
	MaxDrainBatch = 100
)

// Bus is a thread-safe bounded FIFO of progress events. Any goroutine may
// Emit; a single consumer drains in batches. When full, the oldest event
// is dropped so the newest always lands.
type Bus struct {
	mu       sync.Mutex
	queue    []Event
	capacity int
	closed   bool
	done     chan struct{}
	dropped  uint64
}

// NewBus creates a bus with the given capacity; zero means DefaultCapacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		done:     make(chan struct{}),
	}
}

// Emit enqueues an event. After Close it is a no-op.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if len(b.queue) >= b.capacity {
		b.queue = b.queue[1:]
		b.dropped++
		if b.dropped%100 == 1 {
			L_trace("progress: queue full, dropping oldest", "dropped", b.dropped)
		}
	}
	b.queue = append(b.queue, ev)
}

// Drain removes and returns up to max events (capped at MaxDrainBatch).
// Returns nil when the queue is empty.
func (b *Bus) Drain(max int) []Event {
	if max <= 0 || max > MaxDrainBatch {
		max = MaxDrainBatch
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	n := max
	if n > len(b.queue) {
		n = len(b.queue)
	}
	batch := make([]Event, n)
	copy(batch, b.queue[:n])
	b.queue = b.queue[n:]
	return batch
}

// Len reports the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops the bus. Subsequent Emits are dropped; queued events remain
// drainable. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// Done is closed when the bus closes; consumers use it to finish up.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Dropped reports how many events were discarded to overflow.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
