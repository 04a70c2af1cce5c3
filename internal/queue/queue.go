package queue

import (
	"sync"
)

// Queue is a thread-safe generic FIFO queue with channel-based ready
// signalling. Producers call Enqueue from any goroutine; a consumer waits on
// Ready and drains with Dequeue. Items are never dropped: the queue is
// unbounded and holds everything enqueued until dequeued.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Enqueue appends a value to the tail of the queue and signals readiness.
func (q *Queue[T]) Enqueue(value T) {
	q.mu.Lock()
	q.items = append(q.items, value)
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes and returns the head of the queue. The second return is
// false when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}

	value := q.items[0]
	q.items[0] = *new(T) // release the reference
	q.items = q.items[1:]
	remaining := len(q.items)
	q.mu.Unlock()

	// Keep the ready signal armed while items remain, so a consumer that
	// took the signal but stopped draining early does not strand the rest.
	if remaining > 0 {
		q.signal()
	}
	return value, true
}

// DequeueAll drains the queue and returns all items in FIFO order.
func (q *Queue[T]) DequeueAll() []T {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Ready returns a channel that receives a signal when items may be
// available. Wakeups can be spurious; callers must re-check with Dequeue.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
