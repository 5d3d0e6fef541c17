package notify

import "sync"

// intakeQueue is an unbounded FIFO that doubles its ring when it reaches 70% full.
// Push never blocks; the consumer waits on Ready and takes everything with DrainAll.
type intakeQueue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	tail     int
	count    int
	capacity int
	closed   bool

	// ready holds at most one pending wakeup.
	ready chan struct{}

	totalPushed  int64
	totalDrained int64
	highWater    int
	resizeCount  int
}

// QueueStats contains intake queue statistics.
type QueueStats struct {
	Count        int
	Capacity     int
	HighWater    int
	TotalPushed  int64
	TotalDrained int64
	ResizeCount  int
}

func newIntakeQueue[T any](initialCapacity int) *intakeQueue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &intakeQueue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends item. Returns false if the queue is closed.
func (q *intakeQueue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalPushed++
	if q.count > q.highWater {
		q.highWater = q.count
	}
	q.mu.Unlock()

	q.signal()
	return true
}

// DrainAll removes and returns every queued item in FIFO order.
func (q *intakeQueue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	out := make([]T, q.count)
	var zero T
	for i := range out {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero
		q.head = (q.head + 1) % q.capacity
	}
	q.totalDrained += int64(q.count)
	q.count = 0
	q.head = 0
	q.tail = 0
	return out
}

// Ready is signalled after a Push or Close.
func (q *intakeQueue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close rejects further pushes. Items already queued can still be drained.
func (q *intakeQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close was called.
func (q *intakeQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *intakeQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *intakeQueue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:        q.count,
		Capacity:     q.capacity,
		HighWater:    q.highWater,
		TotalPushed:  q.totalPushed,
		TotalDrained: q.totalDrained,
		ResizeCount:  q.resizeCount,
	}
}

func (q *intakeQueue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// grow doubles the ring. Must be called with lock held.
func (q *intakeQueue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
