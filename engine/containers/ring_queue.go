package containers

// RingQueue is a FIFO queue backed by a circular buffer. Unlike a fixed ring
// buffer it grows (by doubling) when full, so Enqueue never fails.
type RingQueue[T any] struct {
	data       []T
	readIndex  int
	writeIndex int
	count      int
}

// NewRingQueue creates a queue with the given initial capacity (minimum 1).
func NewRingQueue[T any](capacity int) *RingQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingQueue[T]{
		data: make([]T, capacity),
	}
}

// Enqueue adds an element to the back of the queue.
func (rq *RingQueue[T]) Enqueue(value T) {
	if rq.count == len(rq.data) {
		rq.grow()
	}
	rq.data[rq.writeIndex] = value
	rq.writeIndex = (rq.writeIndex + 1) % len(rq.data)
	rq.count++
}

// Dequeue removes and returns the front element in the queue.
func (rq *RingQueue[T]) Dequeue() (T, bool) {
	var zero T
	if rq.count == 0 {
		return zero, false
	}
	value := rq.data[rq.readIndex]
	rq.data[rq.readIndex] = zero
	rq.readIndex = (rq.readIndex + 1) % len(rq.data)
	rq.count--
	return value, true
}

// Peek returns the front element without removing it.
func (rq *RingQueue[T]) Peek() (T, bool) {
	var zero T
	if rq.count == 0 {
		return zero, false
	}
	return rq.data[rq.readIndex], true
}

func (rq *RingQueue[T]) Len() int {
	return rq.count
}

func (rq *RingQueue[T]) IsEmpty() bool {
	return rq.count == 0
}

func (rq *RingQueue[T]) grow() {
	next := make([]T, len(rq.data)*2)
	for i := 0; i < rq.count; i++ {
		next[i] = rq.data[(rq.readIndex+i)%len(rq.data)]
	}
	rq.data = next
	rq.readIndex = 0
	rq.writeIndex = rq.count
}
