package crossq

import (
	"sync"
)

// fifoChunkSize is the number of entries per node of a fifo.
const fifoChunkSize = 64

// fifo is a chunked linked-list queue, holding pending entries in linking
// order.
//
// Thread Safety: NOT thread-safe. Every method must be called while holding
// the owning Queue's lock.
type fifo[T any] struct {
	head   *fifoChunk[T]
	tail   *fifoChunk[T]
	pool   *sync.Pool
	length int
}

// fifoChunk is a fixed-size node, using readPos/pos cursors for O(1)
// push/pop without shifting.
type fifoChunk[T any] struct {
	items   [fifoChunkSize]T
	next    *fifoChunk[T]
	readPos int // first unread slot
	pos     int // first unused slot
}

func newFIFO[T any]() fifo[T] {
	return fifo[T]{pool: &sync.Pool{New: func() any { return new(fifoChunk[T]) }}}
}

func (q *fifo[T]) newChunk() *fifoChunk[T] {
	c := q.pool.Get().(*fifoChunk[T])
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk hands an exhausted chunk back to the pool. Slots are cleared so
// the pool does not retain entries.
func (q *fifo[T]) returnChunk(c *fifoChunk[T]) {
	var zero T
	for i := 0; i < c.pos; i++ {
		c.items[i] = zero
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	q.pool.Put(c)
}

// push links v at the tail.
func (q *fifo[T]) push(v T) {
	if q.tail == nil {
		q.tail = q.newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.items) {
		next := q.newChunk()
		q.tail.next = next
		q.tail = next
	}

	q.tail.items[q.tail.pos] = v
	q.tail.pos++
	q.length++
}

// pop unlinks the head, returning false if the queue is empty.
func (q *fifo[T]) pop() (v T, ok bool) {
	if q.length == 0 {
		return v, false
	}

	// invariant: a non-empty queue has an unread slot in head
	v = q.head.items[q.head.readPos]
	var zero T
	q.head.items[q.head.readPos] = zero
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			// only chunk, reuse it in place
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			old := q.head
			q.head = old.next
			q.returnChunk(old)
		}
	}

	return v, true
}

func (q *fifo[T]) len() int {
	return q.length
}
