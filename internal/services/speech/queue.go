package speech

import (
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue once the terminal sentinel was pushed.
var ErrQueueClosed = errors.New("speech queue closed")

// Message is one narration waiting to be spoken.
type Message struct {
	Text       string
	EnqueuedAt time.Time
}

type QueueStats struct {
	Enqueued int `json:"enqueued"`
	Dequeued int `json:"dequeued"`
	Dropped  int `json:"dropped"`
	Poisoned int `json:"poisoned"`
	Pending  int `json:"pending"`
}

type item struct {
	msg    Message
	poison bool
}

// Queue is an ordered FIFO with a single consumer. Enqueue never blocks,
// Dequeue blocks while the queue is empty. Close pushes the terminal
// sentinel exactly once; everything enqueued before it is still delivered.
type Queue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      []item
	maxPending int // 0 = unbounded
	closed     bool
	stats      QueueStats
}

// NewQueue creates a queue. With maxPending > 0 the oldest pending message
// is dropped when a new one would exceed the limit.
func NewQueue(maxPending int) *Queue {
	q := &Queue{maxPending: maxPending}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Enqueue(text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if q.maxPending > 0 && len(q.items) >= q.maxPending {
		q.items = q.items[1:]
		q.stats.Dropped++
	}

	q.items = append(q.items, item{msg: Message{Text: text, EnqueuedAt: time.Now()}})
	q.stats.Enqueued++
	q.cond.Signal()
	return nil
}

// Close pushes the terminal sentinel. Further calls are no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.items = append(q.items, item{poison: true})
	q.stats.Poisoned++
	q.cond.Signal()
}

// Dequeue blocks until an item is available. ok is false for the sentinel.
func (q *Queue) Dequeue() (msg Message, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.cond.Wait()
	}

	it := q.items[0]
	q.items[0] = item{}
	q.items = q.items[1:]

	if it.poison {
		return Message{}, false
	}
	q.stats.Dequeued++
	return it.msg, true
}

// Len returns the number of pending messages, the sentinel excluded.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = q.pendingLocked()
	return s
}

func (q *Queue) pendingLocked() int {
	n := len(q.items)
	if n > 0 && q.items[n-1].poison {
		n--
	}
	return n
}
