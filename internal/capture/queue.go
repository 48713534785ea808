package capture

import "sync"

// Queue is the unbounded, concurrency-safe hand-off between a capture worker
// and the transcript assembler. Workers push from their own goroutines; the
// bot drains it from command handlers and the periodic drain task.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an item. Nil items are ignored.
func (q *Queue) Push(item Item) {
	if q == nil || item == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// TryPop removes and returns the oldest item without blocking.
func (q *Queue) TryPop() (Item, bool) {
	if q == nil {
		return nil, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
