package session

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO shared by many producers and one consumer.
// Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []Item
	signal chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

func (q *Queue) Push(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, item)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pop waits for the next item. It returns ErrQueueClosed once the queue is
// closed and empty, or ctx.Err() if ctx ends first.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	for {
		if item, ok, closed := q.next(); ok {
			return item, nil
		} else if closed {
			return Item{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *Queue) TryPop() (Item, bool) {
	item, ok, _ := q.next()
	return item, ok
}

func (q *Queue) next() (Item, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Item{}, false, q.closed
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return item, true, q.closed
}

// Close stops further pushes. Items already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
