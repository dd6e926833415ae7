package voice

import (
	"time"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
)

type queuedCall struct {
	id         string
	enqueuedAt time.Time
}

// callQueue is a bounded FIFO of sessions waiting for a free line.
type callQueue struct {
	items    []queuedCall
	capacity int
}

func newCallQueue(capacity int) *callQueue {
	return &callQueue{
		items:    make([]queuedCall, 0, capacity),
		capacity: capacity,
	}
}

func (q *callQueue) push(id string, at time.Time) error {
	if len(q.items) >= q.capacity {
		return contractx.ErrQueueFull
	}
	q.items = append(q.items, queuedCall{id: id, enqueuedAt: at})
	return nil
}

func (q *callQueue) pop() (queuedCall, bool) {
	if len(q.items) == 0 {
		return queuedCall{}, false
	}
	head := q.items[0]
	q.items[0] = queuedCall{}
	q.items = q.items[1:]
	return head, true
}

func (q *callQueue) remove(id string) bool {
	for i, item := range q.items {
		if item.id == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *callQueue) len() int {
	return len(q.items)
}
