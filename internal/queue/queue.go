package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task is one pending scrape of a registered collection.
type Task struct {
	ID           string
	CollectionID int64
	URL          string
	Priority     int
	EnqueuedAt   time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a blocking FIFO (priority-ordered) queue feeding
// the scrape workers. Scrapes are queued rather than run inline so the
// request path stays responsive.
//
// Blocked Pop calls each register a wake channel; Push hands its wakeup
// to exactly one waiter, and a waiter that leaves early passes an
// already-consumed wakeup on so no task is left without a worker.
type InMemoryQueue struct {
	mu      sync.Mutex
	tasks   []*Task
	waiters []chan struct{}
	closed  bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	q.sortByPriority()
	q.wakeOne()

	return nil
}

// Pop blocks until a task is available, the queue is closed and
// drained, or ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	q.mu.Lock()
	for {
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}

		ready := make(chan struct{})
		q.waiters = append(q.waiters, ready)
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			q.mu.Lock()
			if !q.removeWaiter(ready) {
				// A wakeup landed on us while we were leaving;
				// hand it to another waiter.
				q.wakeOne()
			}
			q.mu.Unlock()
			return nil, ctx.Err()
		case <-ready:
			q.mu.Lock()
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for _, w := range q.waiters {
		close(w)
	}
	q.waiters = nil

	return nil
}

func (q *InMemoryQueue) wakeOne() {
	if len(q.waiters) == 0 {
		return
	}
	close(q.waiters[0])
	q.waiters = q.waiters[1:]
}

func (q *InMemoryQueue) removeWaiter(ready chan struct{}) bool {
	for i, w := range q.waiters {
		if w == ready {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Stable insertion order is preserved within a priority class.
func (q *InMemoryQueue) sortByPriority() {
	for i := 0; i < len(q.tasks)-1; i++ {
		for j := 0; j < len(q.tasks)-i-1; j++ {
			if q.tasks[j].Priority < q.tasks[j+1].Priority {
				q.tasks[j], q.tasks[j+1] = q.tasks[j+1], q.tasks[j]
			}
		}
	}
}
