// Package queue provides a channel with an unbounded backlog so writers
// never block on slow readers.
package queue

import (
	"context"
	"sync"

	"github.com/tachyon-mail/tachyon/async"
	"github.com/tachyon-mail/tachyon/logging"
)

// QueuedChannel behaves like a channel whose send never blocks: items queue
// up internally and a pump goroutine forwards them to the read side.
type QueuedChannel[T any] struct {
	ch     chan T
	stopCh chan struct{}
	doneCh chan struct{}

	lock   sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

func NewQueuedChannel[T any](chanBufferSize, queueCapacity int, panicHandler async.PanicHandler) *QueuedChannel[T] {
	queue := &QueuedChannel[T]{
		ch:     make(chan T, chanBufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		items:  make([]T, 0, queueCapacity),
	}

	queue.cond = sync.NewCond(&queue.lock)

	logging.GoAnnotate(context.Background(), func(context.Context) {
		defer async.HandlePanic(panicHandler)
		defer close(queue.doneCh)
		defer close(queue.ch)

		for {
			item, ok := queue.pop()
			if !ok {
				return
			}

			select {
			case queue.ch <- item:

			case <-queue.stopCh:
				return
			}
		}
	}, map[string]any{"role": "queued-channel pump"})

	return queue
}

// Enqueue appends the items to the backlog. It reports false once the queue
// is closed.
func (q *QueuedChannel[T]) Enqueue(items ...T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, items...)
	q.cond.Signal()

	return true
}

func (q *QueuedChannel[T]) GetChannel() <-chan T {
	return q.ch
}

// Close stops accepting new items. Already queued items are still delivered;
// the read channel is closed once the backlog drains.
func (q *QueuedChannel[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.cond.Signal()
}

// CloseAndDiscardQueued closes the queue and drops the backlog so the pump
// exits even when nobody reads the channel.
func (q *QueuedChannel[T]) CloseAndDiscardQueued() {
	q.lock.Lock()

	if q.closed {
		q.lock.Unlock()
		return
	}

	q.closed = true
	q.items = nil
	q.cond.Signal()
	q.lock.Unlock()

	close(q.stopCh)
}

// Wait blocks until the pump goroutine has exited.
func (q *QueuedChannel[T]) Wait() {
	<-q.doneCh
}

// pop blocks until an item or closure arrives. It reports false when the
// queue is closed and drained.
func (q *QueuedChannel[T]) pop() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	q.items = q.items[1:]

	return item, true
}
