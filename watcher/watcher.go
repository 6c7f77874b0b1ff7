// Package watcher delivers a filtered event stream to one consumer.
package watcher

import (
	"reflect"

	"github.com/tachyon-mail/tachyon/async"
	"github.com/tachyon-mail/tachyon/queue"
)

type Watcher[T any] struct {
	types   map[reflect.Type]struct{}
	eventCh *queue.QueuedChannel[T]
}

// New creates a watcher for the given event types. With no types given, the
// watcher receives every event.
func New[T any](panicHandler async.PanicHandler, ofType ...T) *Watcher[T] {
	types := make(map[reflect.Type]struct{}, len(ofType))

	for _, t := range ofType {
		types[reflect.TypeOf(t)] = struct{}{}
	}

	return &Watcher[T]{
		types:   types,
		eventCh: queue.NewQueuedChannel[T](1, 1, panicHandler),
	}
}

func (w *Watcher[T]) IsWatching(event T) bool {
	if len(w.types) == 0 {
		return true
	}

	_, ok := w.types[reflect.TypeOf(event)]

	return ok
}

func (w *Watcher[T]) GetChannel() <-chan T {
	return w.eventCh.GetChannel()
}

func (w *Watcher[T]) Send(event T) bool {
	return w.eventCh.Enqueue(event)
}

func (w *Watcher[T]) Close() {
	w.eventCh.CloseAndDiscardQueued()
	w.eventCh.Wait()
}
