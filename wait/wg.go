// Package wait provides a WaitGroup that owns the goroutines it waits for.
package wait

import (
	"sync"

	"github.com/tachyon-mail/tachyon/async"
)

type Group struct {
	wg           sync.WaitGroup
	PanicHandler async.PanicHandler
}

// Go runs f in a goroutine tracked by the group. A panic in f is forwarded
// to the group's panic handler; with no handler set it propagates.
func (wg *Group) Go(f func()) {
	wg.wg.Add(1)

	go func() {
		defer wg.wg.Done()
		defer async.HandlePanic(wg.PanicHandler)

		f()
	}()
}

func (wg *Group) Wait() {
	wg.wg.Wait()
}
