package runtime

import (
	"context"
	"sync"
)

// deferredValue is a one-shot slot bridging a value that arrives from a later
// API call into a callback that must suspend until the value exists. Resolve
// may be called any number of times; only the first value wins.
type deferredValue struct {
	once  sync.Once
	done  chan struct{}
	value string
}

func newDeferredValue() *deferredValue {
	return &deferredValue{done: make(chan struct{})}
}

func (d *deferredValue) Resolve(value string) {
	d.once.Do(func() {
		d.value = value
		close(d.done)
	})
}

// Await blocks until the slot is resolved or ctx is canceled. Safe for
// multiple awaiters.
func (d *deferredValue) Await(ctx context.Context) (string, error) {
	select {
	case <-d.done:
		return d.value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
