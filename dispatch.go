package main

import (
	"context"
	"sync"
)

// dispatcher runs queued functions one at a time on the goroutine that
// calls Run. Do never blocks, so code already running on that goroutine
// may queue more work.
type dispatcher struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{wake: make(chan struct{}, 1)}
}

// Do queues fn.
func (d *dispatcher) Do(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) next() func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	fn := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return fn
}

// Run executes queued functions until ctx is done.
func (d *dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
		for fn := d.next(); fn != nil; fn = d.next() {
			fn()
		}
	}
}
