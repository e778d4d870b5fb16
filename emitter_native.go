package libemit

import (
	"context"
	"slices"
	"sync"
)

// Spawner launches task as an independent unit of execution and returns without
// waiting for it. Panics inside task are already recovered by the emitter.
type Spawner func(task func())

// NewNativeEmitter creates an Emitter that stores listeners in-process and runs
// every listener of an Emit as its own task. Emit never waits for listeners; use
// Wait to block until launched listeners are done.
func NewNativeEmitter[K comparable, A any](opts ...Option) *Emitter[K, A] {
	e, cfg := newEmitter[K, A](backendNative, opts)

	spawn := cfg.spawner
	if spawn == nil {
		spawn = e.spawn
	}

	e.newChannel = func(K) channel[A] {
		return &nativeChannel[A]{spawn: spawn}
	}

	return e
}

// spawn is the default Spawner: one goroutine per task, tracked for Wait.
func (e *Emitter[K, A]) spawn(task func()) {
	e.tasks.add()
	go func() {
		defer e.tasks.done()
		task()
	}()
}

type (
	// nativeChannel keeps the listener functions of one event in launch order.
	nativeChannel[A any] struct {
		mu      sync.Mutex
		entries []*nativeEntry[A]
		spawn   Spawner
	}

	nativeEntry[A any] struct {
		ch *nativeChannel[A]
		fn func(args ...A)
	}
)

func (c *nativeChannel[A]) connect(fn func(args ...A)) handle {
	entry := &nativeEntry[A]{ch: c, fn: fn}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	return entry
}

// fire launches every entry present when it starts; entries added or removed
// meanwhile only affect later calls.
func (c *nativeChannel[A]) fire(args []A) {
	c.mu.Lock()
	snapshot := slices.Clone(c.entries)
	c.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	args = slices.Clone(args)
	for _, entry := range snapshot {
		fn := entry.fn
		c.spawn(func() { fn(args...) })
	}
}

func (c *nativeChannel[A]) remove(entry *nativeEntry[A]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.Index(c.entries, entry); i >= 0 {
		c.entries = slices.Delete(c.entries, i, i+1)
	}
}

func (n *nativeEntry[A]) release() {
	n.ch.remove(n)
}

// tracker counts in-flight tasks. Unlike sync.WaitGroup it tolerates add being
// called while a wait is pending at zero.
type tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
	t.mu.Unlock()
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
