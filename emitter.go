package libemit

import (
	"context"
	"runtime/debug"
	"slices"
	"sync"
)

const (
	backendDelegated = "delegated"
	backendNative    = "native"
)

type (
	// channel is the per-event dispatch strategy. connect materializes a subscription
	// and fire delivers args to every subscription present when it starts.
	channel[A any] interface {
		connect(fn func(args ...A)) handle
		fire(args []A)
	}

	// handle releases a single subscription. release must be idempotent.
	handle interface {
		release()
	}

	registration[A any] struct {
		listener *Listener[A]
		handle   handle
	}

	// table holds the registrations of one event in registration order.
	table[A any] struct {
		regs []*registration[A]
		ch   channel[A]
	}
)

func (t *table[A]) indexOf(l *Listener[A]) int {
	return slices.IndexFunc(t.regs, func(r *registration[A]) bool { return r.listener == l })
}

// Emitter maps events (of type K) to listeners receiving arguments of type A.
// Events are created lazily and live as long as the emitter.
//
// An Emitter is built with NewDelegatedEmitter or NewNativeEmitter and is safe for
// concurrent use. Every method may be called from inside a listener.
type Emitter[K comparable, A any] struct {
	mu     sync.Mutex
	tables map[K]*table[A]
	names  []K

	newChannel func(event K) channel[A]

	backend   string
	logger    Logger
	onFailure FailureHandler
	metrics   *Metrics
	tasks     tracker
}

func newEmitter[K comparable, A any](backend string, opts []Option) (*Emitter[K, A], config) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Emitter[K, A]{
		tables:    make(map[K]*table[A]),
		backend:   backend,
		logger:    cfg.logger.WithField("backend", backend),
		onFailure: cfg.onFailure,
		metrics:   cfg.metrics,
	}, cfg
}

// table returns the table for event, creating it if needed. Callers hold e.mu.
func (e *Emitter[K, A]) table(event K) *table[A] {
	t, ok := e.tables[event]
	if !ok {
		t = &table[A]{ch: e.newChannel(event)}
		e.tables[event] = t
		e.names = append(e.names, event)
	}
	return t
}

// On registers listener for event. It fails with ErrDuplicateListener when the
// same listener is already registered for event.
func (e *Emitter[K, A]) On(event K, listener *Listener[A]) error {
	return e.register(event, listener, false)
}

// Once registers listener for a single delivery. The registration is removed
// before listener runs, so a nested Emit of the same event never reaches it again.
func (e *Emitter[K, A]) Once(event K, listener *Listener[A]) error {
	return e.register(event, listener, true)
}

func (e *Emitter[K, A]) register(event K, listener *Listener[A], once bool) error {
	if !listener.valid() {
		return ErrNilListener
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.table(event)
	if t.indexOf(listener) >= 0 {
		return wrapDuplicate(event, listener)
	}

	reg := &registration[A]{listener: listener}
	fn := e.guard(event, listener)
	if once {
		var s shot
		deliver := fn
		// Deregister before invoking on every backend, so a nested or concurrent
		// Emit can never reach a once listener that is already running.
		fn = func(args ...A) {
			if !s.claim() {
				return
			}
			e.deregister(event, reg)
			deliver(args...)
		}
	}

	reg.handle = t.ch.connect(fn)
	t.regs = append(t.regs, reg)
	e.metrics.setListeners(event, e.backend, len(t.regs))

	e.logger.
		WithField("event", event).
		WithField("listener", listener.ID()).
		Debugf("listener registered (once=%t)", once)

	return nil
}

// deregister removes reg if it is still the active registration of its listener and
// releases its handle.
func (e *Emitter[K, A]) deregister(event K, reg *registration[A]) {
	e.mu.Lock()
	if t, ok := e.tables[event]; ok {
		if i := slices.Index(t.regs, reg); i >= 0 {
			t.regs = slices.Delete(t.regs, i, i+1)
			e.metrics.setListeners(event, e.backend, len(t.regs))
		}
	}
	h := reg.handle
	e.mu.Unlock()

	h.release()
}

// Off removes listener from event. Removing a listener that is not registered is a
// no-op. Invocations already launched by an in-flight Emit are not cancelled.
func (e *Emitter[K, A]) Off(event K, listener *Listener[A]) *Emitter[K, A] {
	var reg *registration[A]

	e.mu.Lock()
	if t, ok := e.tables[event]; ok {
		if i := t.indexOf(listener); i >= 0 {
			reg = t.regs[i]
			t.regs = slices.Delete(t.regs, i, i+1)
			e.metrics.setListeners(event, e.backend, len(t.regs))
		}
	}
	e.mu.Unlock()

	if reg != nil {
		reg.handle.release()
		e.logger.
			WithField("event", event).
			WithField("listener", listener.ID()).
			Debugln("listener removed")
	}

	return e
}

// Emit delivers args to every listener registered for event when delivery starts.
// The delegated backend returns once its broadcast has run every listener; the
// native backend returns immediately.
func (e *Emitter[K, A]) Emit(event K, args ...A) *Emitter[K, A] {
	e.mu.Lock()
	t := e.table(event)
	e.mu.Unlock()

	e.metrics.emitted(event, e.backend)
	t.ch.fire(args)

	return e
}

// EventNames returns every event seen by On, Once or Emit, in first-seen order.
func (e *Emitter[K, A]) EventNames() []K {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.names)
}

// Listeners returns a snapshot of the listeners registered for event, in
// registration order. Once registrations report the listener given to Once.
func (e *Emitter[K, A]) Listeners(event K) []*Listener[A] {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[event]
	if !ok {
		return []*Listener[A]{}
	}

	listeners := make([]*Listener[A], 0, len(t.regs))
	for _, r := range t.regs {
		listeners = append(listeners, r.listener)
	}
	return listeners
}

// ListenerCount returns how many listeners are registered for event.
func (e *Emitter[K, A]) ListenerCount(event K) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.tables[event]; ok {
		return len(t.regs)
	}
	return 0
}

// RemoveAllListeners removes every listener of event. The event itself stays known.
func (e *Emitter[K, A]) RemoveAllListeners(event K) *Emitter[K, A] {
	var regs []*registration[A]

	e.mu.Lock()
	if t, ok := e.tables[event]; ok {
		regs = t.regs
		t.regs = nil
		e.metrics.setListeners(event, e.backend, 0)
	}
	e.mu.Unlock()

	for _, r := range regs {
		r.handle.release()
	}

	if len(regs) > 0 {
		e.logger.WithField("event", event).Debugf("removed %d listeners", len(regs))
	}

	return e
}

// Wait blocks until every listener task launched by the native backend's default
// spawner has returned, or ctx is done. It returns immediately for the delegated
// backend.
func (e *Emitter[K, A]) Wait(ctx context.Context) error {
	return e.tasks.wait(ctx)
}

// guard isolates a single listener invocation: a panic is recovered and reported
// instead of unwinding into the broadcast or the spawner.
func (e *Emitter[K, A]) guard(event K, listener *Listener[A]) func(args ...A) {
	return func(args ...A) {
		defer func() {
			if v := recover(); v != nil {
				e.fail(&ListenerFailure{
					Event:      event,
					ListenerID: listener.ID(),
					Backend:    e.backend,
					Value:      v,
					Stack:      debug.Stack(),
				})
			}
		}()

		listener.fn(args...)
	}
}

func (e *Emitter[K, A]) fail(f *ListenerFailure) {
	e.logger.
		WithField("event", f.Event).
		WithField("listener", f.ListenerID).
		Errorf("listener failure: %v", f.Value)

	e.metrics.failed(f.Event, e.backend)

	if e.onFailure == nil {
		return
	}

	defer func() {
		if v := recover(); v != nil {
			e.logger.Errorf("failure handler panicked: %v", v)
		}
	}()
	e.onFailure(f)
}
