package libemit

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Signal is an in-process Broadcast. Fire runs the connected functions on the
// caller's goroutine, one after the other, in connection order. It does not recover
// panics; the emitter guards every function it connects.
type Signal[A any] struct {
	name string

	mu    sync.Mutex
	conns []*signalConnection[A]
}

// NewSignal creates an empty Signal. name is only used for diagnostics.
func NewSignal[A any](name string) *Signal[A] {
	return &Signal[A]{name: name}
}

// SignalFactory returns a BroadcastFactory building one Signal per event, named
// after the event.
func SignalFactory[K comparable, A any]() BroadcastFactory[K, A] {
	return func(event K) Broadcast[A] {
		return NewSignal[A](fmt.Sprint(event))
	}
}

// Name returns the diagnostic name given to NewSignal.
func (s *Signal[A]) Name() string {
	return s.name
}

// Subscribe connects fn to the signal.
func (s *Signal[A]) Subscribe(fn func(args ...A)) Connection {
	conn := &signalConnection[A]{signal: s, fn: fn}
	conn.connected.Store(true)

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	return conn
}

// Fire calls every function connected when Fire starts. A connection dropped
// during the pass is still called for this pass.
func (s *Signal[A]) Fire(args ...A) {
	s.mu.Lock()
	snapshot := slices.Clone(s.conns)
	s.mu.Unlock()

	for _, conn := range snapshot {
		conn.fn(args...)
	}
}

// Len returns the number of live connections.
func (s *Signal[A]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

func (s *Signal[A]) String() string {
	return fmt.Sprintf("Signal{name=%s,connections=%d}", s.name, s.Len())
}

func (s *Signal[A]) drop(conn *signalConnection[A]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.conns, conn); i >= 0 {
		s.conns = slices.Delete(s.conns, i, i+1)
	}
}

type signalConnection[A any] struct {
	signal    *Signal[A]
	fn        func(args ...A)
	connected atomic.Bool
}

func (c *signalConnection[A]) Disconnect() {
	if c.connected.CompareAndSwap(true, false) {
		c.signal.drop(c)
	}
}

func (c *signalConnection[A]) Connected() bool {
	return c.connected.Load()
}
