package libemit

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Listener is a registered callable. Its identity is the pointer returned by
// NewListener: two listeners built from the same function are different listeners.
type Listener[A any] struct {
	id string
	fn func(args ...A)
}

// NewListener wraps fn into a listener that can be passed to On, Once and Off.
func NewListener[A any](fn func(args ...A)) *Listener[A] {
	return &Listener[A]{id: uuid.NewString(), fn: fn}
}

// ID returns a random identifier used in logs and failure reports.
func (l *Listener[A]) ID() string {
	return l.id
}

// Call invokes the listener directly, bypassing any emitter.
func (l *Listener[A]) Call(args ...A) {
	l.fn(args...)
}

func (l *Listener[A]) valid() bool {
	return l != nil && l.fn != nil
}

// shot guards a once registration. claim succeeds for exactly one caller.
type shot struct {
	fired atomic.Bool
}

func (s *shot) claim() bool {
	return s.fired.CompareAndSwap(false, true)
}
