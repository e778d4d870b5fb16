package libemit

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateListener = errors.New("listener already registered for event")
	ErrNilListener       = errors.New("listener cannot be nil")
	ErrListenerPanic     = errors.New("listener panicked")

	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrTerminated       = errors.New("program exit")
	ErrRateLimit        = errors.New("rate limit exceeded")
)

// ListenerFailure describes a panic recovered from a single listener invocation.
// It is reported to the failure handler and the logger, never to the caller of Emit.
type ListenerFailure struct {
	Event      any
	ListenerID string
	Backend    string
	Value      any
	Stack      []byte
}

func (f *ListenerFailure) Error() string {
	return fmt.Sprintf("listener %s on event %v panicked: %v", f.ListenerID, f.Event, f.Value)
}

// Unwrap returns the panic value when it is an error, ErrListenerPanic otherwise.
func (f *ListenerFailure) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return ErrListenerPanic
}

// Is matches ErrListenerPanic regardless of the panic value.
func (f *ListenerFailure) Is(target error) bool {
	return target == ErrListenerPanic
}

// FailureHandler observes listener failures. It runs on the goroutine of the failed
// listener and must not block.
type FailureHandler func(*ListenerFailure)

func wrapDuplicate(event any, l interface{ ID() string }) error {
	return errors.Wrapf(ErrDuplicateListener, "event %v, listener %s", event, l.ID())
}
