package libemit

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestListenerFailure_Unwrap(t *testing.T) {
	cause := errors.New("cause")

	withError := &ListenerFailure{Event: "test", ListenerID: "l1", Value: cause}
	assert.True(t, errors.Is(withError, cause))
	assert.True(t, errors.Is(withError, ErrListenerPanic))

	withString := &ListenerFailure{Event: "test", ListenerID: "l1", Value: "oh no"}
	assert.Equal(t, ErrListenerPanic, errors.Unwrap(withString))
	assert.Equal(t, "listener l1 on event test panicked: oh no", withString.Error())
}

func TestWrapDuplicate(t *testing.T) {
	l := NewListener(func(...int) {})
	err := wrapDuplicate("test", l)

	assert.True(t, errors.Is(err, ErrDuplicateListener))
	assert.Equal(t, ErrDuplicateListener, errors.Cause(err))
	assert.Contains(t, err.Error(), "event test")
}
