package libemit

import (
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"
)

// mockBroadcast records subscriptions and fires all of them, ignoring disconnects,
// so tests can check how the emitter behaves on top of a primitive that never
// forgets a subscriber.
type mockBroadcast struct {
	mock.Mock

	mu  sync.Mutex
	fns []func(args ...any)
}

func (m *mockBroadcast) Subscribe(fn func(args ...any)) Connection {
	args := m.Called(fn)

	m.mu.Lock()
	m.fns = append(m.fns, fn)
	m.mu.Unlock()

	return args.Get(0).(Connection)
}

func (m *mockBroadcast) Fire(args ...any) {
	m.Called(args...)

	m.mu.Lock()
	fns := slices.Clone(m.fns)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(args...)
	}
}

type mockConnection struct {
	mock.Mock
}

func (m *mockConnection) Disconnect() {
	m.Called()
}

func (m *mockConnection) Connected() bool {
	return m.Called().Bool(0)
}

// spy records every call it receives.
type spy struct {
	mu    sync.Mutex
	calls [][]any
}

func (s *spy) record(args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, slices.Clone(args))
}

func (s *spy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

func (s *spy) call(i int) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[i]
}
