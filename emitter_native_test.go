package libemit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeEmitter_EmitDoesNotBlock(t *testing.T) {
	emitter := NewNativeEmitter[string, any]()
	release := make(chan struct{})
	sibling := make(chan struct{})

	require.NoError(t, emitter.On("test", NewListener(func(...any) { <-release })))
	require.NoError(t, emitter.On("test", NewListener(func(...any) { close(sibling) })))

	returned := make(chan struct{})
	go func() {
		emitter.Emit("test")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a listener")
	}

	select {
	case <-sibling:
	case <-time.After(time.Second):
		t.Fatal("blocked listener stalled its sibling")
	}

	close(release)
	settle(t, emitter)
}

func TestNativeEmitter_WaitHonoursContext(t *testing.T) {
	emitter := NewNativeEmitter[string, any]()
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, emitter.On("test", NewListener(func(...any) { <-release })))
	emitter.Emit("test")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, emitter.Wait(ctx), context.DeadlineExceeded)
}

func TestNativeEmitter_OnceUnderConcurrentEmits(t *testing.T) {
	emitter := NewNativeEmitter[string, any]()
	var calls atomic.Int64

	require.NoError(t, emitter.Once("test", NewListener(func(...any) { calls.Add(1) })))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitter.Emit("test")
		}()
	}
	wg.Wait()
	settle(t, emitter)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 0, emitter.ListenerCount("test"))
}

// queueSpawner collects tasks instead of running them.
type queueSpawner struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queueSpawner) spawn(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks = append(q.tasks, task)
}

func (q *queueSpawner) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

func TestNativeEmitter_LaunchOrderFollowsRegistration(t *testing.T) {
	q := &queueSpawner{}
	emitter := NewNativeEmitter[string, int](WithSpawner(q.spawn))
	var order []int

	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, emitter.On("test", NewListener(func(...int) {
			order = append(order, i)
		})))
	}

	emitter.Emit("test")
	assert.Empty(t, order, "nothing runs until the spawner runs it")
	require.Len(t, q.tasks, 3)

	q.runAll()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestNativeEmitter_ArgumentsAreCopied(t *testing.T) {
	q := &queueSpawner{}
	emitter := NewNativeEmitter[string, int](WithSpawner(q.spawn))
	var got []int

	require.NoError(t, emitter.On("test", NewListener(func(args ...int) {
		got = append(got, args...)
	})))

	args := []int{1, 2}
	emitter.Emit("test", args...)
	args[0] = 99

	q.runAll()
	assert.Equal(t, []int{1, 2}, got)
}

func TestNativeEmitter_OffDoesNotCancelLaunchedInvocation(t *testing.T) {
	q := &queueSpawner{}
	emitter := NewNativeEmitter[string, any](WithSpawner(q.spawn))
	s := &spy{}
	cb := NewListener(s.record)

	require.NoError(t, emitter.On("test", cb))
	emitter.Emit("test", "launched")
	emitter.Off("test", cb)
	emitter.Emit("test", "after off")

	q.runAll()
	require.Equal(t, 1, s.count())
	assert.Equal(t, []any{"launched"}, s.call(0))
}

func TestNativeEmitter_OnceRemovedBeforeListenerRuns(t *testing.T) {
	q := &queueSpawner{}
	emitter := NewNativeEmitter[string, any](WithSpawner(q.spawn))
	var countInside int

	cb := NewListener(func(...any) {
		countInside = emitter.ListenerCount("test")
	})
	require.NoError(t, emitter.Once("test", cb))
	require.NoError(t, emitter.On("test", NewListener(func(...any) {})))

	emitter.Emit("test")
	emitter.Emit("test")
	require.Len(t, q.tasks, 4)

	q.runAll()
	assert.Equal(t, 1, countInside)
	assert.Equal(t, 1, emitter.ListenerCount("test"))
}

func TestNativeEmitter_CustomSpawnerNotTrackedByWait(t *testing.T) {
	q := &queueSpawner{}
	emitter := NewNativeEmitter[string, any](WithSpawner(q.spawn))

	require.NoError(t, emitter.On("test", NewListener(func(...any) {})))
	emitter.Emit("test")

	settle(t, emitter)
	assert.Len(t, q.tasks, 1)
}
