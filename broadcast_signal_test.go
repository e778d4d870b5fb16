package libemit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_FireInConnectionOrder(t *testing.T) {
	s := NewSignal[string]("test")
	var got []string

	s.Subscribe(func(args ...string) { got = append(got, "a:"+args[0]) })
	s.Subscribe(func(args ...string) { got = append(got, "b:"+args[0]) })

	s.Fire("x")

	assert.Equal(t, []string{"a:x", "b:x"}, got)
	assert.Equal(t, 2, s.Len())
}

func TestSignal_Disconnect(t *testing.T) {
	s := NewSignal[int]("test")
	var calls int

	conn := s.Subscribe(func(...int) { calls++ })
	require.True(t, conn.Connected())

	conn.Disconnect()
	conn.Disconnect()

	assert.False(t, conn.Connected())
	assert.Equal(t, 0, s.Len())

	s.Fire(1)
	assert.Equal(t, 0, calls)
}

func TestSignal_DisconnectDuringFireKeepsSnapshot(t *testing.T) {
	s := NewSignal[int]("test")
	var second int
	var conn2 Connection

	s.Subscribe(func(...int) { conn2.Disconnect() })
	conn2 = s.Subscribe(func(...int) { second++ })

	s.Fire()
	assert.Equal(t, 1, second)

	s.Fire()
	assert.Equal(t, 1, second)
}

func TestSignal_SubscribeDuringFireWaitsForNextFire(t *testing.T) {
	s := NewSignal[int]("test")
	var late int
	var subscribed bool

	s.Subscribe(func(...int) {
		if !subscribed {
			subscribed = true
			s.Subscribe(func(...int) { late++ })
		}
	})

	s.Fire()
	assert.Equal(t, 0, late)

	s.Fire()
	assert.Equal(t, 1, late)
}

func TestSignal_String(t *testing.T) {
	s := NewSignal[int]("clicks")
	s.Subscribe(func(...int) {})

	assert.Equal(t, "clicks", s.Name())
	assert.Equal(t, "Signal{name=clicks,connections=1}", s.String())
}
