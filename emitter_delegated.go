package libemit

// NewDelegatedEmitter creates an Emitter that hands subscription and firing to one
// Broadcast per event, built by factory. With a nil factory, SignalFactory is used.
//
// Delivery follows the broadcast's own model; with Signal, Emit runs every listener
// in registration order before returning.
func NewDelegatedEmitter[K comparable, A any](factory BroadcastFactory[K, A], opts ...Option) *Emitter[K, A] {
	if factory == nil {
		factory = SignalFactory[K, A]()
	}

	e, _ := newEmitter[K, A](backendDelegated, opts)
	e.newChannel = func(event K) channel[A] {
		return delegatedChannel[A]{broadcast: factory(event)}
	}

	return e
}

type (
	delegatedChannel[A any] struct {
		broadcast Broadcast[A]
	}

	// connectionHandle keeps the connection of a registration so Off can disconnect it.
	connectionHandle struct {
		conn Connection
	}
)

func (c delegatedChannel[A]) connect(fn func(args ...A)) handle {
	return connectionHandle{conn: c.broadcast.Subscribe(fn)}
}

func (c delegatedChannel[A]) fire(args []A) {
	c.broadcast.Fire(args...)
}

func (h connectionHandle) release() {
	if h.conn != nil {
		h.conn.Disconnect()
	}
}
