package libemit

type (
	// Broadcast is an externally provided signal primitive. Subscribe connects fn and
	// Fire calls every connected function with args.
	Broadcast[A any] interface {
		Subscribe(fn func(args ...A)) Connection
		Fire(args ...A)
	}

	// Connection is the handle returned by Broadcast.Subscribe.
	Connection interface {
		// Disconnect stops future deliveries. Calling it more than once is allowed.
		Disconnect()
		// Connected reports whether the connection still receives deliveries.
		Connected() bool
	}

	// BroadcastFactory creates the broadcast backing a single event. It is called
	// at most once per event, the first time the event is used.
	BroadcastFactory[K comparable, A any] func(event K) Broadcast[A]
)
