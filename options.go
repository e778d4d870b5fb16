package libemit

// Option configures an Emitter.
type Option func(*config)

type config struct {
	logger    Logger
	onFailure FailureHandler
	metrics   *Metrics
	spawner   Spawner
}

func defaultConfig() config {
	return config{
		logger: NopLogger(),
	}
}

// WithLogger sets the logger used for registration changes and listener failures.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFailureHandler sets a callback that observes every recovered listener panic.
func WithFailureHandler(h FailureHandler) Option {
	return func(c *config) {
		c.onFailure = h
	}
}

// WithMetrics reports emits, failures and listener counts to m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithSpawner replaces the task launcher of the native backend. The spawner must not
// run the task on the caller's goroutine if Emit is expected to stay non-blocking.
// Tasks launched by a custom spawner are not tracked by Wait.
// Ignored by the delegated backend.
func WithSpawner(s Spawner) Option {
	return func(c *config) {
		c.spawner = s
	}
}
