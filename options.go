package dvla50

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures DriverOptions using the functional options pattern.
type Option func(*DriverOptions)

// applyDriverOptions applies functional options to a DriverOptions struct.
func applyDriverOptions(opts []Option) *DriverOptions {
	options := &DriverOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *DriverOptions) {
		o.Logger = logger
	}
}

// WithAddress sets the host name or IP address of the DVL.
func WithAddress(address string) Option {
	return func(o *DriverOptions) {
		o.Address = address
	}
}

// WithPort overrides the DVL's TCP port (default 16171).
func WithPort(port int) Option {
	return func(o *DriverOptions) {
		o.Port = port
	}
}

// WithDialTimeout bounds the initial connect (default 5s).
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *DriverOptions) {
		o.DialTimeout = timeout
	}
}

// WithCommandTimeout sets the timeout for commands issued with a zero
// timeout (default 3s).
func WithCommandTimeout(timeout time.Duration) Option {
	return func(o *DriverOptions) {
		o.CommandTimeout = timeout
	}
}

// WithSweepInterval sets how often pending commands are checked for expiry
// (default 100ms). A timeout fires at most one interval late.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *DriverOptions) {
		o.SweepInterval = interval
	}
}

// WithMaxQueueDepth caps the outstanding commands per command type
// (default 15). A negative depth removes the cap.
func WithMaxQueueDepth(depth int) Option {
	return func(o *DriverOptions) {
		o.MaxQueueDepth = depth
	}
}

// WithTransport replaces the TCP connection, e.g. with a mock or a replay.
func WithTransport(transport Transport) Option {
	return func(o *DriverOptions) {
		o.Transport = transport
	}
}

// WithMetricsRegisterer registers the driver's Prometheus collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *DriverOptions) {
		o.MetricsRegisterer = reg
	}
}
