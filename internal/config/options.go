package config

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultPort is the TCP port of the DVL's JSON protocol.
	DefaultPort = 16171

	// DefaultCommandTimeout bounds how long a command waits for its reply.
	DefaultCommandTimeout = 3 * time.Second

	// DefaultSweepInterval is how often pending commands are checked for expiry.
	DefaultSweepInterval = 100 * time.Millisecond

	// DefaultDialTimeout bounds the TCP connect.
	DefaultDialTimeout = 5 * time.Second

	// DefaultMaxQueueDepth is the number of same-type commands the DVL queues.
	// The A50 accepts up to 15 queued trigger_ping commands.
	DefaultMaxQueueDepth = 15
)

// Options configures the behavior of the DVL driver.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Address is the host name or IP of the DVL.
	Address string

	// Port is the TCP port of the DVL. Zero selects DefaultPort.
	Port int

	// DialTimeout bounds the initial TCP connect. Zero selects DefaultDialTimeout.
	DialTimeout time.Duration

	// CommandTimeout is used by commands issued with a zero timeout.
	// Zero selects DefaultCommandTimeout.
	CommandTimeout time.Duration

	// SweepInterval is the period of the timeout sweeper.
	// Zero selects DefaultSweepInterval.
	SweepInterval time.Duration

	// MaxQueueDepth caps outstanding commands per command type.
	// Zero selects DefaultMaxQueueDepth; a negative value disables the cap.
	MaxQueueDepth int

	// Transport replaces the TCP transport, mostly for tests and replays.
	// When set, Address and Port are ignored.
	Transport Transport

	// MetricsRegisterer receives the driver's Prometheus collectors.
	// If nil, metrics are collected but not registered.
	MetricsRegisterer prometheus.Registerer
}

// Endpoint returns the host:port the TCP transport dials.
func (o *Options) Endpoint() string {
	port := o.Port
	if port == 0 {
		port = DefaultPort
	}

	return net.JoinHostPort(o.Address, strconv.Itoa(port))
}

// EffectiveCommandTimeout returns CommandTimeout or its default.
func (o *Options) EffectiveCommandTimeout() time.Duration {
	if o.CommandTimeout > 0 {
		return o.CommandTimeout
	}

	return DefaultCommandTimeout
}

// EffectiveSweepInterval returns SweepInterval or its default.
func (o *Options) EffectiveSweepInterval() time.Duration {
	if o.SweepInterval > 0 {
		return o.SweepInterval
	}

	return DefaultSweepInterval
}

// EffectiveDialTimeout returns DialTimeout or its default.
func (o *Options) EffectiveDialTimeout() time.Duration {
	if o.DialTimeout > 0 {
		return o.DialTimeout
	}

	return DefaultDialTimeout
}

// EffectiveMaxQueueDepth returns the per-type queue cap, 0 meaning unbounded.
func (o *Options) EffectiveMaxQueueDepth() int {
	switch {
	case o.MaxQueueDepth < 0:
		return 0
	case o.MaxQueueDepth == 0:
		return DefaultMaxQueueDepth
	default:
		return o.MaxQueueDepth
	}
}
