package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/config"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/errors"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/metrics"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/protocol"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/transport"
)

// Driver implements the DVL driver interface.
type Driver struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	options    *config.Options
	metrics    *metrics.Metrics

	// Callbacks attached before Start are handed to the controller on Start.
	onVelocity   protocol.VelocityCallback
	onDeadReckon protocol.DeadReckoningCallback

	// cancel stops the transport reader and controller loops.
	cancel context.CancelFunc

	// Lifecycle management
	mu        sync.Mutex
	done      chan struct{}
	doneOnce  sync.Once
	connected bool
	closed    bool      // Tracks if Close() has been called
	closeOnce sync.Once // Ensures Close() only runs once
}

// New creates a new driver.
//
// The driver is not connected after creation. Call Start() with options to connect.
func New() *Driver {
	return &Driver{
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		done: make(chan struct{}),
	}
}

// closeDone closes the done channel exactly once.
func (d *Driver) closeDone() {
	d.doneOnce.Do(func() {
		close(d.done)
	})
}

// Start connects to the DVL and begins processing its output.
//
// Commands can be issued once Start returns. ctx bounds only the connect;
// the connection stays up until Close() or until the device goes away.
//
// Returns ConnectionError if the device cannot be reached.
func (d *Driver) Start(ctx context.Context, options *config.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.ErrDriverClosed
	}

	if d.connected {
		return errors.ErrDriverAlreadyConnected
	}

	// Default to empty options if nil
	if options == nil {
		options = &config.Options{}
	}

	if options.Logger != nil {
		d.log = options.Logger
	}

	d.log = d.log.With("component", "driver")
	d.options = options

	d.metrics = metrics.New()
	if err := d.metrics.Register(options.MetricsRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Create or use injected transport
	var tr config.Transport

	if options.Transport != nil {
		tr = options.Transport

		d.log.Debug("Using injected custom transport")
	} else {
		tr = transport.NewTCPTransport(d.log, options)
	}

	if err := tr.Start(ctx); err != nil {
		d.metrics.Unregister(options.MetricsRegisterer)

		return fmt.Errorf("start transport: %w", err)
	}

	d.transport = tr

	d.controller = protocol.NewController(d.log, tr, protocol.Config{
		DefaultTimeout: options.EffectiveCommandTimeout(),
		SweepInterval:  options.EffectiveSweepInterval(),
		MaxQueueDepth:  options.EffectiveMaxQueueDepth(),
		Metrics:        d.metrics,
	})
	d.controller.AttachVelocityCallback(d.onVelocity)
	d.controller.AttachDeadReckoningCallback(d.onDeadReckon)

	// The loops outlive ctx, which may only cover the connect; Close ends them.
	var loopCtx context.Context

	loopCtx, d.cancel = context.WithCancel(context.Background())

	if err := d.controller.Start(loopCtx); err != nil {
		d.cancel()
		_ = tr.Close()
		d.metrics.Unregister(options.MetricsRegisterer)

		return fmt.Errorf("start protocol controller: %w", err)
	}

	go func() {
		<-d.controller.Done()
		d.closeDone()
	}()

	d.connected = true
	d.log.Info("Driver started",
		"command_timeout", options.EffectiveCommandTimeout(),
		"max_queue_depth", options.EffectiveMaxQueueDepth(),
	)

	return nil
}

// activeController returns the controller, or nil before Start and after Close.
func (d *Driver) activeController() *protocol.Controller {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	return d.controller
}

// issue routes a command to the controller, failing it when not connected.
func (d *Driver) issue(command string, send func(*protocol.Controller) *protocol.Future) *protocol.Future {
	d.mu.Lock()
	c, connected, closed := d.controller, d.connected, d.closed
	d.mu.Unlock()

	switch {
	case closed:
		return protocol.FailedFuture(command, errors.ErrDriverClosed)
	case !connected:
		return protocol.FailedFuture(command, errors.ErrDriverNotConnected)
	}

	return send(c)
}

// CalibrateGyro asks the DVL to calibrate its gyroscope.
// A zero timeout selects the configured command timeout.
func (d *Driver) CalibrateGyro(ctx context.Context, timeout time.Duration) *protocol.Future {
	return d.issue(protocol.CommandCalibrateGyro, func(c *protocol.Controller) *protocol.Future {
		return c.CalibrateGyro(ctx, timeout)
	})
}

// TriggerPing requests one acoustic ping.
func (d *Driver) TriggerPing(ctx context.Context, timeout time.Duration) *protocol.Future {
	return d.issue(protocol.CommandTriggerPing, func(c *protocol.Controller) *protocol.Future {
		return c.TriggerPing(ctx, timeout)
	})
}

// ResetDeadReckoning restarts dead reckoning at the current pose.
func (d *Driver) ResetDeadReckoning(ctx context.Context, timeout time.Duration) *protocol.Future {
	return d.issue(protocol.CommandResetDeadReckoning, func(c *protocol.Controller) *protocol.Future {
		return c.ResetDeadReckoning(ctx, timeout)
	})
}

// SetConfig sends configuration parameters given as JSON text.
func (d *Driver) SetConfig(ctx context.Context, config string, timeout time.Duration) *protocol.Future {
	return d.issue(protocol.CommandSetConfig, func(c *protocol.Controller) *protocol.Future {
		return c.SetConfig(ctx, config, timeout)
	})
}

// GetConfig reads the current configuration; it arrives in Response.Result.
func (d *Driver) GetConfig(ctx context.Context, timeout time.Duration) *protocol.Future {
	return d.issue(protocol.CommandGetConfig, func(c *protocol.Controller) *protocol.Future {
		return c.GetConfig(ctx, timeout)
	})
}

// AttachVelocityCallback sets the receiver of velocity reports, replacing
// any previous one. It may be called before Start. Pass nil to detach.
// The callback may call Close.
func (d *Driver) AttachVelocityCallback(cb protocol.VelocityCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onVelocity = cb

	if d.controller != nil {
		d.controller.AttachVelocityCallback(cb)
	}
}

// AttachDeadReckoningCallback sets the receiver of dead reckoning reports,
// replacing any previous one. It may be called before Start. Pass nil to detach.
func (d *Driver) AttachDeadReckoningCallback(cb protocol.DeadReckoningCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.onDeadReckon = cb

	if d.controller != nil {
		d.controller.AttachDeadReckoningCallback(cb)
	}
}

// Pending returns the number of commands awaiting a reply.
func (d *Driver) Pending() int {
	if c := d.activeController(); c != nil {
		return c.Pending()
	}

	return 0
}

// Done returns a channel that is closed when the connection ends, either
// through Close() or because the device went away.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Err returns the error that ended the connection, or nil while connected
// and after a clean Close().
func (d *Driver) Err() error {
	d.mu.Lock()
	c := d.controller
	d.mu.Unlock()

	if c == nil {
		return nil
	}

	return c.FatalError()
}

// Close stops the driver and closes the connection.
//
// Commands still pending resolve with ErrControllerStopped and the driver's
// collectors leave the metrics registerer. After Close(),
// the driver cannot be reused; create a new one with New().
// This method is safe to call multiple times.
func (d *Driver) Close() error {
	var closeErr error

	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		wasConnected := d.connected
		d.connected = false
		d.mu.Unlock()

		defer d.closeDone()

		if !wasConnected {
			return
		}

		d.log.Info("Closing driver")

		d.controller.Stop()
		d.cancel()
		d.metrics.Unregister(d.options.MetricsRegisterer)

		if err := d.transport.Close(); err != nil {
			closeErr = fmt.Errorf("close transport: %w", err)
		}

		d.log.Info("Driver closed")
	})

	return closeErr
}
