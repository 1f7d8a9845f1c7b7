package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/errors"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/metrics"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/report"
)

const (
	defaultTimeout       = 3 * time.Second
	defaultSweepInterval = 100 * time.Millisecond
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the TCPTransport but allows for testing
// with mock transports.
type Transport interface {
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// ParseFunc turns one raw line into a typed report.
type ParseFunc func(log *slog.Logger, line []byte) (report.Message, error)

// Config tunes a Controller. Zero values select the defaults.
type Config struct {
	// DefaultTimeout applies to commands issued with a non-positive timeout.
	DefaultTimeout time.Duration

	// SweepInterval is the period of the timeout sweeper.
	SweepInterval time.Duration

	// MaxQueueDepth caps outstanding requests per command type; 0 is unbounded.
	MaxQueueDepth int

	// Metrics receives engine instrumentation. May be nil.
	Metrics *metrics.Metrics

	// Parse overrides report.Parse.
	Parse ParseFunc
}

// VelocityCallback receives velocity reports.
type VelocityCallback func(report.VelocityReport)

// DeadReckoningCallback receives dead reckoning reports.
type DeadReckoningCallback func(report.DeadReckoningReport)

// Controller correlates commands sent to the DVL with the replies it sends
// back, and demultiplexes the unsolicited telemetry stream.
//
// The Controller handles:
//   - Queuing commands per command type and sending them without blocking the caller
//   - Matching each reply to the oldest outstanding command of its type
//   - Expiring commands that get no reply within their timeout
//   - Delivering velocity and dead reckoning reports to one callback each
//   - Failing every outstanding command when the connection drops
//
// The Controller must be started with Start() before replies can be received
// and manages its own goroutines for reading and sweeping.
type Controller struct {
	log       *slog.Logger
	transport Transport
	parse     ParseFunc
	metrics   *metrics.Metrics

	defaultTimeout time.Duration
	sweepInterval  time.Duration

	// Request tracking
	pending *pendingTable

	// Single-slot observer registry
	observersMu  sync.RWMutex
	onVelocity   VelocityCallback
	onDeadReckon DeadReckoningCallback

	// dispatching is set while the receive loop runs a callback.
	dispatching atomic.Bool

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	eg        *errgroup.Group
}

// NewController creates a new protocol controller.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be connected before calling Start().
func NewController(log *slog.Logger, transport Transport, cfg Config) *Controller {
	c := &Controller{
		log:            log.With("component", "protocol"),
		transport:      transport,
		parse:          cfg.Parse,
		metrics:        cfg.Metrics,
		defaultTimeout: cfg.DefaultTimeout,
		sweepInterval:  cfg.SweepInterval,
		pending:        newPendingTable(cfg.MaxQueueDepth),
		done:           make(chan struct{}),
	}

	if c.parse == nil {
		c.parse = func(log *slog.Logger, line []byte) (report.Message, error) {
			return report.Parse(log, line)
		}
	}

	if c.defaultTimeout <= 0 {
		c.defaultTimeout = defaultTimeout
	}

	if c.sweepInterval <= 0 {
		c.sweepInterval = defaultSweepInterval
	}

	return c
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins reading lines from the transport and sweeping expired commands.
//
// This method spawns the receive loop and the timeout sweeper. Both stop when
// the context is cancelled, the transport disconnects, or Stop is called.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	lines, errs := c.transport.ReadLines(ctx)

	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(ctx)

	c.eg.Go(func() error {
		return c.readLoop(egCtx, lines, errs)
	})

	c.eg.Go(func() error {
		return c.sweepLoop(egCtx)
	})

	c.log.Info("Protocol controller started", "sweep_interval", c.sweepInterval)

	return nil
}

// Stop shuts down the controller and fails every outstanding command with
// ErrControllerStopped. It's safe to call Stop multiple times, and from an
// observer callback.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.closeDone()

	// Called from a callback, the receive loop exits after it returns.
	if c.eg != nil && !c.dispatching.Load() {
		_ = c.eg.Wait()
	}

	c.failAll(errors.ErrControllerStopped)
	c.log.Info("Protocol controller stopped")
}

// Wait blocks until the receive loop and sweeper have exited and returns the
// error that ended them, if any.
func (c *Controller) Wait() error {
	if c.eg == nil {
		return nil
	}

	return c.eg.Wait()
}

// Pending returns the number of commands awaiting a reply.
func (c *Controller) Pending() int {
	return c.pending.len()
}

// Issue queues a command of the given type and sends payload to the DVL.
//
// It returns as soon as the payload is written; the Future resolves when the
// reply arrives, the timeout elapses, or the connection fails. A non-positive
// timeout selects the controller default. If the send fails the Future is
// already resolved with a transport failure when Issue returns.
func (c *Controller) Issue(
	ctx context.Context,
	command string,
	payload []byte,
	timeout time.Duration,
) *Future {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	req := &pendingRequest{
		id:       c.generateRequestID(),
		command:  command,
		issuedAt: time.Now(),
		timeout:  timeout,
	}
	req.future = newFuture(req.id, command)

	c.metrics.CommandIssued(command)

	if err := c.pending.push(req); err != nil {
		c.log.Warn("Command rejected", "request_id", req.id, "command", command, "error", err)
		c.finish(req, failure(err), true, metrics.OutcomeTransport)

		return req.future
	}

	c.log.Debug("Sending command", "request_id", req.id, "command", command, "timeout", timeout)

	if err := c.transport.SendMessage(ctx, payload); err != nil {
		c.log.Error("Failed to send command", "request_id", req.id, "command", command, "error", err)

		// The receive loop or a drain may have claimed it in the meantime.
		if c.pending.remove(req) {
			c.finish(req, failure(fmt.Errorf("send command: %w", err)), true, metrics.OutcomeTransport)
		}

		return req.future
	}

	c.log.Debug("Command sent, waiting for reply", "request_id", req.id)

	return req.future
}

// AttachVelocityCallback sets the receiver of velocity reports, replacing any
// previous one. Pass nil to detach.
//
// Callbacks run on the receive loop and should return quickly. They may call
// Stop.
func (c *Controller) AttachVelocityCallback(cb VelocityCallback) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	c.log.Debug("Attaching velocity callback", "detached", cb == nil)
	c.onVelocity = cb
}

// AttachDeadReckoningCallback sets the receiver of dead reckoning reports,
// replacing any previous one. Pass nil to detach.
func (c *Controller) AttachDeadReckoningCallback(cb DeadReckoningCallback) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()

	c.log.Debug("Attaching dead reckoning callback", "detached", cb == nil)
	c.onDeadReckon = cb
}

// readLoop reads lines from the transport and routes them.
func (c *Controller) readLoop(
	ctx context.Context,
	lines <-chan []byte,
	errs <-chan error,
) error {
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				c.log.Debug("Line channel closed")

				lines = nil
				if errs == nil {
					return c.disconnect(nil)
				}

				continue
			}

			c.handleLine(line)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				if lines == nil {
					return c.disconnect(nil)
				}

				continue
			}

			if err != nil {
				return c.disconnect(err)
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return nil

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")
			c.closeDone()
			c.failAll(errors.ErrControllerStopped)

			return nil
		}
	}
}

// disconnect records the connection loss and fails every pending command.
func (c *Controller) disconnect(cause error) error {
	err := errors.ErrConnectionLost
	if cause != nil {
		err = fmt.Errorf("%w: %w", errors.ErrConnectionLost, cause)
	}

	c.log.Error("Transport disconnected", "error", err, "pending", c.pending.len())
	c.SetFatalError(err)
	c.failAll(err)

	return err
}

// failAll drains the pending table, resolving every entry with err.
func (c *Controller) failAll(err error) {
	for _, req := range c.pending.drain(err) {
		c.finish(req, failure(err), true, metrics.OutcomeTransport)
	}
}

// handleLine parses one line and dispatches it.
func (c *Controller) handleLine(line []byte) {
	msg, err := c.parse(c.log, line)
	if stderrors.Is(err, errors.ErrUnknownMessageType) {
		c.log.Warn("Skipping line of unknown type", "error", err)
		c.metrics.Anomaly(metrics.AnomalyUnknownType)

		return
	}

	if err != nil {
		c.log.Warn("Skipping malformed line", "error", err)
		c.metrics.Anomaly(metrics.AnomalyMalformed)

		return
	}

	switch m := msg.(type) {
	case *report.CommandReply:
		c.handleReply(m)

	case *report.VelocityReport:
		c.metrics.ReportReceived(report.TypeVelocity)

		c.observersMu.RLock()
		cb := c.onVelocity
		c.observersMu.RUnlock()

		if cb != nil {
			c.dispatch(func() { cb(*m) })
		}

	case *report.DeadReckoningReport:
		c.metrics.ReportReceived(report.TypeDeadReckoning)

		c.observersMu.RLock()
		cb := c.onDeadReckon
		c.observersMu.RUnlock()

		if cb != nil {
			c.dispatch(func() { cb(*m) })
		}
	}
}

// dispatch runs an observer callback, marking the receive loop as busy in it.
func (c *Controller) dispatch(fn func()) {
	c.dispatching.Store(true)
	defer c.dispatching.Store(false)

	fn()
}

// handleReply completes the oldest pending command of the reply's type.
func (c *Controller) handleReply(reply *report.CommandReply) {
	req := c.pending.popOldest(reply.ResponseTo)
	if req == nil {
		c.log.Warn("No pending request for command reply", "command", reply.ResponseTo)
		c.metrics.Anomaly(metrics.AnomalyUnmatchedReply)

		return
	}

	outcome := metrics.OutcomeSuccess
	if !reply.Success {
		outcome = metrics.OutcomeDeviceFailure

		c.log.Warn("Command returned error",
			"request_id", req.id,
			"command", req.command,
			"error", reply.ErrorMessage,
		)
	}

	c.finish(req, Response{
		Success:      reply.Success,
		ErrorMessage: reply.ErrorMessage,
		Result:       reply.Result,
	}, true, outcome)
}

// sweepLoop periodically expires commands that outlived their timeout.
func (c *Controller) sweepLoop(ctx context.Context) error {
	defer c.log.Debug("Timeout sweeper stopped")

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now())

		case <-c.done:
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// sweep resolves every expired command with no Response.
func (c *Controller) sweep(now time.Time) {
	for _, req := range c.pending.expire(now) {
		c.log.Warn("Command timed out", "request_id", req.id, "command", req.command, "timeout", req.timeout)
		c.finish(req, Response{}, false, metrics.OutcomeTimeout)
	}
}

// finish resolves a request already removed from the pending table.
func (c *Controller) finish(req *pendingRequest, resp Response, answered bool, outcome string) {
	c.metrics.CommandCompleted(req.command, outcome, time.Since(req.issuedAt))
	req.future.complete(resp, answered)
}

// generateRequestID creates a unique request ID using ULID.
func (c *Controller) generateRequestID() string {
	return ulid.Make().String()
}
