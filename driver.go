package dvla50

import (
	"context"
	"log/slog"
	"time"
)

// Driver controls one DVL A50 over a single connection.
//
// Lifecycle: Drivers are single-use. After Close(), or after the connection
// is lost, create a new driver with NewDriver().
//
// Example usage:
//
//	driver := NewDriver()
//	defer driver.Close()
//
//	if err := driver.Start(ctx, WithAddress("192.168.194.95")); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, ok, err := driver.TriggerPing(ctx, time.Second).Wait(ctx)
type Driver interface {
	// Start connects to the DVL and starts processing its output.
	// Must be called before commands can succeed.
	// Returns ConnectionError if the DVL cannot be reached.
	Start(ctx context.Context, opts ...Option) error

	// CalibrateGyro asks the DVL to calibrate its gyroscope.
	// A zero timeout selects the configured command timeout.
	CalibrateGyro(ctx context.Context, timeout time.Duration) *Future

	// TriggerPing requests one acoustic ping. Up to 15 triggers can be queued.
	TriggerPing(ctx context.Context, timeout time.Duration) *Future

	// ResetDeadReckoning restarts dead reckoning at the current position.
	ResetDeadReckoning(ctx context.Context, timeout time.Duration) *Future

	// SetConfig sends configuration parameters as JSON text, either as an
	// object or in the `"parameters": {...}` form. The text is not validated;
	// see ValidateConfig and ConfigParams.
	SetConfig(ctx context.Context, config string, timeout time.Duration) *Future

	// GetConfig reads the DVL configuration into Response.Result.
	GetConfig(ctx context.Context, timeout time.Duration) *Future

	// AttachVelocityCallback sets the single receiver of velocity reports,
	// replacing any previous one. Pass nil to detach.
	//
	// Callbacks run on the receive loop, so a slow callback delays replies.
	// A callback may call Close.
	AttachVelocityCallback(cb VelocityCallback)

	// AttachDeadReckoningCallback sets the single receiver of dead reckoning
	// reports, replacing any previous one. Pass nil to detach.
	AttachDeadReckoningCallback(cb DeadReckoningCallback)

	// Pending returns the number of commands awaiting a reply.
	Pending() int

	// Done is closed when the connection ends.
	Done() <-chan struct{}

	// Err returns why the connection ended, or nil.
	Err() error

	// Close stops the driver and closes the connection.
	// Pending commands resolve with ErrControllerStopped.
	Close() error
}

// NewDriver creates a new driver.
// Call Start() to connect.
func NewDriver() Driver {
	return newDriverImpl()
}

// NopLogger returns a logger that discards all output.
// Use this when you want silent operation with no logging overhead.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
