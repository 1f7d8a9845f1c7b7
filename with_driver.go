package dvla50

import (
	"context"
	"fmt"
)

// WithDriver manages driver lifecycle with automatic cleanup.
//
// This helper creates a driver, starts it with the provided options, executes
// the callback function, and ensures proper cleanup via Close() when done.
//
// The callback receives a connected Driver. If the callback returns an error,
// it is returned to the caller. If Close() fails, a warning is logged but
// does not override the callback's error.
//
// Example usage:
//
//	err := dvla50.WithDriver(ctx, func(d dvla50.Driver) error {
//	    resp, ok, err := d.ResetDeadReckoning(ctx, 0).Wait(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    if !ok || !resp.Success {
//	        return fmt.Errorf("reset failed")
//	    }
//	    return nil
//	},
//	    dvla50.WithAddress("192.168.194.95"),
//	    dvla50.WithLogger(log),
//	)
func WithDriver(ctx context.Context, fn func(Driver) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyDriverOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	driver := NewDriver()
	if err := driver.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start driver: %w", err)
	}

	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			log.Warn("failed to close driver", "error", closeErr)
		}
	}()

	return fn(driver)
}
