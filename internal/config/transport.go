// Package config provides configuration types for the DVL A50 driver.
package config

import "context"

// Transport defines the interface for DVL communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative links to the device (e.g., a serial bridge or a replay file).
//
// The default implementation is TCPTransport which dials the DVL's JSON port.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start opens the link to the device.
	// This is called before any lines are sent or received.
	Start(ctx context.Context) error

	// ReadLines returns channels for receiving raw lines and errors.
	// Each value on the line channel is one newline-delimited line with the
	// terminator stripped. The error channel yields the error that ended the
	// read (peer close, socket fault). Both channels are closed when reading
	// completes.
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage writes one command line to the device.
	// The newline is appended if missing.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the link and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
