package errors

import (
	"errors"
	"fmt"
)

// DVLError is the base interface for all driver errors.
type DVLError interface {
	error
	IsDVLError() bool
}

// Compile-time verification that all error types implement DVLError.
var (
	_ DVLError = (*ConnectionError)(nil)
	_ DVLError = (*MessageParseError)(nil)
	_ DVLError = (*JSONDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrDriverNotConnected indicates the driver is not connected.
	ErrDriverNotConnected = errors.New("driver not connected")

	// ErrDriverAlreadyConnected indicates the driver is already connected.
	ErrDriverAlreadyConnected = errors.New("driver already connected")

	// ErrDriverClosed indicates the driver has been closed and cannot be reused.
	ErrDriverClosed = errors.New("driver closed: drivers are single-use, create a new one with NewDriver()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrConnectionLost indicates the device connection dropped while requests were pending.
	ErrConnectionLost = errors.New("connection lost")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrQueueFull indicates too many requests of one command type are outstanding.
	ErrQueueFull = errors.New("request queue full")

	// ErrUnknownMessageType indicates the report type is not recognized by the driver.
	// Callers should skip these lines rather than treating them as fatal.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// ConnectionError indicates failure to connect to the DVL.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("failed to connect to DVL: %v", e.Err)
	}

	return fmt.Sprintf("failed to connect to DVL at %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsDVLError implements DVLError.
func (e *ConnectionError) IsDVLError() bool { return true }

// MessageParseError indicates a decoded line could not be turned into a report.
type MessageParseError struct {
	Message string
	Err     error
	Data    map[string]any
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}

// IsDVLError implements DVLError.
func (e *MessageParseError) IsDVLError() bool { return true }

// JSONDecodeError indicates a line from the DVL was not valid JSON.
// This error preserves the original raw data that failed to parse.
type JSONDecodeError struct {
	RawData string
	Err     error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from DVL: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// IsDVLError implements DVLError.
func (e *JSONDecodeError) IsDVLError() bool { return true }
