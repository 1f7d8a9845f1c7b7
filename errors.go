package dvla50

import "github.com/wagiedev/dvl-a50-sdk-go/internal/errors"

// Re-export error types from internal package

// ConnectionError indicates the DVL could not be reached.
type ConnectionError = errors.ConnectionError

// MessageParseError indicates a line from the DVL had a known type but a bad shape.
type MessageParseError = errors.MessageParseError

// JSONDecodeError indicates a line from the DVL was not JSON.
type JSONDecodeError = errors.JSONDecodeError

// DVLError is the base interface for all driver errors.
type DVLError = errors.DVLError

// Re-export sentinel errors from internal package.
var (
	// ErrDriverNotConnected indicates a command was issued before Start.
	ErrDriverNotConnected = errors.ErrDriverNotConnected

	// ErrDriverAlreadyConnected indicates Start was called twice.
	ErrDriverAlreadyConnected = errors.ErrDriverAlreadyConnected

	// ErrDriverClosed indicates the driver has been closed and cannot be reused.
	ErrDriverClosed = errors.ErrDriverClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrConnectionLost indicates the connection to the DVL dropped.
	ErrConnectionLost = errors.ErrConnectionLost

	// ErrControllerStopped indicates the driver stopped while the command was pending.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrQueueFull indicates too many commands of one type were pending.
	ErrQueueFull = errors.ErrQueueFull
)
