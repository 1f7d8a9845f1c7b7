package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/config"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/errors"
)

const (
	// maxScanTokenSize is the maximum length of one line from the DVL.
	// Velocity reports with full transducer detail stay well below 4KB.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// initialBufferSize is the scanner's starting buffer.
	initialBufferSize = 64 * 1024
	// writeTimeout bounds a write when the caller's context has no deadline.
	writeTimeout = 5 * time.Second
)

// TCPTransport implements Transport over a TCP connection to the DVL.
type TCPTransport struct {
	log     *slog.Logger
	options *config.Options
	conn    net.Conn
	mu      sync.Mutex // Protects conn and closing; never held across I/O
	closing bool       // Whether Close() has been called (intentional shutdown)

	// writeMu serializes writes. Close does not take it, so closing the
	// connection unblocks a stalled write.
	writeMu sync.Mutex
}

// Compile-time verification that TCPTransport implements the Transport interface.
var _ config.Transport = (*TCPTransport)(nil)

// NewTCPTransport creates a transport that dials options.Endpoint() on Start.
//
// The logger is used for operation tracking and debugging. It will receive
// debug, info, warn, and error messages during transport operations.
func NewTCPTransport(log *slog.Logger, options *config.Options) *TCPTransport {
	return &TCPTransport{
		log:     log.With("component", "tcp_transport"),
		options: options,
	}
}

// Start dials the DVL.
//
// The connect is bounded by the options' dial timeout and by ctx.
// Returns ConnectionError if the device cannot be reached.
func (t *TCPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return errors.ErrDriverAlreadyConnected
	}

	address := t.options.Endpoint()
	t.log.Info("Connecting to DVL", "address", address)

	dialer := net.Dialer{Timeout: t.options.EffectiveDialTimeout()}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		t.log.Error("Failed to connect to DVL", "address", address, "error", err)

		return &errors.ConnectionError{Address: address, Err: err}
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
	}

	t.conn = conn
	t.log.Info("Connected to DVL", "address", address, "local_address", conn.LocalAddr().String())

	return nil
}

// ReadLines reads newline-delimited lines from the DVL.
//
// This method starts a goroutine that scans the socket and sends each
// non-empty line, without its terminator, to the lines channel. Each line is
// a fresh slice owned by the receiver.
//
// The goroutine exits when:
//   - The peer closes the connection
//   - The context is cancelled
//   - A socket error occurs
//
// A socket error is sent to the error channel unless Close() was called. A
// clean peer close produces no error. Both channels are closed on exit.
func (t *TCPTransport) ReadLines(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		if conn == nil {
			errs <- errors.ErrTransportNotConnected

			return
		}

		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, initialBufferSize), maxScanTokenSize)

		lineCount := 0

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			lineCount++
			t.log.Debug("Received line from DVL", "line_count", lineCount, "line_len", len(line))

			select {
			case lines <- bytes.Clone(line):
			case <-ctx.Done():
				t.log.Debug("Context cancelled during line send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		err := scanner.Err()

		t.mu.Lock()
		isClosing := t.closing
		t.mu.Unlock()

		switch {
		case isClosing:
			t.log.Debug("Connection closed during shutdown")
		case err != nil:
			t.log.Error("Socket error while reading DVL output", "error", err)

			errs <- fmt.Errorf("read from DVL: %w", err)
		default:
			t.log.Info("DVL closed the connection", "line_count", lineCount)
		}
	}()

	return lines, errs
}

// SendMessage writes one command line to the DVL.
//
// A newline is appended if missing. This method is safe for concurrent use.
// The write is bounded by ctx's deadline, or writeTimeout when it has none;
// cancelling ctx during a blocked write aborts it.
func (t *TCPTransport) SendMessage(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	conn, closing := t.conn, t.closing
	t.mu.Unlock()

	if conn == nil || closing {
		return errors.ErrTransportNotConnected
	}

	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending command to DVL", "data_len", len(data))

	// Copy rather than append so the caller's backing array is never touched.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		newData := make([]byte, len(data)+1)
		copy(newData, data)
		newData[len(data)] = '\n'
		data = newData
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}

	if err := conn.SetWriteDeadline(deadline); err != nil {
		t.log.Debug("Failed to set write deadline", "error", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !t.IsReady() {
			return fmt.Errorf("%w: %w", errors.ErrTransportNotConnected, err)
		}

		t.log.Error("Failed to write command to DVL", "error", err)

		return fmt.Errorf("write to DVL: %w", err)
	}

	t.log.Debug("Command sent successfully")

	return nil
}

// IsReady reports whether the connection is open.
func (t *TCPTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil && !t.closing
}

// Close closes the connection. It's safe to call Close multiple times or on
// a transport that never connected.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true

	if t.conn != nil {
		t.log.Debug("Closing DVL connection")

		if err := t.conn.Close(); err != nil {
			return fmt.Errorf("close DVL connection: %w", err)
		}
	}

	return nil
}
