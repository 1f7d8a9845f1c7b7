package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/errors"
)

// envelope holds the discriminator shared by every DVL line.
type envelope struct {
	Type string `json:"type"`
}

// Parse converts one raw line from the DVL into a typed Message.
//
// The logger is used to log debug information about parsing, including
// unknown report types.
//
// Returns a JSONDecodeError when the line is not JSON, a MessageParseError
// when a known type is malformed, and ErrUnknownMessageType for types the
// driver does not handle.
func Parse(log *slog.Logger, line []byte) (Message, error) {
	log = log.With("component", "report_parser")

	line = bytes.TrimSpace(line)

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		log.Debug("Line is not valid JSON", "error", err)

		return nil, &errors.JSONDecodeError{
			RawData: string(line),
			Err:     err,
		}
	}

	if env.Type == "" {
		log.Debug("Line missing 'type' field")

		return nil, parseError(line, fmt.Errorf("missing or invalid 'type' field"))
	}

	var (
		msg Message
		err error
	)

	switch env.Type {
	case TypeVelocity:
		msg, err = parseVelocity(line)
	case TypeDeadReckoning:
		msg, err = parseDeadReckoning(line)
	case TypeResponse:
		msg, err = parseCommandReply(line)
	default:
		log.Debug("Skipping unknown report type", "report_type", env.Type)

		return nil, errors.ErrUnknownMessageType
	}

	if err != nil {
		return nil, parseError(line, err)
	}

	return msg, nil
}

// parseError wraps err with the decoded line for diagnostics.
func parseError(line []byte, err error) *errors.MessageParseError {
	var data map[string]any

	_ = json.Unmarshal(line, &data)

	return &errors.MessageParseError{
		Message: err.Error(),
		Err:     err,
		Data:    data,
	}
}

func parseVelocity(line []byte) (*VelocityReport, error) {
	var r VelocityReport
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, fmt.Errorf("velocity report: %w", err)
	}

	return &r, nil
}

func parseDeadReckoning(line []byte) (*DeadReckoningReport, error) {
	var r DeadReckoningReport
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, fmt.Errorf("dead reckoning report: %w", err)
	}

	return &r, nil
}

func parseCommandReply(line []byte) (*CommandReply, error) {
	var r CommandReply
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, fmt.Errorf("command reply: %w", err)
	}

	if r.ResponseTo == "" {
		return nil, fmt.Errorf("command reply: missing or invalid 'response_to' field")
	}

	if bytes.Equal(r.Result, []byte("null")) {
		r.Result = nil
	}

	return &r, nil
}
