package protocol

import (
	"encoding/json"
	"strings"
)

// Command types understood by the DVL. A reply's "response_to" field carries
// the same value, which is what pending requests are keyed by.
const (
	CommandCalibrateGyro      = "calibrate_gyro"
	CommandTriggerPing        = "trigger_ping"
	CommandResetDeadReckoning = "reset_dead_reckoning"
	CommandSetConfig          = "set_config"
	CommandGetConfig          = "get_config"
)

// Response is the terminal value of an answered command.
//
// Transport failures are reported as a Response with Success false and Err
// set to the cause (ErrConnectionLost, ErrControllerStopped, ErrQueueFull or
// the send error). Device failures carry the DVL's own ErrorMessage and a nil Err.
type Response struct {
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message,omitempty"` //nolint:tagliatelle // DVL uses snake_case
	Result       json.RawMessage `json:"result,omitempty"`
	Err          error           `json:"-"`
}

// failure builds the Response delivered for a transport-level failure.
func failure(err error) Response {
	return Response{
		Success:      false,
		ErrorMessage: err.Error(),
		Err:          err,
	}
}

// commandPayload is the wire form of a parameterless command.
//
// Wire format:
//
//	{"command": "calibrate_gyro"}
type commandPayload struct {
	Command string `json:"command"`
}

// BuildCommand returns the wire payload of a parameterless command.
func BuildCommand(command string) []byte {
	data, _ := json.Marshal(commandPayload{Command: command})

	return data
}

// BuildSetConfig returns the wire payload of a set_config command.
//
// config is embedded under "parameters" without validation; it may be given
// as a bare object (`{"speed_of_sound": 1480}`) or in the key-prefixed form
// (`"parameters": {"speed_of_sound": 1480}`).
//
// Wire format:
//
//	{"command": "set_config", "parameters": {"speed_of_sound": 1480}}
func BuildSetConfig(config string) []byte {
	return []byte(`{"command":"` + CommandSetConfig + `","parameters":` + configParameters(config) + `}`)
}

// configParameters strips the optional "parameters" key from config.
func configParameters(config string) string {
	params := strings.TrimSpace(config)

	if rest, ok := strings.CutPrefix(params, `"parameters"`); ok {
		params = strings.TrimSpace(rest)
		params = strings.TrimSpace(strings.TrimPrefix(params, ":"))
	}

	if params == "" {
		params = "{}"
	}

	return params
}
