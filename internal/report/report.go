package report

import "encoding/json"

// Wire values of the "type" field.
const (
	TypeVelocity      = "velocity"
	TypeDeadReckoning = "position_local"
	TypeResponse      = "response"
)

// Message represents any line the DVL sends.
// Use type assertion or type switch to determine the concrete type.
type Message interface {
	MessageType() string
}

// Compile-time verification that all report types implement Message.
var (
	_ Message = (*VelocityReport)(nil)
	_ Message = (*DeadReckoningReport)(nil)
	_ Message = (*CommandReply)(nil)
)

// TransducerReport is the per-beam part of a velocity report.
type TransducerReport struct {
	// ID of the transducer (0-3).
	ID int `json:"id"`

	// Velocity measured along this beam (m/s).
	Velocity float64 `json:"velocity"`

	// Distance to the reflecting surface along this beam (m).
	Distance float64 `json:"distance"`

	// RSSI is the signal strength of the reflection (dBm).
	RSSI float64 `json:"rssi"`

	// NSD is the noise spectral density (dBm).
	NSD float64 `json:"nsd"`

	// BeamValid reports whether this beam has a lock.
	BeamValid bool `json:"beam_valid"`
}

// VelocityReport is sent for every velocity calculation, at 2-15 Hz depending on altitude.
//
// Axes are in the DVL body frame, or the vehicle frame when a mounting
// rotation offset is configured.
type VelocityReport struct {
	// Time since the previous velocity report (ms).
	Time float64 `json:"time"`

	Vx float64 `json:"vx"`
	Vy float64 `json:"vy"`
	Vz float64 `json:"vz"`

	// FOM is the figure of merit, a measure of velocity accuracy (m/s).
	FOM float64 `json:"fom"`

	// Covariance of the velocities, (m/s)^2. FOM is derived from it.
	Covariance [3][3]float64 `json:"covariance"`

	// Altitude is the distance to the reflecting surface along Z (m).
	Altitude float64 `json:"altitude"`

	Transducers [4]TransducerReport `json:"transducers"`

	// VelocityValid is true when the DVL has bottom lock and the
	// altitude and velocities can be trusted.
	VelocityValid bool `json:"velocity_valid"`

	// Status is an 8 bit mask. Bit 0 signals high temperature.
	Status uint8 `json:"status"`

	// TimeOfValidity is the center of ping (Unix time, µs).
	TimeOfValidity int64 `json:"time_of_validity"`

	// TimeOfTransmission is taken right before the report is sent (Unix time, µs).
	TimeOfTransmission int64 `json:"time_of_transmission"`

	// Format is the protocol version string, e.g. "json_v3.1".
	Format string `json:"format,omitempty"`
}

// MessageType implements Message.
func (*VelocityReport) MessageType() string { return TypeVelocity }

// HighTemperature reports bit 0 of the status mask.
func (r *VelocityReport) HighTemperature() bool {
	return r.Status&0x01 != 0
}

// DeadReckoningReport carries the dead reckoning pose relative to the
// frame at the start of the run. Expected rate is 5 Hz.
type DeadReckoningReport struct {
	// Ts is the report time (Unix time, seconds).
	Ts float64 `json:"ts"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Std is the position standard deviation (m).
	Std float64 `json:"std"`

	// Orientation in degrees.
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`

	// Status is 0 when healthy, 1 otherwise.
	Status int `json:"status"`

	Format string `json:"format,omitempty"`
}

// MessageType implements Message.
func (*DeadReckoningReport) MessageType() string { return TypeDeadReckoning }

// CommandReply is the DVL's answer to a command.
//
// Wire format:
//
//	{
//	  "response_to": "calibrate_gyro",
//	  "success": true,
//	  "error_message": "",
//	  "result": null,
//	  "format": "json_v3.1",
//	  "type": "response"
//	}
type CommandReply struct {
	// ResponseTo names the command this reply answers.
	ResponseTo string `json:"response_to"` //nolint:tagliatelle // DVL uses snake_case

	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"` //nolint:tagliatelle // DVL uses snake_case

	// Result holds command output, e.g. the configuration for get_config.
	Result json.RawMessage `json:"result,omitempty"`

	Format string `json:"format,omitempty"`
}

// MessageType implements Message.
func (*CommandReply) MessageType() string { return TypeResponse }
