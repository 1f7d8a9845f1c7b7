package dvla50

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/config"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/protocol"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/report"
)

// DriverOptions configures the behavior of the driver.
type DriverOptions = config.Options

// Transport defines the interface for DVL communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative links to the device (e.g., a replay of a recorded session).
//
// The default implementation dials the DVL over TCP.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport

// Defaults.
const (
	DefaultPort           = config.DefaultPort
	DefaultCommandTimeout = config.DefaultCommandTimeout
	DefaultSweepInterval  = config.DefaultSweepInterval
	DefaultDialTimeout    = config.DefaultDialTimeout
	DefaultMaxQueueDepth  = config.DefaultMaxQueueDepth
)

// Command types, as they appear in a reply's response_to field.
const (
	CommandCalibrateGyro      = protocol.CommandCalibrateGyro
	CommandTriggerPing        = protocol.CommandTriggerPing
	CommandResetDeadReckoning = protocol.CommandResetDeadReckoning
	CommandSetConfig          = protocol.CommandSetConfig
	CommandGetConfig          = protocol.CommandGetConfig
)

// Future is the handle on an issued command.
type Future = protocol.Future

// Response is the outcome of an answered command.
type Response = protocol.Response

// ConfigParams is the typed form of the set_config parameters.
type ConfigParams = protocol.ConfigParams

// RangeModeAuto lets the DVL choose its altitude search range.
const RangeModeAuto = protocol.RangeModeAuto

// VelocityCallback receives velocity reports.
type VelocityCallback = protocol.VelocityCallback

// DeadReckoningCallback receives dead reckoning reports.
type DeadReckoningCallback = protocol.DeadReckoningCallback

// VelocityReport is a velocity-and-transducer report.
type VelocityReport = report.VelocityReport

// TransducerReport is the per-beam part of a VelocityReport.
type TransducerReport = report.TransducerReport

// DeadReckoningReport is a dead reckoning position-and-orientation report.
type DeadReckoningReport = report.DeadReckoningReport

// ValidateConfig checks set_config text against ConfigSchema.
func ValidateConfig(config string) error {
	return protocol.ValidateConfig(config)
}

// ConfigSchema returns the JSON schema of the set_config parameters.
func ConfigSchema() *jsonschema.Schema {
	return protocol.ConfigSchema()
}
