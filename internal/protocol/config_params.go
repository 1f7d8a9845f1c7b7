package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Range modes accepted by the DVL besides an explicit "min<=max" bound.
const RangeModeAuto = "auto"

// ConfigParams is the typed form of the set_config parameters. Nil fields
// are left out, so only the set fields change on the device.
type ConfigParams struct {
	SpeedOfSound           *float64 `json:"speed_of_sound,omitempty"`
	AcousticEnabled        *bool    `json:"acoustic_enabled,omitempty"`
	DarkModeEnabled        *bool    `json:"dark_mode_enabled,omitempty"`
	MountingRotationOffset *float64 `json:"mounting_rotation_offset,omitempty"`
	RangeMode              *string  `json:"range_mode,omitempty"`
	PeriodicCyclingEnabled *bool    `json:"periodic_cycling_enabled,omitempty"`
}

// String returns the parameters as the JSON object SetConfig expects.
func (p ConfigParams) String() string {
	data, _ := json.Marshal(p)

	return string(data)
}

func ptr[T any](v T) *T {
	return &v
}

// ConfigSchema returns the JSON schema of the set_config parameters.
func ConfigSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:          "object",
		Description:   "DVL configuration parameters. Only the given keys are changed.",
		MinProperties: ptr(1),
		Properties: map[string]*jsonschema.Schema{
			"speed_of_sound": {
				Type:        "number",
				Description: "Speed of sound in water (m/s).",
				Minimum:     ptr(575.0),
				Maximum:     ptr(2875.0),
			},
			"acoustic_enabled": {
				Type:        "boolean",
				Description: "Ping continuously; when false the DVL pings only on trigger_ping.",
			},
			"dark_mode_enabled": {
				Type:        "boolean",
				Description: "Turn off the status LED.",
			},
			"mounting_rotation_offset": {
				Type:        "number",
				Description: "Rotation of the DVL forward axis from the vehicle forward axis (degrees).",
				Minimum:     ptr(0.0),
				Maximum:     ptr(360.0),
			},
			"range_mode": {
				Type:        "string",
				Description: `Altitude search range: "auto" or "min<=max" with indices 0-4.`,
				Pattern:     `^(auto|[0-4](<=[0-4])?)$`,
			},
			"periodic_cycling_enabled": {
				Type:        "boolean",
				Description: "Periodically search all ranges while locked.",
			},
		},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

var resolvedConfigSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return ConfigSchema().Resolve(nil)
})

// ValidateConfig checks config, in any form SetConfig accepts, against
// ConfigSchema. SetConfig itself never validates.
func ValidateConfig(config string) error {
	resolved, err := resolvedConfigSchema()
	if err != nil {
		return fmt.Errorf("resolve config schema: %w", err)
	}

	var params any
	if err := json.Unmarshal([]byte(configParameters(config)), &params); err != nil {
		return fmt.Errorf("config is not valid JSON: %w", err)
	}

	if err := resolved.Validate(params); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
