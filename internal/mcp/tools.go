package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/protocol"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/report"
)

// Tool names.
const (
	ToolCalibrateGyro      = "calibrate_gyro"
	ToolTriggerPing        = "trigger_ping"
	ToolResetDeadReckoning = "reset_dead_reckoning"
	ToolSetConfig          = "set_config"
	ToolGetConfig          = "get_config"
	ToolLatestVelocity     = "latest_velocity"
	ToolLatestPosition     = "latest_dead_reckoning"
)

// Device is the part of the driver the tools drive.
type Device interface {
	CalibrateGyro(ctx context.Context, timeout time.Duration) *protocol.Future
	TriggerPing(ctx context.Context, timeout time.Duration) *protocol.Future
	ResetDeadReckoning(ctx context.Context, timeout time.Duration) *protocol.Future
	SetConfig(ctx context.Context, config string, timeout time.Duration) *protocol.Future
	GetConfig(ctx context.Context, timeout time.Duration) *protocol.Future
	AttachVelocityCallback(cb protocol.VelocityCallback)
	AttachDeadReckoningCallback(cb protocol.DeadReckoningCallback)
}

// Telemetry keeps the most recent report of each type.
type Telemetry struct {
	mu              sync.RWMutex
	velocity        *report.VelocityReport
	velocityAt      time.Time
	deadReckoning   *report.DeadReckoningReport
	deadReckoningAt time.Time
}

// SetVelocity stores r as the latest velocity report.
func (t *Telemetry) SetVelocity(r report.VelocityReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.velocity = &r
	t.velocityAt = time.Now()
}

// SetDeadReckoning stores r as the latest dead reckoning report.
func (t *Telemetry) SetDeadReckoning(r report.DeadReckoningReport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deadReckoning = &r
	t.deadReckoningAt = time.Now()
}

// Velocity returns the latest velocity report and when it arrived.
func (t *Telemetry) Velocity() (report.VelocityReport, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.velocity == nil {
		return report.VelocityReport{}, time.Time{}, false
	}

	return *t.velocity, t.velocityAt, true
}

// DeadReckoning returns the latest dead reckoning report and when it arrived.
func (t *Telemetry) DeadReckoning() (report.DeadReckoningReport, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.deadReckoning == nil {
		return report.DeadReckoningReport{}, time.Time{}, false
	}

	return *t.deadReckoning, t.deadReckoningAt, true
}

// snapshot is the JSON shape of a telemetry tool result.
type snapshot struct {
	ReceivedAt time.Time `json:"received_at"`
	AgeSeconds float64   `json:"age_seconds"`
	Report     any       `json:"report"`
}

// timeoutProperty is the optional per-call timeout of every command tool.
var timeoutProperty = &jsonschema.Schema{
	Type:        "number",
	Description: "Seconds to wait for the DVL's reply. Defaults to the driver's command timeout.",
	Minimum:     ptr(0.0),
}

func ptr[T any](v T) *T {
	return &v
}

// commandTool describes one device command exposed as a tool.
type commandTool struct {
	name        string
	description string
	issue       func(ctx context.Context, dev Device, timeout time.Duration) *protocol.Future
}

// NewDeviceServer returns a ToolServer with every device and telemetry tool
// registered. It attaches dev's report callbacks to a fresh Telemetry.
func NewDeviceServer(log *slog.Logger, dev Device, version string) (*ToolServer, *Telemetry) {
	server := NewToolServer("dvl-a50", version)
	telemetry := &Telemetry{}

	RegisterDeviceTools(log, server, dev, telemetry)

	return server, telemetry
}

// RegisterDeviceTools adds the device command tools and the telemetry tools
// to server.
func RegisterDeviceTools(log *slog.Logger, server *ToolServer, dev Device, telemetry *Telemetry) {
	log = log.With("component", "mcp_tools")

	dev.AttachVelocityCallback(telemetry.SetVelocity)
	dev.AttachDeadReckoningCallback(telemetry.SetDeadReckoning)

	commands := []commandTool{
		{
			name:        ToolCalibrateGyro,
			description: "Calibrate the DVL gyroscope. Keep the DVL still while it runs.",
			issue: func(ctx context.Context, dev Device, timeout time.Duration) *protocol.Future {
				return dev.CalibrateGyro(ctx, timeout)
			},
		},
		{
			name:        ToolTriggerPing,
			description: "Trigger one acoustic ping. Only meaningful with acoustic_enabled set to false.",
			issue: func(ctx context.Context, dev Device, timeout time.Duration) *protocol.Future {
				return dev.TriggerPing(ctx, timeout)
			},
		},
		{
			name:        ToolResetDeadReckoning,
			description: "Restart dead reckoning at the current position.",
			issue: func(ctx context.Context, dev Device, timeout time.Duration) *protocol.Future {
				return dev.ResetDeadReckoning(ctx, timeout)
			},
		},
		{
			name:        ToolGetConfig,
			description: "Read the DVL configuration.",
			issue: func(ctx context.Context, dev Device, timeout time.Duration) *protocol.Future {
				return dev.GetConfig(ctx, timeout)
			},
		},
	}

	for _, cmd := range commands {
		server.AddTool(
			NewTool(cmd.name, cmd.description, ObjectSchema(map[string]*jsonschema.Schema{
				"timeout_seconds": timeoutProperty,
			})),
			func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				args, err := ParseArguments(req)
				if err != nil {
					return ErrorResult(err.Error()), nil
				}

				log.Debug("Tool called", "tool", cmd.name)

				return awaitCommand(ctx, cmd.name, cmd.issue(ctx, dev, timeoutArg(args)))
			},
		)
	}

	server.AddTool(
		NewTool(ToolSetConfig, "Change DVL configuration parameters.", ObjectSchema(map[string]*jsonschema.Schema{
			"parameters":      protocol.ConfigSchema(),
			"timeout_seconds": timeoutProperty,
		})),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := ParseArguments(req)
			if err != nil {
				return ErrorResult(err.Error()), nil
			}

			params, ok := args["parameters"]
			if !ok {
				return ErrorResult("missing required argument: parameters"), nil
			}

			data, err := json.Marshal(params)
			if err != nil {
				return ErrorResult("Failed to marshal parameters: " + err.Error()), nil
			}

			if err := protocol.ValidateConfig(string(data)); err != nil {
				return ErrorResult(err.Error()), nil
			}

			log.Debug("Tool called", "tool", ToolSetConfig, "parameters", string(data))

			return awaitCommand(ctx, ToolSetConfig, dev.SetConfig(ctx, string(data), timeoutArg(args)))
		},
	)

	server.AddTool(
		NewTool(ToolLatestVelocity, "Return the most recent velocity report.", ObjectSchema(nil)),
		func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			r, at, ok := telemetry.Velocity()
			if !ok {
				return ErrorResult("no velocity report received yet"), nil
			}

			return JSONResult(snapshot{ReceivedAt: at, AgeSeconds: time.Since(at).Seconds(), Report: r}), nil
		},
	)

	server.AddTool(
		NewTool(ToolLatestPosition, "Return the most recent dead reckoning report.", ObjectSchema(nil)),
		func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			r, at, ok := telemetry.DeadReckoning()
			if !ok {
				return ErrorResult("no dead reckoning report received yet"), nil
			}

			return JSONResult(snapshot{ReceivedAt: at, AgeSeconds: time.Since(at).Seconds(), Report: r}), nil
		},
	)
}

// timeoutArg reads the optional timeout_seconds argument. Zero selects the
// driver default.
func timeoutArg(args map[string]any) time.Duration {
	seconds, ok := args["timeout_seconds"].(float64)
	if !ok || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// awaitCommand waits for f and turns its outcome into a tool result.
func awaitCommand(ctx context.Context, name string, f *protocol.Future) (*mcp.CallToolResult, error) {
	resp, answered, err := f.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", name, err)
	}

	switch {
	case !answered:
		return ErrorResult(name + " timed out waiting for the DVL"), nil
	case !resp.Success:
		return ErrorResult(name + " failed: " + resp.ErrorMessage), nil
	case len(resp.Result) > 0:
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(resp.Result)}},
			StructuredContent: resp.Result,
		}, nil
	default:
		return TextResult(name + " succeeded"), nil
	}
}
