package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	dvla50 "github.com/wagiedev/dvl-a50-sdk-go"
)

const (
	cmdMonitor            = "monitor"
	cmdCalibrateGyro      = "calibrate-gyro"
	cmdTriggerPing        = "trigger-ping"
	cmdResetDeadReckoning = "reset-dead-reckoning"
	cmdSetConfig          = "set-config"
	cmdGetConfig          = "get-config"
	cmdMCP                = "mcp"
)

type command struct {
	name   string
	config string
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("%w: missing command", errUsage)
	}

	cmd := command{name: args[0]}

	switch cmd.name {
	case cmdSetConfig:
		if len(args) != 2 {
			return command{}, fmt.Errorf("%w: set-config takes one JSON argument", errUsage)
		}

		cmd.config = args[1]
	case cmdMonitor, cmdCalibrateGyro, cmdTriggerPing, cmdResetDeadReckoning, cmdGetConfig, cmdMCP:
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: %s takes no arguments", errUsage, cmd.name)
		}
	default:
		return command{}, fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}

	return cmd, nil
}

func (c command) execute(ctx context.Context, log *slog.Logger, d dvla50.Driver, cfg cliConfig, out io.Writer) error {
	timeout := cfg.CommandTimeout

	switch c.name {
	case cmdMonitor:
		return monitor(ctx, d, out)
	case cmdMCP:
		return dvla50.ServeMCP(ctx, log, d, version, &mcp.StdioTransport{})
	case cmdCalibrateGyro:
		return await(ctx, d.CalibrateGyro(ctx, timeout), out)
	case cmdTriggerPing:
		return await(ctx, d.TriggerPing(ctx, timeout), out)
	case cmdResetDeadReckoning:
		return await(ctx, d.ResetDeadReckoning(ctx, timeout), out)
	case cmdSetConfig:
		return await(ctx, d.SetConfig(ctx, c.config, timeout), out)
	case cmdGetConfig:
		return await(ctx, d.GetConfig(ctx, timeout), out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, c.name)
	}
}

// await waits for f and prints its outcome. A timeout or a failed command is
// an error so the exit status reflects it.
func await(ctx context.Context, f *dvla50.Future, out io.Writer) error {
	resp, ok, err := f.Wait(ctx)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%s: no reply from the DVL", f.Command())
	}

	if !resp.Success {
		return fmt.Errorf("%s failed: %s", f.Command(), resp.ErrorMessage)
	}

	if len(resp.Result) > 0 {
		_, err := fmt.Fprintf(out, "%s\n", resp.Result)

		return err
	}

	_, err = fmt.Fprintf(out, "%s: ok\n", f.Command())

	return err
}

// monitorLine is one line of monitor output.
type monitorLine struct {
	Type       string    `json:"type"`
	ReceivedAt time.Time `json:"received_at"`
	Report     any       `json:"report"`
}

// monitor prints every report until ctx ends or the connection drops.
func monitor(ctx context.Context, d dvla50.Driver, out io.Writer) error {
	var mu sync.Mutex

	enc := json.NewEncoder(out)

	write := func(kind string, r any) {
		mu.Lock()
		defer mu.Unlock()

		// Write errors on stdout are not actionable mid-stream.
		_ = enc.Encode(monitorLine{Type: kind, ReceivedAt: time.Now().UTC(), Report: r})
	}

	d.AttachVelocityCallback(func(r dvla50.VelocityReport) { write("velocity", r) })
	d.AttachDeadReckoningCallback(func(r dvla50.DeadReckoningReport) { write("dead_reckoning", r) })

	defer func() {
		d.AttachVelocityCallback(nil)
		d.AttachDeadReckoningCallback(nil)
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-d.Done():
		return d.Err()
	}
}
