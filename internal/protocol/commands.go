package protocol

import (
	"context"
	"time"
)

// CalibrateGyro asks the DVL to calibrate its gyroscope.
func (c *Controller) CalibrateGyro(ctx context.Context, timeout time.Duration) *Future {
	return c.Issue(ctx, CommandCalibrateGyro, BuildCommand(CommandCalibrateGyro), timeout)
}

// TriggerPing requests one acoustic ping.
//
// With acoustic_enabled set to false the DVL only pings on request. Up to 15
// trigger commands can be queued; the DVL works through them in quick
// succession and answers each in order.
func (c *Controller) TriggerPing(ctx context.Context, timeout time.Duration) *Future {
	return c.Issue(ctx, CommandTriggerPing, BuildCommand(CommandTriggerPing), timeout)
}

// ResetDeadReckoning restarts the dead reckoning estimate at the current pose.
func (c *Controller) ResetDeadReckoning(ctx context.Context, timeout time.Duration) *Future {
	return c.Issue(ctx, CommandResetDeadReckoning, BuildCommand(CommandResetDeadReckoning), timeout)
}

// SetConfig sends configuration parameters. See BuildSetConfig for the
// accepted forms of config.
func (c *Controller) SetConfig(ctx context.Context, config string, timeout time.Duration) *Future {
	return c.Issue(ctx, CommandSetConfig, BuildSetConfig(config), timeout)
}

// GetConfig reads the current configuration; it is returned in Response.Result.
func (c *Controller) GetConfig(ctx context.Context, timeout time.Duration) *Future {
	return c.Issue(ctx, CommandGetConfig, BuildCommand(CommandGetConfig), timeout)
}
