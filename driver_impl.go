package dvla50

import (
	"context"
	"time"

	"github.com/wagiedev/dvl-a50-sdk-go/internal/config"
	"github.com/wagiedev/dvl-a50-sdk-go/internal/driver"
)

// driverWrapper wraps the internal driver to adapt it to the public interface.
type driverWrapper struct {
	impl *driver.Driver
}

// Compile-time check that *driverWrapper implements the Driver interface.
var _ Driver = (*driverWrapper)(nil)

func newDriverImpl() Driver {
	return &driverWrapper{impl: driver.New()}
}

func (d *driverWrapper) Start(ctx context.Context, opts ...Option) error {
	return d.impl.Start(ctx, applyDriverOptionsToConfig(opts))
}

func (d *driverWrapper) CalibrateGyro(ctx context.Context, timeout time.Duration) *Future {
	return d.impl.CalibrateGyro(ctx, timeout)
}

func (d *driverWrapper) TriggerPing(ctx context.Context, timeout time.Duration) *Future {
	return d.impl.TriggerPing(ctx, timeout)
}

func (d *driverWrapper) ResetDeadReckoning(ctx context.Context, timeout time.Duration) *Future {
	return d.impl.ResetDeadReckoning(ctx, timeout)
}

func (d *driverWrapper) SetConfig(ctx context.Context, config string, timeout time.Duration) *Future {
	return d.impl.SetConfig(ctx, config, timeout)
}

func (d *driverWrapper) GetConfig(ctx context.Context, timeout time.Duration) *Future {
	return d.impl.GetConfig(ctx, timeout)
}

func (d *driverWrapper) AttachVelocityCallback(cb VelocityCallback) {
	d.impl.AttachVelocityCallback(cb)
}

func (d *driverWrapper) AttachDeadReckoningCallback(cb DeadReckoningCallback) {
	d.impl.AttachDeadReckoningCallback(cb)
}

func (d *driverWrapper) Pending() int {
	return d.impl.Pending()
}

func (d *driverWrapper) Done() <-chan struct{} {
	return d.impl.Done()
}

func (d *driverWrapper) Err() error {
	return d.impl.Err()
}

func (d *driverWrapper) Close() error {
	return d.impl.Close()
}

// applyDriverOptionsToConfig converts public options to internal config.Options.
// DriverOptions is a type alias to config.Options, so no copy is needed.
func applyDriverOptionsToConfig(opts []Option) *config.Options {
	return applyDriverOptions(opts)
}
