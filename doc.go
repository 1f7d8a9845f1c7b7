// Package dvla50 is a Go driver for the Water Linked DVL A50 Doppler velocity log.
//
// The driver speaks the DVL's JSON protocol over TCP. Commands are issued
// without blocking and return a Future; replies are matched to commands by
// command type in the order the commands were sent. Velocity and dead
// reckoning reports arrive continuously and are delivered to callbacks.
//
// # Basic Usage
//
//	driver := dvla50.NewDriver()
//	defer driver.Close()
//
//	err := driver.Start(ctx,
//	    dvla50.WithAddress("192.168.194.95"),
//	    dvla50.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	driver.AttachVelocityCallback(func(r dvla50.VelocityReport) {
//	    fmt.Printf("vx=%.3f vy=%.3f vz=%.3f alt=%.2f\n", r.Vx, r.Vy, r.Vz, r.Altitude)
//	})
//
//	resp, ok, err := driver.CalibrateGyro(ctx, 0).Wait(ctx)
//	switch {
//	case err != nil:
//	    log.Println("stopped waiting:", err)
//	case !ok:
//	    log.Println("calibrate_gyro timed out")
//	case !resp.Success:
//	    log.Printf("calibrate_gyro failed: %s", resp.ErrorMessage)
//	}
//
// # Command Outcomes
//
// Every Future resolves exactly once:
//   - ok is false when the DVL did not answer within the command timeout
//   - Success is false with the DVL's ErrorMessage when the device refused the command
//   - Success is false with Err set when the connection failed; Err wraps
//     ErrConnectionLost, ErrControllerStopped, ErrQueueFull or the write error
//
// Protocol anomalies, such as malformed lines or replies nobody waits for,
// are logged and otherwise ignored.
//
// # Lifecycle
//
// A Driver holds one connection and is single-use. When the DVL goes away,
// every pending command resolves with ErrConnectionLost, Done() is closed,
// and Err() reports the cause. Create a new Driver to reconnect.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	err := driver.Start(ctx, dvla50.WithAddress(addr), dvla50.WithLogger(logger))
//
// # Error Handling
//
//	if err := driver.Start(ctx, dvla50.WithAddress(addr)); err != nil {
//	    if connErr, ok := errors.AsType[*dvla50.ConnectionError](err); ok {
//	        log.Fatalf("DVL unreachable at %s: %v", connErr.Address, connErr.Err)
//	    }
//	    log.Fatal(err)
//	}
package dvla50
