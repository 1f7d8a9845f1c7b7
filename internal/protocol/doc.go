// Package protocol implements command/reply correlation for the DVL A50.
//
// The DVL answers commands asynchronously on the same connection that carries
// its telemetry, and replies only name the command type they answer. The
// Controller therefore keeps one FIFO queue of outstanding requests per
// command type and completes the oldest one when a reply of that type arrives.
//
// The Controller handles:
//   - Issuing commands without blocking the caller (Issue returns a Future)
//   - Matching replies to the oldest outstanding request of the same type
//   - Expiring requests whose timeout elapsed, from a periodic sweeper
//   - Routing velocity and dead reckoning reports to one callback each
//   - Failing every outstanding request when the transport disconnects
//
// A request is completed by whichever goroutine removes it from the pending
// table, so a reply racing with its timeout completes it exactly once.
//
// Example usage:
//
//	transport := transport.NewTCPTransport(log, options)
//	transport.Start(ctx)
//
//	controller := protocol.NewController(log, transport, protocol.Config{})
//	controller.Start(ctx)
//
//	resp, ok := controller.CalibrateGyro(ctx, 3*time.Second).Result()
//	if !ok {
//	    // timed out
//	}
package protocol
