// Package driver implements the Driver that owns one connection to a DVL A50.
//
// A Driver dials the device, runs the protocol controller on top of the
// connection, and exposes the command and telemetry surface:
//   - Commands return a Future that resolves with the device's reply, a
//     transport failure, or nothing when the command timed out
//   - Velocity and dead reckoning reports go to at most one callback each
//   - Done and Err report when and why the connection ended
//
// A Driver is single-use: once closed or disconnected, create a new one.
package driver
