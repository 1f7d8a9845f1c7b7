// Package mcp exposes a DVL driver as Model Context Protocol tools.
//
// The ToolServer keeps a registry of tools that can be invoked directly or
// served to an MCP client over any go-sdk transport (stdio for dvlctl). The
// device tools issue the driver's commands and report their outcome, and
// two telemetry tools return the latest velocity and dead reckoning reports.
//
// Registering the device tools takes over the driver's velocity and dead
// reckoning callbacks to keep the telemetry snapshot current.
package mcp
