// Package errors defines error types for the DVL A50 driver.
//
// This package provides structured error types that wrap different failure
// scenarios when talking to a DVL over its TCP JSON protocol. All error types
// support error unwrapping and can be checked using errors.Is, errors.As, and
// errors.AsType.
package errors
