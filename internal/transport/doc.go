// Package transport provides the TCP line transport to the DVL A50.
//
// This package implements the Transport interface by dialing the DVL's JSON
// protocol port and exchanging newline-delimited JSON over the socket. It
// handles connection lifecycle, line framing, and write serialization.
package transport
