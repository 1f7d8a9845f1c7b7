package dvla50

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/dvl-a50-sdk-go/internal/mcp"
)

// MCPServer exposes a Driver's commands and latest telemetry as MCP tools.
type MCPServer = internalmcp.ToolServer

// NewMCPServer builds the tool server for d.
//
// It takes over d's velocity and dead reckoning callbacks to keep the
// latest-report tools current.
func NewMCPServer(log *slog.Logger, d Driver, version string) *MCPServer {
	if log == nil {
		log = NopLogger()
	}

	server, _ := internalmcp.NewDeviceServer(log, d, version)

	return server
}

// ServeMCP serves d's tools over transport, e.g. &mcp.StdioTransport{},
// until ctx is done or the client disconnects.
func ServeMCP(ctx context.Context, log *slog.Logger, d Driver, version string, transport mcp.Transport) error {
	return NewMCPServer(log, d, version).Run(ctx, transport)
}
