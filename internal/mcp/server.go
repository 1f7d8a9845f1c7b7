package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolServer holds a set of MCP tools.
//
// The go-sdk Server is built for transport-based sessions; the registry here
// also allows calling a tool directly, which dvlctl and the tests use.
type ToolServer struct {
	name    string
	version string
	mu      sync.RWMutex
	tools   map[string]*registeredTool
}

// registeredTool holds tool metadata and handler for the registry.
type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewToolServer creates an empty tool server.
func NewToolServer(name, version string) *ToolServer {
	return &ToolServer{
		name:    name,
		version: version,
		tools:   make(map[string]*registeredTool, 8),
	}
}

// AddTool registers a tool, replacing any tool with the same name.
func (s *ToolServer) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[tool.Name] = &registeredTool{
		tool:    tool,
		handler: handler,
	}
}

// Name returns the server name.
func (s *ToolServer) Name() string {
	return s.name
}

// Version returns the server version.
func (s *ToolServer) Version() string {
	return s.version
}

// ListTools returns the registered tools sorted by name.
func (s *ToolServer) ListTools() []*mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		result = append(result, t.tool)
	}

	slices.SortFunc(result, func(a, b *mcp.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})

	return result
}

// CallTool executes a tool by name with the given input.
//
// Failures are encoded in the result with IsError set; the returned error is
// reserved for input that cannot be marshaled.
func (s *ToolServer) CallTool(ctx context.Context, name string, input map[string]any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return ErrorResult("Tool not found: " + name), nil
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal tool input: %w", err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		return ErrorResult("Tool execution failed: " + err.Error()), nil
	}

	if result == nil {
		return &mcp.CallToolResult{Content: []mcp.Content{}}, nil
	}

	return result, nil
}

// Server builds a go-sdk server exposing every registered tool.
func (s *ToolServer) Server() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tools {
		server.AddTool(t.tool, t.handler)
	}

	return server
}

// Run serves the tools over transport until ctx is done or the client
// disconnects.
func (s *ToolServer) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.Server().Run(ctx, transport); err != nil {
		return fmt.Errorf("run mcp server: %w", err)
	}

	return nil
}

// ObjectSchema returns an object schema with the given optional properties.
func ObjectSchema(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
	}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// JSONResult creates a CallToolResult carrying v as JSON text and as
// structured content.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult("Failed to marshal result: " + err.Error())
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		StructuredContent: json.RawMessage(data),
	}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil {
		return make(map[string]any), nil
	}

	if len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
