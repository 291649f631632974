package mcptool

import (
	"context"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/tool"
)

// Server publishes tools over MCP.
type Server struct {
	server     *mcp.Server
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	logger     logging.Logger
}

// NewServer creates a server named name.
func NewServer(name, version string, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	registry, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}

	return &Server{
		server:     mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		registry:   registry,
		dispatcher: tool.NewDispatcher(tool.WithDispatcherLogger(logger)),
		logger:     logger,
	}, nil
}

// Register adds tools to the server.
func (s *Server) Register(tools ...tool.Tool) error {
	for _, t := range tools {
		if err := s.registry.Register(t); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}

		s.server.AddTool(&mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Parameters(),
		}, s.handler(t.Name()))
	}

	return nil
}

// Serve serves MCP requests read from in, writing responses to out, until
// ctx is cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

// Run serves over transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp.server.start", "tools", s.registry.Len())
	return s.server.Run(ctx, transport)
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := core.ToolCallRequest{
			ID:           core.NewID(),
			ToolName:     name,
			RawArguments: string(req.Params.Arguments),
		}

		turn := s.dispatcher.Dispatch(ctx, "mcp", call, s.registry)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: turn.Content}},
			IsError: turn.IsToolError(),
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
