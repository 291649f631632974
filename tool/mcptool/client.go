package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/tool"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Name    string
	Version string
	// Prefix is prepended to every remote tool name, e.g. "fetch_".
	Prefix string
}

// Client is a connected MCP client session.
type Client struct {
	session *mcp.ClientSession
	opts    ClientOptions
}

// NewCommand spawns an MCP server process and connects to it over stdio.
func NewCommand(ctx context.Context, command string, args []string, optFns ...func(o *ClientOptions)) (*Client, error) {
	transport := &mcp.CommandTransport{
		Command: exec.Command(command, args...), //nolint:gosec // command comes from the agent catalog
	}

	return Connect(ctx, transport, optFns...)
}

// NewSSE connects to an MCP server over server-sent events.
func NewSSE(ctx context.Context, endpoint string, optFns ...func(o *ClientOptions)) (*Client, error) {
	return Connect(ctx, &mcp.SSEClientTransport{Endpoint: endpoint}, optFns...)
}

// Connect opens a session over transport.
func Connect(ctx context.Context, transport mcp.Transport, optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{
		Name:    "reactmesh",
		Version: "1.0.0",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}

	return &Client{session: session, opts: opts}, nil
}

// Tools lists the server's tools as tool.Tool values.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}

	tools := make([]tool.Tool, 0, len(result.Tools))

	for _, t := range result.Tools {
		params, err := toParameters(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcp: convert tool %q: %w", t.Name, err)
		}

		tools = append(tools, &remoteTool{
			client:      c,
			name:        c.opts.Prefix + t.Name,
			remoteName:  t.Name,
			description: t.Description,
			params:      params,
		})
	}

	return tools, nil
}

// Close terminates the session.
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) call(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcp: call tool %s: %w", name, err)
	}

	text := extractText(result)

	if result.IsError {
		return "", errors.New(text)
	}

	return text, nil
}

// remoteTool is a tool.Tool backed by an MCP server.
type remoteTool struct {
	client      *Client
	name        string
	remoteName  string
	description string
	params      map[string]any
}

func (t *remoteTool) Name() string               { return t.name }
func (t *remoteTool) Description() string        { return t.description }
func (t *remoteTool) Parameters() map[string]any { return t.params }

func (t *remoteTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	tc.Logger().Debug("mcp.call", "tool", t.remoteName, "fc_id", tc.FunctionCallID())
	return t.client.call(tc.Context(), t.remoteName, args)
}

func toParameters(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}

	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}

	return params, nil
}

// extractText joins all text content items of a result.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}

// WithPrefix prefixes remote tool names.
func WithPrefix(prefix string) func(o *ClientOptions) {
	return func(o *ClientOptions) {
		o.Prefix = prefix
	}
}
