package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/tool"
	"github.com/hupe1980/reactmesh/tool/builtin"
	"github.com/hupe1980/reactmesh/tool/mcptool"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Catalog is the YAML description of a set of agents.
//
//	base: main
//	mcp_servers:
//	  - name: fetch
//	    command: uvx
//	    args: [mcp-server-fetch]
//	agents:
//	  - name: main
//	    instruction: You are a helpful assistant.
//	    tools: [calculator, date]
//	    sub_agents: [people_search]
type Catalog struct {
	Base       string      `yaml:"base"`
	MCPServers []MCPServer `yaml:"mcp_servers"`
	Agents     []AgentSpec `yaml:"agents"`
}

// MCPServer is an MCP tool server. Exactly one of Command and Endpoint is set.
type MCPServer struct {
	Name     string   `yaml:"name"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
	Endpoint string   `yaml:"endpoint"`
	Prefix   string   `yaml:"prefix"`
}

// AgentSpec describes one agent.
type AgentSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Model       string `yaml:"model"`
	Instruction string `yaml:"instruction"`
	// Template renders Instruction with text/template against the run
	// variables on every THINK step.
	Template          bool        `yaml:"template"`
	Tools             []string    `yaml:"tools"`
	MCP               []string    `yaml:"mcp"`
	SubAgents         []string    `yaml:"sub_agents"`
	ParallelToolCalls bool        `yaml:"parallel_tool_calls"`
	OutputSchema      *SchemaSpec `yaml:"output_schema"`
}

// SchemaSpec is a named JSON schema.
type SchemaSpec struct {
	Name       string         `yaml:"name"`
	Definition map[string]any `yaml:"definition"`
}

// LoadCatalog reads a YAML catalog, expanding environment variables.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return c, nil
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(expanded, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks names and references.
func (c *Catalog) Validate() error {
	if len(c.Agents) == 0 {
		return errors.New("catalog defines no agents")
	}

	agents := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return errors.New("agent name must not be empty")
		}

		if agents[a.Name] {
			return fmt.Errorf("duplicate agent %q", a.Name)
		}

		agents[a.Name] = true
	}

	servers := make(map[string]bool, len(c.MCPServers))
	for _, s := range c.MCPServers {
		if s.Name == "" {
			return errors.New("mcp server name must not be empty")
		}

		if (s.Command == "") == (s.Endpoint == "") {
			return fmt.Errorf("mcp server %q: exactly one of command and endpoint is required", s.Name)
		}

		if servers[s.Name] {
			return fmt.Errorf("duplicate mcp server %q", s.Name)
		}

		servers[s.Name] = true
	}

	for _, a := range c.Agents {
		for _, ref := range a.SubAgents {
			if !agents[ref] {
				return fmt.Errorf("agent %q: unknown sub-agent %q", a.Name, ref)
			}
		}

		for _, ref := range a.MCP {
			if !servers[ref] {
				return fmt.Errorf("agent %q: unknown mcp server %q", a.Name, ref)
			}
		}

		if a.OutputSchema != nil && a.OutputSchema.Name == "" {
			return fmt.Errorf("agent %q: output schema name must not be empty", a.Name)
		}
	}

	if c.Base != "" && !agents[c.Base] {
		return fmt.Errorf("unknown base agent %q", c.Base)
	}

	return nil
}

// MCPConnector opens a client for an MCP server entry.
type MCPConnector func(ctx context.Context, s MCPServer) (*mcptool.Client, error)

// BuildOptions configures Catalog.Build.
type BuildOptions struct {
	// Tools are the tools agents may reference by name. Defaults to the
	// built-in tools.
	Tools map[string]tool.Tool

	// Connect opens MCP servers. Defaults to stdio for commands and SSE for
	// endpoints.
	Connect MCPConnector

	Logger logging.Logger
}

// Agents is a built catalog.
type Agents struct {
	byName  map[string]*agent.Descriptor
	order   []string
	base    string
	closers []func() error
}

// Build creates the agent descriptors. Sub-agent references are resolved
// lazily, so agents may reference each other in cycles.
func (c *Catalog) Build(ctx context.Context, optFns ...func(o *BuildOptions)) (*Agents, error) {
	opts := BuildOptions{
		Tools:   builtin.Tools(),
		Connect: connectMCP,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	out := &Agents{
		byName: make(map[string]*agent.Descriptor, len(c.Agents)),
		base:   c.Base,
	}

	if out.base == "" {
		out.base = c.Agents[0].Name
	}

	remote := make(map[string][]tool.Tool, len(c.MCPServers))

	for _, s := range c.MCPServers {
		client, err := opts.Connect(ctx, s)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("config: mcp server %q: %w", s.Name, err)
		}

		out.closers = append(out.closers, client.Close)

		tools, err := client.Tools(ctx)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("config: mcp server %q: %w", s.Name, err)
		}

		opts.Logger.Info("config.mcp.connected", "server", s.Name, "tools", len(tools))

		remote[s.Name] = tools
	}

	specs := make(map[string]AgentSpec, len(c.Agents))
	for _, a := range c.Agents {
		specs[a.Name] = a
	}

	for _, spec := range c.Agents {
		caps := make([]agent.Capability, 0, len(spec.Tools)+len(spec.SubAgents))

		for _, name := range spec.Tools {
			t, ok := opts.Tools[name]
			if !ok {
				_ = out.Close()
				return nil, fmt.Errorf("config: agent %q: unknown tool %q", spec.Name, name)
			}

			caps = append(caps, agent.NewToolCapability(t))
		}

		for _, server := range spec.MCP {
			for _, t := range remote[server] {
				caps = append(caps, agent.NewToolCapability(t))
			}
		}

		for _, ref := range spec.SubAgents {
			caps = append(caps, agent.NewLazySubAgent(ref, specs[ref].Description, func() *agent.Descriptor {
				return out.byName[ref]
			}))
		}

		d, err := agent.New(spec.Name, spec.options(caps))
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("config: %w", err)
		}

		out.byName[spec.Name] = d
		out.order = append(out.order, spec.Name)
	}

	return out, nil
}

func (a AgentSpec) options(caps []agent.Capability) func(o *agent.Options) {
	return func(o *agent.Options) {
		o.Description = a.Description
		o.Model = a.Model
		o.Capabilities = caps
		o.AllowParallelToolCalls = a.ParallelToolCalls

		switch {
		case a.Instruction == "":
		case a.Template:
			o.Instruction = agent.NewInstructionFromTemplate(a.Instruction)
		default:
			o.Instruction = agent.NewInstructionFromText(a.Instruction)
		}

		if a.OutputSchema != nil {
			o.OutputSchema = &agent.OutputSchema{Name: a.OutputSchema.Name, Definition: a.OutputSchema.Definition}
		}
	}
}

// DefaultAgents returns the built-in main agent with its people search
// sub-agent.
func DefaultAgents() (*Agents, error) {
	root, err := builtin.NewMainAgent()
	if err != nil {
		return nil, err
	}

	out := &Agents{
		byName: map[string]*agent.Descriptor{root.Name(): root},
		order:  []string{root.Name()},
		base:   root.Name(),
	}

	for _, c := range root.Capabilities() {
		if d, ok := c.Agent(); ok {
			out.byName[d.Name()] = d
			out.order = append(out.order, d.Name())
		}
	}

	return out, nil
}

// Base returns the agent runs start from by default.
func (a *Agents) Base() *agent.Descriptor { return a.byName[a.base] }

// Get returns the named agent.
func (a *Agents) Get(name string) (*agent.Descriptor, bool) {
	d, ok := a.byName[name]
	return d, ok
}

// Names returns the agent names sorted.
func (a *Agents) Names() []string {
	names := append([]string(nil), a.order...)
	sort.Strings(names)

	return names
}

// Close disconnects MCP servers.
func (a *Agents) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}

	a.closers = nil

	return errors.Join(errs...)
}

func connectMCP(ctx context.Context, s MCPServer) (*mcptool.Client, error) {
	prefix := mcptool.WithPrefix(s.Prefix)

	if s.Endpoint != "" {
		return mcptool.NewSSE(ctx, s.Endpoint, prefix)
	}

	return mcptool.NewCommand(ctx, s.Command, s.Args, prefix)
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Unresolved variables without a default are reported together.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}

		if subs[2] != nil {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))

		return match
	})

	return result, errors.Join(errs...)
}

// WithTools sets the tools agents may reference.
func WithTools(tools map[string]tool.Tool) func(o *BuildOptions) {
	return func(o *BuildOptions) {
		o.Tools = tools
	}
}

// WithConnector sets the MCP connector.
func WithConnector(c MCPConnector) func(o *BuildOptions) {
	return func(o *BuildOptions) {
		o.Connect = c
	}
}

// WithLogger sets the build logger.
func WithLogger(l logging.Logger) func(o *BuildOptions) {
	return func(o *BuildOptions) {
		o.Logger = l
	}
}
