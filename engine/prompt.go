package engine

import (
	"fmt"
	"strings"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
)

const (
	thinkDirective = "Think step by step about the request. Summarize what is known so far and " +
		"which capability, if any, should be used next. Do not answer with a tool call."

	outputDirective = "Produce the result for the request in the required format, " +
		"using the information gathered in the conversation."

	chooseDirective = "Select the one capability that best moves the request forward. " +
		`Answer with "none" if no capability is needed.`

	actDirective = "Call %s with the arguments required by the request and the conversation so far."

	actParallelDirective = "Call the tools needed to make progress on the request, starting with %s."

	observeDirective = "Decide whether the conversation contains enough information to answer the request. " +
		"If it does, set stop to true and give the final answer with a confidence between 0 and 1. " +
		"Otherwise set stop to false."
)

// buildPrompt renders the single user turn sent on every step: the request,
// the active agent's capabilities, the recalled memory and the directive of
// the step.
func buildPrompt(request string, caps []agent.Capability, recall, directive string) string {
	var b strings.Builder

	b.WriteString("Request:\n")
	b.WriteString(request)
	b.WriteString("\n\nCapabilities:\n")

	if len(caps) == 0 {
		b.WriteString("(none)\n")
	}

	for _, c := range caps {
		fmt.Fprintf(&b, "- %s - %s\n", c.Name(), c.Description())
	}

	if recall != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(recall)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(directive)

	return b.String()
}

// toolChoiceSchema constrains tool_name to the capability names plus "none".
func toolChoiceSchema(names []string) model.Schema {
	def := util.CreateSchema(core.ToolChoice{})

	enum := make([]any, 0, len(names)+1)
	for _, n := range names {
		enum = append(enum, n)
	}
	enum = append(enum, core.NoTool)

	if props, ok := def["properties"].(map[string]any); ok {
		if tn, ok := props["tool_name"].(map[string]any); ok {
			tn["enum"] = enum
		}
	}

	def["additionalProperties"] = false

	return model.Schema{Name: core.ToolChoiceSchemaName, Definition: def}
}

func reactEndSchema() model.Schema {
	def := util.CreateSchema(core.ReactEnd{})
	def["additionalProperties"] = false

	return model.Schema{Name: core.ReactEndSchemaName, Definition: def}
}

func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
