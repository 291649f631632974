package builtin

import (
	"time"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/tool"
)

// NewDate returns the date tool. A nil clock uses time.Now.
func NewDate(now func() time.Time) tool.Tool {
	if now == nil {
		now = time.Now
	}

	return tool.NewFunctionTool("date", "Use this tool to get the current date.", nil,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return now().Format(time.DateOnly), nil
		})
}
