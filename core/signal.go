package core

import "fmt"

// NoTool is the ToolChoice name signalling that no capability should be used.
const NoTool = "none"

// Schema names of the structured values exchanged with the provider.
const (
	ToolChoiceSchemaName = "tool_choice"
	ReactEndSchemaName   = "react_end"
)

// ToolChoice is the structured selection an agent makes in CHOOSE_TOOL.
type ToolChoice struct {
	ToolName       string `json:"tool_name" description:"Name of the tool or agent to use, or none"`
	ReasonOfChoice string `json:"reason_of_choice" description:"Why this tool was chosen"`
}

// IsNone reports whether the choice selects no capability.
func (c ToolChoice) IsNone() bool { return c.ToolName == "" || c.ToolName == NoTool }

// String renders the choice for conversation memory.
func (c ToolChoice) String() string {
	return fmt.Sprintf("Tool choice: %s. Reason: %s", c.ToolName, c.ReasonOfChoice)
}

// ReactEnd is the termination signal an agent produces in OBSERVE.
type ReactEnd struct {
	Stop        bool    `json:"stop" description:"True if the request is answered and the loop should stop"`
	FinalAnswer string  `json:"final_answer" description:"The final answer to the request"`
	Confidence  float64 `json:"confidence" description:"Confidence in the final answer between 0 and 1"`
}

// Normalize clamps Confidence into [0, 1].
func (r ReactEnd) Normalize() ReactEnd {
	switch {
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	return r
}

// String renders the signal for conversation memory.
func (r ReactEnd) String() string {
	return fmt.Sprintf("Stop: %t. Final answer: %s. Confidence: %.2f", r.Stop, r.FinalAnswer, r.Confidence)
}
