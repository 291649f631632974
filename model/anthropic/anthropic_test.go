package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

func newTestProvider(t *testing.T, status int, body string, seen *map[string]any) *Provider {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))

	return NewFromClient(&client)
}

func TestComplete_StructuredViaForcedTool(t *testing.T) {
	body := `{"id":"msg_1","type":"message","role":"assistant","model":"claude","stop_reason":"tool_use",
	"content":[{"type":"tool_use","id":"tu_1","name":"tool_choice","input":{"tool_name":"calculator","reason_of_choice":"math"}}],
	"usage":{"input_tokens":12,"output_tokens":8}}`

	var seen map[string]any
	p := newTestProvider(t, http.StatusOK, body, &seen)

	var choice core.ToolChoice
	resp, err := model.CompleteStructured(context.Background(), p,
		model.Request{Instructions: "pick", Turns: []core.Turn{core.NewUserTurn("7+12?")}},
		model.Schema{Name: "tool_choice", Definition: map[string]any{"type": "object", "properties": map[string]any{}}},
		&choice,
	)
	require.NoError(t, err)

	assert.Equal(t, "calculator", choice.ToolName)
	assert.Equal(t, 20, resp.Usage.TotalTokens)

	tc := seen["tool_choice"].(map[string]any)
	assert.Equal(t, "tool", tc["type"])
	assert.Equal(t, "tool_choice", tc["name"])
}

func TestComplete_Text(t *testing.T) {
	body := `{"id":"msg_2","type":"message","role":"assistant","model":"claude","stop_reason":"end_turn",
	"content":[{"type":"text","text":"Let me think."}],"usage":{"input_tokens":1,"output_tokens":1}}`

	p := newTestProvider(t, http.StatusOK, body, nil)

	resp, err := p.Complete(context.Background(), model.Request{Turns: []core.Turn{core.NewUserTurn("hi")}})
	require.NoError(t, err)
	assert.Equal(t, model.ResponseText, resp.Kind)
	assert.Equal(t, "Let me think.", resp.Text)
}

func TestComplete_Overloaded(t *testing.T) {
	p := newTestProvider(t, 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, nil)

	_, err := p.Complete(context.Background(), model.Request{Turns: []core.Turn{core.NewUserTurn("hi")}})
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
}

func TestBuildMessages(t *testing.T) {
	req := core.ToolCallRequest{ID: "tu_1", ToolName: "calculator", RawArguments: `{"a":1}`}

	system, msgs := buildMessages(model.Request{
		Instructions: "sys",
		Turns: []core.Turn{
			core.NewSystemTurn("extra"),
			core.NewUserTurn("q"),
			core.NewAssistantTurn("math", "thinking"),
			core.NewToolCallTurn("math", []core.ToolCallRequest{req}),
			core.NewToolResultTurn("math", req, "19"),
		},
	})

	assert.Len(t, system, 2)
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2) // thought and tool_use merged
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Name:        "calculator",
		Description: "math",
		Parameters:  map[string]any{"properties": map[string]any{"a": map[string]any{"type": "number"}}, "required": []any{"a"}},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "calculator", tools[0].OfTool.Name)
	assert.Equal(t, []string{"a"}, tools[0].OfTool.InputSchema.Required)
}
