package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
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

	client := openai.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"), option.WithMaxRetries(0))

	return NewFromClient(&client)
}

func TestComplete_ToolCalls(t *testing.T) {
	body := `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
	"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
	"tool_calls":[{"id":"call_1","type":"function","function":{"name":"calculator","arguments":"{\"operation\":\"add\",\"a\":7,\"b\":12}"}}]}}],
	"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

	var seen map[string]any
	p := newTestProvider(t, http.StatusOK, body, &seen)

	resp, err := p.Complete(context.Background(), model.Request{
		Instructions: "be precise",
		Turns:        []core.Turn{core.NewUserTurn("What is 7+12?")},
		Tools:        []model.ToolDefinition{{Name: "calculator", Description: "math", Parameters: map[string]any{"type": "object"}}},
		ToolChoice:   model.ToolChoiceRequired,
		MaxTokens:    256,
	})
	require.NoError(t, err)

	assert.Equal(t, model.ResponseToolCalls, resp.Kind)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "calculator", resp.ToolCalls[0].ToolName)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.EqualValues(t, 256, seen["max_completion_tokens"])
	assert.Equal(t, false, seen["parallel_tool_calls"])
	choice := seen["tool_choice"].(map[string]any)
	assert.Equal(t, "calculator", choice["function"].(map[string]any)["name"])
	assert.Len(t, seen["messages"], 2)
}

func TestComplete_Structured(t *testing.T) {
	body := `{"id":"c2","object":"chat.completion","created":1,"model":"gpt-4o-mini",
	"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"stop\":true,\"final_answer\":\"19\",\"confidence\":0.9}"}}]}`

	var seen map[string]any
	p := newTestProvider(t, http.StatusOK, body, &seen)

	var end core.ReactEnd
	_, err := model.CompleteStructured(context.Background(), p, model.Request{Turns: []core.Turn{core.NewUserTurn("q")}}, model.Schema{Name: "react_end", Definition: map[string]any{"type": "object"}}, &end)
	require.NoError(t, err)

	assert.True(t, end.Stop)
	assert.Equal(t, "19", end.FinalAnswer)
	format := seen["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		is     error
	}{
		{http.StatusTooManyRequests, core.ErrRateLimited},
		{http.StatusUnauthorized, core.ErrProviderUnavailable},
		{http.StatusInternalServerError, core.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		p := newTestProvider(t, tt.status, `{"error":{"message":"nope","type":"x"}}`, nil)
		_, err := p.Complete(context.Background(), model.Request{Turns: []core.Turn{core.NewUserTurn("q")}})
		assert.ErrorIs(t, err, tt.is, "status %d", tt.status)
	}
}

func TestBuildMessages_ToolTurns(t *testing.T) {
	req := core.ToolCallRequest{ID: "call_1", ToolName: "calculator", RawArguments: `{}`}
	msgs := buildMessages(model.Request{
		Instructions: "sys",
		Turns: []core.Turn{
			core.NewUserTurn("q"),
			core.NewToolCallTurn("math", []core.ToolCallRequest{req}),
			core.NewToolResultTurn("math", req, "19"),
			core.NewAssistantTurn("math", "done"),
		},
	})

	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.NotNil(t, msgs[3].OfTool)
}

func TestInfo(t *testing.T) {
	p := New(func(o *Options) { o.Model = "gpt-4.1"; o.APIKey = "k" })
	assert.Equal(t, model.Info{Name: "gpt-4.1", Provider: "openai", SupportsTools: true}, p.Info())
}
