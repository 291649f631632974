package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/tool"
)

func dispatch(t *testing.T, tl tool.Tool, args string) core.Turn {
	t.Helper()

	reg, err := tool.NewRegistry(tl)
	require.NoError(t, err)

	return tool.NewDispatcher().Dispatch(context.Background(), "test", core.ToolCallRequest{ID: "c1", ToolName: tl.Name(), RawArguments: args}, reg)
}

func TestCalculator(t *testing.T) {
	tests := []struct {
		args string
		want string
	}{
		{`{"operation":"add","a":7,"b":12}`, "19"},
		{`{"operation":"subtract","a":"10","b":4}`, "6"},
		{`{"operation":"multiply","a":2.5,"b":4}`, "10"},
		{`{"operation":"divide","a":1,"b":4}`, "0.25"},
	}

	calc := NewCalculator()

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			turn := dispatch(t, calc, tt.args)
			require.False(t, turn.IsToolError(), turn.Content)
			assert.Equal(t, tt.want, turn.Content)
		})
	}
}

func TestCalculator_Failures(t *testing.T) {
	calc := NewCalculator()

	turn := dispatch(t, calc, `{"operation":"divide","a":1,"b":0}`)
	require.True(t, turn.IsToolError())
	assert.Equal(t, core.ToolErrorExecutionFailure, turn.ToolError.Kind)
	assert.ErrorIs(t, turn.ToolError, ErrDivisionByZero)

	turn = dispatch(t, calc, `{"operation":"modulo","a":1,"b":2}`)
	assert.Equal(t, core.ToolErrorInvalidArguments, turn.ToolError.Kind)

	turn = dispatch(t, calc, `{"operation":"add","a":1}`)
	assert.Equal(t, core.ToolErrorInvalidArguments, turn.ToolError.Kind)
}

func TestDate(t *testing.T) {
	d := NewDate(func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) })

	turn := dispatch(t, d, "")
	assert.Equal(t, "2026-10-19", turn.Content)
}

func TestWikipedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/rest_v1/page/summary/Albert_Einstein":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"title":"Albert Einstein","extract":"` + strings.Repeat("x", 400) + `"}`))
		case "/api/rest_v1/page/summary/Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	wiki := NewWikipedia(WithWikipediaBaseURL(srv.URL), WithWikipediaHTTPClient(srv.Client()))

	turn := dispatch(t, wiki, `{"search_query":"Albert Einstein"}`)
	require.False(t, turn.IsToolError(), turn.Content)
	assert.Len(t, turn.Content, 300)

	turn = dispatch(t, wiki, `{"search_query":"Nobody Known"}`)
	require.False(t, turn.IsToolError())
	assert.Contains(t, turn.Content, "Could not find information about Nobody Known")

	turn = dispatch(t, wiki, `{"search_query":"Broken"}`)
	require.True(t, turn.IsToolError())
	assert.Equal(t, core.ToolErrorExecutionFailure, turn.ToolError.Kind)

	turn = dispatch(t, wiki, `{"search_query":"  "}`)
	assert.Equal(t, core.ToolErrorInvalidArguments, turn.ToolError.Kind)
}

func TestMainAgent(t *testing.T) {
	main, err := NewMainAgent(agent.WithModel("gpt-4o-mini"))
	require.NoError(t, err)

	assert.Equal(t, "main", main.Name())
	assert.Equal(t, "gpt-4o-mini", main.Model())
	assert.Equal(t, []string{"people_search", "calculator", "date"}, main.CapabilityNames())

	people, ok := main.Capability("people_search")
	require.True(t, ok)
	assert.Equal(t, agent.CapabilitySubAgent, people.Kind())
	assert.Equal(t, "Use this tool to search for information about people.", people.Description())

	d, ok := people.Agent()
	require.True(t, ok)
	assert.Equal(t, []string{"wikipedia"}, d.Tools().Names())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo wörld", 5))
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "unbounded", truncate("unbounded", 0))
}
