package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/reactmesh/core"
)

// MockTool is a testify mock implementing tool.Tool.
//
//	m := NewMockTool("lookup", nil)
//	m.On("Call", map[string]any{"q": "go"}).Return("result", nil).Once()
type MockTool struct {
	mock.Mock
	name        string
	description string
	params      map[string]any
}

// NewMockTool creates a mock tool. A nil schema accepts any object.
func NewMockTool(name string, params map[string]any) *MockTool {
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &MockTool{name: name, description: "mock " + name, params: params}
}

// Name implements tool.Tool.
func (m *MockTool) Name() string { return m.name }

// Description implements tool.Tool.
func (m *MockTool) Description() string { return m.description }

// Parameters implements tool.Tool.
func (m *MockTool) Parameters() map[string]any { return m.params }

// Call implements tool.Tool.
func (m *MockTool) Call(_ *core.ToolContext, args map[string]any) (any, error) {
	ret := m.Called(args)
	return ret.Get(0), ret.Error(1)
}
