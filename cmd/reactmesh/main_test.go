package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/config"
	"github.com/hupe1980/reactmesh/engine"
	"github.com/hupe1980/reactmesh/internal/testutil"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := rootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error"))

	err := cmd.Execute()

	return out.String(), err
}

func stubProvider(t *testing.T, p model.Provider) {
	t.Helper()

	orig := newProvider
	newProvider = func(context.Context, *config.Settings, logging.Logger) (model.Provider, config.CloseFunc, error) {
		return p, func() error { return nil }, nil
	}
	t.Cleanup(func() { newProvider = orig })
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "reactmesh dev")
}

func TestAgents_Default(t *testing.T) {
	out, err := execute(t, "agents")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "people_search,calculator,date")
	assert.Contains(t, out, "people_search")
}

func TestAgents_Catalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - name: solo\n    model: llama3.1\n"), 0o600))

	out, err := execute(t, "agents", "--catalog", path)
	require.NoError(t, err)
	assert.Contains(t, out, "solo")
	assert.Contains(t, out, "llama3.1")
}

func TestRun(t *testing.T) {
	stubProvider(t, testutil.NewScriptedProvider().
		On(testutil.StepChoose, testutil.Choose("calculator", "math")).
		On(testutil.StepAct, testutil.Call("calculator", `{"operation":"add","a":7,"b":12}`)).
		On(testutil.StepObserve, testutil.Observe(true, "19", 0.95)))

	out, err := execute(t, "run", "What", "is", "7", "+", "12?")
	require.NoError(t, err)

	assert.Contains(t, out, "19\n")
	assert.Contains(t, out, "agent: main, confidence: 0.95, interactions: 1")
}

func TestRun_JSON(t *testing.T) {
	stubProvider(t, testutil.NewScriptedProvider())

	out, err := execute(t, "run", "hello", "--json")
	require.NoError(t, err)

	var res engine.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, engine.OutcomeBudgetExhausted, res.Outcome)
	assert.Equal(t, 3, res.Interactions)
}

func TestRun_UnknownAgent(t *testing.T) {
	stubProvider(t, testutil.NewScriptedProvider())

	_, err := execute(t, "run", "hi", "--agent", "ghost")
	assert.ErrorContains(t, err, `unknown agent "ghost"`)
}

func TestRun_RequiresRequest(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}
