package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	tools map[string]json.RawMessage
}

func (f *fakeRegistry) ListTools() []string {
	names := make([]string, 0, len(f.tools))
	for n := range f.tools {
		names = append(names, n)
	}
	return names
}

func (f *fakeRegistry) InvokeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	out, ok := f.tools[name]
	if !ok {
		return nil, assert.AnError
	}
	return out, nil
}

type fakeProviders struct{ names []string }

func (f *fakeProviders) ListProviders() []string { return f.names }

func TestNativeEngine_LiteralAndArgs(t *testing.T) {
	e := NewNativeEngine()
	require.NoError(t, e.SetScriptArgs(map[string]string{"x": "42"}))

	out, scriptErr := e.ExecuteScript(context.Background(), `{"op":"args"}`)
	require.Nil(t, scriptErr)
	assert.JSONEq(t, `{"x":"42"}`, string(out.Output))

	out, scriptErr = e.ExecuteScript(context.Background(), `{"op":"literal","value":{"a":1}}`)
	require.Nil(t, scriptErr)
	assert.JSONEq(t, `{"a":1}`, string(out.Output))
}

func TestNativeEngine_ToolCallRequiresInjection(t *testing.T) {
	e := NewNativeEngine()
	_, scriptErr := e.ExecuteScript(context.Background(), `{"op":"tool_call","tool":"calculator"}`)
	require.NotNil(t, scriptErr)
	assert.Equal(t, ScriptErrorRuntime, scriptErr.Kind)
}

func TestNativeEngine_InjectAPIsThenToolCall(t *testing.T) {
	e := NewNativeEngine()
	reg := &fakeRegistry{tools: map[string]json.RawMessage{"calculator": json.RawMessage(`{"result":4}`)}}
	require.NoError(t, e.InjectAPIs(reg, &fakeProviders{names: []string{"openai"}}))

	out, scriptErr := e.ExecuteScript(context.Background(), `{"op":"tool_call","tool":"calculator"}`)
	require.Nil(t, scriptErr)
	assert.JSONEq(t, `{"result":4}`, string(out.Output))
	assert.Contains(t, out.ConsoleOutput, "called tool calculator")

	// injecting a second time is rejected, per spec.md's "called exactly once".
	err := e.InjectAPIs(reg, &fakeProviders{})
	require.Error(t, err)
}

func TestNativeEngine_SyntaxErrorReportsKind(t *testing.T) {
	e := NewNativeEngine()
	_, scriptErr := e.ExecuteScript(context.Background(), `not json`)
	require.NotNil(t, scriptErr)
	assert.Equal(t, ScriptErrorSyntax, scriptErr.Kind)
}

func TestNativeEngine_StreamingDeliversSingleTerminalChunk(t *testing.T) {
	e := NewNativeEngine()
	ch, err := e.ExecuteScriptStreaming(context.Background(), `{"op":"literal","value":1}`)
	require.NoError(t, err)

	chunk := <-ch
	assert.True(t, chunk.Done)
	assert.Equal(t, json.RawMessage("1"), chunk.Data)

	_, ok := <-ch
	assert.False(t, ok, "channel should close after the terminal chunk")
}

func TestNativeEngine_CompletionCandidatesFilterByPrefix(t *testing.T) {
	e := NewNativeEngine()
	candidates, err := e.GetCompletionCandidates("li", 2)
	require.NoError(t, err)
	var texts []string
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	assert.ElementsMatch(t, []string{"literal", "list_tools", "list_providers"}, texts)
}
