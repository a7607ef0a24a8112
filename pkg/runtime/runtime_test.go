package runtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/tool"
)

type constTool struct{ name string }

func (c constTool) Metadata() tool.Metadata           { return tool.Metadata{Name: c.name, Version: "1.0.0"} }
func (c constTool) Schema() tool.Schema               { return tool.Schema{} }
func (c constTool) Category() tool.Category           { return tool.CategoryUtility }
func (c constTool) SecurityLevel() tool.SecurityLevel { return tool.SecuritySafe }
func (c constTool) SecurityRequirements() []string    { return nil }
func (c constTool) ResourceLimits() resource.Limits   { return resource.Limits{} }
func (c constTool) ValidateInput(input tool.Input) error { return nil }
func (c constTool) Execute(ctx *tool.Context, input tool.Input) (tool.Output, error) {
	return tool.Output{Success: true, Operation: c.name, Result: "ok"}, nil
}

func TestRuntime_NewWithEngineInjectsRegisteredTools(t *testing.T) {
	rt, err := NewWithEngineName("native", []tool.Tool{constTool{name: "echo"}}, LLMSpellConfig{})
	require.NoError(t, err)

	out, scriptErr := rt.ExecuteScript(context.Background(), `{"op":"list_tools"}`)
	require.Nil(t, scriptErr)
	var names []string
	require.NoError(t, json.Unmarshal(out.Output, &names))
	assert.Equal(t, []string{"echo"}, names)
	assert.Equal(t, "native", out.Language)
}

func TestRuntime_ExecuteScriptRunsToolThroughExecutor(t *testing.T) {
	rt, err := NewWithEngineName("native", []tool.Tool{constTool{name: "echo"}}, LLMSpellConfig{})
	require.NoError(t, err)

	out, scriptErr := rt.ExecuteScript(context.Background(), `{"op":"tool_call","tool":"echo"}`)
	require.Nil(t, scriptErr)

	var envelope tool.Output
	require.NoError(t, json.Unmarshal(out.Output, &envelope))
	assert.True(t, envelope.Success)
	require.NotNil(t, envelope.ResourceUsage)
}

func TestRuntime_SafeEnvironmentVariablesAreForwarded(t *testing.T) {
	t.Setenv("LLMSPELL_TEST_VAR", "hello")
	rt, err := NewWithEngineName("native", nil, LLMSpellConfig{SafeEnvironmentVariables: []string{"LLMSPELL_TEST_VAR"}})
	require.NoError(t, err)

	ec := rt.ExecutionContext()
	assert.Equal(t, "hello", ec.Environment["LLMSPELL_TEST_VAR"])
}

func TestRuntime_UpdateExecutionContextCopiesOutAndIn(t *testing.T) {
	rt, err := NewWithEngineName("native", nil, LLMSpellConfig{WorkingDirectory: "/tmp"})
	require.NoError(t, err)

	rt.UpdateExecutionContext(func(ec *ExecutionContext) {
		ec.State["k"] = json.RawMessage(`"v"`)
	})

	assert.Equal(t, json.RawMessage(`"v"`), rt.ExecutionContext().State["k"])
}

func TestRuntime_TemplateSurfaceWithoutProviderReturnsNotImplemented(t *testing.T) {
	rt, err := NewWithEngineName("native", nil, LLMSpellConfig{})
	require.NoError(t, err)

	_, err = rt.HandleTemplateList("")
	require.Error(t, err)
}

func TestRuntime_UnknownEngineNameRejected(t *testing.T) {
	_, err := NewWithEngineName("lua-5.4", nil, LLMSpellConfig{})
	require.Error(t, err)
}

func TestRuntime_ExecuteScriptWithArgsUsesNativeBinding(t *testing.T) {
	rt, err := NewWithEngineName("native", nil, LLMSpellConfig{})
	require.NoError(t, err)

	out, scriptErr := rt.ExecuteScriptWithArgs(context.Background(), `{"op":"args"}`, map[string]string{"x": "1"})
	require.Nil(t, scriptErr)
	assert.JSONEq(t, `{"x":"1"}`, string(out.Output))
}
