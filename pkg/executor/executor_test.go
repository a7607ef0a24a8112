package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/hook"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/tool"
)

type echoTool struct{}

func (echoTool) Metadata() tool.Metadata { return tool.Metadata{Name: "echo", Version: "1.0.0"} }
func (echoTool) Schema() tool.Schema {
	return tool.Schema{Parameters: []tool.Parameter{{Name: "value", Type: tool.TypeString, Required: true}}}
}
func (echoTool) Category() tool.Category           { return tool.CategoryUtility }
func (echoTool) SecurityLevel() tool.SecurityLevel { return tool.SecuritySafe }
func (echoTool) SecurityRequirements() []string    { return nil }
func (echoTool) ResourceLimits() resource.Limits   { return resource.Limits{} }
func (t echoTool) ValidateInput(input tool.Input) error {
	return tool.ValidateAgainstSchema(t.Schema(), input)
}
func (echoTool) Execute(ctx *tool.Context, input tool.Input) (tool.Output, error) {
	return tool.Output{Success: true, Operation: "echo", Result: map[string]any{"value": json.RawMessage(input["value"])}}, nil
}

type slowTool struct{}

func (slowTool) Metadata() tool.Metadata { return tool.Metadata{Name: "slow", Version: "1.0.0"} }
func (slowTool) Schema() tool.Schema     { return tool.Schema{} }
func (slowTool) Category() tool.Category { return tool.CategoryUtility }
func (slowTool) SecurityLevel() tool.SecurityLevel { return tool.SecuritySafe }
func (slowTool) SecurityRequirements() []string    { return nil }
func (slowTool) ResourceLimits() resource.Limits {
	return resource.Limits{OperationTimeout: 10 * time.Millisecond}
}
func (slowTool) ValidateInput(input tool.Input) error { return nil }
func (slowTool) Execute(ctx *tool.Context, input tool.Input) (tool.Output, error) {
	select {
	case <-ctx.Ctx.Done():
		return tool.Output{}, ctx.Ctx.Err()
	case <-time.After(time.Second):
		return tool.Output{Success: true}, nil
	}
}

func TestExecutor_SuccessAssemblesResourceUsage(t *testing.T) {
	e := New(hook.NewPipeline())
	out, err := e.Run(context.Background(), echoTool{}, tool.Input{"value": json.RawMessage(`"hi"`)}, "corr-1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotNil(t, out.ResourceUsage)
}

func TestExecutor_ValidationFailureShortCircuits(t *testing.T) {
	e := New(hook.NewPipeline())
	out, err := e.Run(context.Background(), echoTool{}, tool.Input{}, "corr-2")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "validation", out.Error.Kind)
}

func TestExecutor_SecurityHookCancelProducesRefusal(t *testing.T) {
	p := hook.NewPipeline()
	p.Register(hook.NewSecurityHook(hook.SecurityConfig{MaxParameterBytes: 1, BlockOnViolations: true}))
	e := New(p)

	out, err := e.Run(context.Background(), echoTool{}, tool.Input{"value": json.RawMessage(`"too long to fit"`)}, "corr-3")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "security", out.Error.Kind)
}

func TestExecutor_TimeoutProducesResourceRefusal(t *testing.T) {
	e := New(hook.NewPipeline())
	out, err := e.Run(context.Background(), slowTool{}, tool.Input{}, "corr-4")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "resource", out.Error.Kind)
}
