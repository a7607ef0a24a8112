package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/tool"
)

func evalInput(expr string) tool.Input {
	quoted, _ := json.Marshal(expr)
	return tool.Input{
		"operation": json.RawMessage(`"evaluate"`),
		"input":     json.RawMessage(quoted),
	}
}

func TestCalculator_BasicArithmetic(t *testing.T) {
	c := NewCalculatorTool()
	out, err := c.Execute(&tool.Context{Ctx: context.Background()}, evalInput("2 + 3 * 4"))
	require.NoError(t, err)
	require.True(t, out.Success)
	result := out.Result.(map[string]any)
	assert.Equal(t, float64(14), result["result"])
	assert.Equal(t, "float", result["result_type"])
}

func TestCalculator_ExpressionLengthBoundary(t *testing.T) {
	c := NewCalculatorTool()

	body := strings.Repeat("1+", 50) + "1" // 50 operators, well under maxOperatorCount
	exact := body + strings.Repeat(" ", maxExpressionLength-len(body))
	require.Len(t, exact, maxExpressionLength)

	out, err := c.Execute(&tool.Context{Ctx: context.Background()}, evalInput(exact))
	require.NoError(t, err)
	assert.True(t, out.Success, "expression at exactly the length cap must be accepted")

	tooLong := exact + " "
	require.Len(t, tooLong, maxExpressionLength+1)
	out, err = c.Execute(&tool.Context{Ctx: context.Background()}, evalInput(tooLong))
	require.NoError(t, err)
	assert.False(t, out.Success, "expression exceeding the length cap must be rejected")
}

func TestCalculator_PatternBlacklist(t *testing.T) {
	c := NewCalculatorTool()
	out, err := c.Execute(&tool.Context{Ctx: context.Background()}, evalInput("1+++1"))
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestCalculator_DivisionByZeroIsInfinity(t *testing.T) {
	c := NewCalculatorTool()
	out, err := c.Execute(&tool.Context{Ctx: context.Background()}, evalInput("1/0"))
	require.NoError(t, err)
	require.True(t, out.Success)
	result := out.Result.(map[string]any)
	assert.Equal(t, "special", result["result_type"])
	assert.Equal(t, "Infinity", result["result"])
}

func TestCalculator_UnknownVariable(t *testing.T) {
	c := NewCalculatorTool()
	out, err := c.Execute(&tool.Context{Ctx: context.Background()}, evalInput("x + 1"))
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestCalculator_Variables(t *testing.T) {
	c := NewCalculatorTool()
	input := tool.Input{
		"operation": json.RawMessage(`"evaluate"`),
		"input":     json.RawMessage(`"x * 2"`),
		"variables": json.RawMessage(`{"x": 21}`),
	}
	out, err := c.Execute(&tool.Context{Ctx: context.Background()}, input)
	require.NoError(t, err)
	require.True(t, out.Success)
	result := out.Result.(map[string]any)
	assert.Equal(t, float64(42), result["result"])
}
