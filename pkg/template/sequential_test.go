package template

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/tool"
)

type fakeInvoker struct {
	calls []string
}

func (f *fakeInvoker) InvokeAgent(ctx context.Context, cfg AgentConfig, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	return fmt.Sprintf("result-%d", len(f.calls)), nil
}

type fakeBridge struct {
	assembleCalled bool
	recordCalled   bool
}

func (f *fakeBridge) Assemble(ctx context.Context, sessionID string, budget int) ([]Message, error) {
	f.assembleCalled = true
	return []Message{{Role: "user", Content: "earlier context"}}, nil
}

func (f *fakeBridge) Record(ctx context.Context, sessionID, inputSummary, outputSummary string) error {
	f.recordCalled = true
	return nil
}

type fakeRegistry struct {
	invoked bool
}

func (f *fakeRegistry) InvokeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	f.invoked = true
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeRegistry) ListTools() []string { return nil }

func twoPhaseTemplate(t *testing.T, invoker AgentInvoker) *SequentialTemplate {
	t.Helper()
	schema := json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"}},"required":["topic"]}`)
	tmpl, err := NewSequentialTemplate(
		Metadata{ID: "demo", Name: "Demo", Category: "test"},
		schema,
		invoker,
		[]PhaseSpec{
			{Name: "draft", BuildPrompt: func(params json.RawMessage, prior []string) (string, error) {
				return "draft prompt", nil
			}},
			{Name: "refine", BuildPrompt: func(params json.RawMessage, prior []string) (string, error) {
				require.Len(t, prior, 1)
				return "refine: " + prior[0], nil
			}},
		},
	)
	require.NoError(t, err)
	return tmpl
}

func TestSequentialTemplate_RunsPhasesInOrder(t *testing.T) {
	invoker := &fakeInvoker{}
	tmpl := twoPhaseTemplate(t, invoker)

	out, err := tmpl.Execute(context.Background(), json.RawMessage(`{"topic":"go"}`), Context{})
	require.NoError(t, err)

	assert.Equal(t, ResultText, out.Result)
	assert.Equal(t, "result-1\n\nresult-2", out.Text)
	assert.Equal(t, 2, out.Metrics.AgentsInvoked)
	assert.Len(t, invoker.calls, 2)
	assert.Equal(t, "refine: result-1", invoker.calls[1])
}

func TestSequentialTemplate_RejectsInvalidParams(t *testing.T) {
	tmpl := twoPhaseTemplate(t, &fakeInvoker{})

	_, err := tmpl.Execute(context.Background(), json.RawMessage(`{}`), Context{})
	require.Error(t, err)
}

func TestSequentialTemplate_MemoryAssemblyPrependedOnlyOnce(t *testing.T) {
	invoker := &fakeInvoker{}
	bridge := &fakeBridge{}
	tmpl := twoPhaseTemplate(t, invoker)
	tmpl.Bridge = bridge

	out, err := tmpl.Execute(context.Background(), json.RawMessage(`{"topic":"go"}`), Context{SessionID: "sess-1"})
	require.NoError(t, err)

	assert.True(t, bridge.assembleCalled)
	assert.True(t, bridge.recordCalled)
	assert.Contains(t, invoker.calls[0], "earlier context")
	assert.NotContains(t, invoker.calls[1], "earlier context")
	assert.Equal(t, 1, out.Metrics.RAGQueries)
}

func TestSequentialTemplate_MemoryAssemblySkippedWithoutSessionID(t *testing.T) {
	invoker := &fakeInvoker{}
	bridge := &fakeBridge{}
	tmpl := twoPhaseTemplate(t, invoker)
	tmpl.Bridge = bridge

	_, err := tmpl.Execute(context.Background(), json.RawMessage(`{"topic":"go"}`), Context{})
	require.NoError(t, err)

	assert.False(t, bridge.assembleCalled)
	assert.False(t, bridge.recordCalled)
}

func TestSequentialTemplate_PostProcessInvokesTool(t *testing.T) {
	invoker := &fakeInvoker{}
	reg := &fakeRegistry{}
	tmpl := twoPhaseTemplate(t, invoker)
	tmpl.Registry = reg
	tmpl.PostProcess = &PostProcess{
		ToolName: "formatter",
		BuildArgs: func(params json.RawMessage, outputs []string) (tool.Input, error) {
			return tool.Input{"text": json.RawMessage(`"x"`)}, nil
		},
	}

	out, err := tmpl.Execute(context.Background(), json.RawMessage(`{"topic":"go"}`), Context{})
	require.NoError(t, err)

	assert.True(t, reg.invoked)
	assert.Equal(t, 1, out.Metrics.ToolsInvoked)
}

func TestSequentialTemplate_PersistsArtifactUnderOutputDir(t *testing.T) {
	invoker := &fakeInvoker{}
	tmpl := twoPhaseTemplate(t, invoker)
	dir := t.TempDir()

	out, err := tmpl.Execute(context.Background(), json.RawMessage(`{"topic":"go"}`), Context{OutputDir: dir})
	require.NoError(t, err)

	require.Len(t, out.Artifacts, 1)
	assert.FileExists(t, filepath.Join(dir, out.Artifacts[0].Filename))
	assert.Equal(t, "text/plain", out.Artifacts[0].MimeType)
}

func TestSequentialTemplate_EstimateCostSumsMaxTokens(t *testing.T) {
	tmpl := twoPhaseTemplate(t, &fakeInvoker{})
	tmpl.Phases[0].Config.MaxTokens = 100
	tmpl.Phases[1].Config.MaxTokens = 200

	est, err := tmpl.EstimateCost(json.RawMessage(`{"topic":"go"}`))
	require.NoError(t, err)

	assert.Equal(t, int64(300), est.TokensEstimate)
	assert.Equal(t, 2, est.AgentsInvoked)
}
