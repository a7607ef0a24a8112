package hook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedHook struct {
	meta   Metadata
	result Result
	err    error
	calls  *int
}

func (f *fixedHook) Metadata() Metadata             { return f.meta }
func (f *fixedHook) ShouldExecute(ctx *Context) bool { return true }
func (f *fixedHook) Execute(ctx *Context) (Result, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.result, f.err
}

func newCtx() *Context {
	return &Context{
		Point:         PointBeforeToolExecution,
		ComponentID:   ComponentID{Name: "calculator", ComponentType: ComponentTool},
		CorrelationID: "corr-1",
		Data:          map[string]json.RawMessage{"input": json.RawMessage(`"2+2"`)},
		Metadata:      map[string]string{},
	}
}

func TestPipeline_CancelShortCircuitsRemainingHooks(t *testing.T) {
	p := NewPipeline()
	var secondCalls int
	p.Register(&fixedHook{meta: Metadata{Name: "first", Priority: 10, Points: []Point{PointBeforeToolExecution}}, result: Cancel("blocked")})
	p.Register(&fixedHook{meta: Metadata{Name: "second", Priority: 5, Points: []Point{PointBeforeToolExecution}}, result: Continue(), calls: &secondCalls})

	outcome, _ := p.DispatchPre(newCtx())
	assert.Equal(t, ResultCancel, outcome.Result.Kind)
	assert.Equal(t, 0, secondCalls, "a Cancel must short-circuit remaining pre-hooks")
}

func TestPipeline_PriorityOrdering(t *testing.T) {
	var order []string
	p := NewPipeline()
	low := &recordingHook{name: "low", priority: 1, order: &order}
	high := &recordingHook{name: "high", priority: 100, order: &order}
	p.Register(low)
	p.Register(high)

	p.DispatchPre(newCtx())
	require.Equal(t, []string{"high", "low"}, order)
}

type recordingHook struct {
	name     string
	priority Priority
	order    *[]string
}

func (r *recordingHook) Metadata() Metadata {
	return Metadata{Name: r.name, Priority: r.priority, Points: []Point{PointBeforeToolExecution}}
}
func (r *recordingHook) ShouldExecute(ctx *Context) bool { return true }
func (r *recordingHook) Execute(ctx *Context) (Result, error) {
	*r.order = append(*r.order, r.name)
	return Continue(), nil
}

func TestPipeline_ModifiedDataCarriesForward(t *testing.T) {
	p := NewPipeline()
	modified := map[string]json.RawMessage{"input": json.RawMessage(`"3+3"`)}
	p.Register(&fixedHook{meta: Metadata{Name: "mutator", Priority: 10, Points: []Point{PointBeforeToolExecution}}, result: Modified(modified)})

	outcome, _ := p.DispatchPre(newCtx())
	assert.Equal(t, ResultContinue, outcome.Result.Kind)
	assert.Equal(t, json.RawMessage(`"3+3"`), outcome.Context.Data["input"])
}

func TestPipeline_PanicInSecurityHookBecomesCancel(t *testing.T) {
	p := NewPipeline()
	p.Register(&panickingHook{priority: PriorityHighest})

	outcome, _ := p.DispatchPre(newCtx())
	assert.Equal(t, ResultCancel, outcome.Result.Kind)
}

func TestPipeline_PanicInNonSecurityHookBecomesContinueWithWarning(t *testing.T) {
	p := NewPipeline()
	p.Register(&panickingHook{priority: 1})

	outcome, warnings := p.DispatchPre(newCtx())
	assert.Equal(t, ResultContinue, outcome.Result.Kind)
	assert.NotEmpty(t, warnings)
}

type panickingHook struct{ priority Priority }

func (p *panickingHook) Metadata() Metadata {
	return Metadata{Name: "panicker", Priority: p.priority, Points: []Point{PointBeforeToolExecution}}
}
func (p *panickingHook) ShouldExecute(ctx *Context) bool            { return true }
func (p *panickingHook) Execute(ctx *Context) (Result, error)       { panic("boom") }

func TestSecurityHook_RedactsSensitiveKeysOnViolation(t *testing.T) {
	h := NewSecurityHook(SecurityConfig{MaxParameterBytes: 4, SensitiveNames: []string{"password"}})
	ctx := &Context{
		Point: PointBeforeToolExecution,
		Data: map[string]json.RawMessage{
			"password": json.RawMessage(`"hunter2hunter2hunter2"`),
		},
	}
	result, err := h.Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, ResultModified, result.Kind)
	assert.Equal(t, json.RawMessage(`"***REDACTED***"`), result.ModifiedData["password"])
}

func TestSecurityHook_BlocksOnViolationWhenConfigured(t *testing.T) {
	h := NewSecurityHook(SecurityConfig{MaxParameterBytes: 2, BlockOnViolations: true})
	ctx := &Context{Data: map[string]json.RawMessage{"x": json.RawMessage(`"too long"`)}}
	result, err := h.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResultCancel, result.Kind)
}

func TestPipeline_SerializeRedactsThenDeserializeRestores(t *testing.T) {
	p := NewPipeline()
	ctx := newCtx()
	ctx.Data["password"] = json.RawMessage(`"s3cret"`)

	data, err := p.Serialize(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "REDACTED")
	assert.NotContains(t, string(data), "s3cret")

	restored, err := p.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, ctx.CorrelationID, restored.CorrelationID)
}
