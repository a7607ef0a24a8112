// Package executor implements the Tool Executor (C5): the fixed pipeline
// every tool invocation runs through, wiring pkg/tool (C3), pkg/resource
// (C1) and pkg/hook (C4) together. Grounded on kadirpekel-hector's
// pkg/tools/registry.go ExecuteTool (span + metrics wrapped dispatch,
// generalized here to also run the hook pipeline around the call).
package executor

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/hook"
	"github.com/llmspell/llmspell/pkg/observability"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/tool"
)

// Executor runs a Tool through the fixed six-step pipeline from spec.md
// §4.5.
type Executor struct {
	pipeline *hook.Pipeline
}

func New(pipeline *hook.Pipeline) *Executor {
	return &Executor{pipeline: pipeline}
}

// Run implements spec.md §4.5 steps 1-6.
func (e *Executor) Run(ctx context.Context, t tool.Tool, input tool.Input, correlationID string) (tool.Output, error) {
	tracer := observability.GetTracer("llmspell.executor")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, t.Metadata().Name)))
	defer span.End()

	start := time.Now()

	// 1. validate_input
	if err := t.ValidateInput(input); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return refusalEnvelope(t.Metadata().Name, err), nil
	}

	// 2. resource tracker from tool.resource_limits()
	tracker := resource.New(t.ResourceLimits())

	// 3. BeforeToolExecution hooks
	componentID := hook.ComponentID{Name: t.Metadata().Name, Version: t.Metadata().Version, ComponentType: hook.ComponentTool}
	preCtx := &hook.Context{
		Point:         hook.PointBeforeToolExecution,
		ComponentID:   componentID,
		CorrelationID: correlationID,
		Data:          inputToHookData(input),
		Metadata:      map[string]string{},
	}
	preOutcome, _ := e.pipeline.DispatchPre(preCtx)
	if preOutcome.Result.Kind == hook.ResultCancel {
		span.SetStatus(codes.Error, "cancelled by hook")
		return refusalEnvelope(t.Metadata().Name, errs.Security(preOutcome.Result.CancelReason)), nil
	}
	effectiveInput := input
	if preOutcome.Result.Kind == hook.ResultModified {
		effectiveInput = hookDataToInput(preOutcome.Context.Data)
	}

	// 4. run inside the tracker with a wall-clock timeout. The result channel
	// is only read on the success path: if the timeout fires first, the
	// goroutine below may still be running and writing to resultCh, so the
	// timeout branch must not read toolResult at all (see
	// resource.Tracker.WithTimeout's documented caveat).
	type toolResult struct {
		output tool.Output
		err    error
	}
	resultCh := make(chan toolResult, 1)
	toolCtx := &tool.Context{Tracker: tracker}
	runErr := tracker.WithTimeout(ctx, func(innerCtx context.Context) error {
		toolCtx.Ctx = innerCtx
		out, err := t.Execute(toolCtx, effectiveInput)
		resultCh <- toolResult{output: out, err: err}
		return err
	})
	duration := time.Since(start)

	var output tool.Output
	if runErr != nil {
		output = refusalEnvelope(t.Metadata().Name, runErr)
	} else {
		r := <-resultCh
		output = r.output
	}

	// 5. AfterToolExecution hooks, augmented with {result_type, duration, success}
	resultType := "application_error"
	if output.Success {
		resultType = "success"
	}
	postCtx := &hook.Context{
		Point: hook.PointAfterToolExecution, ComponentID: componentID, CorrelationID: correlationID,
		Data: map[string]json.RawMessage{}, Metadata: map[string]string{},
	}
	postOutcome, _ := e.pipeline.DispatchPost(postCtx, resultType, duration.Milliseconds(), output.Success)

	// 6. assemble the final envelope with resource_usage
	m := tracker.Metrics()
	output.ResourceUsage = &tool.ResourceUsage{MemoryBytes: m.MemoryBytes, CPUTimeMs: m.CPUTimeMs, OperationsCount: m.OperationsCount}

	if output.Success {
		span.SetStatus(codes.Ok, "success")
	} else {
		span.SetStatus(codes.Error, output.Message)
	}
	metrics := observability.GetGlobalMetrics()
	if metrics != nil {
		var recordErr error
		if !output.Success {
			recordErr = errs.Component(output.Message)
		}
		metrics.RecordToolExecution(ctx, t.Metadata().Name, duration, recordErr)
		metrics.RecordResourceUsage(ctx, componentID.Name, m.MemoryBytes, m.CPUTimeMs)
	}

	// Post-hook Cancel is advisory: logged and surfaced, does not retroactively
	// undo the already-produced result.
	if postOutcome.Result.Kind == hook.ResultCancel {
		output.Message = output.Message + " (post-hook flagged: " + postOutcome.Result.CancelReason + ")"
	}

	return output, nil
}

func refusalEnvelope(opName string, err error) tool.Output {
	e, ok := errs.As(err)
	kind, msg, field := "application", err.Error(), ""
	if ok {
		kind, msg, field = string(e.Kind), e.Message, e.Field
	}
	return tool.Output{
		Success:   false,
		Operation: opName,
		Message:   msg,
		Error:     &tool.OutputError{Message: msg, Field: field, Kind: kind},
	}
}

func inputToHookData(input tool.Input) map[string]json.RawMessage {
	data := make(map[string]json.RawMessage, len(input))
	for k, v := range input {
		data[k] = v
	}
	return data
}

func hookDataToInput(data map[string]json.RawMessage) tool.Input {
	input := make(tool.Input, len(data))
	for k, v := range data {
		input[k] = v
	}
	return input
}
