// Package hook implements the hook pipeline (C4): an enumerated set of
// points in a component's lifecycle, a priority-ordered dispatch algorithm
// over registered hooks, and the built-in SecurityHook. Grounded on
// kadirpekel-hector's pkg/tools/registry.go (span+metrics-wrapped execution,
// generalized here to hook dispatch) and
// original_source/llmspell-hooks/src/builtin/security.rs (SecurityConfig,
// SecurityEvent, sensitive-parameter redaction, block_on_violations).
package hook

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/llmspell/llmspell/pkg/observability"
)

// Point is one of the enumerated hook points from spec.md §4.4.
type Point string

const (
	PointSystemStartup        Point = "system_startup"
	PointBeforeToolExecution  Point = "before_tool_execution"
	PointAfterToolExecution   Point = "after_tool_execution"
	PointBeforeAgentExecution Point = "before_agent_execution"
	PointAfterAgentExecution  Point = "after_agent_execution"
	PointBeforeStateRead      Point = "before_state_read"
	PointBeforeStateWrite     Point = "before_state_write"
	PointSecurityViolation    Point = "security_violation"
	PointMigrationStarted     Point = "migration_started"
	PointMigrationCompleted   Point = "migration_completed"
	PointMigrationFailed      Point = "migration_failed"
)

// ComponentType mirrors spec.md §3's ComponentId.component_type.
type ComponentType string

const (
	ComponentTool     ComponentType = "tool"
	ComponentAgent    ComponentType = "agent"
	ComponentWorkflow ComponentType = "workflow"
	ComponentTemplate ComponentType = "template"
	ComponentSystem   ComponentType = "system"
)

// ComponentID identifies the component a hook context concerns, per
// spec.md §3.
type ComponentID struct {
	Name          string
	Version       string
	ComponentType ComponentType
}

// Priority sorts hooks within a point. Higher values run first.
type Priority int

const PriorityHighest Priority = 1000

// Context is the mutable per-dispatch payload, per spec.md §4.4: mutable
// across pre-hooks, read-only in post-hooks.
type Context struct {
	Point         Point
	ComponentID   ComponentID
	Language      string
	CorrelationID string
	Data          map[string]json.RawMessage
	Metadata      map[string]string
}

func (c *Context) clone() *Context {
	data := make(map[string]json.RawMessage, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return &Context{Point: c.Point, ComponentID: c.ComponentID, Language: c.Language, CorrelationID: c.CorrelationID, Data: data, Metadata: meta}
}

// ResultKind tags the HookResult union from spec.md §4.4.
type ResultKind string

const (
	ResultContinue ResultKind = "continue"
	ResultCancel   ResultKind = "cancel"
	ResultRedirect ResultKind = "redirect"
	ResultModified ResultKind = "modified"
)

// Result is the tagged union HookResult; only one field is populated
// depending on Kind.
type Result struct {
	Kind        ResultKind
	CancelReason string // reason, set for ResultCancel
	RedirectTo  string // new_target, set for ResultRedirect
	ModifiedData map[string]json.RawMessage // new_data, set for ResultModified
}

func Continue() Result { return Result{Kind: ResultContinue} }
func Cancel(reason string) Result { return Result{Kind: ResultCancel, CancelReason: reason} }
func Redirect(target string) Result { return Result{Kind: ResultRedirect, RedirectTo: target} }
func Modified(data map[string]json.RawMessage) Result {
	return Result{Kind: ResultModified, ModifiedData: data}
}

// Metadata identifies a hook (name + priority + the points it runs at).
type Metadata struct {
	Name     string
	Priority Priority
	Points   []Point
}

// Hook is the required capability set from spec.md §4.4.
type Hook interface {
	Metadata() Metadata
	ShouldExecute(ctx *Context) bool
	Execute(ctx *Context) (Result, error)
}

// MetricHook is an optional capability: pre/post probes with duration.
type MetricHook interface {
	Hook
	PreProbe(ctx *Context)
	PostProbe(ctx *Context, d DurationMillis)
}

type DurationMillis int64

// ReplayableHook is an optional capability: a hook can serialize/deserialize
// its context for deterministic re-run. Opt-in per hook, per spec.md §4.4.
type ReplayableHook interface {
	Hook
	Serialize(ctx *Context) ([]byte, error)
	Deserialize(data []byte) (*Context, error)
}

// registration pairs a Hook with its registration order, used as the
// dispatch tiebreaker after priority.
type registration struct {
	hook  Hook
	order int
}

// Pipeline dispatches hooks registered per point, in priority order with
// registration order as the stable tiebreaker, per spec.md §4.4's algorithm.
type Pipeline struct {
	hooks     map[Point][]registration
	nextOrder int
}

func NewPipeline() *Pipeline {
	return &Pipeline{hooks: make(map[Point][]registration)}
}

func (p *Pipeline) Register(h Hook) {
	meta := h.Metadata()
	for _, pt := range meta.Points {
		p.hooks[pt] = append(p.hooks[pt], registration{hook: h, order: p.nextOrder})
	}
	p.nextOrder++
	for pt := range p.hooks {
		list := p.hooks[pt]
		sort.SliceStable(list, func(i, j int) bool {
			pi, pj := list[i].hook.Metadata().Priority, list[j].hook.Metadata().Priority
			if pi != pj {
				return pi > pj
			}
			return list[i].order < list[j].order
		})
	}
}

// DispatchOutcome reports what happened during a pre-dispatch pass.
type DispatchOutcome struct {
	Result  Result
	Context *Context
}

// DispatchPre runs the pre-hooks for point against ctx, per spec.md §4.4
// steps 1-2: collect by priority, invoke should_execute, stop at the first
// Cancel, fold Modified into the context data and continue otherwise.
//
// A hook that panics or returns a low-level error is folded per spec.md
// §4.4's failure model: Cancel for security-class hooks (PriorityHighest),
// Continue-with-a-recorded-warning for everything else.
func (p *Pipeline) DispatchPre(ctx *Context) (DispatchOutcome, []string) {
	start := time.Now()
	current := ctx.clone()
	var warnings []string
	outcome := ResultContinue
	for _, reg := range p.hooks[ctx.Point] {
		h := reg.hook
		result, err := safeExecute(h, current)
		if err != nil {
			if h.Metadata().Priority >= PriorityHighest {
				recordDispatch(ctx, ResultCancel, start)
				return DispatchOutcome{Result: Cancel("hook internal error"), Context: current}, warnings
			}
			warnings = append(warnings, "hook "+h.Metadata().Name+" failed: "+err.Error())
			continue
		}
		switch result.Kind {
		case ResultCancel:
			recordDispatch(ctx, ResultCancel, start)
			return DispatchOutcome{Result: result, Context: current}, warnings
		case ResultModified:
			current.Data = result.ModifiedData
		}
	}
	recordDispatch(ctx, outcome, start)
	return DispatchOutcome{Result: Continue(), Context: current}, warnings
}

// recordDispatch reports the pipeline's metric façade for this dispatch,
// keyed by point and component so operators can see which hooks cancel or
// slow down which components.
func recordDispatch(ctx *Context, outcome ResultKind, start time.Time) {
	observability.GetGlobalMetrics().RecordHookDispatch(
		context.Background(), string(ctx.Point), ctx.ComponentID.Name, time.Since(start), string(outcome))
}

// DispatchPost runs the post-hooks for point; a Cancel here is advisory: it
// does not undo the already-produced result, only surfaces to the caller.
func (p *Pipeline) DispatchPost(ctx *Context, resultType string, durationMs int64, success bool) (DispatchOutcome, []string) {
	start := time.Now()
	augmented := ctx.clone()
	augmented.Data["result_type"] = mustJSON(resultType)
	augmented.Data["duration_ms"] = mustJSON(durationMs)
	augmented.Data["success"] = mustJSON(success)

	var warnings []string
	for _, reg := range p.hooks[ctx.Point] {
		h := reg.hook
		result, err := safeExecute(h, augmented)
		if err != nil {
			if h.Metadata().Priority >= PriorityHighest {
				recordDispatch(ctx, ResultCancel, start)
				return DispatchOutcome{Result: Cancel("hook internal error"), Context: augmented}, warnings
			}
			warnings = append(warnings, "hook "+h.Metadata().Name+" failed: "+err.Error())
			continue
		}
		if result.Kind == ResultCancel {
			recordDispatch(ctx, ResultCancel, start)
			return DispatchOutcome{Result: result, Context: augmented}, warnings
		}
		if result.Kind == ResultModified {
			augmented.Data = result.ModifiedData
		}
	}
	recordDispatch(ctx, ResultContinue, start)
	return DispatchOutcome{Result: Continue(), Context: augmented}, warnings
}

func safeExecute(h Hook, ctx *Context) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	if !h.ShouldExecute(ctx) {
		return Continue(), nil
	}
	return h.Execute(ctx)
}

type panicError struct{ value any }

func (p panicError) Error() string { return "panic in hook execution" }

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
