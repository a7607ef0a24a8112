// Package engine implements the Script Engine Bridge (C6): the narrow
// capability set the runtime depends on, deliberately excluding any
// language-VM internals (spec.md's Non-goals explicitly keep Lua/JS engine
// internals out of scope — the runtime only ever sees this interface).
//
// Two implementations ship here: nativeEngine, an in-process JSON-scriptlet
// engine used by tests and by hosts that don't need a real language, and an
// out-of-process bridge (rpc.go, loader.go) for engines shipped as separate
// binaries, built on github.com/hashicorp/go-plugin's net/rpc transport.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// Features reports the optional capabilities an engine supports, per
// spec.md §4.6's supported_features().
type Features struct {
	Streaming   bool `json:"streaming"`
	Multimodal  bool `json:"multimodal"`
	Debugging   bool `json:"debugging"`
	Completions bool `json:"completions"`
}

// ScriptOutput is the wire shape execute_script returns, per spec.md §4.6.
type ScriptOutput struct {
	Output        json.RawMessage      `json:"output"`
	ConsoleOutput []string             `json:"console_output"`
	Metadata      ScriptOutputMetadata `json:"metadata"`
}

type ScriptOutputMetadata struct {
	Engine   string   `json:"engine"`
	Warnings []string `json:"warnings,omitempty"`
}

// ScriptErrorKind classifies a ScriptError the way spec.md §4.6 requires:
// "structured ScriptError carrying, when available, (line, column, kind,
// suggestions[])".
type ScriptErrorKind string

const (
	ScriptErrorSyntax  ScriptErrorKind = "syntax"
	ScriptErrorRuntime ScriptErrorKind = "runtime"
	ScriptErrorTimeout ScriptErrorKind = "timeout"
)

// ScriptError is the structured failure execute_script surfaces for engine
// syntax and runtime errors. Line/Column are 0 when the engine cannot
// attribute the failure to a source position.
type ScriptError struct {
	Line        int             `json:"line,omitempty"`
	Column      int             `json:"column,omitempty"`
	Kind        ScriptErrorKind `json:"kind"`
	Message     string          `json:"message"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

func (e *ScriptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ScriptChunk is one element of an execute_script_streaming sequence.
type ScriptChunk struct {
	Data json.RawMessage `json:"data,omitempty"`
	Done bool            `json:"done"`
	Err  *ScriptError    `json:"error,omitempty"`
}

// DebugContext is the optional per-session debug state set_debug_context
// installs; nil clears it.
type DebugContext struct {
	Breakpoints []int `json:"breakpoints,omitempty"`
	StepMode    bool  `json:"step_mode"`
}

// CompletionCandidate is one suggestion get_completion_candidates returns.
type CompletionCandidate struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// ComponentRegistry is the narrow surface inject_apis binds into a script
// engine so scripts can resolve and invoke tools. pkg/runtime (C7) supplies
// the concrete implementation backed by pkg/tool.Registry and pkg/executor.
type ComponentRegistry interface {
	InvokeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)
	ListTools() []string
}

// ProviderManager is the narrow surface inject_apis binds for scripts that
// need to enumerate configured model/service providers without touching
// provider internals.
type ProviderManager interface {
	ListProviders() []string
}

// ScriptEngine is the capability set from spec.md §4.6.
type ScriptEngine interface {
	GetEngineName() string
	SupportedFeatures() Features
	// InjectAPIs binds host globals/modules so scripts can resolve tools,
	// agents, state, JSON, etc. Called exactly once before the first
	// execution.
	InjectAPIs(registry ComponentRegistry, providers ProviderManager) error
	ExecuteScript(ctx context.Context, source string) (ScriptOutput, *ScriptError)
	// ExecuteScriptStreaming must be supported iff SupportedFeatures().Streaming.
	ExecuteScriptStreaming(ctx context.Context, source string) (<-chan ScriptChunk, error)
	SetScriptArgs(args map[string]string) error
	// GetCompletionCandidates and SetDebugContext are optional per spec.md
	// §4.6; engines that don't support them return ErrUnsupported.
	GetCompletionCandidates(line string, cursor int) ([]CompletionCandidate, error)
	SetDebugContext(ctx *DebugContext) error
}

// ErrUnsupported is returned by the optional ScriptEngine methods on engines
// that don't implement them.
var ErrUnsupported = fmt.Errorf("engine does not support this operation")
