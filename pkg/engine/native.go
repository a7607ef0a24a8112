package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// scriptProgram is the minimal JSON scriptlet language nativeEngine
// interprets. spec.md's Non-goals explicitly place Lua/JS VM internals out
// of scope for the runtime (it sees only the ScriptEngine interface above),
// and no embeddable script VM exists anywhere in the example pack, so the
// reference/test engine shipped here is this narrow JSON program shape
// rather than a real language — it exists to exercise the bridge contract,
// not to be a production scripting language.
type scriptProgram struct {
	Op    string          `json:"op"`
	Tool  string          `json:"tool,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// nativeEngine is the in-process ScriptEngine used when no out-of-process
// engine binary is configured, and by the test suite.
type nativeEngine struct {
	mu        sync.Mutex
	registry  ComponentRegistry
	providers ProviderManager
	args      map[string]string
	debug     *DebugContext
	injected  bool
}

// NewNativeEngine constructs the built-in JSON-scriptlet engine.
func NewNativeEngine() ScriptEngine {
	return &nativeEngine{args: map[string]string{}}
}

func (e *nativeEngine) GetEngineName() string { return "native" }

func (e *nativeEngine) SupportedFeatures() Features {
	return Features{Streaming: true, Multimodal: false, Debugging: true, Completions: true}
}

func (e *nativeEngine) InjectAPIs(registry ComponentRegistry, providers ProviderManager) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.injected {
		return &ScriptError{Kind: ScriptErrorRuntime, Message: "inject_apis called more than once"}
	}
	e.registry = registry
	e.providers = providers
	e.injected = true
	return nil
}

func (e *nativeEngine) ExecuteScript(ctx context.Context, source string) (ScriptOutput, *ScriptError) {
	var prog scriptProgram
	if err := json.Unmarshal([]byte(source), &prog); err != nil {
		return ScriptOutput{}, &ScriptError{Kind: ScriptErrorSyntax, Line: 1, Column: 1, Message: err.Error()}
	}

	var console []string
	var out json.RawMessage

	switch prog.Op {
	case "literal":
		out = prog.Value
	case "args":
		b, _ := json.Marshal(e.argsSnapshot())
		out = b
	case "list_tools":
		if e.registry == nil {
			return ScriptOutput{}, e.notInjectedErr()
		}
		b, _ := json.Marshal(e.registry.ListTools())
		out = b
	case "list_providers":
		if e.providers == nil {
			return ScriptOutput{}, e.notInjectedErr()
		}
		b, _ := json.Marshal(e.providers.ListProviders())
		out = b
	case "tool_call":
		if e.registry == nil {
			return ScriptOutput{}, e.notInjectedErr()
		}
		result, err := e.registry.InvokeTool(ctx, prog.Tool, prog.Input)
		if err != nil {
			return ScriptOutput{}, &ScriptError{Kind: ScriptErrorRuntime, Message: err.Error()}
		}
		out = result
		console = append(console, "called tool "+prog.Tool)
	default:
		return ScriptOutput{}, &ScriptError{Kind: ScriptErrorRuntime, Message: "unknown op: " + prog.Op, Suggestions: []string{"literal", "args", "list_tools", "list_providers", "tool_call"}}
	}

	return ScriptOutput{Output: out, ConsoleOutput: console, Metadata: ScriptOutputMetadata{Engine: e.GetEngineName()}}, nil
}

func (e *nativeEngine) ExecuteScriptStreaming(ctx context.Context, source string) (<-chan ScriptChunk, error) {
	ch := make(chan ScriptChunk, 1)
	go func() {
		defer close(ch)
		out, scriptErr := e.ExecuteScript(ctx, source)
		if scriptErr != nil {
			ch <- ScriptChunk{Done: true, Err: scriptErr}
			return
		}
		ch <- ScriptChunk{Data: out.Output, Done: true}
	}()
	return ch, nil
}

func (e *nativeEngine) SetScriptArgs(args map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.args = make(map[string]string, len(args))
	for k, v := range args {
		e.args[k] = v
	}
	return nil
}

func (e *nativeEngine) GetCompletionCandidates(line string, cursor int) ([]CompletionCandidate, error) {
	if cursor < 0 || cursor > len(line) {
		cursor = len(line)
	}
	prefix := line[:cursor]
	var candidates []CompletionCandidate
	for _, op := range []string{"literal", "args", "list_tools", "list_providers", "tool_call"} {
		if strings.HasPrefix(op, prefix) {
			candidates = append(candidates, CompletionCandidate{Text: op, Kind: "op"})
		}
	}
	return candidates, nil
}

func (e *nativeEngine) SetDebugContext(ctx *DebugContext) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debug = ctx
	return nil
}

func (e *nativeEngine) argsSnapshot() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := make(map[string]string, len(e.args))
	for k, v := range e.args {
		snap[k] = v
	}
	return snap
}

func (e *nativeEngine) notInjectedErr() *ScriptError {
	return &ScriptError{Kind: ScriptErrorRuntime, Message: "component registry not injected: call inject_apis before execute_script"}
}
