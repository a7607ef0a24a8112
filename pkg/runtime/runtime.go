// Package runtime implements the Script Runtime (C7): the host-facing
// object that owns one ScriptEngine, the shared tool/provider registries,
// the mutable ExecutionContext cell, and the template-operation JSON
// surface. Grounded on kadirpekel-hector's pkg/runtime/runtime.go's overall
// shape -- a mutex-guarded struct holding shared registries, built through
// Option func(*Runtime) functional options -- rewritten from scratch for
// this domain, since the teacher's file is almost entirely LLM/agent
// assembly logic with no analog here; only the structural idiom survives.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/llmspell/llmspell/pkg/engine"
	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/executor"
	"github.com/llmspell/llmspell/pkg/hook"
	"github.com/llmspell/llmspell/pkg/tool"
)

// LLMSpellConfig is the opaque, fully-formed configuration record the host
// hands the runtime, per spec.md §6 ("the runtime accepts a fully-formed
// LLMSpellConfig opaque record" -- CLI surface and config file parsing are
// explicitly out of scope).
type LLMSpellConfig struct {
	SafeEnvironmentVariables []string
	WorkingDirectory         string
	OutputDirectory          string
	MaxExecutionTime         time.Duration
	MaxMemoryBytes           int64
	AllowFileAccess          bool
	AllowNetworkAccess       bool
	AllowProcessSpawn        bool
}

// SecurityContext mirrors spec.md §3's ExecutionContext.security block.
type SecurityContext struct {
	AllowFileAccess    bool
	AllowNetworkAccess bool
	AllowProcessSpawn  bool
	MaxMemoryBytes     int64
	MaxExecutionTimeMs int64
}

// ExecutionContext is the mutable per-runtime cell scripts execute under,
// per spec.md §3. It is guarded by the Runtime's lock with short
// copy-out/copy-in critical sections, per spec.md §5's locking discipline,
// so a writer never holds the lock across an await.
type ExecutionContext struct {
	WorkingDirectory string
	Environment      map[string]string
	State            map[string]json.RawMessage
	Security         SecurityContext
}

func (c ExecutionContext) clone() ExecutionContext {
	env := make(map[string]string, len(c.Environment))
	for k, v := range c.Environment {
		env[k] = v
	}
	state := make(map[string]json.RawMessage, len(c.State))
	for k, v := range c.State {
		state[k] = v
	}
	return ExecutionContext{WorkingDirectory: c.WorkingDirectory, Environment: env, State: state, Security: c.Security}
}

// ScriptExecutionOutput wraps an engine.ScriptOutput with host-side
// metadata, per spec.md §4.7's execute_script contract.
type ScriptExecutionOutput struct {
	engine.ScriptOutput
	DurationMs int64  `json:"duration_ms"`
	Language   string `json:"language"`
}

// TemplateProvider is the narrow surface pkg/template (C8) implements;
// Runtime delegates handle_template_* to it. Left nil, every
// handle_template_* call returns a NotImplemented envelope instead of
// panicking, so C7 stands on its own before C8 exists.
type TemplateProvider interface {
	List(category string) (json.RawMessage, error)
	Info(id string, withSchema bool) (json.RawMessage, error)
	Exec(ctx context.Context, id string, params json.RawMessage) (json.RawMessage, error)
	Search(query, category string) (json.RawMessage, error)
	Schema(id string) (json.RawMessage, error)
}

// Runtime is the Script Runtime (C7).
type Runtime struct {
	mu sync.RWMutex

	cfg       LLMSpellConfig
	eng       engine.ScriptEngine
	registry  *tool.Registry
	providers ProviderManager
	execCtx   ExecutionContext
	debugCtx  *engine.DebugContext
	templates TemplateProvider

	executor *executor.Executor
	language string
}

// ProviderManager is the shared provider-identity handle both the host and
// the script engine see, per spec.md §4.7's "single provider identity
// across the host and the scripts" requirement.
type ProviderManager interface {
	ListProviders() []string
}

// staticProviderManager is the default ProviderManager a Runtime builds for
// itself when the caller doesn't supply a pre-existing shared handle --
// spec.md §4.7's "constructs the provider manager itself" init path.
type staticProviderManager struct{ names []string }

func (p *staticProviderManager) ListProviders() []string { return p.names }

// Option configures a Runtime at construction.
type Option func(*Runtime)

func WithTemplateProvider(t TemplateProvider) Option {
	return func(r *Runtime) { r.templates = t }
}

func WithHookPipeline(p *hook.Pipeline) Option {
	return func(r *Runtime) { r.executor = executor.New(p) }
}

// WithProviderManager supplies a pre-existing shared ProviderManager handle,
// spec.md §4.7's second init path ("one that accepts an existing shared
// handle") -- used when the host already constructed a provider identity
// before building the runtime.
func WithProviderManager(p ProviderManager) Option {
	return func(r *Runtime) { r.providers = p }
}

// NewWithEngineName looks up a built-in engine by name (currently only
// "native" resolves without a plugin manifest) and delegates to
// NewWithEngine, per spec.md §6's new_with_engine_name.
func NewWithEngineName(name string, tools []tool.Tool, cfg LLMSpellConfig, opts ...Option) (*Runtime, error) {
	switch name {
	case "native", "":
		return NewWithEngine(engine.NewNativeEngine(), tools, cfg, opts...)
	default:
		return nil, errs.Validation("engine", fmt.Sprintf("unknown built-in engine %q; load an out-of-process engine with engine.Loader instead", name))
	}
}

// NewWithEngine builds the registry, registers the host-configured tools,
// seeds the execution context from config and the current OS environment,
// applies the options, builds the provider manager when none was supplied,
// and calls engine.InjectAPIs -- spec.md §4.7's new_with_engine steps, in
// that order.
func NewWithEngine(eng engine.ScriptEngine, tools []tool.Tool, cfg LLMSpellConfig, opts ...Option) (*Runtime, error) {
	if eng == nil {
		return nil, errs.Validation("engine", "engine must not be nil")
	}

	reg := tool.NewRegistry()
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("runtime: registering tool %q: %w", t.Metadata().Name, err)
		}
	}

	r := &Runtime{
		cfg:      cfg,
		eng:      eng,
		registry: reg,
		language: eng.GetEngineName(),
		execCtx: ExecutionContext{
			WorkingDirectory: cfg.WorkingDirectory,
			Environment:      map[string]string{},
			State:            map[string]json.RawMessage{},
			Security: SecurityContext{
				AllowFileAccess:    cfg.AllowFileAccess,
				AllowNetworkAccess: cfg.AllowNetworkAccess,
				AllowProcessSpawn:  cfg.AllowProcessSpawn,
				MaxMemoryBytes:     cfg.MaxMemoryBytes,
				MaxExecutionTimeMs: cfg.MaxExecutionTime.Milliseconds(),
			},
		},
	}
	for _, name := range cfg.SafeEnvironmentVariables {
		if v, ok := os.LookupEnv(name); ok {
			r.execCtx.Environment[name] = v
		}
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.providers == nil {
		r.providers = &staticProviderManager{}
	}
	if r.executor == nil {
		r.executor = executor.New(hook.NewPipeline())
	}

	if err := eng.InjectAPIs(&componentRegistry{reg: reg, exec: r.executor}, r.providers); err != nil {
		return nil, fmt.Errorf("runtime: inject_apis: %w", err)
	}

	return r, nil
}

// ExecuteScript delegates to the engine and wraps the result with
// host-side duration and language tags, per spec.md §4.7.
func (r *Runtime) ExecuteScript(ctx context.Context, source string) (ScriptExecutionOutput, *engine.ScriptError) {
	start := time.Now()
	out, scriptErr := r.eng.ExecuteScript(ctx, source)
	if scriptErr != nil {
		return ScriptExecutionOutput{}, scriptErr
	}
	return ScriptExecutionOutput{ScriptOutput: out, DurationMs: time.Since(start).Milliseconds(), Language: r.language}, nil
}

// ExecuteScriptWithArgs uses the engine's native argument binding when
// supported; the contract declares "supports argument binding natively" as
// a feature the engine itself reports, so this always prefers
// set_script_args and only falls back to a source preamble when that call
// is rejected.
func (r *Runtime) ExecuteScriptWithArgs(ctx context.Context, source string, args map[string]string) (ScriptExecutionOutput, *engine.ScriptError) {
	if err := r.eng.SetScriptArgs(args); err == nil {
		return r.ExecuteScript(ctx, source)
	}
	return r.ExecuteScript(ctx, preambleFor(r.language, args)+source)
}

// preambleFor builds a Lua-syntax `local ARGS` table assignment for engines
// that reject native argument binding, per spec.md §4.7; the language
// argument is not consulted, so every engine gets the same Lua text. String
// values are escaped via encoding/json so no value can break out of its
// literal.
func preambleFor(language string, args map[string]string) string {
	var b strings.Builder
	b.WriteString("local ARGS = {}\n")
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	for _, k := range keys {
		v, _ := json.Marshal(args[k])
		fmt.Fprintf(&b, "ARGS[%s] = %s\n", strconv.Quote(k), v)
	}
	return b.String()
}

// ExecuteSync runs source and returns only the final host-visible output,
// used by callers that don't need the duration/language wrapper.
func (r *Runtime) ExecuteSync(ctx context.Context, source string) (json.RawMessage, error) {
	out, scriptErr := r.ExecuteScript(ctx, source)
	if scriptErr != nil {
		return nil, scriptErr
	}
	return out.Output, nil
}

// SupportsStreaming, Language, IsReady, SetDebugContext, and
// GetCompletionCandidates implement the ScriptExecutor capability set from
// spec.md §6.
func (r *Runtime) SupportsStreaming() bool { return r.eng.SupportedFeatures().Streaming }
func (r *Runtime) Language() string        { return r.language }
func (r *Runtime) IsReady() bool           { return r.eng != nil }

func (r *Runtime) SetDebugContext(ctx *engine.DebugContext) error {
	r.mu.Lock()
	r.debugCtx = ctx
	r.mu.Unlock()
	return r.eng.SetDebugContext(ctx)
}

func (r *Runtime) GetCompletionCandidates(line string, cursor int) ([]engine.CompletionCandidate, error) {
	return r.eng.GetCompletionCandidates(line, cursor)
}

// ExecutionContext returns a copy of the current cell, following spec.md
// §5's copy-out/copy-in discipline.
func (r *Runtime) ExecutionContext() ExecutionContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.execCtx.clone()
}

// UpdateExecutionContext copies out the cell, lets mutate edit the copy
// without holding the lock, then copies the result back in.
func (r *Runtime) UpdateExecutionContext(mutate func(*ExecutionContext)) {
	current := r.ExecutionContext()
	mutate(&current)
	r.mu.Lock()
	r.execCtx = current
	r.mu.Unlock()
}

func (r *Runtime) Registry() *tool.Registry { return r.registry }
