package template

import (
	"context"

	"github.com/llmspell/llmspell/pkg/resource"
)

// AgentConfig is the per-phase configuration spec.md §4.8 describes
// ("build an agent with a per-phase configuration (temperature, max_tokens,
// resource/time limits)").
type AgentConfig struct {
	Temperature float64
	MaxTokens   int
	Limits      resource.Limits
}

// AgentInvoker is the boundary contract a phase invokes through. Concrete
// LLM provider clients are explicitly out of scope (spec.md §1); templates
// depend only on this interface, exactly as the runtime depends on
// ProviderManager rather than a concrete provider.
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, cfg AgentConfig, prompt string) (string, error)
}

// Message is one turn of assembled context, shared with the token-budget
// counter in tokens.go.
type Message struct {
	Role    string
	Content string
}

// ContextBridge is the optional memory-assembly step from spec.md §4.8:
// given a session and a token budget, return a finite ordered sequence of
// messages to prepend to the primary prompt. Omitted when disabled, no
// session_id, or no bridge available.
type ContextBridge interface {
	Assemble(ctx context.Context, sessionID string, budget int) ([]Message, error)
	// Record writes back a summary of one completed execution, per spec.md
	// §4.8's "a corresponding entry may be written back to the memory
	// store with input/output summaries and diagnostic metadata".
	Record(ctx context.Context, sessionID string, inputSummary, outputSummary string) error
}
