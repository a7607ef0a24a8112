package template

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/llmspell/llmspell/pkg/engine"
	"github.com/llmspell/llmspell/pkg/tool"
)

// PhaseSpec is one step of a SequentialTemplate's phase list. BuildPrompt
// receives the raw execution params and the outputs collected from every
// prior phase, in order, so a later phase can refer back to earlier work —
// spec.md §4.8's "for each phase: build an agent ... invoke, collect
// output" loop.
type PhaseSpec struct {
	Name        string
	Config      AgentConfig
	BuildPrompt func(params json.RawMessage, priorOutputs []string) (string, error)
}

// PostProcess is SequentialTemplate's optional post-processing step: a tool
// invocation over the joined phase outputs, per spec.md §4.8's "run an
// optional post-processing tool (e.g. persisting results, formatting
// output)".
type PostProcess struct {
	ToolName  string
	BuildArgs func(params json.RawMessage, phaseOutputs []string) (tool.Input, error)
}

// SequentialTemplate is the phase-sequential Template mechanism every
// built-in template plugs into. Authoring a specific template's prompts is
// out of scope here (spec.md §1); this type is "how they plug into the
// runtime."
type SequentialTemplate struct {
	meta         Metadata
	configSchema json.RawMessage
	validator    *tool.ExternalSchemaValidator

	Phases      []PhaseSpec
	PostProcess *PostProcess
	Invoker     AgentInvoker
	Registry    engine.ComponentRegistry // optional, only needed for PostProcess
	Bridge      ContextBridge            // optional memory assembly
	Tokens      *TokenCounter            // optional, for EstimateCost/Metrics.TokensUsed
}

// NewSequentialTemplate validates configSchema up front (it must compile as
// JSON Schema even though no params have arrived yet) and wires it for use
// on every Execute call.
func NewSequentialTemplate(meta Metadata, configSchema json.RawMessage, invoker AgentInvoker, phases []PhaseSpec) (*SequentialTemplate, error) {
	validator, err := tool.NewExternalSchemaValidator(configSchema)
	if err != nil {
		return nil, fmt.Errorf("template: invalid config schema for %s: %w", meta.ID, err)
	}
	return &SequentialTemplate{
		meta:         meta,
		configSchema: configSchema,
		validator:    validator,
		Phases:       phases,
		Invoker:      invoker,
	}, nil
}

func (t *SequentialTemplate) Metadata() Metadata            { return t.meta }
func (t *SequentialTemplate) ConfigSchema() json.RawMessage { return t.configSchema }

// EstimateCost sums the token count of params (when Tokens is set, counted
// once) plus each phase's configured max_tokens ceiling. No real pricing: concrete provider
// cost tables are a boundary concern the runtime never sees (spec.md §1).
func (t *SequentialTemplate) EstimateCost(params json.RawMessage) (CostEstimate, error) {
	var total int64
	if t.Tokens != nil {
		total += int64(t.Tokens.Count(string(params)))
	}
	for _, p := range t.Phases {
		total += int64(p.Config.MaxTokens)
	}
	return CostEstimate{TokensEstimate: total, AgentsInvoked: len(t.Phases)}, nil
}

// Execute runs spec.md §4.8's phase model: validate params, optionally
// assemble memory, invoke each phase's agent in order, optionally
// post-process with a tool, optionally persist artifacts, and compose a
// report with metrics.
func (t *SequentialTemplate) Execute(ctx context.Context, params json.RawMessage, execCtx Context) (Output, error) {
	start := time.Now()

	if err := t.validateParams(params); err != nil {
		return Output{}, fmt.Errorf("template: parameter validation failed: %w", err)
	}

	if t.Invoker == nil {
		return Output{}, fmt.Errorf("template: %s has no agent invoker configured", t.meta.ID)
	}

	var preamble []Message
	ragQueries := 0
	if execCtx.SessionID != "" && t.Bridge != nil {
		budget := execCtx.TokenBudget
		if budget <= 0 {
			budget = 2000
		}
		msgs, err := t.Bridge.Assemble(ctx, execCtx.SessionID, budget)
		if err != nil {
			return Output{}, fmt.Errorf("template: memory assembly failed: %w", err)
		}
		preamble = msgs
		ragQueries = 1
	}

	outputs := make([]string, 0, len(t.Phases))
	for _, phase := range t.Phases {
		prompt, err := phase.BuildPrompt(params, outputs)
		if err != nil {
			return Output{}, fmt.Errorf("template: phase %q prompt build failed: %w", phase.Name, err)
		}
		if len(preamble) > 0 {
			prompt = renderPreamble(preamble) + "\n" + prompt
			preamble = nil // only the first phase gets the assembled memory
		}
		result, err := t.Invoker.InvokeAgent(ctx, phase.Config, prompt)
		if err != nil {
			return Output{}, fmt.Errorf("template: phase %q failed: %w", phase.Name, err)
		}
		outputs = append(outputs, result)
	}

	toolsInvoked := 0
	if t.PostProcess != nil {
		if t.Registry == nil {
			return Output{}, fmt.Errorf("template: %s has a post-processing step but no component registry", t.meta.ID)
		}
		args, err := t.PostProcess.BuildArgs(params, outputs)
		if err != nil {
			return Output{}, fmt.Errorf("template: post-processing args failed: %w", err)
		}
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return Output{}, fmt.Errorf("template: post-processing args marshal failed: %w", err)
		}
		if _, err := t.Registry.InvokeTool(ctx, t.PostProcess.ToolName, argsJSON); err != nil {
			return Output{}, fmt.Errorf("template: post-processing tool %q failed: %w", t.PostProcess.ToolName, err)
		}
		toolsInvoked = 1
	}

	report := strings.Join(outputs, "\n\n")

	var artifacts []Artifact
	if execCtx.OutputDir != "" {
		artifact, err := persistReport(execCtx.OutputDir, t.meta.ID, report)
		if err != nil {
			return Output{}, fmt.Errorf("template: artifact persistence failed: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}

	if execCtx.SessionID != "" && t.Bridge != nil {
		summary := report
		if len(summary) > 500 {
			summary = summary[:500]
		}
		if err := t.Bridge.Record(ctx, execCtx.SessionID, string(params), summary); err != nil {
			return Output{}, fmt.Errorf("template: memory write-back failed: %w", err)
		}
	}

	var tokensUsed *int64
	if t.Tokens != nil {
		n := int64(t.Tokens.Count(report))
		tokensUsed = &n
	}

	return Output{
		Result:    ResultText,
		Text:      report,
		Artifacts: artifacts,
		Metrics: Metrics{
			DurationMs:    time.Since(start).Milliseconds(),
			TokensUsed:    tokensUsed,
			AgentsInvoked: len(t.Phases),
			ToolsInvoked:  toolsInvoked,
			RAGQueries:    ragQueries,
		},
		AppliedParameters: params,
	}, nil
}

func (t *SequentialTemplate) validateParams(params json.RawMessage) error {
	var asInput tool.Input
	if err := json.Unmarshal(params, &asInput); err != nil {
		return fmt.Errorf("params must be a JSON object: %w", err)
	}
	return t.validator.Validate(asInput)
}

func renderPreamble(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func persistReport(outputDir, templateID, report string) (Artifact, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Artifact{}, err
	}
	filename := fmt.Sprintf("%s-%d.txt", templateID, time.Now().UnixNano())
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return Artifact{}, err
	}
	return Artifact{Filename: filename, MimeType: "text/plain", Size: int64(len(report))}, nil
}
