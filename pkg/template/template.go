// Package template implements the Template Core (C8): the capability set
// and phase-sequential execution mechanism built-in templates plug into.
// Authoring the content of specific templates (CodeGenerator, DataAnalysis,
// …) is explicitly out of scope (spec.md §1's Deliberately-out-of-scope
// list) — this package provides the mechanism any such template is built
// from: SequentialTemplate, parameterized by a phase list.
package template

import (
	"context"
	"encoding/json"
)

// ResultKind tags the TemplateOutput.result variant from spec.md §4.8.
type ResultKind string

const (
	ResultText       ResultKind = "text"
	ResultStructured ResultKind = "structured"
	ResultFile       ResultKind = "file"
	ResultMultiple   ResultKind = "multiple"
)

// Artifact describes one file a template execution produced.
type Artifact struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Metrics is the metrics block from spec.md §4.8/§6.
type Metrics struct {
	DurationMs    int64    `json:"duration_ms"`
	TokensUsed    *int64   `json:"tokens_used,omitempty"`
	CostUSD       *float64 `json:"cost_usd,omitempty"`
	AgentsInvoked int      `json:"agents_invoked"`
	ToolsInvoked  int      `json:"tools_invoked"`
	RAGQueries    int      `json:"rag_queries"`
}

// Output is TemplateOutput from spec.md §4.8.
type Output struct {
	Result            ResultKind      `json:"result"`
	Text              string          `json:"text,omitempty"`
	Structured        json.RawMessage `json:"structured,omitempty"`
	Artifacts         []Artifact      `json:"artifacts"`
	Metrics           Metrics         `json:"metrics"`
	AppliedParameters json.RawMessage `json:"applied_parameters"`
	AppliedConfig     json.RawMessage `json:"applied_config,omitempty"`
}

// CostEstimate is estimate_cost's return value. Provider pricing is a
// boundary concern (spec.md §1 keeps concrete LLM provider clients out of
// scope), so CostEstimate carries token and agent counts only and no
// dollar figure.
type CostEstimate struct {
	TokensEstimate int64 `json:"tokens_estimate"`
	AgentsInvoked  int   `json:"agents_invoked"`
}

// Metadata identifies a template for handle_template_list/_info/_search.
type Metadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Version     string   `json:"version"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
}

// Context is the per-execution context a template runs under: the optional
// output directory artifacts persist under, the memory-assembly session,
// and the token budget reserved for assembled context, per spec.md §4.8.
type Context struct {
	SessionID      string
	OutputDir      string
	TokenBudget    int
	ProviderConfig json.RawMessage
}

// Template is the capability set from spec.md §4.8.
type Template interface {
	Metadata() Metadata
	ConfigSchema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage, execCtx Context) (Output, error)
	EstimateCost(params json.RawMessage) (CostEstimate, error)
}
