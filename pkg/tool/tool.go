// Package tool defines the polymorphic capability set shared by every tool
// (file-ops, process-executor, calculator, image-processor, ...) per spec.md
// §4.3. The capability-set-over-inheritance shape is grounded on
// kadirpekel-hector's pkg/tool/tool.go (Tool/CallableTool/Predicate
// combinators) and pkg/tools/registry.go (the BaseRegistry-wrapping
// ToolRegistry with otel span + metrics instrumentation around execution).
package tool

import (
	"context"
	"encoding/json"

	"github.com/llmspell/llmspell/pkg/resource"
)

// Category classifies a tool's domain, per spec.md §4.3.
type Category string

const (
	CategoryFilesystem Category = "filesystem"
	CategorySystem     Category = "system"
	CategoryMedia      Category = "media"
	CategoryUtility    Category = "utility"
	CategoryData       Category = "data"
	CategoryNetwork    Category = "network"
)

// SecurityLevel classifies the trust a tool requires to run.
type SecurityLevel string

const (
	SecuritySafe       SecurityLevel = "safe"
	SecurityRestricted SecurityLevel = "restricted"
	SecurityPrivileged SecurityLevel = "privileged"
)

// ParamType enumerates the JSON-compatible parameter types a ToolSchema can
// describe, per spec.md §3.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
	TypeEnum    ParamType = "enum"
)

// Constraint narrows the legal values of a parameter.
type Constraint struct {
	MinValue  *float64
	MaxValue  *float64
	MinLength *int
	MaxLength *int
	Pattern   string
	Enum      []string
}

// Parameter describes one named schema entry. Invariants (spec.md §3): the
// constraint set is internally consistent (MinValue <= MaxValue, MinLength <=
// MaxLength); a required parameter carries no Default.
type Parameter struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
	ElementType ParamType // for TypeArray
	Constraint  Constraint
}

// Schema is a named-parameter map; parameter names are unique within it.
type Schema struct {
	Parameters []Parameter
}

func (s Schema) byName() map[string]Parameter {
	m := make(map[string]Parameter, len(s.Parameters))
	for _, p := range s.Parameters {
		m[p.Name] = p
	}
	return m
}

// Metadata identifies a tool (ComponentId restricted to component_type=Tool).
type Metadata struct {
	Name    string
	Version string
}

// Output is the structured JSON envelope every tool execution returns,
// matching the wire shape in spec.md §6.
type Output struct {
	Success      bool            `json:"success"`
	Operation    string          `json:"operation"`
	Message      string          `json:"message"`
	Result       any             `json:"result,omitempty"`
	ResourceUsage *ResourceUsage `json:"resource_usage,omitempty"`
	Error        *OutputError    `json:"error,omitempty"`
}

type ResourceUsage struct {
	MemoryBytes     int64 `json:"memory_bytes"`
	CPUTimeMs       int64 `json:"cpu_time_ms"`
	OperationsCount int64 `json:"operations_count"`
}

type OutputError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// Context carries everything a tool's Execute needs beyond its input: a
// resource tracker, the sandbox views it is allowed to use, and a cancelable
// context.Context for suspension points.
type Context struct {
	Ctx     context.Context
	Tracker *resource.Tracker
	// WorkingDirectory is the sandbox-relative cwd tools resolve relative
	// paths against.
	WorkingDirectory string
}

// Input is the raw caller-supplied JSON parameter object.
type Input map[string]json.RawMessage

// Tool is the capability set every concrete tool implements.
type Tool interface {
	Metadata() Metadata
	Schema() Schema
	Category() Category
	SecurityLevel() SecurityLevel
	SecurityRequirements() []string
	ResourceLimits() resource.Limits
	ValidateInput(input Input) error
	Execute(ctx *Context, input Input) (Output, error)
}

// Predicate filters tools, composable via the combinators below — grounded on
// kadirpekel-hector/pkg/tool/tool.go's Predicate design.
type Predicate func(Tool) bool

func AllowAll(Tool) bool { return true }
func DenyAll(Tool) bool  { return false }

func CategoryIs(c Category) Predicate {
	return func(t Tool) bool { return t.Category() == c }
}

func SecurityLevelAtMost(level SecurityLevel) Predicate {
	rank := map[SecurityLevel]int{SecuritySafe: 0, SecurityRestricted: 1, SecurityPrivileged: 2}
	return func(t Tool) bool { return rank[t.SecurityLevel()] <= rank[level] }
}

func And(predicates ...Predicate) Predicate {
	return func(t Tool) bool {
		for _, p := range predicates {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

func Or(predicates ...Predicate) Predicate {
	return func(t Tool) bool {
		for _, p := range predicates {
			if p(t) {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(t Tool) bool { return !p(t) }
}
