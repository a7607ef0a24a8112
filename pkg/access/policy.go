// Package access implements the Access-Control Policy Engine (C9): a
// priority-ordered set of policies evaluated against a SecurityContext,
// composed with first-Deny-wins semantics and accumulating row-level
// filters, backed by a decision cache and an audit sink. Grounded on
// original_source/llmspell-security/src/access_control/policies.rs
// (SecurityPolicy/AccessControlPolicy, TenantAccessControlPolicy,
// EnhancedSecurityManager's evaluate-loop and cache-key shape).
package access

import (
	"context"
	"fmt"
)

// DecisionKind tags which variant of AccessDecision is populated, standing
// in for the original's Allow/Deny/AllowWithFilters enum.
type DecisionKind string

const (
	Allow           DecisionKind = "allow"
	Deny            DecisionKind = "deny"
	AllowWithFilter DecisionKind = "allow_with_filters"
)

// SecurityFilter implements row-level security: a query is constrained to
// field values in AllowedValues (inclusion) or constrained away from them
// (exclusion), per policies.rs's SecurityFilter.
type SecurityFilter struct {
	Field         string
	AllowedValues map[string]struct{}
	Exclude       bool
}

// AccessDecision is the outcome of evaluating one or more policies.
type AccessDecision struct {
	Kind    DecisionKind
	Reason  string           // populated when Kind == Deny
	Filters []SecurityFilter // populated when Kind == AllowWithFilter
}

func (d AccessDecision) Allowed() bool {
	return d.Kind == Allow || d.Kind == AllowWithFilter
}

// Policy is the AccessControlPolicy capability set from spec.md §4.9: a
// richer, resource-aware evaluation than a bare allow/deny predicate.
type Policy interface {
	EvaluateAccess(ctx context.Context, sec SecurityContext, operation, resource string) (AccessDecision, error)
	AppliesTo(sec SecurityContext, operation string) bool
	PolicyID() string
	Version() uint32
	Priority() int
}

// BasePolicy supplies the Version/Priority defaults (1 and 0) that
// policies.rs's trait gives via default methods; embed it to avoid
// repeating the boilerplate.
type BasePolicy struct{}

func (BasePolicy) Version() uint32 { return 1 }
func (BasePolicy) Priority() int   { return 0 }

// ErrInvalidContext is returned by SecurityContext.Validate.
type ErrInvalidContext struct{ Reason string }

func (e *ErrInvalidContext) Error() string {
	return fmt.Sprintf("access: invalid security context: %s", e.Reason)
}
