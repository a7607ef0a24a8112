package access

import "context"

// OperationContext is the simpler evaluation input for SecurityPolicy,
// predating the richer SecurityContext-based AccessControlPolicy. Kept for
// hosts that only need principal/operation/tenant-scoped rules without the
// row-level-filter machinery, per spec.md §4.9's two-capability-set design.
type OperationContext struct {
	Principal string
	Operation string
	TenantID  string
	Metadata  map[string]string
}

// SecurityPolicy is the simpler capability set from spec.md §4.9:
// {evaluate(op_ctx) → AccessDecision, name(), priority()}.
type SecurityPolicy interface {
	Evaluate(ctx context.Context, opCtx OperationContext) AccessDecision
	Name() string
	Priority() int
}

// OperationAccessPolicy is a grant-list based SecurityPolicy, adapted from
// policies.rs's VectorAccessPolicy: per-principal operation grants, tenant
// grants (with "*" meaning every tenant), and a deny list checked first.
type OperationAccessPolicy struct {
	name              string
	allowedOperations map[string]map[string]struct{}
	tenantAccess      map[string]map[string]struct{}
	denyList          map[string]struct{}
}

func NewOperationAccessPolicy(name string) *OperationAccessPolicy {
	return &OperationAccessPolicy{
		name:              name,
		allowedOperations: map[string]map[string]struct{}{},
		tenantAccess:      map[string]map[string]struct{}{},
		denyList:          map[string]struct{}{},
	}
}

func (p *OperationAccessPolicy) GrantOperation(principal, operation string) *OperationAccessPolicy {
	if p.allowedOperations[principal] == nil {
		p.allowedOperations[principal] = map[string]struct{}{}
	}
	p.allowedOperations[principal][operation] = struct{}{}
	return p
}

func (p *OperationAccessPolicy) GrantTenantAccess(principal, tenantID string) *OperationAccessPolicy {
	if p.tenantAccess[principal] == nil {
		p.tenantAccess[principal] = map[string]struct{}{}
	}
	p.tenantAccess[principal][tenantID] = struct{}{}
	return p
}

func (p *OperationAccessPolicy) DenyPrincipal(principal string) *OperationAccessPolicy {
	p.denyList[principal] = struct{}{}
	return p
}

func (p *OperationAccessPolicy) Evaluate(ctx context.Context, opCtx OperationContext) AccessDecision {
	if _, denied := p.denyList[opCtx.Principal]; denied {
		return AccessDecision{Kind: Deny, Reason: "principal is denied access"}
	}

	allowedOps, hasOps := p.allowedOperations[opCtx.Principal]
	if !hasOps {
		return AccessDecision{Kind: Deny, Reason: "no permissions configured for principal"}
	}
	if _, ok := allowedOps[opCtx.Operation]; !ok {
		return AccessDecision{Kind: Deny, Reason: "operation not allowed for principal"}
	}

	if opCtx.TenantID == "" {
		return AccessDecision{Kind: Allow}
	}

	allowedTenants, hasTenants := p.tenantAccess[opCtx.Principal]
	if !hasTenants {
		return AccessDecision{Kind: Deny, Reason: "no tenant access configured for principal"}
	}
	_, global := allowedTenants["*"]
	if _, ok := allowedTenants[opCtx.TenantID]; !ok && !global {
		return AccessDecision{Kind: Deny, Reason: "access to tenant denied for principal"}
	}

	if global {
		return AccessDecision{Kind: Allow}
	}
	values := make(map[string]struct{}, len(allowedTenants))
	for t := range allowedTenants {
		values[t] = struct{}{}
	}
	return AccessDecision{
		Kind:    AllowWithFilter,
		Filters: []SecurityFilter{{Field: "tenant_id", AllowedValues: values}},
	}
}

func (p *OperationAccessPolicy) Name() string  { return p.name }
func (p *OperationAccessPolicy) Priority() int { return 10 }
