package access

import (
	"context"
	"fmt"
	"strings"
)

const tenantResourcePrefix = "tenant:"

// TenantAccessControlPolicy is a direct port of policies.rs's
// TenantAccessControlPolicy: admin roles bypass tenant isolation entirely;
// "tenant:<id>"-prefixed resources require the caller's effective tenant to
// match <id> exactly; every other resource is allowed but constrained by a
// tenant_id row-level filter.
type TenantAccessControlPolicy struct {
	BasePolicy
	id             string
	defaultTenant  string
	adminRoles     map[string]struct{}
	policyPriority int
}

func NewTenantAccessControlPolicy(id string) *TenantAccessControlPolicy {
	return &TenantAccessControlPolicy{
		id:             id,
		adminRoles:     map[string]struct{}{"admin": {}, "super_admin": {}},
		policyPriority: 100, // high priority for tenant isolation, per the original
	}
}

func (p *TenantAccessControlPolicy) WithDefaultTenant(tenantID string) *TenantAccessControlPolicy {
	p.defaultTenant = tenantID
	return p
}

func (p *TenantAccessControlPolicy) WithAdminRole(role string) *TenantAccessControlPolicy {
	p.adminRoles[role] = struct{}{}
	return p
}

func (p *TenantAccessControlPolicy) hasAdminAccess(sec SecurityContext) bool {
	for _, role := range sec.Roles {
		if _, ok := p.adminRoles[role]; ok {
			return true
		}
	}
	return false
}

func (p *TenantAccessControlPolicy) effectiveTenant(sec SecurityContext) string {
	if sec.TenantID != "" {
		return sec.TenantID
	}
	return p.defaultTenant
}

func (p *TenantAccessControlPolicy) EvaluateAccess(ctx context.Context, sec SecurityContext, operation, resource string) (AccessDecision, error) {
	if err := sec.Validate(); err != nil {
		return AccessDecision{}, err
	}

	if p.hasAdminAccess(sec) {
		return AccessDecision{Kind: Allow}, nil
	}

	effective := p.effectiveTenant(sec)

	if strings.HasPrefix(resource, tenantResourcePrefix) {
		resourceTenant := strings.TrimPrefix(resource, tenantResourcePrefix)
		switch {
		case effective != "" && effective == resourceTenant:
			return AccessDecision{Kind: Allow}, nil
		case effective != "":
			return AccessDecision{Kind: Deny, Reason: fmt.Sprintf(
				"cross-tenant access denied: tenant %q cannot access %q", effective, resource)}, nil
		default:
			return AccessDecision{Kind: Deny, Reason: "tenant context required for tenant-specific resources"}, nil
		}
	}

	if effective == "" {
		return AccessDecision{Kind: Allow}, nil
	}
	return AccessDecision{
		Kind: AllowWithFilter,
		Filters: []SecurityFilter{{
			Field:         "tenant_id",
			AllowedValues: map[string]struct{}{effective: {}},
		}},
	}, nil
}

func (p *TenantAccessControlPolicy) AppliesTo(sec SecurityContext, operation string) bool {
	return sec.Principal != ""
}

func (p *TenantAccessControlPolicy) PolicyID() string { return p.id }
func (p *TenantAccessControlPolicy) Priority() int    { return p.policyPriority }
