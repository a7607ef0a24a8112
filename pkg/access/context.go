package access

// SecurityContext carries the authenticated principal's identity into
// policy evaluation, grounded on policies.rs's SecurityContext (principal,
// tenant_id, roles, attributes) and populated from JWT claims the shape of
// kadirpekel-hector/pkg/auth/jwt.go's Claims{Subject,Role,TenantID}.
type SecurityContext struct {
	Principal  string
	TenantID   string
	Roles      []string
	Attributes map[string]string
}

func NewSecurityContext(principal string) SecurityContext {
	return SecurityContext{Principal: principal, Attributes: map[string]string{}}
}

func (c SecurityContext) WithTenantID(tenantID string) SecurityContext {
	c.TenantID = tenantID
	return c
}

func (c SecurityContext) WithRoles(roles ...string) SecurityContext {
	c.Roles = roles
	return c
}

func (c SecurityContext) WithAttribute(key, value string) SecurityContext {
	if c.Attributes == nil {
		c.Attributes = map[string]string{}
	}
	c.Attributes[key] = value
	return c
}

// Validate enforces the minimum a policy can rely on: a non-empty
// principal. Mirrors policies.rs's evaluate_access calling
// security_context.validate() before any policy logic runs.
func (c SecurityContext) Validate() error {
	if c.Principal == "" {
		return &ErrInvalidContext{Reason: "principal is empty"}
	}
	return nil
}

func (c SecurityContext) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
