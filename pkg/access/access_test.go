package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudit struct {
	events []AuditEvent
}

func (f *fakeAudit) Log(ctx context.Context, event AuditEvent) {
	f.events = append(f.events, event)
}

func TestOperationAccessPolicy_GrantedOperationAllowed(t *testing.T) {
	policy := NewOperationAccessPolicy("test").
		GrantOperation("user1", "search").
		GrantTenantAccess("user1", "tenant1")

	decision := policy.Evaluate(context.Background(), OperationContext{
		Principal: "user1", Operation: "search", TenantID: "tenant1",
	})
	assert.True(t, decision.Allowed())
}

func TestOperationAccessPolicy_UngrantedOperationDenied(t *testing.T) {
	policy := NewOperationAccessPolicy("test").
		GrantOperation("user1", "search").
		GrantTenantAccess("user1", "tenant1")

	decision := policy.Evaluate(context.Background(), OperationContext{
		Principal: "user1", Operation: "delete", TenantID: "tenant1",
	})
	assert.Equal(t, Deny, decision.Kind)
}

func TestOperationAccessPolicy_CrossTenantDenied(t *testing.T) {
	policy := NewOperationAccessPolicy("test").
		GrantOperation("user1", "search").
		GrantTenantAccess("user1", "tenant1")

	decision := policy.Evaluate(context.Background(), OperationContext{
		Principal: "user1", Operation: "search", TenantID: "tenant2",
	})
	assert.Equal(t, Deny, decision.Kind)
}

func TestTenantAccessControlPolicy_OwnTenantAllowed(t *testing.T) {
	policy := NewTenantAccessControlPolicy("test")
	sec := NewSecurityContext("user1").WithTenantID("tenant1").WithRoles("user")

	decision, err := policy.EvaluateAccess(context.Background(), sec, "search", "tenant:tenant1")
	require.NoError(t, err)
	assert.Equal(t, Allow, decision.Kind)
}

func TestTenantAccessControlPolicy_CrossTenantDenied(t *testing.T) {
	policy := NewTenantAccessControlPolicy("test")
	sec := NewSecurityContext("user1").WithTenantID("tenant1").WithRoles("user")

	decision, err := policy.EvaluateAccess(context.Background(), sec, "search", "tenant:tenant2")
	require.NoError(t, err)
	assert.Equal(t, Deny, decision.Kind)
}

func TestTenantAccessControlPolicy_AdminBypassesIsolation(t *testing.T) {
	policy := NewTenantAccessControlPolicy("test")
	sec := NewSecurityContext("admin").WithTenantID("tenant1").WithRoles("admin")

	decision, err := policy.EvaluateAccess(context.Background(), sec, "delete", "tenant:tenant2")
	require.NoError(t, err)
	assert.Equal(t, Allow, decision.Kind)
}

func TestTenantAccessControlPolicy_NonTenantResourceGetsFiltered(t *testing.T) {
	policy := NewTenantAccessControlPolicy("test")
	sec := NewSecurityContext("user1").WithTenantID("tenant1").WithRoles("user")

	decision, err := policy.EvaluateAccess(context.Background(), sec, "search", "global-resource")
	require.NoError(t, err)
	require.Equal(t, AllowWithFilter, decision.Kind)
	require.Len(t, decision.Filters, 1)
	assert.Equal(t, "tenant_id", decision.Filters[0].Field)
	_, ok := decision.Filters[0].AllowedValues["tenant1"]
	assert.True(t, ok)
}

func TestManager_FirstDenyWins(t *testing.T) {
	audit := &fakeAudit{}
	mgr := NewManager(NewInProcessCache(), audit, time.Minute)
	mgr.AddPolicy(NewTenantAccessControlPolicy("tenant-policy"))
	mgr.AddPolicy(&alwaysDenyPolicy{})

	sec := NewSecurityContext("user1").WithTenantID("tenant1")
	decision, err := mgr.EvaluateAccess(context.Background(), sec, "search", "tenant:tenant1")
	require.NoError(t, err)
	assert.Equal(t, Deny, decision.Kind)
	require.Len(t, audit.events, 1)
	assert.False(t, audit.events[0].Granted)
}

func TestManager_CachesDecision(t *testing.T) {
	audit := &fakeAudit{}
	mgr := NewManager(NewInProcessCache(), audit, time.Minute)
	mgr.AddPolicy(NewTenantAccessControlPolicy("tenant-policy"))

	sec := NewSecurityContext("user1").WithTenantID("tenant1")
	_, err := mgr.EvaluateAccess(context.Background(), sec, "search", "tenant:tenant1")
	require.NoError(t, err)
	_, err = mgr.EvaluateAccess(context.Background(), sec, "search", "tenant:tenant1")
	require.NoError(t, err)

	assert.Len(t, audit.events, 1) // second call hit the cache, no new audit event
}

// alwaysDenyPolicy has a higher priority than TenantAccessControlPolicy's
// 100, so it's evaluated first and its Deny short-circuits the loop.
type alwaysDenyPolicy struct{ BasePolicy }

func (alwaysDenyPolicy) EvaluateAccess(ctx context.Context, sec SecurityContext, operation, resource string) (AccessDecision, error) {
	return AccessDecision{Kind: Deny, Reason: "blocked"}, nil
}
func (alwaysDenyPolicy) AppliesTo(sec SecurityContext, operation string) bool { return true }
func (alwaysDenyPolicy) PolicyID() string                                    { return "always-deny" }
func (alwaysDenyPolicy) Priority() int                                       { return 200 }

func TestApplyFilters_InclusionAndExclusion(t *testing.T) {
	metadata := map[string]string{"tenant_id": "tenant1"}

	include := SecurityFilter{Field: "tenant_id", AllowedValues: map[string]struct{}{"tenant1": {}}}
	assert.True(t, ApplyFilters(metadata, []SecurityFilter{include}))

	excludeOther := SecurityFilter{Field: "tenant_id", AllowedValues: map[string]struct{}{"tenant2": {}}, Exclude: true}
	assert.True(t, ApplyFilters(metadata, []SecurityFilter{excludeOther}))

	failInclude := SecurityFilter{Field: "tenant_id", AllowedValues: map[string]struct{}{"tenant2": {}}}
	assert.False(t, ApplyFilters(metadata, []SecurityFilter{failInclude}))
}

func TestApplyFilters_MissingFieldPassesOnlyUnderExclude(t *testing.T) {
	metadata := map[string]string{}

	include := SecurityFilter{Field: "tenant_id", AllowedValues: map[string]struct{}{"tenant1": {}}}
	assert.False(t, ApplyFilters(metadata, []SecurityFilter{include}))

	exclude := SecurityFilter{Field: "tenant_id", AllowedValues: map[string]struct{}{"tenant1": {}}, Exclude: true}
	assert.True(t, ApplyFilters(metadata, []SecurityFilter{exclude}))
}
