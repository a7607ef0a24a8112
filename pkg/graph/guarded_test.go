package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmspell/llmspell/pkg/access"
)

type fakeGraph struct {
	addEntityCalled bool
	entities        []Entity
}

func (f *fakeGraph) AddEntity(ctx context.Context, entity Entity) (string, error) {
	f.addEntityCalled = true
	return "new-id", nil
}
func (f *fakeGraph) UpdateEntity(ctx context.Context, id string, changes map[string]any) error {
	return nil
}
func (f *fakeGraph) GetEntity(ctx context.Context, id string) (Entity, error) { return Entity{}, nil }
func (f *fakeGraph) GetEntityAt(ctx context.Context, id string, eventTime time.Time) (*Entity, error) {
	return nil, nil
}
func (f *fakeGraph) AddRelationship(ctx context.Context, rel Relationship) (string, error) {
	return "", nil
}
func (f *fakeGraph) GetRelationships(ctx context.Context, entityID string) ([]Relationship, error) {
	return nil, nil
}
func (f *fakeGraph) QueryTemporal(ctx context.Context, query TemporalQuery) ([]Entity, error) {
	return f.entities, nil
}
func (f *fakeGraph) GetRelated(ctx context.Context, entityID, relationshipType string, maxDepth int, validTime time.Time) ([]Related, error) {
	return nil, nil
}
func (f *fakeGraph) Traverse(ctx context.Context, startEntity, relationshipType string, maxDepth int, atTime *time.Time) ([]Related, error) {
	return nil, nil
}
func (f *fakeGraph) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) { return 0, nil }

type fakeAudit struct{}

func (fakeAudit) Log(ctx context.Context, event access.AuditEvent) {}

func TestGuardedGraph_DeniesWithoutSecurityContext(t *testing.T) {
	inner := &fakeGraph{}
	mgr := access.NewManager(access.NewInProcessCache(), fakeAudit{}, time.Minute)
	mgr.AddPolicy(access.NewTenantAccessControlPolicy("tenant-policy"))
	g := NewGuardedGraph(inner, mgr)

	_, err := g.AddEntity(context.Background(), Entity{Name: "x"})
	assert.Error(t, err)
	assert.False(t, inner.addEntityCalled)
}

func TestGuardedGraph_AllowsAdminAndDelegates(t *testing.T) {
	inner := &fakeGraph{}
	mgr := access.NewManager(access.NewInProcessCache(), fakeAudit{}, time.Minute)
	mgr.AddPolicy(access.NewTenantAccessControlPolicy("tenant-policy"))
	g := NewGuardedGraph(inner, mgr)

	sec := access.NewSecurityContext("admin-user").WithTenantID("tenant-a").WithRoles("admin")
	ctx := WithSecurityContext(context.Background(), sec)

	id, err := g.AddEntity(ctx, Entity{Name: "x", EntityType: "doc"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
	assert.True(t, inner.addEntityCalled)
}

func TestGuardedGraph_FiltersQueryTemporalByTenant(t *testing.T) {
	inner := &fakeGraph{entities: []Entity{
		{ID: "1", EntityType: "doc", Properties: []byte(`{"tenant_id":"tenant-a"}`)},
		{ID: "2", EntityType: "doc", Properties: []byte(`{"tenant_id":"tenant-b"}`)},
	}}
	mgr := access.NewManager(access.NewInProcessCache(), fakeAudit{}, time.Minute)
	mgr.AddPolicy(access.NewTenantAccessControlPolicy("tenant-policy"))
	g := NewGuardedGraph(inner, mgr)

	sec := access.NewSecurityContext("user1").WithTenantID("tenant-a").WithRoles("user")
	ctx := WithSecurityContext(context.Background(), sec)

	results, err := g.QueryTemporal(ctx, TemporalQuery{EntityType: "doc"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
}
