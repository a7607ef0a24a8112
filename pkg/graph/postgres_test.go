package graph

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestGraph starts an ephemeral Postgres container, applies migrations
// through NewPostgresGraph, and returns a ready store plus a tenant-scoped
// context. Skipped under -short since it needs a container runtime.
func newTestGraph(t *testing.T) (*PostgresGraph, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed graph test in -short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("llmspell_graph_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	g, err := NewPostgresGraph(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	return g, WithTenant(ctx, "tenant-a")
}

func TestPostgresGraph_AddAndGetEntity(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.AddEntity(ctx, Entity{
		Name:       "Ada Lovelace",
		EntityType: "person",
		Properties: json.RawMessage(`{"field":"mathematics"}`),
	})
	require.NoError(t, err)

	got, err := g.GetEntity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.Equal(t, "person", got.EntityType)
}

func TestPostgresGraph_GetEntity_CrossTenantNotFound(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.AddEntity(ctx, Entity{Name: "Isolated", EntityType: "person"})
	require.NoError(t, err)

	otherCtx := WithTenant(context.Background(), "tenant-b")
	_, err = g.GetEntity(otherCtx, id)
	assert.Error(t, err)
}

func TestPostgresGraph_GetEntity_NoTenantContext(t *testing.T) {
	g, _ := newTestGraph(t)
	_, err := g.GetEntity(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNoTenantContext)
}

func TestPostgresGraph_UpdateEntity_PreservesHistory(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.AddEntity(ctx, Entity{
		Name:       "Grace Hopper",
		EntityType: "person",
		Properties: json.RawMessage(`{"rank":"commander"}`),
	})
	require.NoError(t, err)

	err = g.UpdateEntity(ctx, id, map[string]any{"rank": "rear admiral"})
	require.NoError(t, err)

	current, err := g.GetEntity(ctx, id)
	require.NoError(t, err)
	var props map[string]any
	require.NoError(t, json.Unmarshal(current.Properties, &props))
	assert.Equal(t, "rear admiral", props["rank"])

	past, err := g.GetEntityAt(ctx, id, current.IngestionTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, past)
	var pastProps map[string]any
	require.NoError(t, json.Unmarshal(past.Properties, &pastProps))
	assert.Equal(t, "commander", pastProps["rank"])
}

func TestPostgresGraph_GetEntityAt_MissReturnsNilNotError(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.AddEntity(ctx, Entity{Name: "Recent", EntityType: "doc"})
	require.NoError(t, err)

	past, err := g.GetEntityAt(ctx, id, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, past)
}

func TestPostgresGraph_AddRelationshipAndTraverse(t *testing.T) {
	g, ctx := newTestGraph(t)

	alice, err := g.AddEntity(ctx, Entity{Name: "Alice", EntityType: "person"})
	require.NoError(t, err)
	bob, err := g.AddEntity(ctx, Entity{Name: "Bob", EntityType: "person"})
	require.NoError(t, err)
	carol, err := g.AddEntity(ctx, Entity{Name: "Carol", EntityType: "person"})
	require.NoError(t, err)

	_, err = g.AddRelationship(ctx, Relationship{FromEntity: alice, ToEntity: bob, RelationshipType: "knows"})
	require.NoError(t, err)
	_, err = g.AddRelationship(ctx, Relationship{FromEntity: bob, ToEntity: carol, RelationshipType: "knows"})
	require.NoError(t, err)
	// a cycle back to alice must not hang traversal
	_, err = g.AddRelationship(ctx, Relationship{FromEntity: carol, ToEntity: alice, RelationshipType: "knows"})
	require.NoError(t, err)

	related, err := g.GetRelated(ctx, alice, "knows", 5, time.Now().UTC())
	require.NoError(t, err)

	names := map[string]int{}
	for _, r := range related {
		names[r.Entity.Name] = r.Depth
	}
	assert.Equal(t, 1, names["Bob"])
	assert.Equal(t, 2, names["Carol"])
	assert.NotContains(t, names, "Alice") // depth 0 starting node excluded, cycle doesn't loop back
}

func TestPostgresGraph_GetRelationships_BothDirections(t *testing.T) {
	g, ctx := newTestGraph(t)

	a, err := g.AddEntity(ctx, Entity{Name: "A", EntityType: "thing"})
	require.NoError(t, err)
	b, err := g.AddEntity(ctx, Entity{Name: "B", EntityType: "thing"})
	require.NoError(t, err)

	_, err = g.AddRelationship(ctx, Relationship{FromEntity: a, ToEntity: b, RelationshipType: "linked"})
	require.NoError(t, err)

	rels, err := g.GetRelationships(ctx, b)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, a, rels[0].FromEntity)
}

func TestPostgresGraph_QueryTemporal_PropertyFilter(t *testing.T) {
	g, ctx := newTestGraph(t)

	_, err := g.AddEntity(ctx, Entity{Name: "Match", EntityType: "doc", Properties: json.RawMessage(`{"status":"active"}`)})
	require.NoError(t, err)
	_, err = g.AddEntity(ctx, Entity{Name: "NoMatch", EntityType: "doc", Properties: json.RawMessage(`{"status":"archived"}`)})
	require.NoError(t, err)

	results, err := g.QueryTemporal(ctx, TemporalQuery{
		EntityType:      "doc",
		PropertyFilters: map[string]any{"status": "active"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Match", results[0].Name)
}

func TestPostgresGraph_DeleteBefore_KeepsLiveVersions(t *testing.T) {
	g, ctx := newTestGraph(t)

	id, err := g.AddEntity(ctx, Entity{Name: "Versioned", EntityType: "doc"})
	require.NoError(t, err)
	require.NoError(t, g.UpdateEntity(ctx, id, map[string]any{"v": 2}))

	deleted, err := g.DeleteBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted) // only the superseded version, not the live one

	_, err = g.GetEntity(ctx, id)
	assert.NoError(t, err)
}
