package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/llmspell/llmspell/pkg/access"
)

// secCtxKey threads an access.SecurityContext alongside the tenant set by
// WithTenant, so a GuardedGraph can evaluate access without widening the
// KnowledgeGraph interface's signatures.
type secCtxKey struct{}

// WithSecurityContext attaches sec to ctx for GuardedGraph's access checks.
func WithSecurityContext(ctx context.Context, sec access.SecurityContext) context.Context {
	return context.WithValue(ctx, secCtxKey{}, sec)
}

func securityFromContext(ctx context.Context) (access.SecurityContext, bool) {
	sec, ok := ctx.Value(secCtxKey{}).(access.SecurityContext)
	return sec, ok
}

// GuardedGraph wraps a KnowledgeGraph with the access-control policy engine
// (C9), implementing spec.md §3's "Graph calls from templates traverse
// C9→C10" flow: every operation resolves an AccessDecision before touching
// storage. A Deny decision returns an error; the filters of an
// AllowWithFilter decision on a read path are applied to the returned rows.
type GuardedGraph struct {
	Inner   KnowledgeGraph
	Manager *access.Manager
}

func NewGuardedGraph(inner KnowledgeGraph, manager *access.Manager) *GuardedGraph {
	return &GuardedGraph{Inner: inner, Manager: manager}
}

var _ KnowledgeGraph = (*GuardedGraph)(nil)

func (g *GuardedGraph) authorize(ctx context.Context, operation, resource string) ([]access.SecurityFilter, error) {
	sec, ok := securityFromContext(ctx)
	if !ok {
		return nil, &access.ErrInvalidContext{Reason: "no security context set; call WithSecurityContext first"}
	}
	decision, err := g.Manager.EvaluateAccess(ctx, sec, operation, resource)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		return nil, &deniedError{reason: decision.Reason}
	}
	return decision.Filters, nil
}

type deniedError struct{ reason string }

func (e *deniedError) Error() string { return "graph: access denied: " + e.reason }

func resourceForEntity(entityType string) string {
	if entityType == "" {
		return "graph:entity"
	}
	return "graph:entity:" + entityType
}

func (g *GuardedGraph) AddEntity(ctx context.Context, entity Entity) (string, error) {
	if _, err := g.authorize(ctx, "graph.add_entity", resourceForEntity(entity.EntityType)); err != nil {
		return "", err
	}
	return g.Inner.AddEntity(ctx, entity)
}

func (g *GuardedGraph) UpdateEntity(ctx context.Context, id string, changes map[string]any) error {
	if _, err := g.authorize(ctx, "graph.update_entity", "graph:entity"); err != nil {
		return err
	}
	return g.Inner.UpdateEntity(ctx, id, changes)
}

func (g *GuardedGraph) GetEntity(ctx context.Context, id string) (Entity, error) {
	if _, err := g.authorize(ctx, "graph.get_entity", "graph:entity"); err != nil {
		return Entity{}, err
	}
	return g.Inner.GetEntity(ctx, id)
}

func (g *GuardedGraph) GetEntityAt(ctx context.Context, id string, eventTime time.Time) (*Entity, error) {
	if _, err := g.authorize(ctx, "graph.get_entity_at", "graph:entity"); err != nil {
		return nil, err
	}
	return g.Inner.GetEntityAt(ctx, id, eventTime)
}

func (g *GuardedGraph) AddRelationship(ctx context.Context, rel Relationship) (string, error) {
	if _, err := g.authorize(ctx, "graph.add_relationship", "graph:relationship"); err != nil {
		return "", err
	}
	return g.Inner.AddRelationship(ctx, rel)
}

func (g *GuardedGraph) GetRelationships(ctx context.Context, entityID string) ([]Relationship, error) {
	if _, err := g.authorize(ctx, "graph.get_relationships", "graph:relationship"); err != nil {
		return nil, err
	}
	return g.Inner.GetRelationships(ctx, entityID)
}

// QueryTemporal applies any accumulated row-level filters from the access
// decision on top of the storage-layer results, per spec.md §4.9's pass
// rule, keyed off each entity's tenant_id property.
func (g *GuardedGraph) QueryTemporal(ctx context.Context, query TemporalQuery) ([]Entity, error) {
	filters, err := g.authorize(ctx, "graph.query_temporal", "graph:entity")
	if err != nil {
		return nil, err
	}
	entities, err := g.Inner.QueryTemporal(ctx, query)
	if err != nil {
		return nil, err
	}
	return filterEntities(entities, filters), nil
}

func (g *GuardedGraph) GetRelated(ctx context.Context, entityID string, relationshipType string, maxDepth int, validTime time.Time) ([]Related, error) {
	filters, err := g.authorize(ctx, "graph.get_related", "graph:relationship")
	if err != nil {
		return nil, err
	}
	related, err := g.Inner.GetRelated(ctx, entityID, relationshipType, maxDepth, validTime)
	if err != nil {
		return nil, err
	}
	return filterRelated(related, filters), nil
}

func (g *GuardedGraph) Traverse(ctx context.Context, startEntity string, relationshipType string, maxDepth int, atTime *time.Time) ([]Related, error) {
	filters, err := g.authorize(ctx, "graph.traverse", "graph:relationship")
	if err != nil {
		return nil, err
	}
	related, err := g.Inner.Traverse(ctx, startEntity, relationshipType, maxDepth, atTime)
	if err != nil {
		return nil, err
	}
	return filterRelated(related, filters), nil
}

func (g *GuardedGraph) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if _, err := g.authorize(ctx, "graph.delete_before", "graph:entity"); err != nil {
		return 0, err
	}
	return g.Inner.DeleteBefore(ctx, cutoff)
}

func filterEntities(entities []Entity, filters []access.SecurityFilter) []Entity {
	if len(filters) == 0 {
		return entities
	}
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if access.ApplyFilters(entityMetadata(e), filters) {
			out = append(out, e)
		}
	}
	return out
}

func filterRelated(related []Related, filters []access.SecurityFilter) []Related {
	if len(filters) == 0 {
		return related
	}
	out := make([]Related, 0, len(related))
	for _, r := range related {
		if access.ApplyFilters(entityMetadata(r.Entity), filters) {
			out = append(out, r)
		}
	}
	return out
}

func entityMetadata(e Entity) map[string]string {
	meta := map[string]string{"entity_type": e.EntityType}
	var props map[string]any
	if len(e.Properties) > 0 {
		if err := json.Unmarshal(e.Properties, &props); err == nil {
			if tenantID, ok := props["tenant_id"].(string); ok {
				meta["tenant_id"] = tenantID
			}
		}
	}
	return meta
}
