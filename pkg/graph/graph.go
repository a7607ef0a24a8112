package graph

import (
	"context"
	"time"
)

// tenantKey is the context key WithTenant/TenantFromContext use. Unexported
// so the tenant can only be set through WithTenant, never forged by a
// caller constructing a matching key from another package.
type tenantKey struct{}

// WithTenant returns a copy of ctx carrying tenantID for every KnowledgeGraph
// call made with it. Every query-path method fails with ErrNoTenantContext
// if this hasn't been called, per spec.md §4.10: no implicit cross-tenant
// access and no default tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant set by WithTenant, or ("", false) if
// none was set.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantKey{}).(string)
	return tenantID, ok && tenantID != ""
}

// KnowledgeGraph is the capability set from spec.md §4.10. Every method
// reads its tenant from ctx (see WithTenant) rather than taking it as a
// parameter, so a caller can never accidentally omit isolation.
type KnowledgeGraph interface {
	AddEntity(ctx context.Context, entity Entity) (string, error)
	UpdateEntity(ctx context.Context, id string, changes map[string]any) error
	GetEntity(ctx context.Context, id string) (Entity, error)

	// GetEntityAt returns nil, nil when no version's ranges contain the
	// given coordinates — a temporal miss is not an error, per spec.md
	// §7's "graph temporal lookups return None rather than failing".
	GetEntityAt(ctx context.Context, id string, eventTime time.Time) (*Entity, error)

	AddRelationship(ctx context.Context, rel Relationship) (string, error)
	GetRelationships(ctx context.Context, entityID string) ([]Relationship, error)

	QueryTemporal(ctx context.Context, query TemporalQuery) ([]Entity, error)

	// GetRelated returns entities reachable from entityID, optionally
	// filtered to one relationship type, up to maxDepth hops (clamped to
	// 10) as of validTime.
	GetRelated(ctx context.Context, entityID string, relationshipType string, maxDepth int, validTime time.Time) ([]Related, error)

	// Traverse is GetRelated's general form: relationshipType == "" means
	// every type, and atTime == nil means "now".
	Traverse(ctx context.Context, startEntity string, relationshipType string, maxDepth int, atTime *time.Time) ([]Related, error)

	// DeleteBefore removes historical (already-superseded) entity and
	// relationship versions ingested before cutoff, never the live version,
	// returning the number of rows removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// maxTraverseDepth is the hard cap from spec.md §4.10, mirroring the
// original's max_depth.min(10).
const maxTraverseDepth = 10

func clampDepth(d int) int {
	if d > maxTraverseDepth {
		return maxTraverseDepth
	}
	if d < 0 {
		return 0
	}
	return d
}
