package access

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/llmspell/llmspell/pkg/observability"
)

// Manager composes registered Policies with first-Deny-wins semantics and
// accumulating AllowWithFilters, exactly EnhancedSecurityManager's
// evaluate_access loop: sorted by descending priority, the first Deny
// short-circuits, every AllowWithFilters' filters accumulate, and the
// final decision is cached and audited.
type Manager struct {
	mu       sync.RWMutex
	policies []Policy
	cache    DecisionCache
	audit    AuditSink
	cacheTTL time.Duration
}

func NewManager(cache DecisionCache, audit AuditSink, cacheTTL time.Duration) *Manager {
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &Manager{cache: cache, audit: audit, cacheTTL: cacheTTL}
}

// AddPolicy inserts a policy and re-sorts by descending priority, matching
// `policies.sort_by_key(|p| -p.priority())`.
func (m *Manager) AddPolicy(p Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = append(m.policies, p)
	sort.SliceStable(m.policies, func(i, j int) bool {
		return m.policies[i].Priority() > m.policies[j].Priority()
	})
}

func (m *Manager) maxVersion() uint32 {
	var max uint32
	for _, p := range m.policies {
		if v := p.Version(); v > max {
			max = v
		}
	}
	return max
}

// EvaluateAccess runs every applicable policy in priority order, caches,
// and audits the result.
func (m *Manager) EvaluateAccess(ctx context.Context, sec SecurityContext, operation, resource string) (AccessDecision, error) {
	m.mu.RLock()
	policies := append([]Policy(nil), m.policies...)
	m.mu.RUnlock()

	key := cacheKey(sec, operation, resource, m.maxVersion())
	if m.cache != nil {
		if cached, ok := m.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	final := AccessDecision{Kind: Deny, Reason: "no applicable policies"}
	var filters []SecurityFilter

	for _, p := range policies {
		if !p.AppliesTo(sec, operation) {
			continue
		}
		decision, err := p.EvaluateAccess(ctx, sec, operation, resource)
		if err != nil {
			return AccessDecision{}, err
		}
		switch decision.Kind {
		case Deny:
			final = decision
			filters = nil
			goto done // first deny wins
		case Allow:
			final = AccessDecision{Kind: Allow}
		case AllowWithFilter:
			filters = append(filters, decision.Filters...)
			final = AccessDecision{Kind: Allow}
		}
	}
done:

	if len(filters) > 0 && final.Kind == Allow {
		final = AccessDecision{Kind: AllowWithFilter, Filters: filters}
	}

	observability.GetGlobalMetrics().RecordAccessDecision(ctx, operation, resource, final.Allowed())

	if m.audit != nil {
		m.audit.Log(ctx, AuditEvent{
			Granted:   final.Allowed(),
			Principal: sec.Principal,
			Operation: operation,
			Resource:  resource,
			Reason:    final.Reason,
			Metadata:  sec.Attributes,
		})
	}

	if m.cache != nil {
		m.cache.Put(ctx, key, final, m.cacheTTL)
	}

	return final, nil
}

// ClearCache drops every cached decision, e.g. after a policy set change.
func (m *Manager) ClearCache(ctx context.Context) {
	if m.cache != nil {
		m.cache.Clear(ctx)
	}
}
