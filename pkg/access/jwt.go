package access

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ContextPopulator validates a bearer token against a JWKS endpoint and
// builds a SecurityContext from its claims, adapted from
// kadirpekel-hector/pkg/auth/jwt.go's JWTValidator — generalized from a
// single Role string to Roles []string, and TenantID read the same claim
// name ("tenant_id") the teacher's Claims struct uses.
type ContextPopulator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

func NewContextPopulator(jwksURL, issuer, audience string) (*ContextPopulator, error) {
	ctx := context.Background()
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("access: failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("access: failed to fetch JWKS from %s: %w", jwksURL, err)
	}
	return &ContextPopulator{jwksURL: jwksURL, cache: cache, issuer: issuer, audience: audience}, nil
}

func (p *ContextPopulator) FromBearerToken(ctx context.Context, tokenString string) (SecurityContext, error) {
	keyset, err := p.cache.Get(ctx, p.jwksURL)
	if err != nil {
		return SecurityContext{}, fmt.Errorf("access: failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
	)
	if err != nil {
		return SecurityContext{}, fmt.Errorf("access: invalid token: %w", err)
	}

	sec := NewSecurityContext(token.Subject())

	if tenantID, ok := token.Get("tenant_id"); ok {
		if s, ok := tenantID.(string); ok {
			sec = sec.WithTenantID(s)
		}
	}

	if roles, ok := token.Get("roles"); ok {
		sec = sec.WithRoles(toStringSlice(roles)...)
	} else if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			sec = sec.WithRoles(s)
		}
	}

	return sec, nil
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
