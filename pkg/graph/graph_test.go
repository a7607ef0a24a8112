package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTenant_RoundTrips(t *testing.T) {
	ctx := WithTenant(context.Background(), "tenant-a")
	tenantID, ok := TenantFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tenant-a", tenantID)
}

func TestTenantFromContext_MissingReturnsFalse(t *testing.T) {
	_, ok := TenantFromContext(context.Background())
	assert.False(t, ok)
}

func TestTenantFromContext_EmptyTenantIsTreatedAsMissing(t *testing.T) {
	ctx := WithTenant(context.Background(), "")
	_, ok := TenantFromContext(ctx)
	assert.False(t, ok)
}

func TestClampDepth(t *testing.T) {
	assert.Equal(t, 10, clampDepth(25))
	assert.Equal(t, 3, clampDepth(3))
	assert.Equal(t, 0, clampDepth(-1))
}
