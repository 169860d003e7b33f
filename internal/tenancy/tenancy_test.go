package tenancy

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithTenantIDRoundTrip(t *testing.T) {
	id := uuid.New()
	ctx := WithTenantID(context.Background(), id)

	got, ok := TenantIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected tenant id to be present")
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

func TestTenantIDFromContext_MissingOrInvalid(t *testing.T) {
	if _, ok := TenantIDFromContext(context.Background()); ok {
		t.Fatal("expected missing tenant id to return false")
	}

	ctx := context.WithValue(context.Background(), tenantKey, "not-a-uuid")
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatal("expected non-uuid tenant id to return false")
	}

	ctx = WithTenantID(context.Background(), uuid.Nil)
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatal("expected nil tenant id to return false")
	}
}
