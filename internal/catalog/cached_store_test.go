package catalog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type countingStore struct {
	*MemoryStore
	serviceCalls atomic.Int64
	feeCalls     atomic.Int64
}

func (c *countingStore) GetServiceForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error) {
	c.serviceCalls.Add(1)
	return c.MemoryStore.GetServiceForTenant(ctx, tenantID, id)
}

func (c *countingStore) GetFeeReference(ctx context.Context, tenantID uuid.UUID) (*FeeReference, error) {
	c.feeCalls.Add(1)
	return c.MemoryStore.GetFeeReference(ctx, tenantID)
}

func newCacheFixture(t *testing.T) (*countingStore, *CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	cached := NewCachedStore(inner, client, time.Minute, nil)
	return inner, cached, mr
}

func TestCachedStoreServesSecondReadFromCache(t *testing.T) {
	inner, cached, _ := newCacheFixture(t)

	tenantID := uuid.New()
	svc := &ServiceDefinition{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Code:         "CBT_STD",
		TotalPrice:   decimal.NewFromInt(120),
		SessionCount: 4,
		FormulaType:  FormulaStandard,
		Gaps:         []int{7},
	}
	inner.PutService(svc)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := cached.GetServiceForTenant(ctx, tenantID, svc.ID)
		if err != nil {
			t.Fatalf("lookup %d failed: %v", i, err)
		}
		if got.Code != "CBT_STD" || got.SessionCount != 4 {
			t.Fatalf("lookup %d returned wrong service: %+v", i, got)
		}
	}

	if calls := inner.serviceCalls.Load(); calls != 1 {
		t.Fatalf("expected one backing-store read, got %d", calls)
	}
}

func TestCachedStoreExpiresWithTTL(t *testing.T) {
	inner, cached, mr := newCacheFixture(t)

	tenantID := uuid.New()
	inner.PutFeeReference(&FeeReference{TenantID: tenantID, TaxPercent: 10, SystemPercent: 40, CounselorPercent: 60})

	ctx := context.Background()
	if _, err := cached.GetFeeReference(ctx, tenantID); err != nil {
		t.Fatalf("first read: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cached.GetFeeReference(ctx, tenantID); err != nil {
		t.Fatalf("second read: %v", err)
	}

	if calls := inner.feeCalls.Load(); calls != 2 {
		t.Fatalf("expected cache expiry to force a second backing read, got %d", calls)
	}
}

func TestCachedStorePropagatesNotFound(t *testing.T) {
	_, cached, _ := newCacheFixture(t)

	_, err := cached.GetServiceForTenant(context.Background(), uuid.New(), uuid.New())
	if err != ErrServiceNotFound {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}
