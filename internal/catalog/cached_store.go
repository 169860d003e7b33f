package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// CachedStore is a read-through Redis cache in front of another Store.
// Catalog rows change rarely and are read on every schedule generation, so a
// short TTL keeps the hot path off the database. Cache failures degrade to a
// direct read, never to an error.
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

// NewCachedStore wraps a store with a Redis cache.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if inner == nil {
		panic("catalog: inner store required")
	}
	if client == nil {
		panic("catalog: redis client required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedStore{
		inner:  inner,
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("mindwell.internal.catalog"),
		logger: logger,
	}
}

func (c *CachedStore) GetService(ctx context.Context, id uuid.UUID) (*ServiceDefinition, error) {
	key := fmt.Sprintf("catalog:service:%s", id)
	return cachedServiceLookup(ctx, c, key, func(ctx context.Context) (*ServiceDefinition, error) {
		return c.inner.GetService(ctx, id)
	})
}

func (c *CachedStore) GetServiceForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error) {
	key := fmt.Sprintf("catalog:service:%s:%s", tenantID, id)
	return cachedServiceLookup(ctx, c, key, func(ctx context.Context) (*ServiceDefinition, error) {
		return c.inner.GetServiceForTenant(ctx, tenantID, id)
	})
}

func (c *CachedStore) GetServiceByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ServiceDefinition, error) {
	key := fmt.Sprintf("catalog:service_code:%s:%s", tenantID, code)
	return cachedServiceLookup(ctx, c, key, func(ctx context.Context) (*ServiceDefinition, error) {
		return c.inner.GetServiceByCode(ctx, tenantID, code)
	})
}

func (c *CachedStore) FindServiceByCodeAnyTenant(ctx context.Context, code string) (*ServiceDefinition, error) {
	key := fmt.Sprintf("catalog:service_code:any:%s", code)
	return cachedServiceLookup(ctx, c, key, func(ctx context.Context) (*ServiceDefinition, error) {
		return c.inner.FindServiceByCodeAnyTenant(ctx, code)
	})
}

func (c *CachedStore) GetFeeReference(ctx context.Context, tenantID uuid.UUID) (*FeeReference, error) {
	key := fmt.Sprintf("catalog:fees:%s", tenantID)

	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var ref FeeReference
		if err := json.Unmarshal(data, &ref); err == nil {
			return &ref, nil
		}
		c.logger.Warn("catalog: corrupt cached fee reference, refetching", "key", key)
	}

	ref, err := c.inner.GetFeeReference(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, ref)
	return ref, nil
}

func cachedServiceLookup(ctx context.Context, c *CachedStore, key string, fetch func(context.Context) (*ServiceDefinition, error)) (*ServiceDefinition, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.lookup")
	defer span.End()

	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var svc ServiceDefinition
		if err := json.Unmarshal(data, &svc); err == nil {
			return &svc, nil
		}
		c.logger.Warn("catalog: corrupt cached service, refetching", "key", key)
	} else if err != redis.Nil {
		c.logger.Warn("catalog: cache read failed", "key", key, "error", err)
	}

	svc, err := fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.set(ctx, key, svc)
	return svc, nil
}

func (c *CachedStore) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("catalog: cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog: cache write failed", "key", key, "error", err)
	}
}
