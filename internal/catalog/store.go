package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store provides read access to service definitions and fee references.
type Store interface {
	// GetService fetches a service by id regardless of tenant.
	GetService(ctx context.Context, id uuid.UUID) (*ServiceDefinition, error)
	// GetServiceForTenant fetches a service scoped to the tenant.
	GetServiceForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error)
	// GetServiceByCode fetches a tenant's service by its code.
	GetServiceByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ServiceDefinition, error)
	// FindServiceByCodeAnyTenant resolves a code across all tenants, used as
	// a fallback when a report placement references a service the current
	// tenant does not carry.
	FindServiceByCodeAnyTenant(ctx context.Context, code string) (*ServiceDefinition, error)
	// GetFeeReference fetches a tenant's percentage splits.
	GetFeeReference(ctx context.Context, tenantID uuid.UUID) (*FeeReference, error)
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	services map[uuid.UUID]*ServiceDefinition
	fees     map[uuid.UUID]*FeeReference
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		services: make(map[uuid.UUID]*ServiceDefinition),
		fees:     make(map[uuid.UUID]*FeeReference),
	}
}

// PutService registers a service definition.
func (m *MemoryStore) PutService(svc *ServiceDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *svc
	m.services[svc.ID] = &cp
}

// PutFeeReference registers a tenant fee split.
func (m *MemoryStore) PutFeeReference(ref *FeeReference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ref
	m.fees[ref.TenantID] = &cp
}

func (m *MemoryStore) GetService(ctx context.Context, id uuid.UUID) (*ServiceDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

func (m *MemoryStore) GetServiceForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error) {
	svc, err := m.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.TenantID != tenantID {
		return nil, ErrServiceNotFound
	}
	return svc, nil
}

func (m *MemoryStore) GetServiceByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ServiceDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, svc := range m.services {
		if svc.TenantID == tenantID && svc.Code == code {
			cp := *svc
			return &cp, nil
		}
	}
	return nil, ErrServiceNotFound
}

func (m *MemoryStore) FindServiceByCodeAnyTenant(ctx context.Context, code string) (*ServiceDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, svc := range m.services {
		if svc.Code == code {
			cp := *svc
			return &cp, nil
		}
	}
	return nil, ErrServiceNotFound
}

func (m *MemoryStore) GetFeeReference(ctx context.Context, tenantID uuid.UUID) (*FeeReference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.fees[tenantID]
	if !ok {
		return nil, ErrFeeReferenceNotFound
	}
	cp := *ref
	return &cp, nil
}
