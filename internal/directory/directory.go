package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Role classifies a user profile.
type Role string

const (
	RoleCounselor Role = "counselor"
	RoleClient    Role = "client"
	RoleAdmin     Role = "admin"
)

// Profile is the slice of a user the scheduling core needs.
type Profile struct {
	ID              uuid.UUID `json:"id"`
	TenantID        uuid.UUID `json:"tenant_id"`
	Role            Role      `json:"role"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Timezone        string    `json:"timezone"`
	TreatmentTarget string    `json:"treatment_target,omitempty"`
}

// FullName joins the name parts for notifications.
func (p *Profile) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ErrProfileNotFound is returned when no profile matches the id.
var ErrProfileNotFound = errors.New("profile not found")

// Directory resolves user identity for the scheduling core.
type Directory interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	TenantIDForUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// MemoryDirectory is an in-memory Directory for tests.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*Profile
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[uuid.UUID]*Profile)}
}

// Put registers a profile.
func (d *MemoryDirectory) Put(p *Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *p
	d.profiles[p.ID] = &cp
}

func (d *MemoryDirectory) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *MemoryDirectory) TenantIDForUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, err := d.GetProfile(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return p.TenantID, nil
}
