// Package tenants provides read access to tenant identity and subscription
// state. Tier and status are always read fresh: both mutate under billing
// events, and capacity decisions must observe the latest values.
package tenants

import (
	"context"
	"errors"
	"time"

	"frontdesk_backend/internal/tier"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantSuspended = errors.New("tenant is suspended")
)

// Status is a tenant's account status.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Tenant is a platform customer owning zero or more telephony nodes.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Tier      tier.Tier `json:"tier"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Suspended reports whether the tenant is locked out of provisioning and dispatch.
func (t Tenant) Suspended() bool {
	return t.Status == StatusSuspended
}

// Repository provides data access for tenants.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new tenants repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID loads a tenant with its current tier and status.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, tier, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Tier, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrTenantNotFound
	}
	return t, err
}

// UpdateTier sets a tenant's tier. Invoked by billing events (upgrade or
// downgrade); capacity enforcement on the new tier happens at the next
// provisioning decision.
func (r *Repository) UpdateTier(ctx context.Context, id uuid.UUID, newTier tier.Tier) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET tier = $2, updated_at = now() WHERE id = $1
	`, id, newTier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}
