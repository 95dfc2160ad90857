package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Role determines the agent persona and prompt attached to a node's calls.
type Role string

const (
	RoleReceptionist  Role = "receptionist"
	RoleQualification Role = "qualification"
	RolePriority      Role = "priority"
	RoleLegalIntake   Role = "legal-intake"
)

// Valid reports whether the role is one of the known personas.
func (r Role) Valid() bool {
	switch r {
	case RoleReceptionist, RoleQualification, RolePriority, RoleLegalIntake:
		return true
	}
	return false
}

// Node statuses. A released node keeps its row for call history joins but no
// longer counts against capacity.
const (
	StatusActive   = "active"
	StatusReleased = "released"
)

// Node is a provisioned phone number bound to an agent role.
type Node struct {
	ID                 uuid.UUID `json:"id"`
	TenantID           uuid.UUID `json:"tenantId"`
	Role               Role      `json:"role"`
	PhoneNumber        string    `json:"phoneNumber"`
	CountryCode        string    `json:"countryCode"`
	Provider           string    `json:"provider"`
	ProviderResourceID string    `json:"-"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Repository provides data access for nodes and the provisioning audit log.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const nodeColumns = `id, tenant_id, role, phone_number, country_code, provider, provider_resource_id, status, created_at, updated_at`

func scanNode(row pgx.Row) (Node, error) {
	var n Node
	err := row.Scan(&n.ID, &n.TenantID, &n.Role, &n.PhoneNumber, &n.CountryCode,
		&n.Provider, &n.ProviderResourceID, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// CountActive returns the tenant's active node count.
func (r *Repository) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM nodes WHERE tenant_id = $1 AND status = $2
	`, tenantID, StatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active nodes: %w", err)
	}
	return count, nil
}

// InsertIfUnderCap persists a new active node only while the tenant's active
// count is below maxNodes. The count guard runs inside the insert statement,
// so two concurrent provisions for the last slot cannot both land; the loser
// sees inserted=false and must compensate its provider acquisition.
func (r *Repository) InsertIfUnderCap(ctx context.Context, n Node, maxNodes int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO nodes (id, tenant_id, role, phone_number, country_code, provider, provider_resource_id, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, now(), now()
		WHERE (SELECT count(*) FROM nodes WHERE tenant_id = $2 AND status = $8) < $9
	`, n.ID, n.TenantID, n.Role, n.PhoneNumber, n.CountryCode, n.Provider, n.ProviderResourceID, StatusActive, maxNodes)
	if err != nil {
		return false, fmt.Errorf("insert node: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByIDForTenant loads a node scoped to its owning tenant.
func (r *Repository) GetByIDForTenant(ctx context.Context, id, tenantID uuid.UUID) (Node, error) {
	n, err := scanNode(r.pool.QueryRow(ctx, `
		SELECT `+nodeColumns+` FROM nodes WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Node{}, ErrNodeNotFound
	}
	return n, err
}

// GetActiveByPhone resolves an active node by its E.164 number. Used to
// attribute inbound-originated calls when the provider sends no metadata.
func (r *Repository) GetActiveByPhone(ctx context.Context, e164 string) (Node, error) {
	n, err := scanNode(r.pool.QueryRow(ctx, `
		SELECT `+nodeColumns+` FROM nodes WHERE phone_number = $1 AND status = $2
	`, e164, StatusActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return Node{}, ErrNodeNotFound
	}
	return n, err
}

// ListByTenant returns the tenant's nodes, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Node, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes WHERE tenant_id = $1 ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var result []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// ListActiveOverCap returns the newest active nodes beyond the first keep
// slots. Used after a downgrade to pick which nodes to release.
func (r *Repository) ListActiveOverCap(ctx context.Context, tenantID uuid.UUID, keep int) ([]Node, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at ASC
		OFFSET $3
	`, tenantID, StatusActive, keep)
	if err != nil {
		return nil, fmt.Errorf("list over-cap nodes: %w", err)
	}
	defer rows.Close()

	var result []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkReleased flips an active node to released. Returns ErrNodeNotFound when
// the node is missing, foreign, or already released.
func (r *Repository) MarkReleased(ctx context.Context, id, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE nodes SET status = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $4
	`, id, tenantID, StatusReleased, StatusActive)
	if err != nil {
		return fmt.Errorf("mark node released: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// LogAttempt appends to the provisioning audit log. Best effort: callers
// ignore the error after logging it.
func (r *Repository) LogAttempt(ctx context.Context, tenantID uuid.UUID, role Role, provider, outcome, detail string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provisioning_log (id, tenant_id, role, provider, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, uuid.New(), tenantID, role, provider, outcome, detail)
	return err
}
