package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// EventTypeRecoveredRevenue is the only attributed event type today; the
// column exists so future fee kinds get their own dedupe scope.
const EventTypeRecoveredRevenue = "recovered_revenue"

// Revenue event statuses.
const (
	StatusPending  = "pending"
	StatusInvoiced = "invoiced"
)

// Event is one success-fee charge attributed to a call.
type Event struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenantId"`
	CallID         uuid.UUID       `json:"callId"`
	EventType      string          `json:"eventType"`
	Status         string          `json:"status"`
	RecoveredValue decimal.Decimal `json:"recoveredValue"`
	FeePercent     decimal.Decimal `json:"feePercent"`
	FeeAmount      decimal.Decimal `json:"feeAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Repository provides data access for revenue events.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEvent persists an event unless one already exists for the same call
// and event type. The conflict target is the uniqueness constraint, so
// concurrent duplicate deliveries race safely: exactly one insert wins.
func (r *Repository) InsertEvent(ctx context.Context, e Event) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO revenue_events (id, tenant_id, call_id, event_type, status, recovered_value, fee_percent, fee_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (call_id, event_type) DO NOTHING
	`, e.ID, e.TenantID, e.CallID, e.EventType, e.Status, e.RecoveredValue, e.FeePercent, e.FeeAmount)
	if err != nil {
		return false, fmt.Errorf("insert revenue event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByTenant returns the tenant's revenue events, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, call_id, event_type, status, recovered_value, fee_percent, fee_amount, created_at
		FROM revenue_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list revenue events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CallID, &e.EventType, &e.Status,
			&e.RecoveredValue, &e.FeePercent, &e.FeeAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
