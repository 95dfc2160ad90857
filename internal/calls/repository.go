package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontdesk_backend/internal/nodes"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrCallNotFound = errors.New("call not found")

// Call directions.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// CallAnalysis is the post-call analysis delivered after a call ends.
type CallAnalysis struct {
	Sentiment     string `json:"sentiment"`
	Intent        string `json:"intent"`
	LeadScore     int    `json:"leadScore"`
	TranscriptURL string `json:"transcriptUrl"`
	Qualified     bool   `json:"qualified"`
}

// Call is one provider call, keyed for webhook matching by ProviderCallID.
type Call struct {
	ID              uuid.UUID        `json:"id"`
	TenantID        uuid.UUID        `json:"tenantId"`
	NodeID          uuid.NullUUID    `json:"nodeId"`
	ProviderCallID  string           `json:"providerCallId"`
	Direction       string           `json:"direction"`
	FromNumber      string           `json:"fromNumber"`
	ToNumber        string           `json:"toNumber"`
	Role            nodes.Role       `json:"role"`
	State           State            `json:"state"`
	DurationSeconds int              `json:"durationSeconds"`
	RecordingURL    *string          `json:"recordingUrl,omitempty"`
	VoiceCost       *decimal.Decimal `json:"voiceCost,omitempty"`
	Analysis        *CallAnalysis    `json:"analysis,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Repository provides data access for calls.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callColumns = `id, tenant_id, node_id, provider_call_id, direction, from_number, to_number, role, state, duration_seconds, recording_url, voice_cost, sentiment, intent, lead_score, transcript_url, qualified, created_at, updated_at`

func scanCall(row pgx.Row) (Call, error) {
	var c Call
	var sentiment, intent, transcriptURL *string
	var leadScore *int
	var qualified *bool
	err := row.Scan(&c.ID, &c.TenantID, &c.NodeID, &c.ProviderCallID, &c.Direction,
		&c.FromNumber, &c.ToNumber, &c.Role, &c.State, &c.DurationSeconds,
		&c.RecordingURL, &c.VoiceCost, &sentiment, &intent, &leadScore,
		&transcriptURL, &qualified, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	// All analysis columns are written together, so one non-null column
	// means an analysis was attached.
	if sentiment != nil {
		c.Analysis = &CallAnalysis{
			Sentiment:     *sentiment,
			Intent:        valueOr(intent, ""),
			LeadScore:     valueOr(leadScore, 0),
			TranscriptURL: valueOr(transcriptURL, ""),
			Qualified:     valueOr(qualified, false),
		}
	}
	return c, nil
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// Insert persists a freshly dispatched call.
func (r *Repository) Insert(ctx context.Context, c Call) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calls (id, tenant_id, node_id, provider_call_id, direction, from_number, to_number, role, state, duration_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, now(), now())
	`, c.ID, c.TenantID, c.NodeID, c.ProviderCallID, c.Direction, c.FromNumber, c.ToNumber, c.Role, c.State)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// EnsureExists creates the call row if this provider call id was never seen.
// Inbound calls reach us through webhooks first, so the first lifecycle event
// doubles as the insert. The conflict target makes concurrent first deliveries
// collapse into one row.
func (r *Repository) EnsureExists(ctx context.Context, c Call) (Call, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO calls (id, tenant_id, node_id, provider_call_id, direction, from_number, to_number, role, state, duration_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, now(), now())
		ON CONFLICT (provider_call_id) DO NOTHING
	`, c.ID, c.TenantID, c.NodeID, c.ProviderCallID, c.Direction, c.FromNumber, c.ToNumber, c.Role, c.State)
	if err != nil {
		return Call{}, fmt.Errorf("ensure call: %w", err)
	}
	return r.GetByProviderCallID(ctx, c.ProviderCallID)
}

// GetByProviderCallID loads a call by the provider's identifier.
func (r *Repository) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	c, err := scanCall(r.pool.QueryRow(ctx, `
		SELECT `+callColumns+` FROM calls WHERE provider_call_id = $1
	`, providerCallID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Call{}, ErrCallNotFound
	}
	return c, err
}

// GetByIDForTenant loads a call scoped to its owning tenant.
func (r *Repository) GetByIDForTenant(ctx context.Context, id, tenantID uuid.UUID) (Call, error) {
	c, err := scanCall(r.pool.QueryRow(ctx, `
		SELECT `+callColumns+` FROM calls WHERE id = $1 AND tenant_id = $2
	`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Call{}, ErrCallNotFound
	}
	return c, err
}

// ListByTenant returns the tenant's calls, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]Call, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callColumns+` FROM calls WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var result []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// AdvanceState moves a call forward. The WHERE clause restricts the update to
// states ranked below the target, so a stale or replayed event updates zero
// rows regardless of interleaving. Returns whether the call actually moved.
func (r *Repository) AdvanceState(ctx context.Context, providerCallID string, to State) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls SET state = $2, updated_at = now()
		WHERE provider_call_id = $1 AND state = ANY($3)
	`, providerCallID, to, statesBelow(to))
	if err != nil {
		return false, fmt.Errorf("advance call state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AttachAnalysis stores the post-call analysis on the call row. Redelivered
// analysis webhooks rewrite the same values, so replays are harmless. Returns
// whether a row matched.
func (r *Repository) AttachAnalysis(ctx context.Context, providerCallID string, a CallAnalysis) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls SET sentiment = $2, intent = $3, lead_score = $4, transcript_url = $5, qualified = $6, updated_at = now()
		WHERE provider_call_id = $1
	`, providerCallID, a.Sentiment, a.Intent, a.LeadScore, a.TranscriptURL, a.Qualified)
	if err != nil {
		return false, fmt.Errorf("attach call analysis: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinalizeTerminal moves a call to a terminal state and records the outcome
// fields, with the same monotonic guard as AdvanceState.
func (r *Repository) FinalizeTerminal(ctx context.Context, providerCallID string, to State, durationSeconds int, recordingURL *string, voiceCost decimal.Decimal) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE calls SET state = $2, duration_seconds = $3, recording_url = $4, voice_cost = $5, updated_at = now()
		WHERE provider_call_id = $1 AND state = ANY($6)
	`, providerCallID, to, durationSeconds, recordingURL, voiceCost, statesBelow(to))
	if err != nil {
		return false, fmt.Errorf("finalize call: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
