package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrationSettings is the operator-managed gate for a telephony provider.
// Settings are always read fresh so a toggle takes effect on the next request.
type IntegrationSettings struct {
	Provider        string    `json:"provider"`
	Enabled         bool      `json:"enabled"`
	Mode            string    `json:"mode"`
	OutboundEnabled bool      `json:"outboundEnabled"`
	InboundEnabled  bool      `json:"inboundEnabled"`
	DailyCallLimit  int       `json:"dailyCallLimit"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

var ErrSettingsNotFound = errors.New("integration settings not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetSettings(ctx context.Context, provider string) (*IntegrationSettings, error) {
	var s IntegrationSettings
	err := r.pool.QueryRow(ctx, `
		SELECT provider, enabled, mode, outbound_enabled, inbound_enabled, daily_call_limit, updated_at
		FROM integration_settings
		WHERE provider = $1
	`, provider).Scan(&s.Provider, &s.Enabled, &s.Mode, &s.OutboundEnabled, &s.InboundEnabled, &s.DailyCallLimit, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get integration settings: %w", err)
	}
	return &s, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, s *IntegrationSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO integration_settings (provider, enabled, mode, outbound_enabled, inbound_enabled, daily_call_limit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (provider) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			mode = EXCLUDED.mode,
			outbound_enabled = EXCLUDED.outbound_enabled,
			inbound_enabled = EXCLUDED.inbound_enabled,
			daily_call_limit = EXCLUDED.daily_call_limit,
			updated_at = now()
	`, s.Provider, s.Enabled, s.Mode, s.OutboundEnabled, s.InboundEnabled, s.DailyCallLimit)
	if err != nil {
		return fmt.Errorf("update integration settings: %w", err)
	}
	return nil
}

// UsedToday returns the usage counter for the provider's current UTC day.
// A missing row means zero usage.
func (r *Repository) UsedToday(ctx context.Context, provider string, day string) (int, error) {
	var used int
	err := r.pool.QueryRow(ctx, `
		SELECT used FROM quota_counters WHERE provider = $1 AND day = $2
	`, provider, day).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read quota counter: %w", err)
	}
	return used, nil
}

// Increment bumps the provider's counter for the given day atomically. The
// upsert makes concurrent increments safe without a prior read.
func (r *Repository) Increment(ctx context.Context, provider string, day string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quota_counters (provider, day, used)
		VALUES ($1, $2, 1)
		ON CONFLICT (provider, day) DO UPDATE SET used = quota_counters.used + 1
	`, provider, day)
	if err != nil {
		return fmt.Errorf("increment quota counter: %w", err)
	}
	return nil
}
