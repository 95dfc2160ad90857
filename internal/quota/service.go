package quota

import (
	"context"
	"errors"
	"time"

	"frontdesk_backend/platform/logger"
)

// Call directions subject to the operator gate.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Operator modes for a provider integration. The mode is descriptive and
// rides on gate errors; the boolean flags do the gating.
const (
	ModeLive               = "live"
	ModeSandbox            = "sandbox"
	ModeDisabledByOperator = "disabled-by-operator"
	ModeUnconfigured       = "unconfigured"
)

type store interface {
	GetSettings(ctx context.Context, provider string) (*IntegrationSettings, error)
	UpdateSettings(ctx context.Context, s *IntegrationSettings) error
	UsedToday(ctx context.Context, provider string, day string) (int, error)
	Increment(ctx context.Context, provider string, day string) error
}

// Ledger enforces operator gates and daily usage limits for provider traffic.
// Check runs before the provider call, Consume after it succeeds, so a failed
// provider call never burns quota.
type Ledger struct {
	store store
	log   *logger.Logger
	now   func() time.Time
}

func NewLedger(store store, log *logger.Logger) *Ledger {
	return &Ledger{store: store, log: log, now: time.Now}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Check verifies the provider is enabled for the given call direction and
// that today's usage is below the configured limit. Missing settings mean the
// provider was never configured and is treated as disabled.
func (l *Ledger) Check(ctx context.Context, provider, direction string) error {
	settings, err := l.store.GetSettings(ctx, provider)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return &IntegrationDisabledError{Provider: provider, Mode: ModeUnconfigured}
		}
		return err
	}

	if !settings.Enabled {
		return &IntegrationDisabledError{Provider: provider, Mode: settings.Mode}
	}
	switch direction {
	case DirectionOutbound:
		if !settings.OutboundEnabled {
			return &IntegrationDisabledError{Provider: provider, Mode: settings.Mode, Direction: direction}
		}
	case DirectionInbound:
		if !settings.InboundEnabled {
			return &IntegrationDisabledError{Provider: provider, Mode: settings.Mode, Direction: direction}
		}
	}

	if settings.DailyCallLimit <= 0 {
		return nil
	}

	used, err := l.store.UsedToday(ctx, provider, dayKey(l.now()))
	if err != nil {
		return err
	}
	if used >= settings.DailyCallLimit {
		l.log.QuotaExhausted(provider, settings.DailyCallLimit)
		return &DailyLimitExceededError{Provider: provider, Limit: settings.DailyCallLimit}
	}
	return nil
}

// Consume records one successful provider call against today's counter.
func (l *Ledger) Consume(ctx context.Context, provider string) error {
	return l.store.Increment(ctx, provider, dayKey(l.now()))
}

// Settings returns the current gate configuration for a provider.
func (l *Ledger) Settings(ctx context.Context, provider string) (*IntegrationSettings, error) {
	return l.store.GetSettings(ctx, provider)
}

// UpdateSettings applies a new gate configuration. Changes are visible to the
// next Check because settings are never cached.
func (l *Ledger) UpdateSettings(ctx context.Context, s *IntegrationSettings) error {
	return l.store.UpdateSettings(ctx, s)
}
