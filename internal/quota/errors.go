package quota

import "fmt"

// IntegrationDisabledError is returned when an operator has gated a provider
// or one of its call directions. Requests fail before any provider traffic
// happens. Mode carries the operator-configured mode string so callers can
// report why the gate is closed.
type IntegrationDisabledError struct {
	Provider  string
	Mode      string
	Direction string
}

func (e *IntegrationDisabledError) Error() string {
	if e.Direction != "" {
		return fmt.Sprintf("provider %s is disabled for %s calls (mode %s)", e.Provider, e.Direction, e.Mode)
	}
	return fmt.Sprintf("provider %s is disabled (mode %s)", e.Provider, e.Mode)
}

// DailyLimitExceededError is returned when the provider's daily usage counter
// has reached the operator-configured limit.
type DailyLimitExceededError struct {
	Provider string
	Limit    int
}

func (e *DailyLimitExceededError) Error() string {
	return fmt.Sprintf("daily limit of %d reached for provider %s", e.Limit, e.Provider)
}
