package calls

import (
	"fmt"

	"frontdesk_backend/internal/tier"
)

// OutboundNotAllowedError is returned when a tenant's tier does not include
// the outbound dispatch feature.
type OutboundNotAllowedError struct {
	Tier tier.Tier
}

func (e *OutboundNotAllowedError) Error() string {
	return fmt.Sprintf("tier %s does not allow outbound calls", e.Tier)
}

// InvalidDestinationError is returned for an unparseable destination number.
type InvalidDestinationError struct {
	Number string
}

func (e *InvalidDestinationError) Error() string {
	return fmt.Sprintf("destination %q is not a valid phone number", e.Number)
}
