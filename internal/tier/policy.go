// Package tier implements the subscription tier policy engine: a pure,
// side-effect-free mapping from a tenant's tier to its capacity table.
//
// The engine must be consulted fresh on every provisioning or dispatch
// decision. Tiers mutate under billing events, so callers never cache a
// Policy beyond the request that resolved it.
package tier

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is a tenant's subscription level.
type Tier string

const (
	Basic        Tier = "basic"
	Professional Tier = "professional"
	Growth       Tier = "growth"
	Elite        Tier = "elite"
)

// Policy is the capacity table for a tier.
type Policy struct {
	// MaxNodes bounds the count of simultaneously active telephony nodes.
	MaxNodes int
	// OutboundAllowed gates the outbound dispatch feature.
	OutboundAllowed bool
	// SuccessFeePercent is the fraction of recovered value charged on
	// qualifying calls. Zero means the tier bills subscription only.
	SuccessFeePercent decimal.Decimal
	// VoiceDiscount multiplies the per-minute voice cost.
	VoiceDiscount decimal.Decimal
	// DefaultVoiceProfile is the provider voice used unless overridden.
	DefaultVoiceProfile string
}

// UnknownTierError signals a tier value outside the known set. This is fatal
// misconfiguration, not a retryable condition.
type UnknownTierError struct {
	Tier Tier
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("unknown subscription tier %q", string(e.Tier))
}

var policies = map[Tier]Policy{
	Basic: {
		MaxNodes:            1,
		OutboundAllowed:     false,
		SuccessFeePercent:   decimal.Zero,
		VoiceDiscount:       decimal.NewFromFloat(1.00),
		DefaultVoiceProfile: "maya",
	},
	Professional: {
		MaxNodes:            3,
		OutboundAllowed:     true,
		SuccessFeePercent:   decimal.NewFromFloat(0.05),
		VoiceDiscount:       decimal.NewFromFloat(0.95),
		DefaultVoiceProfile: "maya",
	},
	Growth: {
		MaxNodes:            10,
		OutboundAllowed:     true,
		SuccessFeePercent:   decimal.NewFromFloat(0.10),
		VoiceDiscount:       decimal.NewFromFloat(0.90),
		DefaultVoiceProfile: "maya",
	},
	Elite: {
		MaxNodes:            1000,
		OutboundAllowed:     true,
		SuccessFeePercent:   decimal.NewFromFloat(0.15),
		VoiceDiscount:       decimal.NewFromFloat(0.85),
		DefaultVoiceProfile: "ryan",
	},
}

// Resolve returns the capacity table for the tier.
func Resolve(t Tier) (Policy, error) {
	policy, ok := policies[t]
	if !ok {
		return Policy{}, &UnknownTierError{Tier: t}
	}
	return policy, nil
}
