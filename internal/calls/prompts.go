package calls

import (
	"fmt"
	"sort"
	"strings"

	"frontdesk_backend/internal/nodes"
	"frontdesk_backend/internal/tier"

	"github.com/shopspring/decimal"
)

// Agent prompt templates per node role. Placeholders are injected at dispatch
// time; {company_name} carries the tenant's name, {market_context} its market.
var rolePrompts = map[nodes.Role]string{
	nodes.RoleReceptionist: `You are a professional receptionist for {company_name}.
OBJECTIVE: Collect name, phone, and reason for call.
TONE: Efficient and welcoming.
MARKET: {market_context}.`,

	nodes.RoleQualification: `You are a Sales Qualification Lead for {company_name}.
OBJECTIVE: Determine budget, timeline, and decision-maker status.
CRITICAL: If the lead mentions a claim value over $100k, flag as PRIORITY.`,

	nodes.RoleLegalIntake: `You are a Senior Legal Intake Specialist for {company_name}.
OBJECTIVE: Conduct a merits-first analysis of the caller's case.
TONE: Analytical, empathetic, and highly professional.
LOGIC: Gather case facts, injury/damage details, and statute of limitations indicators.`,

	nodes.RolePriority: `You are an Elite Revenue Specialist for {company_name}.
OBJECTIVE: High-value conversion.
STRATEGY: Use the prospect's profile to present tailored ROI and legal recovery solutions.
CLOSING: Secure a commitment for a discovery session or contract review.`,
}

const defaultMarketContext = "United States"

// BuildTask assembles the agent prompt for a role. Unknown roles fall back to
// the receptionist persona rather than failing a dispatch. Extra context is
// appended as a dossier, keys sorted for a stable prompt.
func BuildTask(role nodes.Role, companyName, marketContext string, context map[string]string) string {
	prompt, ok := rolePrompts[role]
	if !ok {
		prompt = rolePrompts[nodes.RoleReceptionist]
	}
	if marketContext == "" {
		marketContext = defaultMarketContext
	}

	prompt = strings.ReplaceAll(prompt, "{company_name}", companyName)
	prompt = strings.ReplaceAll(prompt, "{market_context}", marketContext)

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n\nCLIENT DOSSIER:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "* %s: %s\n", k, context[k])
		}
		prompt = b.String()
	}

	return prompt
}

// Voice cost model: a flat per-minute base rate scaled by the role's
// conversational complexity and the tier's discount.
var (
	baseRatePerMinute = decimal.NewFromFloat(0.09)

	roleCostMultipliers = map[nodes.Role]decimal.Decimal{
		nodes.RoleReceptionist:  decimal.NewFromFloat(1.0),
		nodes.RoleQualification: decimal.NewFromFloat(1.2),
		nodes.RoleLegalIntake:   decimal.NewFromFloat(1.5),
		nodes.RolePriority:      decimal.NewFromFloat(2.0),
	}
)

// EstimateVoiceCost computes the internal cost of a call. Unknown roles price
// at the base multiplier.
func EstimateVoiceCost(durationSeconds int, role nodes.Role, policy tier.Policy) decimal.Decimal {
	multiplier, ok := roleCostMultipliers[role]
	if !ok {
		multiplier = decimal.NewFromFloat(1.0)
	}

	minutes := decimal.NewFromInt(int64(durationSeconds)).Div(decimal.NewFromInt(60))
	return minutes.Mul(baseRatePerMinute).Mul(multiplier).Mul(policy.VoiceDiscount).Round(4)
}
