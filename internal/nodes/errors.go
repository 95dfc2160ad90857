package nodes

import (
	"errors"
	"fmt"

	"frontdesk_backend/internal/tier"
)

// ErrNodeNotFound covers both a missing node and a node owned by another
// tenant; callers cannot distinguish the two.
var ErrNodeNotFound = errors.New("node not found")

// CapacityExceededError is returned when provisioning would exceed the
// tenant's tier capacity. It is returned both on the cheap precheck and on
// the insert guard losing a concurrent race.
type CapacityExceededError struct {
	Tier     tier.Tier
	MaxNodes int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("tier %s allows at most %d active nodes", e.Tier, e.MaxNodes)
}

// InvalidRoleError is returned for a role outside the known set.
type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("unknown node role %q", e.Role)
}
